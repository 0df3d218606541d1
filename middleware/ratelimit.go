package middleware

import (
	"encoding/json"
	"log"
	"net/http"

	"imbackend/appctx"
	"imbackend/services/ratelimit"
)

// RateLimitMiddleware rejects requests over the per-tenant budget with 429.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
}

func NewRateLimitMiddleware(limiter ratelimit.Limiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter}
}

// WithRateLimit keys the budget on the authenticated tenant, falling back
// to the remote address before auth has run.
func (m *RateLimitMiddleware) WithRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if user, ok := appctx.GetUser(r.Context()); ok {
			key = user.ClientID
		}

		if !m.limiter.Admit(key) {
			log.Printf("⛔ Rate limit exceeded for %s", key)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			if err := json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"}); err != nil {
				log.Printf("❌ Failed to encode error response: %v", err)
			}
			return
		}

		next(w, r)
	}
}

package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"imbackend/middleware"
)

// SetupEndpoints registers the integration registry routes under /api/v1.
func (h *IntegrationsHTTPHandler) SetupEndpoints(
	router *mux.Router,
	auth *middleware.ClerkAuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return auth.WithAuth(rateLimit.WithRateLimit(handler))
	}

	router.HandleFunc("/api/v1/integrations", wrap(h.HandleCreateIntegration)).Methods("POST")
	router.HandleFunc("/api/v1/integrations", wrap(h.HandleListIntegrations)).Methods("GET")
	router.HandleFunc("/api/v1/integrations/{id}", wrap(h.HandleGetIntegration)).Methods("GET")
	router.HandleFunc("/api/v1/integrations/{id}", wrap(h.HandleUpdateIntegration)).Methods("PUT")
	router.HandleFunc("/api/v1/integrations/{id}", wrap(h.HandleDeleteIntegration)).Methods("DELETE")
	router.HandleFunc("/api/v1/integrations/{id}/test", wrap(h.HandleTestConnection)).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{id}/sync", wrap(h.HandleSync)).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{id}/metrics", wrap(h.HandleGetMetrics)).Methods("GET")
	router.HandleFunc("/api/v1/integrations/{id}/sync-runs", wrap(h.HandleListSyncRuns)).Methods("GET")
	router.HandleFunc(
		"/api/v1/integrations/{id}/records/contacts/{recordID}", wrap(h.HandleGetContactRecord),
	).Methods("GET")
	router.HandleFunc(
		"/api/v1/integrations/{id}/records/opportunities/{recordID}", wrap(h.HandleGetOpportunityRecord),
	).Methods("GET")
}

// SetupEndpoints registers the messaging routes under /api/v1.
func (h *CommunicationsHTTPHandler) SetupEndpoints(
	router *mux.Router,
	auth *middleware.ClerkAuthMiddleware,
	rateLimit *middleware.RateLimitMiddleware,
) {
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return auth.WithAuth(rateLimit.WithRateLimit(handler))
	}

	router.HandleFunc("/api/v1/integrations/{id}/messages", wrap(h.HandleSendMessage)).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{id}/channels", wrap(h.HandleGetChannels)).Methods("GET")
	router.HandleFunc("/api/v1/integrations/{id}/channels", wrap(h.HandleCreateChannel)).Methods("POST")
	router.HandleFunc("/api/v1/integrations/{id}/users", wrap(h.HandleGetUsers)).Methods("GET")
	router.HandleFunc(
		"/api/v1/integrations/{id}/channels/{channelId}/messages", wrap(h.HandleGetChannelHistory),
	).Methods("GET")
	router.HandleFunc(
		"/api/v1/integrations/{id}/channels/{channelId}/messages/{messageId}", wrap(h.HandleUpdateMessage),
	).Methods("PUT")
	router.HandleFunc(
		"/api/v1/integrations/{id}/channels/{channelId}/messages/{messageId}", wrap(h.HandleDeleteMessage),
	).Methods("DELETE")
}

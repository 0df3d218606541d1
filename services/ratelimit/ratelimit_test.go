package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, interval time.Duration) (*FixedWindowLimiter, *time.Time) {
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewFixedWindowLimiter(limit, interval)
	limiter.now = func() time.Time { return current }
	return limiter, &current
}

func TestAdmit_UpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(3, time.Minute)

	assert.True(t, limiter.Admit("cl_1"))
	assert.True(t, limiter.Admit("cl_1"))
	assert.True(t, limiter.Admit("cl_1"))
	assert.False(t, limiter.Admit("cl_1"))
	assert.False(t, limiter.Admit("cl_1"))
}

func TestAdmit_NewWindowAfterInterval(t *testing.T) {
	limiter, clock := newTestLimiter(2, time.Minute)

	assert.True(t, limiter.Admit("cl_1"))
	assert.True(t, limiter.Admit("cl_1"))
	assert.False(t, limiter.Admit("cl_1"))

	*clock = clock.Add(time.Minute)
	assert.True(t, limiter.Admit("cl_1"))
	assert.True(t, limiter.Admit("cl_1"))
	assert.False(t, limiter.Admit("cl_1"))
}

func TestAdmit_KeysAreIsolated(t *testing.T) {
	limiter, _ := newTestLimiter(1, time.Minute)

	assert.True(t, limiter.Admit("cl_1"))
	assert.False(t, limiter.Admit("cl_1"))
	assert.True(t, limiter.Admit("cl_2"))
}

func TestExpiredWindowsAreSwept(t *testing.T) {
	limiter, clock := newTestLimiter(1, time.Minute)

	limiter.Admit("cl_1")
	limiter.Admit("cl_2")
	assert.Len(t, limiter.windows, 2)

	*clock = clock.Add(2 * time.Minute)
	limiter.Admit("cl_3")
	assert.Len(t, limiter.windows, 1)
}

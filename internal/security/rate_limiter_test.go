package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/raaihank/ai-shield/internal/config"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRateLimiterAllow(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 3})
	limiter.now = fixedClock(start)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("u1"), "request %d", i)
	}
	assert.False(t, limiter.Allow("u1"))

	// other users have their own bucket
	assert.True(t, limiter.Allow("u2"))

	// one token per second at 60/min
	limiter.now = fixedClock(start.Add(time.Second))
	assert.True(t, limiter.Allow("u1"))
	assert.False(t, limiter.Allow("u1"))
}

func TestRateLimiterDisabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RateLimitConfig
	}{
		{"disabled", config.RateLimitConfig{Enabled: false, RequestsPerMin: 1, Burst: 1}},
		{"zero rate", config.RateLimitConfig{Enabled: true, RequestsPerMin: 0, Burst: 1}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			limiter := NewRateLimiter(tc.cfg)
			for i := 0; i < 10; i++ {
				assert.True(t, limiter.Allow("u1"))
			}
			assert.Equal(t, 0, limiter.Tracked())
		})
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	start := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMin: 60, Burst: 1})
	limiter.now = fixedClock(start)
	limiter.Allow("old")

	limiter.now = fixedClock(start.Add(90 * time.Minute))
	limiter.Allow("fresh")

	assert.Equal(t, 2, limiter.Tracked())
	assert.Equal(t, 1, limiter.CleanupOldBuckets())
	assert.Equal(t, 1, limiter.Tracked())
}

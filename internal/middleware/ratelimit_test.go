package middleware_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/middleware"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestRateLimiterAllowsUpToBurstThenRejects(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             3,
		CleanupInterval:   time.Minute,
		Idle:              time.Minute,
	}, testLogger)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow("client-a"), "request %d should be within burst", i)
	}
	require.False(t, rl.Allow("client-a"))
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: 1,
		Burst:             1,
		CleanupInterval:   time.Minute,
		Idle:              time.Minute,
	}, testLogger)
	defer rl.Stop()

	require.True(t, rl.Allow("client-a"))
	require.False(t, rl.Allow("client-a"))
	require.True(t, rl.Allow("client-b"))
}

func TestGetClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	r.RemoteAddr = "127.0.0.1:9999"

	require.Equal(t, "203.0.113.5", middleware.GetClientIP(r))
}

func TestGetClientIPFallsBackToRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.1:4242"

	require.Equal(t, "192.0.2.1", middleware.GetClientIP(r))
}

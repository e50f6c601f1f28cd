// Package middleware provides HTTP middleware for the engine's
// optional live dashboard (internal/dashboard).
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	// Idle is how long a client's bucket may go untouched before
	// cleanup reclaims it.
	Idle time.Duration
}

// DefaultRateLimitConfig returns sane defaults for a loopback dashboard
// with a handful of concurrent viewers, not an internet-facing API.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		Burst:             10,
		CleanupInterval:   5 * time.Minute,
		Idle:              10 * time.Minute,
	}
}

// clientBucket pairs a token bucket with the time it was last used, so
// cleanup can reclaim buckets for clients that went away.
type clientBucket struct {
	limiter *rate.Limiter
	lastAt  time.Time
}

// RateLimiter is a per-client (per-IP) token-bucket limiter built on
// golang.org/x/time/rate, one bucket per client key, reclaimed on an
// idle timer. The teacher's hand-rolled sliding-window counter
// (fixed-size window, manual reset-at bookkeeping) is replaced here
// with the standard library-adjacent rate.Limiter the rest of this
// engine's domain stack already imports for nothing else but this.
type RateLimiter struct {
	config  RateLimitConfig
	clients map[string]*clientBucket
	mu      sync.Mutex
	logger  *slog.Logger
	done    chan struct{}
}

// NewRateLimiter builds a limiter and starts its cleanup goroutine.
func NewRateLimiter(config RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*clientBucket),
		logger:  logger,
		done:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.done)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	for key, b := range rl.clients {
		if now.Sub(b.lastAt) > rl.config.Idle {
			delete(rl.clients, key)
		}
	}
}

// Allow reports whether a request from key may proceed, creating a
// fresh bucket for a client seen for the first time.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, exists := rl.clients[key]
	if !exists {
		b = &clientBucket{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.clients[key] = b
	}
	b.lastAt = time.Now()
	limiter := b.limiter
	rl.mu.Unlock()
	return limiter.Allow()
}

// GetClientIP extracts the client IP from a request, preferring
// X-Forwarded-For / X-Real-IP over RemoteAddr for requests proxied
// from a non-loopback viewer.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ips := splitIPs(xff); len(ips) > 0 {
			return ips[0]
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func splitIPs(xff string) []string {
	var ips []string
	start := 0
	for i := 0; i <= len(xff); i++ {
		if i == len(xff) || xff[i] == ',' {
			if seg := trimSpace(xff[start:i]); seg != "" {
				ips = append(ips, seg)
			}
			start = i + 1
		}
	}
	return ips
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && (s[start] == ' ' || s[start] == '\t') {
		start++
	}
	for end > start && (s[end-1] == ' ' || s[end-1] == '\t') {
		end--
	}
	return s[start:end]
}

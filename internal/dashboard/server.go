// Package dashboard implements the supplemental live report viewer
// described in SPEC_FULL.md: an optional, disableable loopback HTTP
// server that mirrors the current report.Report as JSON and pushes
// updates over a websocket, alongside the operational check-miss/
// aead-fail counters spec.md §7 keeps silent on the scoring path
// itself. report.html (spec.md §6) is unaffected; this is an
// additional view, not a replacement.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zekaeng/zeka/internal/config"
	"github.com/zekaeng/zeka/internal/middleware"
	"github.com/zekaeng/zeka/internal/pipeline"
	"github.com/zekaeng/zeka/internal/report"
)

// StatsSource exposes a running Runner's operational counters without
// the dashboard needing the rest of pipeline.Runner's surface.
type StatsSource interface {
	Stats() pipeline.Stats
}

// pollInterval is how often the push loop checks the report for
// changes worth broadcasting to connected viewers.
const pollInterval = 500 * time.Millisecond

// Server is the dashboard's HTTP+websocket front end.
type Server struct {
	router *gin.Engine
	hub    *hub
	rep    *report.Report
	stats  StatsSource
	logger *slog.Logger
	srv    *http.Server
}

// New builds a dashboard server bound to rep (read-only) and stats
// (the live scorer's counters). It does not start listening until Run.
func New(cfg config.DashboardConfig, rep *report.Report, stats StatsSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitPerSecond,
		Burst:             cfg.RateLimitBurst,
		CleanupInterval:   5 * time.Minute,
		Idle:              10 * time.Minute,
	}, logger)

	router.Use(rateLimitMiddleware(limiter))
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware())

	s := &Server{
		router: router,
		hub:    newHub(logger),
		rep:    rep,
		stats:  stats,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/api/report", func(c *gin.Context) {
		c.JSON(http.StatusOK, snapshotJSON(s.rep.Entries()))
	})
	s.router.GET("/api/stats", func(c *gin.Context) {
		st := s.stats.Stats()
		c.JSON(http.StatusOK, gin.H{
			"check_misses": st.CheckMisses,
			"aead_fails":   st.AEADFails,
		})
	})
	s.router.GET("/ws", s.hub.subscribe)
}

// Run starts the HTTP listener and the background push loop, blocking
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.router}
	go s.hub.run()
	go s.pushLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("dashboard: %w", err)
	}
}

// pushLoop polls the report at pollInterval and broadcasts a fresh
// snapshot to every connected viewer whenever it has changed, rather
// than requiring report.Report itself to carry a pub/sub hook for a
// state the scorer goroutine already owns exclusively.
func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastVersion string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.rep.Entries()
			version := fmt.Sprintf("%d:%.2f", len(snap.Rows), snap.Total)
			if version == lastVersion {
				continue
			}
			lastVersion = version
			data, err := json.Marshal(snapshotJSON(snap))
			if err != nil {
				s.logger.Debug("dashboard snapshot encode failed", "error", err)
				continue
			}
			s.hub.broadcastJSON(data)
		}
	}
}

func snapshotJSON(snap report.Snapshot) gin.H {
	rows := make([]gin.H, len(snap.Rows))
	for i, e := range snap.Rows {
		rows[i] = gin.H{
			"id":       e.ID,
			"title":    e.Title,
			"points":   e.Points,
			"category": e.Category.String(),
		}
	}
	return gin.H{"title": snap.Title, "total": snap.Total, "rows": rows}
}

// rateLimitMiddleware adapts middleware.RateLimiter into a gin
// handler, rejecting via AbortWithStatusJSON so the chain stops
// cleanly instead of falling through to the route handler.
func rateLimitMiddleware(limiter *middleware.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(middleware.GetClientIP(c.Request)) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func loggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Debug("dashboard request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// Package main is the entry point for the zeka scoring engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/config"
	"github.com/zekaeng/zeka/internal/dashboard"
	"github.com/zekaeng/zeka/internal/pipeline"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/report"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("zeka: fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	flags := flag.NewFlagSet("zeka", flag.ContinueOnError)
	artifactPath := flags.String("artifact", cfg.Engine.ArtifactPath, "path to compiled zeka.dat")
	watchRoot := flags.String("watch", cfg.Engine.WatchRoot, "root path providers watch for events")
	reportPath := flags.String("report", cfg.Engine.ReportPath, "path report.html is written to")
	mode := flags.String("mode", cfg.Engine.Mode, "scoring mode: development or competition")
	dashboardAddr := flags.String("dashboard", cfg.Dashboard.BindAddr, "bind address for the live dashboard (empty disables it)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if cfg.Env == "development" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	logger.Info("starting zeka", "version", version, "mode", *mode)

	if err := requireElevated(); err != nil {
		logger.Warn("running without elevated privileges; some providers may miss events", "error", err)
	}

	art, err := artifact.Load(*artifactPath)
	if err != nil {
		return fmt.Errorf("loading artifact: %w", err)
	}
	logger.Info("artifact loaded", "title", art.Title(), "checks_l1", art.Header.L1Count)

	rep := report.New(art.Title())
	renderer, err := report.NewHTMLRenderer(*reportPath)
	if err != nil {
		return fmt.Errorf("building report renderer: %w", err)
	}

	queue := pipeline.NewQueue(cfg.Engine.QueueCapacity, logger)
	registry := provider.NewRegistry(logger)
	for _, p := range provider.Default(*watchRoot) {
		registry.Register(p)
	}

	runMode := pipeline.ModeDevelopment
	if *mode == "competition" {
		runMode = pipeline.ModeCompetition
	}
	runner := pipeline.NewRunner(queue, art, rep, runMode, cfg.Engine.Interval, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	registry.StartAll(ctx, queue)
	defer registry.StopAll()

	go runner.Run(ctx)
	go renderLoop(ctx, rep, renderer, logger)

	if *dashboardAddr != "" {
		dash := dashboard.New(config.DashboardConfig{
			Enabled:            true,
			BindAddr:           *dashboardAddr,
			RateLimitPerSecond: cfg.Dashboard.RateLimitPerSecond,
			RateLimitBurst:     cfg.Dashboard.RateLimitBurst,
		}, rep, runner, logger)
		go func() {
			if err := dash.Run(ctx, *dashboardAddr); err != nil {
				logger.Error("dashboard stopped", "error", err)
			}
		}()
		logger.Info("dashboard enabled", "addr", *dashboardAddr)
	}

	<-ctx.Done()
	logger.Info("zeka shutdown complete")
	return nil
}

// renderLoop writes report.html whenever the report's content changes,
// polling rather than requiring report.Report to carry a render hook
// of its own (the same tradeoff internal/dashboard's push loop makes).
func renderLoop(ctx context.Context, rep *report.Report, renderer *report.HTMLRenderer, logger *slog.Logger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastVersion string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := rep.Entries()
			version := fmt.Sprintf("%d:%.2f", len(snap.Rows), snap.Total)
			if version == lastVersion {
				continue
			}
			lastVersion = version
			if err := renderer.Render(snap); err != nil {
				logger.Warn("report render failed", "error", err)
			}
		}
	}
}

// requireElevated checks whether the process has the privileges real
// platform event sources (USN journal readers, ETW sessions) need.
// This build only ships the fsnotify-backed provider, which needs none
// of that, so this is a named seam rather than a hard precondition:
// it never aborts startup, it only reports what a future privileged
// provider would find missing.
func requireElevated() error {
	if os.Geteuid() != 0 {
		return errors.New("not running as root (euid != 0)")
	}
	return nil
}

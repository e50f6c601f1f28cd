package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNothingSet(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "development", cfg.Env)
	require.Equal(t, "zeka.dat", cfg.Engine.ArtifactPath)
	require.Equal(t, "report.html", cfg.Engine.ReportPath)
	require.Equal(t, "development", cfg.Engine.Mode)
	require.Equal(t, 5*time.Second, cfg.Engine.Interval)
	require.Equal(t, 64*1024, cfg.Engine.QueueCapacity)
	require.False(t, cfg.Dashboard.Enabled)
	require.Equal(t, "", cfg.Dashboard.BindAddr)
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("ZEKA_ENV", "competition")
	t.Setenv("ZEKA_ARTIFACT", "/tmp/custom.dat")
	t.Setenv("ZEKA_MODE", "competition")
	t.Setenv("ZEKA_INTERVAL", "10s")
	t.Setenv("ZEKA_QUEUE_CAPACITY", "128")
	t.Setenv("ZEKA_DASHBOARD_ADDR", ":7231")
	t.Setenv("ZEKA_DASHBOARD_RATE", "2.5")
	t.Setenv("ZEKA_DASHBOARD_BURST", "4")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "competition", cfg.Env)
	require.Equal(t, "/tmp/custom.dat", cfg.Engine.ArtifactPath)
	require.Equal(t, "competition", cfg.Engine.Mode)
	require.Equal(t, 10*time.Second, cfg.Engine.Interval)
	require.Equal(t, 128, cfg.Engine.QueueCapacity)
	require.True(t, cfg.Dashboard.Enabled)
	require.Equal(t, ":7231", cfg.Dashboard.BindAddr)
	require.Equal(t, 2.5, cfg.Dashboard.RateLimitPerSecond)
	require.Equal(t, 4, cfg.Dashboard.RateLimitBurst)
}

func TestLoadIgnoresMalformedNumericEnvAndKeepsDefault(t *testing.T) {
	t.Setenv("ZEKA_QUEUE_CAPACITY", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 64*1024, cfg.Engine.QueueCapacity)
}

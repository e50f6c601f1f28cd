package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/report"
)

func TestRunnerDevelopmentScoresImmediately(t *testing.T) {
	art := buildSimpleArtifact(t, []byte("engine-aad"))
	rep := report.New(art.Title())
	q := NewQueue(0, nil)
	runner := NewRunner(q, art, rep, ModeDevelopment, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	q.Send(provider.Event{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("WeakPass")})

	require.Eventually(t, func() bool {
		return len(rep.Entries().Rows) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRunnerCompetitionCollapsesAndSwapsAtBoundary(t *testing.T) {
	art := buildSimpleArtifact(t, []byte("engine-aad"))
	rep := report.New(art.Title())
	q := NewQueue(0, nil)
	runner := NewRunner(q, art, rep, ModeCompetition, 40*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Run(ctx)

	// two writes to the same path within the interval: only the latest
	// should be scored once the boundary hits (P5/S5).
	q.Send(provider.Event{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("something-else")})
	q.Send(provider.Event{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("WeakPass")})

	require.Never(t, func() bool {
		return len(rep.Entries().Rows) == 1
	}, 10*time.Millisecond, 2*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(rep.Entries().Rows) == 1
	}, time.Second, 5*time.Millisecond)
}

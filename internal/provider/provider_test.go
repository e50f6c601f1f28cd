package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []Event
}

func (s *recordingSink) Send(e Event) { s.events = append(s.events, e) }

func TestFSProviderEnumeratesOnStart(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fq1"), []byte("fq1: 2\n"), 0o644))

	p := NewFSProvider(dir)
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Start(ctx, sink))
	defer p.Stop()

	require.Len(t, sink.events, 1)
	require.Equal(t, OpSet, sink.events[0].Op)
	require.Equal(t, []byte("fq1: 2\n"), sink.events[0].Value)
}

func TestFSProviderObservesLiveWrite(t *testing.T) {
	dir := t.TempDir()
	p := NewFSProvider(dir)
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, p.Start(ctx, sink))
	defer p.Stop()

	path := filepath.Join(dir, "new")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	require.Eventually(t, func() bool {
		for _, e := range sink.events {
			if e.Op == OpSet && len(e.Value) > 0 {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestRegistryStartAllSkipsUnavailable(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(NewRegistryKeyProvider("HKLM\\unused"))
	sink := &recordingSink{}
	r.StartAll(context.Background(), sink)
	r.StopAll()
	// no panic, no events: unavailable provider logged and skipped
	require.Empty(t, sink.events)
}

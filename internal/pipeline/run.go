package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/report"
)

// Mode selects between the two scoring schedules of spec.md §4.8.
type Mode int

const (
	// ModeDevelopment scores every event the instant it is dequeued,
	// against one long-lived scorer whose variable-slot state persists
	// for the life of the engine (I5: "in development mode, this is
	// global").
	ModeDevelopment Mode = iota
	// ModeCompetition accumulates events into a per-interval cache keyed
	// by (operation, path), collapsing duplicates to the latest, and at
	// each boundary scores the drained cache with the run's one scorer
	// into a working report, then swaps the live report to match it
	// atomically.
	ModeCompetition
)

// DefaultInterval is the competition-mode interval length used when none
// is configured.
const DefaultInterval = 5 * time.Second

// Runner drains a Queue and drives scoring according to a Mode.
type Runner struct {
	queue    *Queue
	art      *artifact.Artifact
	rep      *report.Report
	mode     Mode
	interval time.Duration
	logger   *slog.Logger

	// scorer is published once Run starts so Stats can read its
	// operational counters from another goroutine (the dashboard).
	scorer atomic.Pointer[Scorer]
}

// NewRunner builds a runner bound to art and reporting into rep.
// interval is only consulted in ModeCompetition (DefaultInterval when 0).
func NewRunner(queue *Queue, art *artifact.Artifact, rep *report.Report, mode Mode, interval time.Duration, logger *slog.Logger) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{queue: queue, art: art, rep: rep, mode: mode, interval: interval, logger: logger}
}

// Run blocks, draining the queue until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	switch r.mode {
	case ModeCompetition:
		r.runCompetition(ctx)
	default:
		r.runDevelopment(ctx)
	}
}

// runDevelopment implements spec.md §4.8's "every event is scored the
// moment it arrives" path: one scorer, live for the whole run, scoring
// into a working report whose unlocks are copied into the live report
// right after each event. Nothing is ever removed from the live report,
// so it stays monotone (spec.md §3) even when a check stops holding.
func (r *Runner) runDevelopment(ctx context.Context) {
	working := report.New(r.rep.Title())
	scorer := NewScorer(r.art, working, r.logger)
	r.scorer.Store(scorer)
	stop := ctx.Done()
	for {
		if !r.queue.Wait(stop) {
			return
		}
		for _, e := range r.queue.Drain() {
			select {
			case <-stop:
				return
			default:
			}
			scorer.Score(FromEvent(e))
			for _, entry := range working.Entries().Rows {
				r.rep.Unlock(entry.ID, entry)
			}
		}
	}
}

// runCompetition implements spec.md §4.8's interval-boundary path: a
// per-interval cache keyed by (operation, path) collapses duplicates to
// the latest event. A single scorer and working report persist for the
// whole run (so a check that stays true across many intervals stays
// unlocked without needing to be re-triggered); at each tick the cache
// is drained in insertion order, scored into the working report, and
// the live report is swapped to match it atomically. Collapsing
// same-key duplicates before scoring is what makes P5/S5's "within one
// interval, the latest write wins" behaviour fall out for free.
func (r *Runner) runCompetition(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	working := report.New(r.rep.Title())
	scorer := NewScorer(r.art, working, r.logger)
	r.scorer.Store(scorer)
	cache := newIntervalCache()
	incoming := r.watchQueue(ctx.Done())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			intervalID := uuid.New()
			events := cache.drain()
			for _, opv := range events {
				scorer.Score(opv)
			}
			r.rep.Swap(working)
			r.logger.Debug("competition interval scored", "interval_id", intervalID, "events", len(events))
		case <-incoming:
			for _, e := range r.queue.Drain() {
				cache.put(FromEvent(e))
			}
		}
	}
}

// Stats returns the live scorer's operational counters. Safe before
// Run is called: it reports a zero Stats until a scorer exists.
func (r *Runner) Stats() Stats {
	if s := r.scorer.Load(); s != nil {
		return s.Stats()
	}
	return Stats{}
}

// watchQueue returns a channel that receives a value each time the
// queue transitions from empty to non-empty, until stop is closed.
func (r *Runner) watchQueue(stop <-chan struct{}) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		defer close(ch)
		for {
			if !r.queue.Wait(stop) {
				return
			}
			select {
			case ch <- struct{}{}:
			case <-stop:
				return
			}
		}
	}()
	return ch
}

// intervalCache collapses duplicate (operation, path) events within one
// competition-mode interval to the latest, preserving first-seen
// insertion order per spec.md §4.8.
type intervalCache struct {
	order []string
	byKey map[string]provider.Event
}

func newIntervalCache() *intervalCache {
	return &intervalCache{byKey: make(map[string]provider.Event)}
}

func (c *intervalCache) put(o OPV) {
	key := o.Key()
	e := provider.Event{Op: o.Op, Path: o.Path, Value: o.Value}
	if _, exists := c.byKey[key]; !exists {
		c.order = append(c.order, key)
	}
	c.byKey[key] = e
}

func (c *intervalCache) drain() []OPV {
	if len(c.order) == 0 {
		return nil
	}
	out := make([]OPV, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, FromEvent(c.byKey[key]))
	}
	c.order = nil
	c.byKey = make(map[string]provider.Event)
	return out
}

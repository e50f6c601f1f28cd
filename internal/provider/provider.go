// Package provider implements the event-source capability interface of
// spec.md §9's re-architecting note: "Event-source plugins → a
// capability interface {start(sink), stop()} with a provider registry
// selected at startup based on OS." Providers run on independent OS
// threads and only ever send into the sink; per spec.md §5 they never
// touch engine state directly.
package provider

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Operation mirrors the OPV operation field (spec.md §3): only SET and
// DELETE exist.
type Operation uint8

const (
	OpSet Operation = iota
	OpDelete
)

// Event is a single OPV datum as produced by a provider: a path (the
// path-segment components of the tuple, already split) and, for SET,
// the observed value bytes.
type Event struct {
	Op    Operation
	Path  []string
	Value []byte
}

// Sink receives events from a provider. Implementations must not block
// indefinitely; the pipeline's queue (internal/pipeline) is the only
// production Sink and is itself non-blocking (spec.md §5: "Queue
// enqueues are non-blocking").
type Sink interface {
	Send(Event)
}

// Provider is the capability interface every event source implements.
// Start must return promptly; ongoing work happens on goroutines the
// provider itself manages until Stop is called or ctx is cancelled.
type Provider interface {
	Name() string
	Start(ctx context.Context, sink Sink) error
	Stop() error
}

// registeredProvider pairs a provider with a stable instance id assigned
// at registration, so log lines for a restarted or duplicate-named
// provider can still be told apart.
type registeredProvider struct {
	id uuid.UUID
	p  Provider
}

// Registry holds the providers selected for the current OS at startup.
type Registry struct {
	logger    *slog.Logger
	providers []registeredProvider
}

// NewRegistry builds a registry. A nil logger falls back to slog's
// default logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds a provider to the registry. Unavailable providers
// (spec.md §7's provider-unavailable) are still registered; StartAll
// logs and skips ones that fail to start.
func (r *Registry) Register(p Provider) {
	r.providers = append(r.providers, registeredProvider{id: uuid.New(), p: p})
}

// StartAll starts every registered provider, logging and continuing
// past any that fail (spec.md §7: "Logged; the engine continues with
// the remaining providers").
func (r *Registry) StartAll(ctx context.Context, sink Sink) {
	for _, rp := range r.providers {
		if err := rp.p.Start(ctx, sink); err != nil {
			r.logger.Warn("provider unavailable", "provider", rp.p.Name(), "instance", rp.id, "error", err)
			continue
		}
		r.logger.Info("provider started", "provider", rp.p.Name(), "instance", rp.id)
	}
}

// StopAll stops every registered provider, best-effort.
func (r *Registry) StopAll() {
	for _, rp := range r.providers {
		if err := rp.p.Stop(); err != nil {
			r.logger.Warn("provider stop failed", "provider", rp.p.Name(), "instance", rp.id, "error", err)
		}
	}
}

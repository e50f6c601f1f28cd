package pipeline

import (
	"log/slog"
	"sync"

	"github.com/zekaeng/zeka/internal/provider"
)

// DefaultQueueCapacity is the soft bound of spec.md §5: "queue is full
// (soft bound, default 64 Ki events)".
const DefaultQueueCapacity = 64 * 1024

// Queue is the multi-producer, single-consumer OPV queue of spec.md
// §4.8/§5. Enqueue never blocks; once the soft bound is reached the
// oldest event is dropped to make room (spec.md §5/§7 event-drop:
// "providers drop the oldest and emit a warning").
type Queue struct {
	mu       sync.Mutex
	notEmpty chan struct{}
	buf      []provider.Event
	cap      int
	logger   *slog.Logger
}

// NewQueue builds a queue with the given soft capacity (DefaultQueueCapacity
// when 0) and logger (slog.Default() when nil).
func NewQueue(capacity int, logger *slog.Logger) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		notEmpty: make(chan struct{}, 1),
		cap:      capacity,
		logger:   logger,
	}
}

// Send implements provider.Sink: a non-blocking enqueue that drops the
// oldest event on overflow.
func (q *Queue) Send(e provider.Event) {
	q.mu.Lock()
	if len(q.buf) >= q.cap {
		q.buf = q.buf[1:]
		q.logger.Warn("event queue overflow, dropping oldest event")
	}
	q.buf = append(q.buf, e)
	q.mu.Unlock()

	select {
	case q.notEmpty <- struct{}{}:
	default:
	}
}

// Drain removes and returns every currently queued event, in arrival
// order. Used by both scoring modes: development scores them one at a
// time as they arrive; competition mode drains into its interval
// cache (spec.md §4.8).
func (q *Queue) Drain() []provider.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.buf) == 0 {
		return nil
	}
	out := q.buf
	q.buf = nil
	return out
}

// Wait blocks until at least one event has been sent since the last
// drain, or stop is closed.
func (q *Queue) Wait(stop <-chan struct{}) bool {
	select {
	case <-q.notEmpty:
		return true
	case <-stop:
		return false
	}
}

// Len reports the number of currently buffered events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// Package report implements the scoring engine's visible output:
// spec.md §3's ordered list of unlocked vulnerability records and
// running total, plus the category-then-title ordering of spec.md
// §6/P7. A Report has no mode of its own: Unlock adds entries and Lock
// removes them. The pipeline keeps the live report monotone in
// development mode by copying only unlocks into it, and retracting in
// competition mode by swapping in each interval's result (Swap).
package report

import (
	"sort"
	"sync"

	"github.com/zekaeng/zeka/internal/artifact"
)

// Entry is one unlocked vulnerability as rendered on the report.
type Entry struct {
	ID       uint32 // identifies the vulnerability across intervals; stable
	Title    string
	Points   float64
	Category artifact.Category
}

// Report is the mutable scoring state. Per spec.md §5 ("the variable-slot
// table and the report are owned exclusively by the scorer thread") all
// mutation happens on the single scorer goroutine; the RWMutex here only
// guards reads from the dashboard/HTML-render goroutines.
type Report struct {
	mu      sync.RWMutex
	title   string
	entries map[uint32]Entry // keyed by vulnerability id
	order   []uint32         // insertion order; Entries sorts by category and title only and does not read it
}

// New builds an empty report for the given rubric title.
func New(title string) *Report {
	return &Report{title: title, entries: make(map[uint32]Entry)}
}

// Title returns the rubric's display title.
func (r *Report) Title() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.title
}

// Unlock records vulnerability id as unlocked, idempotently: unlocking
// an already-unlocked id again is a no-op (spec.md I5: "at most once
// per scoring interval"). Returns true the first time id transitions
// locked→unlocked.
func (r *Report) Unlock(id uint32, e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, already := r.entries[id]; already {
		return false
	}
	r.entries[id] = e
	r.order = append(r.order, id)
	return true
}

// Lock removes id from the report. The scorer calls it in either mode
// when a previously-passing check stops holding; only in competition
// mode does the retraction reach the live report (spec.md §3: "points
// may retract between intervals"), since development mode copies
// unlocks alone into it.
func (r *Report) Lock(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Has reports whether id is currently unlocked.
func (r *Report) Has(id uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Reset clears every unlocked entry.
func (r *Report) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[uint32]Entry)
	r.order = nil
}

// Snapshot is an immutable, ordered view of a Report at a point in
// time, safe to hand to the HTML renderer or the dashboard without
// further locking.
type Snapshot struct {
	Title string
	Total float64
	Rows  []Entry
}

// Entries returns every unlocked entry, ordered per spec.md §6/P7:
// declared category order, then lexicographic by title within a
// category.
func (r *Report) Entries() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]Entry, 0, len(r.entries))
	var total float64
	for _, e := range r.entries {
		rows = append(rows, e)
		total += e.Points
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		return rows[i].Title < rows[j].Title
	})
	return Snapshot{Title: r.title, Total: total, Rows: rows}
}

// Swap atomically replaces r's contents with next's (competition mode's
// "swapped atomically" interval boundary, spec.md §4.8).
func (r *Report) Swap(next *Report) {
	next.mu.RLock()
	entries := make(map[uint32]Entry, len(next.entries))
	for k, v := range next.entries {
		entries[k] = v
	}
	order := append([]uint32(nil), next.order...)
	next.mu.RUnlock()

	r.mu.Lock()
	r.entries = entries
	r.order = order
	r.mu.Unlock()
}

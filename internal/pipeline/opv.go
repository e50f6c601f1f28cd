// Package pipeline implements the streaming event pipeline and scorer
// of spec.md §4.8/§5: the OPV queue, the single-threaded scoring
// algorithm that chains commitment → Lagrange lookup → descriptor →
// automaton/variable update → expression resolution → AEAD unwrap →
// report update, and the development/competition scheduling modes.
package pipeline

import (
	"strings"

	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/provider"
)

// Operation codes committed as the tuple's first component (spec.md §3:
// "operation is a small integer"; §4.2: "substituting operation=2" for
// DELETE pins that value, so SET is assigned the only other small
// value that keeps the pair contiguous).
const (
	OpCodeSet    uint64 = 1
	OpCodeDelete uint64 = 2
)

// OPV is the normalized operation-path-value tuple of spec.md §3.
type OPV struct {
	Op    provider.Operation
	Path  []string
	Value []byte // present only for SET
}

// FromEvent builds an OPV from a raw provider event.
func FromEvent(e provider.Event) OPV {
	return OPV{Op: e.Op, Path: e.Path, Value: e.Value}
}

func (o OPV) opCode() uint64 {
	if o.Op == provider.OpDelete {
		return OpCodeDelete
	}
	return OpCodeSet
}

// Lowercased returns a copy of o with every path segment and the value
// lowercased, used to build the L1 lookup key for case-insensitive
// checks (spec.md §4.4).
func (o OPV) Lowercased() OPV {
	out := OPV{Op: o.Op, Path: make([]string, len(o.Path))}
	for i, seg := range o.Path {
		out.Path[i] = strings.ToLower(seg)
	}
	if o.Value != nil {
		out.Value = []byte(strings.ToLower(string(o.Value)))
	}
	return out
}

// Components builds the field-element tuple committed for o. When
// includeValue is false the value component is omitted entirely — the
// shape content checks use, since "the OPV's value field is irrelevant
// for them" (spec.md §4.4).
func (o OPV) Components(f *field.Field, includeValue bool) []field.Elem {
	n := 1 + len(o.Path)
	if includeValue && o.Value != nil {
		n++
	}
	out := make([]field.Elem, 0, n)
	out = append(out, f.FromUint64(o.opCode()))
	for _, seg := range o.Path {
		out = append(out, f.FromBytes([]byte(seg)))
	}
	if includeValue && o.Value != nil {
		out = append(out, f.FromBytes(o.Value))
	}
	return out
}

// FilePath joins the path segments back into an OS path for content
// checks (regex, case-sensitive match) that must read the underlying
// file (spec.md §4.4).
func (o OPV) FilePath() string {
	return "/" + strings.Join(o.Path, "/")
}

// Key returns the (operation, path) pair competition mode collapses
// duplicate events on (spec.md §4.8).
func (o OPV) Key() string {
	return string(rune(o.Op)) + "\x00" + strings.Join(o.Path, "/")
}

// Package variable implements the variable slot table and boolean
// expression engine of spec.md §3/§4.5: a fixed-size store of field
// elements indexed by a 14-bit identifier, and a parser/evaluator for
// expressions built from `&`, `|`, parentheses, and identifier numbers.
package variable

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zekaeng/zeka/internal/field"
)

// SlotCount is 2^14, the width of the variable identifier per spec.md §3.
const SlotCount = 1 << 14

// Table is the indexed store mapping a variable identifier (0..2^14) to
// an optional field element; zero/absent is falsy. Per spec.md §5 it is
// owned exclusively by the scorer's single logical thread — Table does
// no internal locking.
type Table struct {
	f     *field.Field
	slots [SlotCount]field.Elem
	set   [SlotCount]bool
}

// NewTable builds an all-absent slot table over f.
func NewTable(f *field.Field) *Table {
	return &Table{f: f}
}

// Set stores v into slot id, marking it present even if v is the field's
// zero element (spec.md §4.4 step 2 writes zero explicitly when the
// variable-setter bit is clear, which must still count as "present" so
// that later truthiness reads get a definite falsy value rather than a
// stale one).
func (t *Table) Set(id uint16, v field.Elem) {
	t.slots[id] = v
	t.set[id] = true
}

// Clear marks slot id absent again.
func (t *Table) Clear(id uint16) {
	t.slots[id] = field.Elem{}
	t.set[id] = false
}

// Get returns the slot's current value and whether it is truthy
// (present and nonzero).
func (t *Table) Get(id uint16) (v field.Elem, truthy bool) {
	if !t.set[id] {
		return field.Elem{}, false
	}
	return t.slots[id], !t.slots[id].IsZero()
}

// Expr is a parsed boolean expression over variable identifiers, built
// from `&` (and), `|` (or), parentheses, and integer leaves
// (spec.md §4.5).
type Expr struct {
	source string
	root   node
	leaves []uint16 // identifiers, in the order they first appear
}

// Source returns the original expression text, used as the automaton's
// compile-time input (CompileStartState derives the start state from it).
func (e *Expr) Source() string { return e.source }

// Leaves returns every distinct variable identifier referenced by the
// expression, in first-appearance order.
func (e *Expr) Leaves() []uint16 { return e.leaves }

type nodeKind uint8

const (
	nodeLeaf nodeKind = iota
	nodeAnd
	nodeOr
)

type node struct {
	kind     nodeKind
	id       uint16
	children []node
}

// Parse compiles a boolean expression string into an Expr. Grammar:
//
//	expr   := term ('|' term)*
//	term   := factor ('&' factor)*
//	factor := IDENT | '(' expr ')'
//	IDENT  := [0-9]+
//
// `|` binds looser than `&`, the conventional reading of a mixed
// and/or expression without explicit grouping.
func Parse(source string) (*Expr, error) {
	p := &parser{src: source}
	p.skipSpace()
	n, err := p.parseExpr()
	if err != nil {
		return nil, fmt.Errorf("variable: %w", err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("variable: unexpected trailing input at %d in %q", p.pos, source)
	}
	leaves := collectLeaves(n)
	return &Expr{source: source, root: n, leaves: leaves}, nil
}

func collectLeaves(n node) []uint16 {
	var out []uint16
	seen := make(map[uint16]bool)
	var walk func(node)
	walk = func(n node) {
		switch n.kind {
		case nodeLeaf:
			if !seen[n.id] {
				seen[n.id] = true
				out = append(out, n.id)
			}
		default:
			for _, c := range n.children {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return node{}, err
	}
	children := []node{left}
	for {
		p.skipSpace()
		if p.peek() != '|' {
			break
		}
		p.pos++
		p.skipSpace()
		right, err := p.parseTerm()
		if err != nil {
			return node{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return node{kind: nodeOr, children: children}, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return node{}, err
	}
	children := []node{left}
	for {
		p.skipSpace()
		if p.peek() != '&' {
			break
		}
		p.pos++
		p.skipSpace()
		right, err := p.parseFactor()
		if err != nil {
			return node{}, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return node{kind: nodeAnd, children: children}, nil
}

func (p *parser) parseFactor() (node, error) {
	p.skipSpace()
	switch {
	case p.peek() == '(':
		p.pos++
		n, err := p.parseExpr()
		if err != nil {
			return node{}, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return node{}, fmt.Errorf("expected ')' at %d", p.pos)
		}
		p.pos++
		return n, nil
	case p.peek() >= '0' && p.peek() <= '9':
		start := p.pos
		for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
			p.pos++
		}
		n, err := strconv.ParseUint(p.src[start:p.pos], 10, 16)
		if err != nil {
			return node{}, fmt.Errorf("identifier out of range at %d: %w", start, err)
		}
		return node{kind: nodeLeaf, id: uint16(n)}, nil
	default:
		return node{}, fmt.Errorf("unexpected character %q at %d", string(rune(p.peek())), p.pos)
	}
}

// EvalResult is the outcome of evaluating an Expr against a Table.
type EvalResult struct {
	True    bool
	Product field.Elem // product of truthy leaf values, only meaningful if True
}

// Eval evaluates e over t (spec.md §4.5): any nonzero slot is true.
// When the expression evaluates true, it also computes the product in
// F_p of every leaf that both appeared in the expression and was
// truthy, which becomes the next lookup key on unlock.
func Eval(f *field.Field, e *Expr, t *Table) EvalResult {
	truth := evalNode(e.root, t)
	if !truth {
		return EvalResult{True: false}
	}
	product := f.One()
	for _, id := range e.leaves {
		v, ok := t.Get(id)
		if ok {
			product = f.Mul(product, v)
		}
	}
	return EvalResult{True: true, Product: product}
}

func evalNode(n node, t *Table) bool {
	switch n.kind {
	case nodeLeaf:
		_, truthy := t.Get(n.id)
		return truthy
	case nodeAnd:
		for _, c := range n.children {
			if !evalNode(c, t) {
				return false
			}
		}
		return true
	case nodeOr:
		for _, c := range n.children {
			if evalNode(c, t) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ProductDecimalString renders a product field element the way the
// AEAD key derivation consumes it (spec.md §4.6: "the variable-product
// string representation").
func ProductDecimalString(p field.Elem) string {
	return strings.TrimSpace(p.String())
}

// dfaStep is the single-symbol transition function of the expression
// DFA referenced by spec.md §4.5/§4.6: a Horner-style rolling state
// update over bytes. Its state space (uint32) is finite and the
// transition is a pure function of (state, symbol), which is what
// makes it a deterministic finite automaton in the sense spec.md uses
// the term for the two other compiled checks in §4.4 — it is not
// required to reject anything, only to walk forward deterministically
// so compiler and engine always land on the same terminal state.
func dfaStep(state uint32, b byte) uint32 {
	return state*131 + uint32(b)
}

// CompileStartState computes an expression's DFA start state from its
// source text. The compiler calls this once, offline, and stores the
// result in the expression side-table record; the engine never
// recomputes it from source.
func CompileStartState(source string) uint32 {
	state := uint32(2166136261) // FNV-1 offset basis, an arbitrary fixed seed
	for i := 0; i < len(source); i++ {
		state = dfaStep(state, source[i])
	}
	return state
}

// TerminalState walks the expression DFA from its compiled start state
// over the decimal bytes of the variable-product representation
// (spec.md §4.6: "terminal state of the expression DFA after consuming
// the variable-product string representation").
func TerminalState(startState uint32, product field.Elem) uint32 {
	s := ProductDecimalString(product)
	state := startState
	for i := 0; i < len(s); i++ {
		state = dfaStep(state, s[i])
	}
	return state
}

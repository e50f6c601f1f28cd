package artifact

import (
	"fmt"
	"os"

	"github.com/zekaeng/zeka/internal/automaton"
	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/lagrange"
	"github.com/zekaeng/zeka/internal/zerr"
)

// Artifact is a loaded zeka.dat: the immutable, shared read-only state
// of spec.md §3 ("Lifecycle & ownership ... read-only at runtime").
type Artifact struct {
	Header *Header
	Field  *field.Field

	L1, L2, L3 *lagrange.Polynomial

	VarTable     []VarListNode
	ExprTable    []ExpressionRecord
	CiphTable    []CipherRecord
	AutomatonTbl []AutomatonRecord
	Automatons   []*automaton.Automaton // parallel to AutomatonTbl, compiled once at load
}

// Title returns the rubric's display title.
func (a *Artifact) Title() string { return string(a.Header.Title) }

// AAD returns the engine-wide AEAD additional authenticated data.
func (a *Artifact) AAD() []byte { return a.Header.AAD }

// Load reads and validates a zeka.dat file from path. Any structural
// problem (bad magic, truncated region, an out-of-bounds side-table
// pointer) is reported as zerr.ErrArtifactCorrupt — fatal at engine
// startup per spec.md §7.
func Load(path string) (*Artifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w: %v", zerr.ErrArtifactCorrupt, err)
	}
	return Parse(raw)
}

// Parse validates and decodes a zeka.dat image already in memory.
func Parse(raw []byte) (*Artifact, error) {
	h, _, err := DecodeHeader(raw)
	if err != nil {
		return nil, err
	}

	f, err := field.New(h.Prime())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", zerr.ErrArtifactCorrupt, err)
	}

	readCoeffs := func(offset uint64, count uint32) ([]field.Elem, error) {
		width := f.ByteLen()
		need := offset + uint64(count)*uint64(width)
		if need > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: coefficient vector out of bounds", zerr.ErrArtifactCorrupt)
		}
		out := make([]field.Elem, count)
		for i := uint32(0); i < count; i++ {
			start := offset + uint64(i)*uint64(width)
			e := f.FromBytes(raw[start : start+uint64(width)])
			out[i] = e
		}
		return out, nil
	}

	l1c, err := readCoeffs(h.L1Offset, h.L1Count)
	if err != nil {
		return nil, err
	}
	l2c, err := readCoeffs(h.L2Offset, h.L2Count)
	if err != nil {
		return nil, err
	}
	l3c, err := readCoeffs(h.L3Offset, h.L3Count)
	if err != nil {
		return nil, err
	}

	varTable, err := DecodeVarTable(raw[h.VarTableOffset : h.VarTableOffset+h.VarTableSize])
	if err != nil {
		return nil, fmt.Errorf("%w: variable table: %v", zerr.ErrArtifactCorrupt, err)
	}
	exprTable, err := DecodeExprTable(raw[h.ExprTableOffset : h.ExprTableOffset+h.ExprTableSize])
	if err != nil {
		return nil, fmt.Errorf("%w: expression table: %v", zerr.ErrArtifactCorrupt, err)
	}
	ciphTable, err := DecodeCipherTable(raw[h.CipherTableOffset : h.CipherTableOffset+h.CipherTableSize])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext table: %v", zerr.ErrArtifactCorrupt, err)
	}
	automatonTable, err := DecodeAutomatonTable(raw[h.AutomatonTableOffset : h.AutomatonTableOffset+h.AutomatonTableSize])
	if err != nil {
		return nil, fmt.Errorf("%w: automaton table: %v", zerr.ErrArtifactCorrupt, err)
	}

	compiled := make([]*automaton.Automaton, len(automatonTable))
	for i, rec := range automatonTable {
		switch rec.Kind {
		case AutomatonKindRegex:
			c, err := automaton.CompileRegex(rec.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: automaton %d: %v", zerr.ErrArtifactCorrupt, i, err)
			}
			compiled[i] = c
		case AutomatonKindMatch:
			compiled[i] = automaton.CompileMatch(rec.Pattern)
		default:
			return nil, fmt.Errorf("%w: automaton %d: unknown kind %d", zerr.ErrArtifactCorrupt, i, rec.Kind)
		}
	}

	a := &Artifact{
		Header:       h,
		Field:        f,
		L1:           lagrange.New(f, l1c),
		L2:           lagrange.New(f, l2c),
		L3:           lagrange.New(f, l3c),
		VarTable:     varTable,
		ExprTable:    exprTable,
		CiphTable:    ciphTable,
		AutomatonTbl: automatonTable,
		Automatons:   compiled,
	}
	if err := a.validatePointers(); err != nil {
		return nil, err
	}
	return a, nil
}

// ResolveAutomaton evaluates L3 at id and returns the compiled
// automaton the result indexes, per spec.md §4.4: "the entry state is
// named in the check descriptor via an index into L3."
func (a *Artifact) ResolveAutomaton(id uint16) (*automaton.Automaton, bool) {
	x := a.Field.FromUint64(uint64(id))
	y := a.L3.Eval(x)
	idx := y.Big().Uint64()
	if idx >= uint64(len(a.Automatons)) {
		return nil, false
	}
	return a.Automatons[idx], true
}

// validatePointers checks every side-table pointer at load time so
// the rest of the engine can dereference them without re-checking
// bounds on every OPV (spec.md §9: "every pointer is validated at
// artifact-open time, after which descriptors are trusted").
func (a *Artifact) validatePointers() error {
	for i, n := range a.VarTable {
		if n.Next.HasNext && int(n.Next.Index) >= len(a.VarTable) {
			return fmt.Errorf("%w: variable table node %d points out of bounds", zerr.ErrArtifactCorrupt, i)
		}
	}
	for i, e := range a.ExprTable {
		if e.VulnPtr.HasNext && int(e.VulnPtr.Index) >= len(a.CiphTable) {
			return fmt.Errorf("%w: expression %d vuln pointer out of bounds", zerr.ErrArtifactCorrupt, i)
		}
		if e.FirstVarRef.HasNext && int(e.FirstVarRef.Index) >= len(a.VarTable) {
			return fmt.Errorf("%w: expression %d variable-list pointer out of bounds", zerr.ErrArtifactCorrupt, i)
		}
	}
	return nil
}

// ResolveCipher follows a descriptor pointer into the ciphertext table.
func (a *Artifact) ResolveCipher(p PointerRecord) (CipherRecord, bool) {
	if int(p.Index) >= len(a.CiphTable) {
		return CipherRecord{}, false
	}
	return a.CiphTable[p.Index], true
}

// ResolveExpr follows a descriptor pointer into the expression table.
func (a *Artifact) ResolveExpr(p PointerRecord) (ExpressionRecord, bool) {
	if int(p.Index) >= len(a.ExprTable) {
		return ExpressionRecord{}, false
	}
	return a.ExprTable[p.Index], true
}

// VariableRefs walks the variable-reference linked list starting at
// head, returning every referenced identifier in list order.
func (a *Artifact) VariableRefs(head PointerRecord) []uint16 {
	var out []uint16
	cur := head
	for {
		if int(cur.Index) >= len(a.VarTable) {
			break
		}
		node := a.VarTable[cur.Index]
		out = append(out, node.VarID)
		if !node.Next.HasNext {
			break
		}
		cur = node.Next
	}
	return out
}

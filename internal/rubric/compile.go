package rubric

import (
	"fmt"
	"math"
	"math/big"
	"math/rand"
	"strconv"
	"strings"

	"github.com/zekaeng/zeka/internal/aead"
	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/automaton"
	"github.com/zekaeng/zeka/internal/commitment"
	"github.com/zekaeng/zeka/internal/descriptor"
	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/lagrange"
	"github.com/zekaeng/zeka/internal/pipeline"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/variable"
)

// DefaultDecoyCount is the number of extra, inert points added to L1
// and L2 each when CompileOptions doesn't request a specific count (spec.md
// §3: "X contains ... a configurable number of decoy points so that |X|
// does not leak the number of scoring checks").
const DefaultDecoyCount = 64

// CompileOptions controls artifact shape decisions that live outside
// the rubric document itself.
type CompileOptions struct {
	// DecoyCount is the number of decoy points added to L1 and L2 each.
	// Zero uses DefaultDecoyCount; negative disables decoys entirely
	// (only ever useful for tests that want to inspect exact degree).
	DecoyCount int
}

// every leaf condition reached while flattening a check's pass tree,
// paired with the variable slot it will write on success. varID is
// only meaningful once the check turns out to be composite; direct
// (single-leaf) checks never allocate one.
type leafBinding struct {
	cond  Condition
	varID uint16
}

// compiler holds the running state of one Compile call: the tables
// being assembled and the id/commitment allocators every check draws
// from.
type compiler struct {
	f         *field.Field
	committer *commitment.Committer
	aad       []byte
	rng       *rand.Rand

	l1xs, l1ys []field.Elem
	l1seen     map[string]string // commitment -> description, for collision reporting

	l2xs, l2ys []field.Elem
	l2seen     map[string]string

	l3xs, l3ys []field.Elem

	varTable     []artifact.VarListNode
	exprTable    []artifact.ExpressionRecord
	ciphTable    []artifact.CipherRecord
	automatonTbl []artifact.AutomatonRecord

	nextVarID      uint16
	nextExprID     uint16
	categoriesUsed uint16
}

// Compile lowers a validated Rubric into an artifact.Builder ready for
// Build(). Compile itself re-validates nothing beyond what Parse
// already checked; its own errors (*Error with Code
// CodeDuplicateOrMalformed) are reserved for commitment collisions
// between two checks and malformed regex patterns, the two failure
// modes spec.md's compiler contract ties to exit code 3.
func Compile(r *Rubric, opts CompileOptions) (*artifact.Builder, error) {
	f := field.Default()
	seed := r.Seed
	if seed == 0 {
		seed = commitment.DefaultSeed
	}
	cp := &compiler{
		f:         f,
		committer: commitment.New(f, seed),
		aad:       []byte(r.AEAD),
		rng:       rand.New(rand.NewSource(seed ^ 0x5a5a5a5a5a5a5a5a)),
		l1seen:    make(map[string]string),
		l2seen:    make(map[string]string),
		nextVarID: 1,
	}

	for _, c := range r.Checks {
		if err := cp.compileCheck(c); err != nil {
			return nil, err
		}
	}

	decoys := opts.DecoyCount
	if decoys == 0 {
		decoys = DefaultDecoyCount
	}
	if decoys > 0 {
		cp.addDecoys(decoys)
	}

	l1, err := lagrange.Interpolate(f, cp.l1xs, cp.l1ys)
	if err != nil {
		return nil, fmt.Errorf("rubric: building L1: %w", err)
	}
	l2, err := lagrange.Interpolate(f, cp.l2xs, cp.l2ys)
	if err != nil {
		return nil, fmt.Errorf("rubric: building L2: %w", err)
	}
	l3, err := lagrange.Interpolate(f, cp.l3xs, cp.l3ys)
	if err != nil {
		return nil, fmt.Errorf("rubric: building L3: %w", err)
	}

	return &artifact.Builder{
		Field:        f,
		AEADVersion:  aead.AEADVersion1,
		Seed:         seed,
		AAD:          cp.aad,
		Title:        []byte(r.Title),
		Categories:   cp.categoriesUsed,
		L1:           l1,
		L2:           l2,
		L3:           l3,
		VarTable:     cp.varTable,
		ExprTable:    cp.exprTable,
		CiphTable:    cp.ciphTable,
		AutomatonTbl: cp.automatonTbl,
	}, nil
}

func (cp *compiler) compileCheck(c Check) error {
	category, _ := artifact.ParseCategory(c.Category) // already validated
	cp.categoriesUsed |= 1 << uint(category)

	if countLeaves(c.Pass) == 1 {
		return cp.compileDirectCheck(c, category, firstLeaf(c.Pass))
	}
	return cp.compileCompositeCheck(c, category)
}

// compileDirectCheck handles the e==0 single-condition path: the
// leaf's L2 success entry is the vulnerability descriptor itself, so
// unlocking it needs no expression or variable indirection at all
// (spec.md §4.4 step 3/§4.6).
func (cp *compiler) compileDirectCheck(c Check, category artifact.Category, leaf Condition) error {
	// The ciphertext table index this check will occupy is known before
	// sealVulnerability appends to it (nothing else touches cp.ciphTable
	// in between), so the per-check terminal state can be derived from
	// it up front and handed to the same sealing call that uses it.
	terminal := aead.DirectTerminalState(uint32(len(cp.ciphTable)))
	ciphIdx, tag, err := cp.sealVulnerability(c, category, terminal)
	if err != nil {
		return err
	}
	vulnDesc := descriptor.Descriptor{
		Type: descriptor.CheckVulnerability,
		Vulnerability: descriptor.VulnerabilityPayload{
			CiphertextPtr: descriptor.Pointer{Index: ciphIdx, HasNext: true},
			Tag:           tag,
			Category:      uint8(category),
		},
	}
	successValue := cp.f.FromBytes(descriptor.EncodeToField(vulnDesc))
	h := uint16(1)
	desc := fmt.Sprintf("check %q (%s)", c.Title, leaf.CheckType)
	cp.addDirectRetractionTrigger(leaf.CheckType, splitPath(leaf.Args[0]), vulnDesc.Vulnerability, desc)
	return cp.compileLeaf(leaf, c.Title, successValue, false, 0, 0, h)
}

// compileCompositeCheck handles a multi-leaf and/or tree: every leaf
// writes a truthy constant into its own variable slot on success, the
// flattened expression string is stored once in the expression
// side-table, and the AEAD key derives from the terminal state the
// all-true product always produces (every leaf's success value is the
// same constant, so the product over any nonempty subset of them is
// that same constant regardless of which leaves actually fired).
func (cp *compiler) compileCompositeCheck(c Check, category artifact.Category) error {
	var leaves []leafBinding
	source := cp.buildExpr(c.Pass, &leaves)
	startState := variable.CompileStartState(source)
	terminal := variable.TerminalState(startState, cp.f.One())

	ciphIdx, tag, err := cp.sealVulnerability(c, category, terminal)
	if err != nil {
		return err
	}

	firstVarRef := cp.buildVarRefChain(leaves)
	exprRecIdx := uint32(len(cp.exprTable))
	cp.exprTable = append(cp.exprTable, artifact.ExpressionRecord{
		Source:      source,
		StartState:  startState,
		VulnPtr:     artifact.PointerRecord{Index: ciphIdx, HasNext: true},
		AEADTag:     tag,
		FirstVarRef: firstVarRef,
	})

	exprID := cp.nextExprID + 1
	if exprID > 0x3FF {
		return &Error{Msg: fmt.Sprintf("check %q: too many composite checks for a 10-bit expression id", c.Title)}
	}
	cp.nextExprID = exprID

	exprDesc := descriptor.Descriptor{
		Type:       descriptor.CheckBooleanExpr,
		Expression: descriptor.ExpressionPayload{ExprPtr: descriptor.Pointer{Index: exprRecIdx, HasNext: true}},
	}
	exprKeyX := cp.committer.Commit([]field.Elem{cp.f.FromUint64(uint64(exprID))})
	if err := cp.addL2(exprKeyX, cp.f.FromBytes(descriptor.EncodeToField(exprDesc)), fmt.Sprintf("expression table entry for %q", c.Title)); err != nil {
		return err
	}

	successValue := cp.f.One()
	for i, lb := range leaves {
		h := uint16(i + 1)
		if err := cp.compileLeaf(lb.cond, c.Title, successValue, true, lb.varID, exprID, h); err != nil {
			return err
		}
	}
	return nil
}

// sealVulnerability RLP-encodes and AEAD-seals c's display text under
// the key terminal derives, appending the blob to the ciphertext table
// and returning its index and GCM tag.
func (cp *compiler) sealVulnerability(c Check, category artifact.Category, terminal uint32) (uint32, [16]byte, error) {
	text := artifact.VulnerabilityText{
		Title:       c.Title,
		PointsCenti: int64(math.Round(c.Points * 100)),
		Category:    uint8(category),
	}
	plaintext, err := artifact.EncodeVulnerabilityText(text)
	if err != nil {
		return 0, [16]byte{}, fmt.Errorf("rubric: encoding vulnerability text for %q: %w", c.Title, err)
	}
	key := aead.DeriveKey(terminal)
	payload, err := aead.Seal(key, cp.aad, plaintext)
	if err != nil {
		return 0, [16]byte{}, fmt.Errorf("rubric: sealing vulnerability text for %q: %w", c.Title, err)
	}
	tag, _ := aead.ExtractTag(payload)
	idx := uint32(len(cp.ciphTable))
	cp.ciphTable = append(cp.ciphTable, artifact.CipherRecord{Ciphertext: []byte(payload)})
	return idx, tag, nil
}

// buildExpr recursively lowers a condition tree into the `&`/`|`/paren
// source string internal/variable.Parse consumes, allocating a fresh
// variable id for every leaf it visits and recording it in *leaves.
func (cp *compiler) buildExpr(c Condition, leaves *[]leafBinding) string {
	switch c.Kind {
	case ConditionLeaf:
		id := cp.nextVarID
		cp.nextVarID++
		*leaves = append(*leaves, leafBinding{cond: c, varID: id})
		return strconv.Itoa(int(id))
	case ConditionOr:
		parts := make([]string, len(c.Children))
		for i, ch := range c.Children {
			parts[i] = cp.buildExpr(ch, leaves)
		}
		return "(" + strings.Join(parts, "|") + ")"
	default: // ConditionAnd, and the bare-sequence case decodes to this too
		parts := make([]string, len(c.Children))
		for i, ch := range c.Children {
			parts[i] = cp.buildExpr(ch, leaves)
		}
		return "(" + strings.Join(parts, "&") + ")"
	}
}

// buildVarRefChain appends one VarListNode per leaf to the shared
// variable-reference table and links them, returning a pointer to the
// head (spec.md §4.5's "link to next referenced variable identifier").
func (cp *compiler) buildVarRefChain(leaves []leafBinding) artifact.PointerRecord {
	if len(leaves) == 0 {
		return artifact.PointerRecord{}
	}
	indices := make([]int, len(leaves))
	for i, lb := range leaves {
		indices[i] = len(cp.varTable)
		cp.varTable = append(cp.varTable, artifact.VarListNode{VarID: lb.varID})
	}
	for i := 0; i < len(indices)-1; i++ {
		cp.varTable[indices[i]].Next = artifact.PointerRecord{Index: uint32(indices[i+1]), HasNext: true}
	}
	return artifact.PointerRecord{Index: uint32(indices[0]), HasNext: true}
}

// countLeaves counts the total number of leaf conditions in c's tree.
func countLeaves(c Condition) int {
	if c.Kind == ConditionLeaf {
		return 1
	}
	n := 0
	for _, ch := range c.Children {
		n += countLeaves(ch)
	}
	return n
}

// firstLeaf descends through and/or wrappers to the single leaf a
// one-leaf condition tree holds.
func firstLeaf(c Condition) Condition {
	for c.Kind != ConditionLeaf {
		c = c.Children[0]
	}
	return c
}

// contentKind maps a rubric check type to its compiled automaton kind
// and descriptor check type; regex and iregex share the regexp2
// automaton, iregex folding case-insensitivity into the pattern text
// itself via a "(?i)" prefix rather than a separate automaton kind.
func contentKind(checkType string) (automatonKind uint8, descType descriptor.CheckType, pattern func(string) string) {
	switch checkType {
	case "regex":
		return artifact.AutomatonKindRegex, descriptor.CheckRegex, func(p string) string { return p }
	case "iregex":
		return artifact.AutomatonKindRegex, descriptor.CheckRegex, func(p string) string { return "(?i)" + p }
	default: // "match"
		return artifact.AutomatonKindMatch, descriptor.CheckMatch, func(p string) string { return p }
	}
}

// compileLeaf lowers one leaf condition into its L1 (and, for content
// checks, L3) entries plus its L2 success entry. successValue is
// either a directly-unlockable vulnerability descriptor (direct
// checks) or the constant truthy value every composite leaf writes
// into its variable slot (variable.Eval never inspects which constant,
// only that it's nonzero, so one value serves every composite leaf).
func (cp *compiler) compileLeaf(leaf Condition, title string, successValue field.Elem, varSetter bool, varID, exprID, h uint16) error {
	pathSegs := splitPath(leaf.Args[0])
	desc := fmt.Sprintf("check %q (%s)", title, leaf.CheckType)

	if varSetter {
		// Composite leaves need a way back to falsy, or an AND/OR they
		// belong to could never retract (spec.md §4.5: "on evaluating
		// to false ... this is how a retraction happens"). The natural
		// negation of "this condition holds" is the opposite
		// operation on the same path: a later delete for exists/match/
		// regex/imatch, a later recreation (set) for absent. It is
		// registered best-effort: if another check already legitimately
		// owns that exact coordinate, this leaf simply can't retract
		// through it and keeps whatever value it last held.
		cp.addNegativeTrigger(leaf.CheckType, pathSegs, varID, exprID, desc)
	}

	switch leaf.CheckType {
	case "imatch":
		opv := pipeline.OPV{Op: provider.OpSet, Path: pathSegs, Value: []byte(leaf.Args[1])}
		lower := opv.Lowercased()
		components := lower.Components(cp.f, true)
		lookupDesc := descriptor.Descriptor{Type: descriptor.CheckIMatch, VarSetter: varSetter, HidingDelta: h, VarID: varID, ExprID: exprID}
		if err := cp.addL1(cp.committer.Commit(components), cp.f.FromBytes(descriptor.EncodeToField(lookupDesc)), desc); err != nil {
			return err
		}
		return cp.addL2(cp.committer.CommitWithOffset(components, int64(h)), successValue, desc)

	case "exists":
		opv := pipeline.OPV{Op: provider.OpSet, Path: pathSegs}
		lower := opv.Lowercased()
		components := lower.Components(cp.f, false)
		lookupDesc := descriptor.Descriptor{Type: descriptor.CheckIMatch, VarSetter: varSetter, HidingDelta: h, VarID: varID, ExprID: exprID}
		if err := cp.addL1(cp.committer.Commit(components), cp.f.FromBytes(descriptor.EncodeToField(lookupDesc)), desc); err != nil {
			return err
		}
		return cp.addL2(cp.committer.CommitWithOffset(components, int64(h)), successValue, desc)

	case "absent":
		opv := pipeline.OPV{Op: provider.OpDelete, Path: pathSegs}
		lower := opv.Lowercased()
		components := lower.Components(cp.f, false)
		lookupDesc := descriptor.Descriptor{Type: descriptor.CheckIMatch, VarSetter: varSetter, HidingDelta: h, VarID: varID, ExprID: exprID}
		if err := cp.addL1(cp.committer.Commit(components), cp.f.FromBytes(descriptor.EncodeToField(lookupDesc)), desc); err != nil {
			return err
		}
		return cp.addL2(cp.committer.CommitWithOffset(components, int64(h)), successValue, desc)

	case "regex", "iregex", "match":
		opv := pipeline.OPV{Op: provider.OpSet, Path: pathSegs}
		lower := opv.Lowercased()
		lowerPathComponents := lower.Components(cp.f, false)
		redirectDesc := descriptor.Descriptor{Type: descriptor.CheckRedirect}
		if err := cp.addL1(cp.committer.Commit(lowerPathComponents), cp.f.FromBytes(descriptor.EncodeToField(redirectDesc)), desc+" redirect"); err != nil {
			return err
		}

		kind, descType, shape := contentKind(leaf.CheckType)
		pattern := shape(leaf.Args[1])
		if kind == artifact.AutomatonKindRegex {
			if _, err := automaton.CompileRegex(pattern); err != nil {
				return &Error{Msg: fmt.Sprintf("%s: %v", desc, err), Code: CodeDuplicateOrMalformed}
			}
		}
		automatonID := uint16(len(cp.automatonTbl))
		cp.automatonTbl = append(cp.automatonTbl, artifact.AutomatonRecord{Kind: kind, Pattern: pattern})
		cp.l3xs = append(cp.l3xs, cp.f.FromUint64(uint64(automatonID)))
		cp.l3ys = append(cp.l3ys, cp.f.FromUint64(uint64(automatonID)))

		pathComponents := opv.Components(cp.f, false)
		contentDesc := descriptor.Descriptor{
			Type: descType, VarSetter: varSetter, HidingDelta: h, VarID: varID, ExprID: exprID,
			Automaton: descriptor.AutomatonPayload{AutomatonID: automatonID},
		}
		if err := cp.addL1(cp.committer.Commit(pathComponents), cp.f.FromBytes(descriptor.EncodeToField(contentDesc)), desc); err != nil {
			return err
		}
		return cp.addL2(cp.committer.CommitWithOffset(pathComponents, int64(h)), successValue, desc)

	default:
		return &Error{Msg: fmt.Sprintf("%s: unknown check type", desc)}
	}
}

// retractionOPV returns the OPV whose arrival at pathSegs is the
// negation of checkType's condition: a delete for every presence/
// content check (exists/imatch/regex/iregex/match), a re-creation
// (set) for absent.
func retractionOPV(checkType string, pathSegs []string) pipeline.OPV {
	op := provider.OpDelete
	if checkType == "absent" {
		op = provider.OpSet
	}
	return pipeline.OPV{Op: op, Path: pathSegs}
}

// addNegativeTrigger registers the coordinate that clears varID back to
// falsy when the leaf's condition stops holding. For presence/content
// checks that is a delete of the same path; for absent it is the path
// reappearing under a set. Content checks (match/regex/iregex) clear
// through the same plain presence descriptor as exists — a deleted
// file can't be read for content, so the check must retract on the
// delete alone, without ever running the automaton.
func (cp *compiler) addNegativeTrigger(checkType string, pathSegs []string, varID, exprID uint16, desc string) {
	components := retractionOPV(checkType, pathSegs).Lowercased().Components(cp.f, false)
	negDesc := descriptor.Descriptor{Type: descriptor.CheckIMatch, VarSetter: false, VarID: varID, ExprID: exprID}
	cp.tryAddL1(cp.committer.Commit(components), cp.f.FromBytes(descriptor.EncodeToField(negDesc)), desc+" retraction trigger")
}

// addDirectRetractionTrigger is addNegativeTrigger's counterpart for a
// direct (e==0) check: there is no variable slot to clear, so the
// negative-trigger coordinate carries the vulnerability descriptor
// itself, reaching the scorer's L1 switch directly with CheckVulnerability
// as a relock instruction rather than an unlock one (spec.md §3's
// locked→unlocked→locked cycle applies to direct checks exactly as
// much as composite ones; a direct check with no way back to locked
// can never retract in competition mode).
func (cp *compiler) addDirectRetractionTrigger(checkType string, pathSegs []string, vuln descriptor.VulnerabilityPayload, desc string) {
	components := retractionOPV(checkType, pathSegs).Lowercased().Components(cp.f, false)
	negDesc := descriptor.Descriptor{Type: descriptor.CheckVulnerability, Vulnerability: vuln}
	cp.tryAddL1(cp.committer.Commit(components), cp.f.FromBytes(descriptor.EncodeToField(negDesc)), desc+" retraction trigger")
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// addL1 registers an L1 point, rejecting a second point at an
// already-used x as a duplicate-or-malformed check (spec.md §9's
// compiler exit code 3): two checks committing to the same coordinate
// would make L1 multi-valued there, which Lagrange interpolation
// cannot represent.
func (cp *compiler) addL1(x, y field.Elem, desc string) error {
	key := x.Big().String()
	if prior, exists := cp.l1seen[key]; exists {
		if !strings.HasSuffix(prior, " retraction trigger") {
			return &Error{Msg: fmt.Sprintf("%s collides with %s at the same commitment coordinate", desc, prior), Code: CodeDuplicateOrMalformed}
		}
		// An earlier best-effort retraction trigger gives way to this
		// check's own entry.
		for i := range cp.l1xs {
			if cp.l1xs[i].Big().String() == key {
				cp.l1ys[i] = y
			}
		}
		cp.l1seen[key] = desc
		return nil
	}
	cp.tryAddL1(x, y, desc)
	return nil
}

// tryAddL1 registers an L1 point if its coordinate is free, reporting
// whether it was added. Used for best-effort entries (retraction
// triggers) that should silently lose out to a real check's own entry
// rather than fail the whole compile.
func (cp *compiler) tryAddL1(x, y field.Elem, desc string) bool {
	key := x.Big().String()
	if _, exists := cp.l1seen[key]; exists {
		return false
	}
	cp.l1seen[key] = desc
	cp.l1xs = append(cp.l1xs, x)
	cp.l1ys = append(cp.l1ys, y)
	return true
}

func (cp *compiler) addL2(x, y field.Elem, desc string) error {
	key := x.Big().String()
	if prior, exists := cp.l2seen[key]; exists {
		return &Error{Msg: fmt.Sprintf("%s collides with %s at the same success coordinate", desc, prior), Code: CodeDuplicateOrMalformed}
	}
	cp.l2seen[key] = desc
	cp.l2xs = append(cp.l2xs, x)
	cp.l2ys = append(cp.l2ys, y)
	return nil
}

// addDecoys pads L1 and L2 with n inert points each at fresh random
// coordinates, so the published artifact's apparent degree never
// equals the true number of scoring checks.
func (cp *compiler) addDecoys(n int) {
	for i := 0; i < n; i++ {
		cp.addDecoyPoint(&cp.l1xs, &cp.l1ys, cp.l1seen)
		cp.addDecoyPoint(&cp.l2xs, &cp.l2ys, cp.l2seen)
	}
}

func (cp *compiler) addDecoyPoint(xs, ys *[]field.Elem, seen map[string]string) {
	p := cp.f.Prime()
	for {
		x := cp.f.FromBigInt(new(big.Int).Rand(cp.rng, p))
		key := x.Big().String()
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = "decoy"
		y := cp.f.FromBigInt(new(big.Int).Rand(cp.rng, p))
		*xs = append(*xs, x)
		*ys = append(*ys, y)
		return
	}
}

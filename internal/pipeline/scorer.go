package pipeline

import (
	"log/slog"
	"sync/atomic"

	"github.com/zekaeng/zeka/internal/aead"
	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/commitment"
	"github.com/zekaeng/zeka/internal/descriptor"
	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/report"
	"github.com/zekaeng/zeka/internal/variable"
)

// Scorer implements the single-threaded cooperative scoring algorithm
// of spec.md §4.4-§4.6/§5: one OPV in, lookup → descriptor → automaton
// → variable update → expression resolution → AEAD unwrap → report
// update, fully completed before the next OPV is pulled.
type Scorer struct {
	art       *artifact.Artifact
	f         *field.Field
	committer *commitment.Committer
	vars      *variable.Table
	rep       *report.Report
	logger    *slog.Logger

	// vulnIDs assigns a stable report identifier to each distinct
	// ciphertext-table index the first time it is reached, so Report's
	// locked→unlocked→locked cycle (I5) has something stable to key on.
	vulnIDs map[uint32]uint32
	nextID  uint32

	// checkMisses and aeadFails are operational counters only: spec.md
	// §7 requires both failure modes stay silent and indistinguishable
	// to anything driving OPVs through Score, but the defender's own
	// dashboard still wants to know the two are happening at all.
	checkMisses uint64
	aeadFails   uint64
}

// Stats is a point-in-time read of a Scorer's operational counters,
// safe to call from any goroutine.
type Stats struct {
	CheckMisses uint64
	AEADFails   uint64
}

// Stats returns the scorer's current counters.
func (s *Scorer) Stats() Stats {
	return Stats{
		CheckMisses: atomic.LoadUint64(&s.checkMisses),
		AEADFails:   atomic.LoadUint64(&s.aeadFails),
	}
}

// NewScorer builds a scorer bound to a loaded artifact and the report
// it updates.
func NewScorer(art *artifact.Artifact, rep *report.Report, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		art:       art,
		f:         art.Field,
		committer: commitment.New(art.Field, art.Header.Seed),
		vars:      variable.NewTable(art.Field),
		rep:       rep,
		logger:    logger,
		vulnIDs:   make(map[uint32]uint32),
	}
}

// Score evaluates a single OPV against the artifact and applies any
// resulting report change. It never returns an error: every internal
// failure mode (check-miss, aead-fail, read-fail) resolves silently to
// "no unlock" per spec.md §7.
func (s *Scorer) Score(opv OPV) {
	desc, components, ok := s.resolveL1(opv)
	if !ok {
		atomic.AddUint64(&s.checkMisses, 1)
		return // check-miss: silent by design
	}

	switch desc.Type {
	case descriptor.CheckIMatch:
		s.onSuccessfulCheck(components, desc)
	case descriptor.CheckRegex, descriptor.CheckMatch:
		if s.evaluateAutomaton(opv, desc) {
			s.onSuccessfulCheck(components, desc)
		}
	case descriptor.CheckVulnerability:
		// A direct check's retraction trigger: its condition just
		// stopped holding, so the vulnerability it unlocked goes back
		// to locked. Reached straight from L1 (see
		// compiler.addDirectRetractionTrigger) with no expression or
		// AEAD indirection, since locking needs neither.
		s.rep.Lock(s.vulnIDFor(desc.Vulnerability.CiphertextPtr.Index))
	default:
		s.logger.Debug("unexpected L1 descriptor type", "type", desc.Type.String())
	}
}

// resolveL1 implements spec.md §4.4's two-pass lookup: a lowercase,
// value-bearing commit first; on miss (or an explicit redirect), a
// path-only lowercase commit, and if that is a redirect, a
// case-preserving path-only commit to reach the regex/match
// descriptor. It returns, alongside the resolved descriptor, the exact
// tuple of field components whose commitment produced it — spec.md
// §4.4 step 1's `x_success = commit_with_offset(opv, h)` re-commits
// that same tuple, not necessarily the original-case, value-bearing
// OPV, since a content check is only ever reached through a
// path-only commit.
func (s *Scorer) resolveL1(opv OPV) (descriptor.Descriptor, []field.Elem, bool) {
	lower := opv.Lowercased()

	lowerValueComponents := lower.Components(s.f, true)
	if desc, ok := s.evalL1(lowerValueComponents); ok && desc.Type != descriptor.CheckRedirect {
		return desc, lowerValueComponents, true
	}

	lowerPathComponents := lower.Components(s.f, false)
	desc, ok := s.evalL1(lowerPathComponents)
	if !ok {
		return descriptor.Descriptor{}, nil, false
	}
	if desc.Type != descriptor.CheckRedirect {
		return desc, lowerPathComponents, true
	}

	pathComponents := opv.Components(s.f, false)
	desc, ok = s.evalL1(pathComponents)
	return desc, pathComponents, ok
}

func (s *Scorer) evalL1(components []field.Elem) (descriptor.Descriptor, bool) {
	x := s.committer.Commit(components)
	y := s.art.L1.Eval(x)
	return descriptor.DecodeFromFieldBytes(s.f.Bytes(y))
}

// evaluateAutomaton runs a resolved content-check descriptor's
// compiled automaton against the file named by opv's path (spec.md
// §4.4: content checks "operate on the FULL file content ... the
// OPV's value field is irrelevant").
func (s *Scorer) evaluateAutomaton(opv OPV, desc descriptor.Descriptor) bool {
	a, ok := s.art.ResolveAutomaton(desc.Automaton.AutomatonID)
	if !ok {
		return false
	}
	matched, err := a.MatchContent(opv.FilePath(), 0)
	if err != nil {
		return false // read-fail: a miss
	}
	return matched
}

// onSuccessfulCheck implements spec.md §4.4's "On successful
// evaluation" steps 1-4.
func (s *Scorer) onSuccessfulCheck(components []field.Elem, desc descriptor.Descriptor) {
	xSuccess := s.committer.CommitWithOffset(components, int64(desc.HidingDelta))
	yH := s.art.L2.Eval(xSuccess)

	if desc.VarSetter {
		s.vars.Set(desc.VarID, yH)
	} else {
		s.vars.Set(desc.VarID, s.f.Zero())
	}

	if desc.ExprID == 0 {
		if vulnDesc, ok := descriptor.DecodeFromFieldBytes(s.f.Bytes(yH)); ok && vulnDesc.Type == descriptor.CheckVulnerability {
			s.tryUnlock(vulnDesc)
		}
		return
	}

	exprKey := s.committer.Commit([]field.Elem{s.f.FromUint64(uint64(desc.ExprID))})
	exprY := s.art.L2.Eval(exprKey)
	exprDesc, ok := descriptor.DecodeFromFieldBytes(s.f.Bytes(exprY))
	if !ok || exprDesc.Type != descriptor.CheckBooleanExpr {
		return
	}
	s.resolveExpression(exprDesc)
}

// resolveExpression implements spec.md §4.5: evaluate the boolean
// expression over current variable bindings; on true, compute the
// truthy-leaf product and use it to unlock; on false, retract.
func (s *Scorer) resolveExpression(desc descriptor.Descriptor) {
	rec, ok := s.art.ResolveExpr(artifact.PointerRecord{Index: desc.Expression.ExprPtr.Index, HasNext: desc.Expression.ExprPtr.HasNext})
	if !ok {
		return
	}
	expr, err := variable.Parse(rec.Source)
	if err != nil {
		s.logger.Debug("expression parse failure at runtime", "source", rec.Source, "error", err)
		return
	}

	result := variable.Eval(s.f, expr, s.vars)
	vulnID, hasVuln := s.vulnReportID(rec)

	if !result.True {
		if hasVuln {
			s.rep.Lock(vulnID)
		}
		return
	}

	terminal := variable.TerminalState(rec.StartState, result.Product)
	key := aead.DeriveKey(terminal)

	cipher, ok := s.art.ResolveCipher(rec.VulnPtr)
	if !ok {
		return
	}
	if tag, ok := aead.ExtractTag(cipher.Ciphertext); !ok || tag != rec.AEADTag {
		atomic.AddUint64(&s.aeadFails, 1)
		return // side-table tag mismatch: indistinguishable from a miss
	}
	plaintext, ok := aead.Open(key, s.art.AAD(), cipher.Ciphertext)
	if !ok {
		atomic.AddUint64(&s.aeadFails, 1)
		return // aead-fail: indistinguishable from a miss
	}
	text, err := artifact.DecodeVulnerabilityText(plaintext)
	if err != nil {
		return
	}

	if hasVuln {
		s.rep.Unlock(vulnID, report.Entry{
			ID:       vulnID,
			Title:    text.Title,
			Points:   float64(text.PointsCenti) / 100,
			Category: artifact.Category(text.Category),
		})
	}
}

// tryUnlock handles the e==0 single-check vulnerability path of
// spec.md §4.4 step 3/§4.6: the descriptor decoded from y_h already
// names the ciphertext directly, with no expression/variable-product
// indirection, so the AEAD key derives from that ciphertext's own
// per-check terminal state (aead.DirectTerminalState) rather than a
// single constant every direct check in the artifact would otherwise
// share.
func (s *Scorer) tryUnlock(desc descriptor.Descriptor) {
	key := aead.DeriveKey(aead.DirectTerminalState(desc.Vulnerability.CiphertextPtr.Index))
	cipher, ok := s.art.ResolveCipher(artifact.PointerRecord{
		Index:   desc.Vulnerability.CiphertextPtr.Index,
		HasNext: desc.Vulnerability.CiphertextPtr.HasNext,
	})
	if !ok {
		return
	}
	if tag, ok := aead.ExtractTag(cipher.Ciphertext); !ok || tag != desc.Vulnerability.Tag {
		atomic.AddUint64(&s.aeadFails, 1)
		return // side-table tag mismatch: indistinguishable from a miss
	}
	plaintext, ok := aead.Open(key, s.art.AAD(), cipher.Ciphertext)
	if !ok {
		atomic.AddUint64(&s.aeadFails, 1)
		return
	}
	text, err := artifact.DecodeVulnerabilityText(plaintext)
	if err != nil {
		return
	}
	id := s.vulnIDFor(desc.Vulnerability.CiphertextPtr.Index)
	s.rep.Unlock(id, report.Entry{
		ID:       id,
		Title:    text.Title,
		Points:   float64(text.PointsCenti) / 100,
		Category: artifact.Category(text.Category),
	})
}

func (s *Scorer) vulnIDFor(ciphIndex uint32) uint32 {
	if id, ok := s.vulnIDs[ciphIndex]; ok {
		return id
	}
	s.nextID++
	s.vulnIDs[ciphIndex] = s.nextID
	return s.nextID
}

func (s *Scorer) vulnReportID(rec artifact.ExpressionRecord) (uint32, bool) {
	return s.vulnIDFor(rec.VulnPtr.Index), true
}

// Variables exposes the variable slot table, primarily for tests.
func (s *Scorer) Variables() *variable.Table { return s.vars }

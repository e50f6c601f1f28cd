package rubric

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/aead"
	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/pipeline"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/report"
)

const simpleDoc = `
title: Smoke Test Round
aead: engine-aad
---
- Weak password stored in plaintext: 5.0
  category: prohibited_file
  pass:
    - imatch: ["etc/shadow", "root::0:0"]
`

func mustCompile(t *testing.T, doc string) *artifact.Artifact {
	t.Helper()
	r, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	b, err := Compile(r, CompileOptions{DecoyCount: -1})
	require.NoError(t, err)
	raw, err := b.Build()
	require.NoError(t, err)
	art, err := artifact.Parse(raw)
	require.NoError(t, err)
	return art
}

func TestCompileDirectCheckUnlocksEndToEnd(t *testing.T) {
	art := mustCompile(t, simpleDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}, Value: []byte("root::0:0")})

	snap := rep.Entries()
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "Weak password stored in plaintext", snap.Rows[0].Title)
	require.InDelta(t, 5.0, snap.Total, 0.0001)
}

func TestCompileDirectCheckMissOnWrongValue(t *testing.T) {
	art := mustCompile(t, simpleDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}, Value: []byte("not-it")})

	require.Empty(t, rep.Entries().Rows)
}

const compositeDoc = `
title: Composite Round
---
- Weak local account posture: 8
  category: account_policy
  pass:
    and:
      - exists: ["etc/shadow"]
      - absent: ["etc/shadow-backup"]
`

func TestCompileCompositeCheckRequiresBothConditions(t *testing.T) {
	art := mustCompile(t, compositeDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}})
	require.Empty(t, rep.Entries().Rows, "only one of two and-conditions satisfied so far")

	scorer.Score(pipeline.OPV{Op: provider.OpDelete, Path: []string{"etc", "shadow-backup"}})
	snap := rep.Entries()
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "Weak local account posture", snap.Rows[0].Title)
}

func TestCompileCompositeCheckRetractsOnLaterFalse(t *testing.T) {
	art := mustCompile(t, compositeDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}})
	scorer.Score(pipeline.OPV{Op: provider.OpDelete, Path: []string{"etc", "shadow-backup"}})
	require.Len(t, rep.Entries().Rows, 1)

	// the backup reappears: the absent() leaf goes false, retracting.
	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow-backup"}})
	require.Empty(t, rep.Entries().Rows)
}

func TestCompileDirectCheckRetractsOnDelete(t *testing.T) {
	art := mustCompile(t, simpleDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}, Value: []byte("root::0:0")})
	require.Len(t, rep.Entries().Rows, 1)

	// the file is removed: a direct check has no variable slot to clear,
	// so retraction has to reach the scorer straight from L1 (spec.md §3's
	// locked->unlocked->locked cycle applies here exactly as it does to
	// composite checks).
	scorer.Score(pipeline.OPV{Op: provider.OpDelete, Path: []string{"etc", "shadow"}})
	require.Empty(t, rep.Entries().Rows)
}

const absentDirectDoc = `
title: Single Absent Round
---
- Unremoved attacker tooling: 6
  category: prohibited_file
  pass:
    - absent: ["tmp/bad.exe"]
`

// TestCompileDirectAbsentCheckRelocksOnRecreation is the literal S6
// scenario of spec.md §8: a single absent() leaf is a direct check
// (countLeaves == 1), unlocks on the file's deletion, and must re-lock
// when the file reappears.
func TestCompileDirectAbsentCheckRelocksOnRecreation(t *testing.T) {
	art := mustCompile(t, absentDirectDoc)
	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)

	scorer.Score(pipeline.OPV{Op: provider.OpDelete, Path: []string{"tmp", "bad.exe"}})
	snap := rep.Entries()
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "Unremoved attacker tooling", snap.Rows[0].Title)

	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"tmp", "bad.exe"}, Value: []byte("MZ")})
	require.Empty(t, rep.Entries().Rows, "re-created file must re-lock the vulnerability")
}

const twoDirectChecksDoc = `
title: Two Direct Checks
---
- First leak: 1
  category: appsec
  pass:
    - imatch: ["etc/shadow", "root::0:0"]
- Second leak: 2
  category: appsec
  pass:
    - imatch: ["etc/passwd-", "x:0:0"]
`

// TestCompileDirectChecksUseDistinctAEADTerminals guards against the
// all-direct-checks-share-key-and-nonce break: every direct check's
// ciphertext-table entry must unlock only under its own terminal state,
// and the two terminals themselves must differ.
func TestCompileDirectChecksUseDistinctAEADTerminals(t *testing.T) {
	art := mustCompile(t, twoDirectChecksDoc)
	require.Len(t, art.CiphTable, 2)

	t0 := aead.DirectTerminalState(0)
	t1 := aead.DirectTerminalState(1)
	require.NotEqual(t, t0, t1)

	// each ciphertext opens under its own terminal's key but not the
	// other's: a shared key would make both opens succeed under either.
	_, ok := aead.Open(aead.DeriveKey(t0), art.AAD(), aead.Payload(art.CiphTable[0].Ciphertext))
	require.True(t, ok)
	_, ok = aead.Open(aead.DeriveKey(t1), art.AAD(), aead.Payload(art.CiphTable[0].Ciphertext))
	require.False(t, ok)

	_, ok = aead.Open(aead.DeriveKey(t1), art.AAD(), aead.Payload(art.CiphTable[1].Ciphertext))
	require.True(t, ok)
	_, ok = aead.Open(aead.DeriveKey(t0), art.AAD(), aead.Payload(art.CiphTable[1].Ciphertext))
	require.False(t, ok)

	rep := report.New(art.Title())
	scorer := pipeline.NewScorer(art, rep, nil)
	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "shadow"}, Value: []byte("root::0:0")})
	scorer.Score(pipeline.OPV{Op: provider.OpSet, Path: []string{"etc", "passwd-"}, Value: []byte("x:0:0")})
	snap := rep.Entries()
	require.Len(t, snap.Rows, 2)
	require.InDelta(t, 3.0, snap.Total, 0.0001)
}

const duplicateTitleDoc = `
title: Bad Round
---
- Same title: 1
  category: appsec
  pass:
    - exists: ["a"]
- Same title: 2
  category: appsec
  pass:
    - exists: ["b"]
`

func TestParseRejectsDuplicateTitleWithinCategory(t *testing.T) {
	_, err := Parse(strings.NewReader(duplicateTitleDoc))
	require.Error(t, err)
	var rerr *Error
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, CodeDuplicateOrMalformed, rerr.Code)
}

const collidingLeafDoc = `
title: Colliding Round
---
- First angle: 3
  category: appsec
  pass:
    - exists: ["etc/shadow"]
- Second angle: 4
  category: appsec
  pass:
    - exists: ["etc/shadow"]
`

func TestCompileRejectsCollidingCommitmentCoordinate(t *testing.T) {
	r, err := Parse(strings.NewReader(collidingLeafDoc))
	require.NoError(t, err)
	_, err = Compile(r, CompileOptions{DecoyCount: -1})
	require.Error(t, err)
	var cerr *Error
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, CodeDuplicateOrMalformed, cerr.Code)
}

const malformedRegexDoc = `
title: Bad Regex Round
---
- Broken pattern: 1
  category: appsec
  pass:
    - regex: ["var/log/app.log", "("]
`

func TestCompileRejectsMalformedRegex(t *testing.T) {
	r, err := Parse(strings.NewReader(malformedRegexDoc))
	require.NoError(t, err)
	_, err = Compile(r, CompileOptions{DecoyCount: -1})
	require.Error(t, err)
}

func TestCompileAddsDecoysByDefault(t *testing.T) {
	r, err := Parse(strings.NewReader(simpleDoc))
	require.NoError(t, err)
	b, err := Compile(r, CompileOptions{})
	require.NoError(t, err)
	require.Greater(t, len(b.L1.Coefficients()), 1)
}

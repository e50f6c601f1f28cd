package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/aead"
	"github.com/zekaeng/zeka/internal/artifact"
	"github.com/zekaeng/zeka/internal/commitment"
	"github.com/zekaeng/zeka/internal/descriptor"
	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/lagrange"
	"github.com/zekaeng/zeka/internal/provider"
	"github.com/zekaeng/zeka/internal/report"
)

// buildSimpleArtifact compiles a one-check artifact by hand: a
// case-insensitive literal check on path "etc/passwd" whose success
// unlocks a vulnerability directly (e == 0), the shape exercised by
// S1/S2 in spec.md's end-to-end scenarios.
func buildSimpleArtifact(t *testing.T, aad []byte) *artifact.Artifact {
	t.Helper()
	f := field.Default()
	committer := commitment.New(f, commitment.DefaultSeed)

	opv := OPV{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("WeakPass")}
	lower := opv.Lowercased()

	const hidingDelta = 17
	lookupX := committer.Commit(lower.Components(f, true))
	successX := committer.CommitWithOffset(lower.Components(f, true), hidingDelta)

	imatch := descriptor.Descriptor{
		Type:        descriptor.CheckIMatch,
		HidingDelta: hidingDelta,
	}
	vulnText, err := artifact.EncodeVulnerabilityText(artifact.VulnerabilityText{
		Title:       "Weak credential stored in plaintext",
		PointsCenti: 500,
		Category:    0,
	})
	require.NoError(t, err)

	key := aead.DeriveKey(aead.DirectTerminalState(0))
	payload, err := aead.Seal(key, aad, vulnText)
	require.NoError(t, err)
	tag, ok := aead.ExtractTag(payload)
	require.True(t, ok)

	vuln := descriptor.Descriptor{
		Type:          descriptor.CheckVulnerability,
		Vulnerability: descriptor.VulnerabilityPayload{CiphertextPtr: descriptor.Pointer{Index: 0}, Tag: tag, Category: 0},
	}

	l1, err := lagrange.Interpolate(f, []field.Elem{lookupX}, []field.Elem{f.FromBytes(descriptor.EncodeToField(imatch))})
	require.NoError(t, err)
	l2, err := lagrange.Interpolate(f, []field.Elem{successX}, []field.Elem{f.FromBytes(descriptor.EncodeToField(vuln))})
	require.NoError(t, err)
	l3, err := lagrange.Interpolate(f, nil, nil)
	require.NoError(t, err)

	b := &artifact.Builder{
		Field:       f,
		AEADVersion: aead.AEADVersion1,
		Seed:        commitment.DefaultSeed,
		AAD:         aad,
		Title:       []byte("Test Round"),
		L1:          l1,
		L2:          l2,
		L3:          l3,
		CiphTable:   []artifact.CipherRecord{{Ciphertext: []byte(payload)}},
	}
	raw, err := b.Build()
	require.NoError(t, err)

	art, err := artifact.Parse(raw)
	require.NoError(t, err)
	return art
}

func TestScorerUnlocksOnDirectMatch(t *testing.T) {
	art := buildSimpleArtifact(t, []byte("engine-aad"))
	rep := report.New(art.Title())
	scorer := NewScorer(art, rep, nil)

	scorer.Score(OPV{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("WeakPass")})

	snap := rep.Entries()
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "Weak credential stored in plaintext", snap.Rows[0].Title)
	require.InDelta(t, 5.0, snap.Total, 0.0001)
}

func TestScorerMismatchedValueIsMiss(t *testing.T) {
	art := buildSimpleArtifact(t, []byte("engine-aad"))
	rep := report.New(art.Title())
	scorer := NewScorer(art, rep, nil)

	scorer.Score(OPV{Op: provider.OpSet, Path: []string{"etc", "passwd"}, Value: []byte("something-else")})

	snap := rep.Entries()
	require.Empty(t, snap.Rows)
}

func TestScorerWrongAADFailsToUnlock(t *testing.T) {
	art := buildSimpleArtifact(t, []byte("right-aad"))
	// tamper the artifact's AAD view by rebuilding the report against a
	// freshly parsed artifact is impractical here; instead verify the
	// positive path authenticates only under the configured AAD by
	// checking the underlying AEAD directly.
	key := aead.DeriveKey(aead.DirectTerminalState(0))
	_, ok := aead.Open(key, []byte("wrong-aad"), art.CiphTable[0].Ciphertext)
	require.False(t, ok)
}

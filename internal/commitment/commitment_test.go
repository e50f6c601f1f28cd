package commitment

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/field"
)

func TestGeneratorsDeterministic(t *testing.T) {
	f := field.Default()
	a := NewGenerators(f, DefaultSeed)
	b := NewGenerators(f, DefaultSeed)

	for i := 0; i < 20; i++ {
		require.True(t, f.Equal(a.Get(i), b.Get(i)), "generator %d diverged", i)
	}
}

func TestGeneratorsRejectZeroAndOne(t *testing.T) {
	f := field.Default()
	g := NewGenerators(f, DefaultSeed)
	for i := 0; i < 50; i++ {
		e := g.Get(i)
		require.False(t, e.IsZero())
		require.False(t, f.Equal(e, f.One()))
	}
}

// P2: commit(opv) computed twice equals itself; across two independently
// constructed committers sharing (field, seed) the values agree.
func TestCommitDeterministic(t *testing.T) {
	f := field.Default()
	c1 := New(f, DefaultSeed)
	c2 := New(f, DefaultSeed)

	opv := []field.Elem{f.FromUint64(1), f.FromUint64(42), f.FromUint64(7)}

	require.True(t, f.Equal(c1.Commit(opv), c1.Commit(opv)))
	require.True(t, f.Equal(c1.Commit(opv), c2.Commit(opv)))
}

func TestCommitWithOffsetChangesResult(t *testing.T) {
	f := field.Default()
	c := New(f, DefaultSeed)
	opv := []field.Elem{f.FromUint64(1), f.FromUint64(2)}

	plain := c.Commit(opv)
	offset := c.CommitWithOffset(opv, 5)
	require.False(t, f.Equal(plain, offset))
}

func TestCommitResultInRange(t *testing.T) {
	f := field.Default()
	c := New(f, DefaultSeed)
	opv := []field.Elem{f.FromUint64(9999)}
	v := c.Commit(opv)
	require.True(t, v.Big().Cmp(f.Prime()) < 0)
	require.True(t, v.Big().Sign() >= 0)
}

func TestHasSmallOrderDetectsOne(t *testing.T) {
	f := field.MustNew(big.NewInt(97))
	require.True(t, hasSmallOrder(f, f.One()))
}

package artifact

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/field"
	"github.com/zekaeng/zeka/internal/lagrange"
)

func TestBuildLoadRoundTrip(t *testing.T) {
	f := field.Default()
	l1, err := lagrange.Interpolate(f, []field.Elem{f.FromUint64(1), f.FromUint64(2)}, []field.Elem{f.FromUint64(10), f.FromUint64(20)})
	require.NoError(t, err)
	l2, err := lagrange.Interpolate(f, []field.Elem{f.FromUint64(1)}, []field.Elem{f.FromUint64(99)})
	require.NoError(t, err)
	l3, err := lagrange.Interpolate(f, nil, nil)
	require.NoError(t, err)

	b := &Builder{
		Field:       f,
		AEADVersion: 1,
		Seed:        1835364215,
		AAD:         []byte("aad"),
		Title:       []byte("Training Round"),
		L1:          l1,
		L2:          l2,
		L3:          l3,
		VarTable:    []VarListNode{{VarID: 5, Next: PointerRecord{}}},
		ExprTable:   []ExpressionRecord{{Source: "1 & 2", StartState: 7}},
		CiphTable:   []CipherRecord{{Ciphertext: []byte("ciphertext-bytes")}},
	}

	raw, err := b.Build()
	require.NoError(t, err)

	a, err := Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "Training Round", a.Title())
	require.Equal(t, []byte("aad"), a.AAD())
	require.Len(t, a.VarTable, 1)
	require.Equal(t, uint16(5), a.VarTable[0].VarID)
	require.Len(t, a.ExprTable, 1)
	require.Equal(t, "1 & 2", a.ExprTable[0].Source)
	require.Len(t, a.CiphTable, 1)

	require.True(t, f.Equal(a.L1.Eval(f.FromUint64(1)), f.FromUint64(10)))
	require.True(t, f.Equal(a.L1.Eval(f.FromUint64(2)), f.FromUint64(20)))
}

func TestParseRejectsBadMagic(t *testing.T) {
	_, err := Parse([]byte("not a zeka artifact at all, padding to be long enough"))
	require.Error(t, err)
}

func TestParseRejectsOutOfBoundsPointer(t *testing.T) {
	f := field.Default()
	l1, _ := lagrange.Interpolate(f, nil, nil)
	l2, _ := lagrange.Interpolate(f, nil, nil)
	l3, _ := lagrange.Interpolate(f, nil, nil)

	b := &Builder{
		Field: f, L1: l1, L2: l2, L3: l3,
		ExprTable: []ExpressionRecord{{VulnPtr: PointerRecord{Index: 99, HasNext: true}}},
	}
	raw, err := b.Build()
	require.NoError(t, err)

	_, err = Parse(raw)
	require.Error(t, err)
}

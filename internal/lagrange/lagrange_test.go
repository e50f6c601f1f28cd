package lagrange

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zekaeng/zeka/internal/field"
)

func smallField(t *testing.T) *field.Field {
	t.Helper()
	f, err := field.New(big.NewInt(97))
	require.NoError(t, err)
	return f
}

func TestInterpolatePassesThroughGivenPoints(t *testing.T) {
	f := smallField(t)
	xs := []field.Elem{f.FromUint64(1), f.FromUint64(2), f.FromUint64(3)}
	ys := []field.Elem{f.FromUint64(10), f.FromUint64(20), f.FromUint64(40)}

	p, err := Interpolate(f, xs, ys)
	require.NoError(t, err)
	for i, x := range xs {
		require.True(t, f.Equal(ys[i], p.Eval(x)), "point %d", i)
	}
}

func TestInterpolateOffPointIsNotOneOfTheYs(t *testing.T) {
	f := smallField(t)
	xs := []field.Elem{f.FromUint64(1), f.FromUint64(2), f.FromUint64(3)}
	ys := []field.Elem{f.FromUint64(10), f.FromUint64(20), f.FromUint64(40)}

	p, err := Interpolate(f, xs, ys)
	require.NoError(t, err)
	other := p.Eval(f.FromUint64(4))
	for _, y := range ys {
		require.False(t, f.Equal(y, other))
	}
}

func TestInterpolateEmptyIsTheZeroPolynomial(t *testing.T) {
	f := smallField(t)
	p, err := Interpolate(f, nil, nil)
	require.NoError(t, err)
	require.Equal(t, -1, p.Degree())
	require.True(t, p.Eval(f.FromUint64(7)).IsZero())
}

func TestInterpolateRejectsDuplicateX(t *testing.T) {
	f := smallField(t)
	xs := []field.Elem{f.FromUint64(5), f.FromUint64(5)}
	ys := []field.Elem{f.FromUint64(1), f.FromUint64(2)}

	_, err := Interpolate(f, xs, ys)
	require.Error(t, err)
}

func TestInterpolateRejectsMismatchedLengths(t *testing.T) {
	f := smallField(t)
	_, err := Interpolate(f, []field.Elem{f.FromUint64(1)}, nil)
	require.Error(t, err)
}

func TestCoefficientsRoundTripThroughNew(t *testing.T) {
	f := smallField(t)
	xs := []field.Elem{f.FromUint64(1), f.FromUint64(2)}
	ys := []field.Elem{f.FromUint64(3), f.FromUint64(4)}

	p, err := Interpolate(f, xs, ys)
	require.NoError(t, err)

	clone := New(f, p.Coefficients())
	require.True(t, f.Equal(p.Eval(xs[0]), clone.Eval(xs[0])))
	require.True(t, f.Equal(p.Eval(xs[1]), clone.Eval(xs[1])))
}

func TestTrimTrailingZerosCollapsesLowerDegreeFit(t *testing.T) {
	f := smallField(t)
	// Three points on a line: y = 2x + 1. The interpolant should reduce
	// to degree 1, not carry a spurious zero quadratic coefficient.
	xs := []field.Elem{f.FromUint64(0), f.FromUint64(1), f.FromUint64(2)}
	ys := []field.Elem{f.FromUint64(1), f.FromUint64(3), f.FromUint64(5)}

	p, err := Interpolate(f, xs, ys)
	require.NoError(t, err)
	require.Equal(t, 1, p.Degree())
}

package field

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func smallField(t *testing.T) *Field {
	t.Helper()
	f, err := New(big.NewInt(97))
	require.NoError(t, err)
	return f
}

func TestAddSubMul(t *testing.T) {
	f := smallField(t)
	a := f.FromUint64(50)
	b := f.FromUint64(60)

	require.Equal(t, "13", f.Add(a, b).String()) // 110 mod 97
	require.Equal(t, "87", f.Sub(a, b).String())  // -10 mod 97
	require.Equal(t, "90", f.Mul(a, b).String())  // 3000 mod 97 = 90
}

func TestPowAndInverse(t *testing.T) {
	f := smallField(t)
	a := f.FromUint64(5)

	require.True(t, f.Equal(f.One(), f.Pow(a, big.NewInt(0))))

	inv, err := f.Inverse(a)
	require.NoError(t, err)
	require.True(t, f.Equal(f.One(), f.Mul(a, inv)))

	_, err = f.Inverse(f.Zero())
	require.Error(t, err)
}

func TestBytesRoundTrip(t *testing.T) {
	f := Default()
	a := f.FromUint64(1234567890)
	b := f.FromBytes(f.Bytes(a))
	require.True(t, f.Equal(a, b))
	require.Equal(t, f.ByteLen(), len(f.Bytes(a)))
}

func TestCanonicalRangeP1(t *testing.T) {
	f := Default()
	for _, n := range []uint64{0, 1, 2, 1 << 40} {
		e := f.FromUint64(n)
		require.True(t, e.Big().Cmp(f.Prime()) < 0)
		require.True(t, e.Big().Sign() >= 0)
	}
}

func TestDefaultPrimeDigitCount(t *testing.T) {
	p := Default().Prime()
	require.Equal(t, 161, len(p.String()))
	require.True(t, p.ProbablyPrime(20))
}

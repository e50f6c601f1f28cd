// Package field implements unsigned modular arithmetic over a configurable
// prime field F_p, as used throughout the scoring engine's commitment and
// polynomial-evaluation layers.
package field

import (
	"fmt"
	"math/big"
)

// DefaultPrimeDecimal is the default modulus, (98*10^161 - 89) / 99, a
// 161-digit prime. Artifacts may override it; every Field carries its own
// modulus so mixing elements from two fields is a programming error, not
// a silent corruption.
const DefaultPrimeDecimal = "98989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989898989"

// Field is the set of non-negative integers less than a fixed prime p,
// together with the modular operations spec.md §4.1 requires. The zero
// value is not usable; construct with New.
type Field struct {
	p *big.Int
}

// New builds a Field over p. p must be a positive integer greater than 1;
// primality is the caller's responsibility (the artifact header is the
// only place a prime is ever chosen, at compile time, offline).
func New(p *big.Int) (*Field, error) {
	if p == nil || p.Sign() <= 0 || p.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("field: modulus must be > 1")
	}
	return &Field{p: new(big.Int).Set(p)}, nil
}

// MustNew is New, panicking on error. Intended for package-level defaults
// and tests, never for artifact loading.
func MustNew(p *big.Int) *Field {
	f, err := New(p)
	if err != nil {
		panic(err)
	}
	return f
}

// Default returns a Field over DefaultPrimeDecimal.
func Default() *Field {
	p, ok := new(big.Int).SetString(DefaultPrimeDecimal, 10)
	if !ok {
		panic("field: invalid default prime literal")
	}
	return MustNew(p)
}

// Prime returns a copy of the modulus.
func (f *Field) Prime() *big.Int { return new(big.Int).Set(f.p) }

// ByteLen is the canonical serialized width of an element: ceil(log2 p / 8).
func (f *Field) ByteLen() int {
	return (f.p.BitLen() + 7) / 8
}

// Elem is a field element: always reduced, always non-negative, always
// less than the owning Field's modulus (invariant I1).
type Elem struct {
	v *big.Int
}

// Zero returns the additive identity.
func (f *Field) Zero() Elem { return Elem{big.NewInt(0)} }

// One returns the multiplicative identity.
func (f *Field) One() Elem { return Elem{big.NewInt(1)} }

// FromUint64 reduces n mod p into an Elem.
func (f *Field) FromUint64(n uint64) Elem {
	return f.reduce(new(big.Int).SetUint64(n))
}

// FromBigInt reduces an arbitrary big.Int mod p into an Elem. The input is
// never mutated.
func (f *Field) FromBigInt(n *big.Int) Elem {
	return f.reduce(new(big.Int).Set(n))
}

// FromBytes interprets b as a big-endian unsigned integer and reduces it
// mod p. This is the canonical way OPV components (themselves big-endian
// byte strings per spec.md §3) become field elements.
func (f *Field) FromBytes(b []byte) Elem {
	return f.reduce(new(big.Int).SetBytes(b))
}

func (f *Field) reduce(n *big.Int) Elem {
	n.Mod(n, f.p)
	return Elem{n}
}

// Big returns the element's value as a big.Int. The returned value is a
// copy; mutating it does not affect the Elem.
func (e Elem) Big() *big.Int { return new(big.Int).Set(e.v) }

// Bytes serializes e in canonical big-endian form, left-padded with zeros
// to the Field's ByteLen (invariant I1/I2 depend on every stored value
// having a fixed, predictable width).
func (f *Field) Bytes(e Elem) []byte {
	raw := e.v.Bytes()
	out := make([]byte, f.ByteLen())
	copy(out[len(out)-len(raw):], raw)
	return out
}

// Add returns a+b mod p.
func (f *Field) Add(a, b Elem) Elem {
	return f.reduce(new(big.Int).Add(a.v, b.v))
}

// Sub returns a-b mod p.
func (f *Field) Sub(a, b Elem) Elem {
	return f.reduce(new(big.Int).Sub(a.v, b.v))
}

// Mul returns a*b mod p.
func (f *Field) Mul(a, b Elem) Elem {
	return f.reduce(new(big.Int).Mul(a.v, b.v))
}

// Pow returns a^e mod p for a non-negative exponent e.
func (f *Field) Pow(a Elem, e *big.Int) Elem {
	return Elem{new(big.Int).Exp(a.v, e, f.p)}
}

// Inverse returns a^-1 mod p. Only used offline during compilation
// (spec.md §4.1); a is required to be nonzero.
func (f *Field) Inverse(a Elem) (Elem, error) {
	if a.v.Sign() == 0 {
		return Elem{}, fmt.Errorf("field: no inverse of zero")
	}
	inv := new(big.Int).ModInverse(a.v, f.p)
	if inv == nil {
		return Elem{}, fmt.Errorf("field: modulus is not prime relative to operand")
	}
	return Elem{inv}, nil
}

// Equal reports whether a and b are the same element.
func (f *Field) Equal(a, b Elem) bool { return a.v.Cmp(b.v) == 0 }

// IsZero reports whether e is the additive identity.
func (e Elem) IsZero() bool { return e.v.Sign() == 0 }

// String renders the element in decimal, for logs and test failures.
func (e Elem) String() string { return e.v.String() }

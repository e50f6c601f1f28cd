// Package lagrange stores and evaluates the interpolating polynomials of
// spec.md §3/§4.3: each of L1, L2, L3 is kept as its coefficient vector and
// evaluated with Horner's rule. A lookup "miss" is signalled implicitly by
// the top two bits of the result being nonzero (spec.md §4.3), not by a
// membership test, which is the mechanism that keeps |X| from leaking how
// many checks exist.
package lagrange

import (
	"github.com/zekaeng/zeka/internal/field"
)

// Polynomial is a public interpolating polynomial stored as coefficients
// l0, l1, ... (lowest degree first), all reduced mod p (invariant I1).
type Polynomial struct {
	f    *field.Field
	coef []field.Elem
}

// New wraps a coefficient vector. The slice is not copied defensively by
// callers expected to hand over ownership (artifact loading); callers
// that still hold a reference to coef should copy first.
func New(f *field.Field, coef []field.Elem) *Polynomial {
	return &Polynomial{f: f, coef: coef}
}

// Degree returns len(coefficients)-1, or -1 for the zero polynomial.
func (p *Polynomial) Degree() int { return len(p.coef) - 1 }

// Coefficients returns the underlying coefficient vector, lowest degree
// first. Used by the artifact writer/reader; callers must not mutate it.
func (p *Polynomial) Coefficients() []field.Elem { return p.coef }

// Eval evaluates p at x using Horner's rule: ((...(l_n*x + l_{n-1})*x +
// ...)*x + l_0).
func (p *Polynomial) Eval(x field.Elem) field.Elem {
	if len(p.coef) == 0 {
		return p.f.Zero()
	}
	acc := p.coef[len(p.coef)-1]
	for i := len(p.coef) - 2; i >= 0; i-- {
		acc = p.f.Add(p.f.Mul(acc, x), p.coef[i])
	}
	return acc
}

// Interpolate builds the unique minimal-degree polynomial through the
// given (x, y) points, using Lagrange basis construction over f. This is
// an offline, compile-time-only operation (spec.md §3): the engine never
// interpolates, only evaluates.
func Interpolate(f *field.Field, xs, ys []field.Elem) (*Polynomial, error) {
	n := len(xs)
	if n != len(ys) {
		return nil, errMismatchedLengths
	}
	if n == 0 {
		return New(f, nil), nil
	}

	// result accumulates sum_j y_j * L_j(x) as a coefficient vector.
	result := make([]field.Elem, n)
	for i := range result {
		result[i] = f.Zero()
	}

	for j := 0; j < n; j++ {
		basis, err := basisPolynomial(f, xs, j)
		if err != nil {
			return nil, err
		}
		scale := ys[j]
		for i, c := range basis {
			result[i] = f.Add(result[i], f.Mul(c, scale))
		}
	}
	return New(f, trimTrailingZeros(f, result)), nil
}

// basisPolynomial returns the coefficients of L_j(x) = prod_{m != j}
// (x - x_m) / (x_j - x_m), as a dense coefficient vector of length
// len(xs).
func basisPolynomial(f *field.Field, xs []field.Elem, j int) ([]field.Elem, error) {
	// numerator starts as the constant polynomial "1".
	numer := []field.Elem{f.One()}
	denom := f.One()

	for m, xm := range xs {
		if m == j {
			continue
		}
		numer = polyMulLinear(f, numer, xm)
		diff := f.Sub(xs[j], xm)
		if diff.IsZero() {
			return nil, errDuplicateX
		}
		denom = f.Mul(denom, diff)
	}

	invDenom, err := f.Inverse(denom)
	if err != nil {
		return nil, err
	}
	for i := range numer {
		numer[i] = f.Mul(numer[i], invDenom)
	}
	// pad to len(xs) for uniform accumulation.
	for len(numer) < len(xs) {
		numer = append(numer, f.Zero())
	}
	return numer, nil
}

// polyMulLinear multiplies a dense coefficient vector by (x - root).
func polyMulLinear(f *field.Field, poly []field.Elem, root field.Elem) []field.Elem {
	out := make([]field.Elem, len(poly)+1)
	for i := range out {
		out[i] = f.Zero()
	}
	for i, c := range poly {
		out[i+1] = f.Add(out[i+1], c)
		out[i] = f.Sub(out[i], f.Mul(c, root))
	}
	return out
}

func trimTrailingZeros(f *field.Field, coef []field.Elem) []field.Elem {
	end := len(coef)
	for end > 0 && coef[end-1].IsZero() {
		end--
	}
	return coef[:end]
}

// Package commitment implements the Pedersen-style product commitment of
// spec.md §3-§4.2: a deterministic sequence of independent generators over
// F_p, and the commit/commit-with-offset operations the engine and the
// offline compiler must agree on bit-for-bit.
package commitment

import (
	"math/big"
	"math/rand"

	"github.com/zekaeng/zeka/internal/field"
)

// DefaultSeed is the artifact's default PRNG seed (spec.md §3).
const DefaultSeed int64 = 1835364215

// smallOrderCheckBound bounds the cheap small-subgroup rejection test: a
// candidate generator g is rejected if g^k == 1 for any small k, which
// would mean g generates a subgroup of order <= smallOrderCheckBound
// rather than (a large divisor of) the full multiplicative group.
const smallOrderCheckBound = 4096

// Generators produces the deterministic sequence g0, g1, g2, ... used to
// build commitments. Both the compiler and the engine construct one of
// these from the same (field, seed) pair and get byte-identical output
// (invariant I3, property P2).
type Generators struct {
	f      *field.Field
	seed   int64
	rng    *rand.Rand
	cached []field.Elem
}

// NewGenerators builds a generator sequence for f, seeded by seed. The
// sequence is lazily extended as callers ask for higher indices.
func NewGenerators(f *field.Field, seed int64) *Generators {
	return &Generators{
		f:    f,
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Get returns the i-th generator (0-indexed), extending the cached
// sequence deterministically as needed.
func (g *Generators) Get(i int) field.Elem {
	for len(g.cached) <= i {
		g.cached = append(g.cached, g.next())
	}
	return g.cached[i]
}

// next draws the next accepted candidate from the PRNG stream: reject 0,
// 1, and any element of small multiplicative order, per spec.md §4.2.
func (g *Generators) next() field.Elem {
	p := g.f.Prime()
	for {
		candidate := new(big.Int).Rand(g.rng, p)
		e := g.f.FromBigInt(candidate)
		if e.IsZero() || g.f.Equal(e, g.f.One()) {
			continue
		}
		if hasSmallOrder(g.f, e) {
			continue
		}
		return e
	}
}

// hasSmallOrder reports whether e^k == 1 for some small k > 0, i.e.
// whether e is known (cheaply) to generate only a small subgroup.
func hasSmallOrder(f *field.Field, e field.Elem) bool {
	acc := e
	for k := 1; k <= smallOrderCheckBound; k++ {
		if f.Equal(acc, f.One()) {
			return true
		}
		acc = f.Mul(acc, e)
	}
	return false
}

// Committer exposes commit and commit-with-offset over a fixed field and
// generator sequence (spec.md §4.2).
type Committer struct {
	f    *field.Field
	gens *Generators
}

// New builds a Committer over f using generators seeded by seed.
func New(f *field.Field, seed int64) *Committer {
	return &Committer{f: f, gens: NewGenerators(f, seed)}
}

// NewWithGenerators builds a Committer reusing an already-constructed
// Generators sequence (so compiler and engine can share one instance when
// running in the same process, e.g. in tests).
func NewWithGenerators(f *field.Field, gens *Generators) *Committer {
	return &Committer{f: f, gens: gens}
}

// Commit computes the product over i of g_i^(opv_i) mod p.
func (c *Committer) Commit(opv []field.Elem) field.Elem {
	return c.CommitWithOffset(opv, 0)
}

// CommitWithOffset computes the product over i of g_i^(opv_i + h) mod p,
// realizing the "hiding delta" of spec.md §3/§4.2. h may be negative in
// principle but the engine only ever supplies the non-negative 16-bit
// hiding delta decoded from a check descriptor.
func (c *Committer) CommitWithOffset(opv []field.Elem, h int64) field.Elem {
	acc := c.f.One()
	hBig := big.NewInt(h)
	for i, component := range opv {
		exp := new(big.Int).Add(component.Big(), hBig)
		term := c.f.Pow(c.gens.Get(i), exp)
		acc = c.f.Mul(acc, term)
	}
	return acc
}

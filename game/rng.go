// rng.go implements the explicit, value-typed random stream used by the
// simulation.

package game

import (
	"math/bits"
)

const goldenGamma = 0x9e3779b97f4a7c15

// RNG is a splitmix64 generator carried by value inside State. Every method
// returns the advanced generator alongside its result; nothing is hidden in
// package state, so replaying a saved State with the same actions is exact.
type RNG struct {
	State uint64 `msgpack:"s" json:"s"`
}

// NewRNG seeds a generator. The seed is mixed once so that adjacent seeds
// produce unrelated streams.
func NewRNG(seed uint64) RNG {
	return RNG{State: mix64(seed)}
}

// Next returns a uniformly distributed 64-bit value.
func (r RNG) Next() (uint64, RNG) {
	r.State += goldenGamma
	return mix64(r.State), r
}

// Split derives two independent generators from r.
func (r RNG) Split() (RNG, RNG) {
	a, r := r.Next()
	b, _ := r.Next()
	return RNG{State: a}, RNG{State: b}
}

// Split3 derives three independent generators from r.
func (r RNG) Split3() (RNG, RNG, RNG) {
	a, r := r.Next()
	b, r := r.Next()
	c, _ := r.Next()
	return RNG{State: a}, RNG{State: b}, RNG{State: c}
}

// Float64 returns a value in [0, 1) with 53 bits of precision.
func (r RNG) Float64() (float64, RNG) {
	v, r := r.Next()
	return float64(v>>11) / (1 << 53), r
}

// Bernoulli returns true with probability p.
func (r RNG) Bernoulli(p float64) (bool, RNG) {
	switch {
	case p <= 0:
		_, r = r.Next()
		return false, r
	case p >= 1:
		_, r = r.Next()
		return true, r
	}
	v, r := r.Next()
	return v>>11 < uint64(p*(1<<53)), r
}

// IntRange returns a value in [lo, hi] inclusive. If hi < lo it returns lo.
func (r RNG) IntRange(lo, hi int32) (int32, RNG) {
	v, r := r.Next()
	if hi <= lo {
		return lo, r
	}
	span := uint64(int64(hi) - int64(lo) + 1)
	top, _ := bits.Mul64(v, span)
	return lo + int32(top), r
}

// GeometricCapped returns min(K, limit) where K counts Bernoulli(p) trials up
// to and including the first success (support starts at 1). At most limit
// trials are drawn, which bounds the work per call.
func (r RNG) GeometricCapped(p float64, limit int32) (int32, RNG) {
	if limit < 1 {
		limit = 1
	}
	var ok bool
	for k := int32(1); k < limit; k++ {
		ok, r = r.Bernoulli(p)
		if ok {
			return k, r
		}
	}
	return limit, r
}

// mix64 is the splitmix64 finaliser.
func mix64(x uint64) uint64 {
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

package game

import (
	"testing"
)

func TestRNG_Deterministic(t *testing.T) {
	a := NewRNG(42)
	b := NewRNG(42)
	for i := 0; i < 100; i++ {
		var va, vb uint64
		va, a = a.Next()
		vb, b = b.Next()
		if va != vb {
			t.Fatalf("draw %d differs: %x vs %x", i, va, vb)
		}
	}
}

func TestRNG_SeedsDiffer(t *testing.T) {
	va, _ := NewRNG(1).Next()
	vb, _ := NewRNG(2).Next()
	if va == vb {
		t.Fatalf("adjacent seeds produced identical first draw %x", va)
	}
}

func TestRNG_ValueSemantics(t *testing.T) {
	r := NewRNG(7)
	v1, _ := r.Next()
	v2, _ := r.Next()
	if v1 != v2 {
		t.Fatalf("Next mutated receiver: %x then %x", v1, v2)
	}
}

func TestRNG_SplitIndependent(t *testing.T) {
	a, b := NewRNG(9).Split()
	if a == b {
		t.Fatalf("split produced identical generators")
	}
	x, y, z := NewRNG(9).Split3()
	if x == y || y == z || x == z {
		t.Fatalf("split3 produced identical generators: %v %v %v", x, y, z)
	}
}

func TestRNG_IntRangeInclusive(t *testing.T) {
	r := NewRNG(3)
	seenLo, seenHi := false, false
	for i := 0; i < 5000; i++ {
		var v int32
		v, r = r.IntRange(5, 8)
		if v < 5 || v > 8 {
			t.Fatalf("IntRange(5,8)=%d out of range", v)
		}
		seenLo = seenLo || v == 5
		seenHi = seenHi || v == 8
	}
	if !seenLo || !seenHi {
		t.Fatalf("bounds not reached: lo=%v hi=%v", seenLo, seenHi)
	}

	v, _ := r.IntRange(4, 4)
	if v != 4 {
		t.Fatalf("IntRange(4,4)=%d want=4", v)
	}
	v, _ = r.IntRange(9, 2)
	if v != 9 {
		t.Fatalf("IntRange(9,2)=%d want=9", v)
	}
}

func TestRNG_BernoulliExtremes(t *testing.T) {
	r := NewRNG(11)
	for i := 0; i < 100; i++ {
		var ok bool
		ok, r = r.Bernoulli(0)
		if ok {
			t.Fatalf("Bernoulli(0) returned true")
		}
		ok, r = r.Bernoulli(1)
		if !ok {
			t.Fatalf("Bernoulli(1) returned false")
		}
	}
}

func TestRNG_BernoulliRate(t *testing.T) {
	r := NewRNG(12)
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		var ok bool
		ok, r = r.Bernoulli(0.5)
		if ok {
			hits++
		}
	}
	if hits < n*45/100 || hits > n*55/100 {
		t.Fatalf("Bernoulli(0.5) hits=%d of %d", hits, n)
	}
}

func TestRNG_GeometricCapped(t *testing.T) {
	r := NewRNG(5)
	for i := 0; i < 1000; i++ {
		var k int32
		k, r = r.GeometricCapped(0.8, 1)
		if k != 1 {
			t.Fatalf("cap 1 gave %d", k)
		}
	}
	counts := make(map[int32]int)
	for i := 0; i < 10000; i++ {
		var k int32
		k, r = r.GeometricCapped(0.5, 4)
		if k < 1 || k > 4 {
			t.Fatalf("GeometricCapped(0.5,4)=%d out of range", k)
		}
		counts[k]++
	}
	// P(1)=0.5 P(2)=0.25 P(3)=0.125 P(4)=0.125
	if counts[1] < 4500 || counts[1] > 5500 {
		t.Fatalf("k=1 count=%d want≈5000", counts[1])
	}
	if counts[4] < 1000 || counts[4] > 1500 {
		t.Fatalf("k=4 count=%d want≈1250", counts[4])
	}
}

package model

import (
	"math/rand"
	"testing"
)

func assertAscending(t *testing.T, s ResultSet) {
	t.Helper()
	for i := 1; i < len(s); i++ {
		if s[i] <= s[i-1] {
			t.Fatalf("set not strictly ascending at %d: %v", i, s)
		}
	}
}

func equalSets(a, b ResultSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSetOps(t *testing.T) {
	tests := []struct {
		name string
		a, b ResultSet
		i    ResultSet // a ∩ b
		u    ResultSet // a ∪ b
		d    ResultSet // a ∖ b
	}{
		{
			"disjoint",
			ResultSet{1, 3, 5}, ResultSet{2, 4, 6},
			ResultSet{}, ResultSet{1, 2, 3, 4, 5, 6}, ResultSet{1, 3, 5},
		},
		{
			"overlap",
			ResultSet{0, 1, 2}, ResultSet{0, 2, 4},
			ResultSet{0, 2}, ResultSet{0, 1, 2, 4}, ResultSet{1},
		},
		{
			"left empty",
			ResultSet{}, ResultSet{1, 2},
			ResultSet{}, ResultSet{1, 2}, ResultSet{},
		},
		{
			"right empty",
			ResultSet{1, 2}, ResultSet{},
			ResultSet{}, ResultSet{1, 2}, ResultSet{1, 2},
		},
		{
			"identical",
			ResultSet{7, 8, 9}, ResultSet{7, 8, 9},
			ResultSet{7, 8, 9}, ResultSet{7, 8, 9}, ResultSet{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Intersect(tt.a, tt.b); !equalSets(got, tt.i) {
				t.Errorf("Intersect = %v, want %v", got, tt.i)
			}
			if got := Union(tt.a, tt.b); !equalSets(got, tt.u) {
				t.Errorf("Union = %v, want %v", got, tt.u)
			}
			if got := Difference(tt.a, tt.b); !equalSets(got, tt.d) {
				t.Errorf("Difference = %v, want %v", got, tt.d)
			}
		})
	}
}

func TestGallopingIntersect(t *testing.T) {
	small := ResultSet{5, 500, 5000, 50000}
	large := make(ResultSet, 0, 100000)
	for i := uint32(0); i < 100000; i += 2 {
		large = append(large, i)
	}
	got := Intersect(small, large)
	want := ResultSet{500, 5000, 50000}
	if !equalSets(got, want) {
		t.Errorf("galloping Intersect = %v, want %v", got, want)
	}
}

func randomSet(rng *rand.Rand, maxVal uint32, n int) ResultSet {
	seen := make(map[uint32]struct{})
	for len(seen) < n {
		seen[rng.Uint32()%maxVal] = struct{}{}
	}
	out := make(ResultSet, 0, n)
	for v := range seen {
		out = append(out, v)
	}
	// insertion sort keeps the helper dependency-free
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Algebraic laws: (A ∩ B) ∪ (A ∖ B) == A, A ∩ A == A, A ∪ ∅ == A, A ∖ A == ∅.
func TestSetOpLaws(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		a := randomSet(rng, 1000, 100)
		b := randomSet(rng, 1000, 100)

		recombined := Union(Intersect(a, b), Difference(a, b))
		if !equalSets(recombined, a) {
			t.Fatalf("(A∩B)∪(A∖B) != A for A=%v B=%v", a, b)
		}
		if !equalSets(Intersect(a, a), a) {
			t.Fatalf("A∩A != A")
		}
		if !equalSets(Union(a, ResultSet{}), a) {
			t.Fatalf("A∪∅ != A")
		}
		if got := Difference(a, a); len(got) != 0 {
			t.Fatalf("A∖A != ∅: %v", got)
		}

		for _, s := range []ResultSet{
			Intersect(a, b), Union(a, b), Difference(a, b),
		} {
			assertAscending(t, s)
		}
	}
}

package evaluation

import (
	"math"
	"testing"
)

func relevantSet(ids ...uint32) map[uint32]bool {
	m := make(map[uint32]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestPrecisionAtK(t *testing.T) {
	ranked := []uint32{1, 2, 3, 4, 5}
	relevant := relevantSet(1, 3, 9)

	if got := PrecisionAtK(ranked, relevant, 5); !almostEqual(got, 2.0/5.0) {
		t.Errorf("P@5 = %v, want 0.4", got)
	}
	if got := PrecisionAtK(ranked, relevant, 1); !almostEqual(got, 1.0) {
		t.Errorf("P@1 = %v, want 1.0", got)
	}
	// Short rankings are padded with misses: denominator stays k.
	if got := PrecisionAtK(ranked, relevant, 10); !almostEqual(got, 2.0/10.0) {
		t.Errorf("P@10 = %v, want 0.2", got)
	}
	if got := PrecisionAtK(ranked, relevant, 0); got != 0 {
		t.Errorf("P@0 = %v, want 0", got)
	}
}

func TestAveragePrecision(t *testing.T) {
	// Relevant at ranks 1 and 3 of {1,2,3}; 3 relevant total.
	ranked := []uint32{1, 2, 3}
	relevant := relevantSet(1, 3, 9)
	want := (1.0/1.0 + 2.0/3.0) / 3.0
	if got := AveragePrecision(ranked, relevant); !almostEqual(got, want) {
		t.Errorf("AP = %v, want %v", got, want)
	}
	if got := AveragePrecision(ranked, relevantSet()); got != 0 {
		t.Errorf("AP with no judgments = %v, want 0", got)
	}
}

func TestReciprocalRank(t *testing.T) {
	if got := ReciprocalRank([]uint32{5, 6, 7}, relevantSet(7)); !almostEqual(got, 1.0/3.0) {
		t.Errorf("RR = %v, want 1/3", got)
	}
	if got := ReciprocalRank([]uint32{5, 6}, relevantSet(9)); got != 0 {
		t.Errorf("RR with no hit = %v, want 0", got)
	}
}

func TestNDCGAtK(t *testing.T) {
	// Perfect ranking: NDCG = 1.
	if got := NDCGAtK([]uint32{1, 2}, relevantSet(1, 2), 10); !almostEqual(got, 1.0) {
		t.Errorf("perfect NDCG = %v, want 1", got)
	}
	// Single relevant doc at rank 2 of 2: DCG = 1/log2(3), IDCG = 1.
	want := (1.0 / math.Log2(3)) / 1.0
	if got := NDCGAtK([]uint32{9, 1}, relevantSet(1), 10); !almostEqual(got, want) {
		t.Errorf("NDCG = %v, want %v", got, want)
	}
	if got := NDCGAtK([]uint32{1}, relevantSet(), 10); got != 0 {
		t.Errorf("NDCG with no judgments = %v, want 0", got)
	}
}

func TestEvaluateAverages(t *testing.T) {
	rankings := map[string][]uint32{
		"q1": {1, 2},
		"q2": {9, 8},
		"q3": {5}, // no judgments; skipped
	}
	judgments := Judgments{
		"q1": relevantSet(1, 2),
		"q2": relevantSet(7),
	}
	s := Evaluate(rankings, judgments)
	// q1 is perfect, q2 finds nothing.
	if !almostEqual(s.MRR, 0.5) {
		t.Errorf("MRR = %v, want 0.5", s.MRR)
	}
	if !almostEqual(s.MAP, 0.5) {
		t.Errorf("MAP = %v, want 0.5", s.MAP)
	}
	if !almostEqual(s.NDCGAt10, 0.5) {
		t.Errorf("NDCG@10 = %v, want 0.5", s.NDCGAt10)
	}
}

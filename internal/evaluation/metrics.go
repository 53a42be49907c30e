// Package evaluation computes ranking quality metrics against TREC relevance
// judgments: precision at K, mean average precision, mean reciprocal rank,
// and NDCG at K with binary gains.
package evaluation

import "math"

// Judgments maps a query id to its set of relevant doc ids.
type Judgments map[string]map[uint32]bool

// PrecisionAtK returns the fraction of the first k ranked ids that are
// relevant. Rankings shorter than k are padded implicitly with misses.
func PrecisionAtK(ranked []uint32, relevant map[uint32]bool, k int) float64 {
	if k <= 0 {
		return 0
	}
	hits := 0
	limit := k
	if len(ranked) < limit {
		limit = len(ranked)
	}
	for _, id := range ranked[:limit] {
		if relevant[id] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// AveragePrecision returns the mean of precision values at each relevant
// rank, normalised by the total number of relevant documents.
func AveragePrecision(ranked []uint32, relevant map[uint32]bool) float64 {
	if len(relevant) == 0 {
		return 0
	}
	hits := 0
	sum := 0.0
	for i, id := range ranked {
		if relevant[id] {
			hits++
			sum += float64(hits) / float64(i+1)
		}
	}
	return sum / float64(len(relevant))
}

// ReciprocalRank returns 1/rank of the first relevant document, or 0 when
// none appears.
func ReciprocalRank(ranked []uint32, relevant map[uint32]bool) float64 {
	for i, id := range ranked {
		if relevant[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// NDCGAtK returns normalised discounted cumulative gain at k with binary
// relevance.
func NDCGAtK(ranked []uint32, relevant map[uint32]bool, k int) float64 {
	if k <= 0 || len(relevant) == 0 {
		return 0
	}
	limit := k
	if len(ranked) < limit {
		limit = len(ranked)
	}
	dcg := 0.0
	for i, id := range ranked[:limit] {
		if relevant[id] {
			dcg += 1.0 / math.Log2(float64(i+2))
		}
	}
	ideal := len(relevant)
	if ideal > k {
		ideal = k
	}
	idcg := 0.0
	for i := 0; i < ideal; i++ {
		idcg += 1.0 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// Summary aggregates the four metrics over a full ranking set.
type Summary struct {
	PrecisionAt10 float64
	MAP           float64
	MRR           float64
	NDCGAt10      float64
}

// Evaluate averages the metrics over every query that has judgments. Queries
// without judgments are skipped.
func Evaluate(rankings map[string][]uint32, judgments Judgments) Summary {
	var s Summary
	n := 0
	for qid, ranked := range rankings {
		relevant, ok := judgments[qid]
		if !ok || len(relevant) == 0 {
			continue
		}
		s.PrecisionAt10 += PrecisionAtK(ranked, relevant, 10)
		s.MAP += AveragePrecision(ranked, relevant)
		s.MRR += ReciprocalRank(ranked, relevant)
		s.NDCGAt10 += NDCGAtK(ranked, relevant, 10)
		n++
	}
	if n > 0 {
		s.PrecisionAt10 /= float64(n)
		s.MAP /= float64(n)
		s.MRR /= float64(n)
		s.NDCGAt10 /= float64(n)
	}
	return s
}

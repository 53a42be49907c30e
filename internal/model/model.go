// Package model owns the records shared between indexing, retrieval,
// reranking, and benchmarking.
package model

// Document is a corpus entry with its dense internal id and normalised
// content. Content is frozen into the document store at index time.
type Document struct {
	ID      uint32
	Content string
}

// TermDocPair is the intermediate record written to BSBI run files, ordered
// lexicographically by term, then numerically by doc id.
type TermDocPair struct {
	Term  string
	DocID uint32
}

// Less reports the run-file ordering between two pairs.
func (p TermDocPair) Less(other TermDocPair) bool {
	if p.Term != other.Term {
		return p.Term < other.Term
	}
	return p.DocID < other.DocID
}

// SearchResult is one scored document in a ranking.
type SearchResult struct {
	DocID uint32  `json:"doc_id"`
	Score float64 `json:"score"`
}

// QueryMetrics records per-query timing for benchmarking.
type QueryMetrics struct {
	QueryID       string
	NumCandidates int
	RetrievalMs   float64
	RerankMs      float64
}

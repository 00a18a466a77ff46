// Package rerank scores and reorders a candidate chunk set against a query
// (C6). It adapts the corpus's search.Reranker interface shape — Rerank,
// Available, Close — and adds an llm-judge mode on top of the C5 provider
// abstraction.
package rerank

import "context"

// Mode selects the scoring strategy.
type Mode string

const (
	// ModeNone returns candidates in input order, truncated to topK.
	ModeNone Mode = "none"

	// ModeCrossEncoder scores each candidate independently against the
	// query and sorts descending.
	ModeCrossEncoder Mode = "cross-encoder"

	// ModeLLMJudge asks an LLM provider to pick and order the most
	// relevant subset.
	ModeLLMJudge Mode = "llm-judge"
)

// Candidate is one item to be scored. Metadata is opaque to the reranker and
// is returned unchanged.
type Candidate struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is one reranked candidate.
type Result struct {
	// Index is the candidate's position in the input slice.
	Index int
	// Score is the relevance score (0.0 to 1.0). Not meaningful for
	// ModeNone beyond preserving order.
	Score float64
	// Candidate is the original input, unchanged.
	Candidate Candidate
}

// Reranker scores and reorders candidates by relevance to a query. It must
// never introduce a candidate absent from its input, and must never throw
// on malformed backend output — a soft feature never fails a query.
type Reranker interface {
	// Rerank returns candidates sorted by relevance descending, truncated
	// to topK (0 means no truncation).
	Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Result, error)

	// Available reports whether the backing service can be reached.
	Available(ctx context.Context) bool

	// Close releases resources held by the reranker.
	Close() error
}

// NoOpReranker returns candidates in original order, matching the corpus's
// NoOpReranker fallback used whenever reranking is disabled or unavailable.
type NoOpReranker struct{}

// Rerank assigns decreasing scores to preserve input order.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, candidates []Candidate, topK int) ([]Result, error) {
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = Result{
			Index:     i,
			Score:     1.0 - float64(i)*0.01,
			Candidate: c,
		}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available always returns true for NoOpReranker.
func (n *NoOpReranker) Available(_ context.Context) bool { return true }

// Close is a no-op for NoOpReranker.
func (n *NoOpReranker) Close() error { return nil }

var _ Reranker = (*NoOpReranker)(nil)

// truncate applies the topK limit shared by every mode: topK<=0 means no
// limit, otherwise results beyond topK are dropped.
func truncate(results []Result, topK int) []Result {
	if topK > 0 && topK < len(results) {
		return results[:topK]
	}
	return results
}

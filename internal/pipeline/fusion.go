package pipeline

import (
	"sort"

	"github.com/ossara-labs/coderag/internal/store"
)

// DefaultRRFConstant is the standard RRF smoothing parameter (k=60),
// adopted unchanged from the corpus's RRFFusion.
const DefaultRRFConstant = 60

// Weights controls each source's contribution to the fused RRF score.
type Weights struct {
	BM25     float64
	Semantic float64
}

// DefaultWeights gives both search sources equal weight.
func DefaultWeights() Weights { return Weights{BM25: 0.5, Semantic: 0.5} }

// fusedResult is one chunk id's fused ranking, carried through the rest of
// the pipeline until chunk content is resolved.
type fusedResult struct {
	ChunkID     string
	RRFScore    float64
	BM25Score   float64
	BM25Rank    int
	VecScore    float64
	VecRank     int
	InBothLists bool
}

// rrfFusion combines BM25 and vector search results with Reciprocal Rank
// Fusion, adapted from the corpus's search.RRFFusion to key off our actual
// store.ScoredEntry (which wraps a full chunk, not a bare id+score) and
// store.BM25Result.
type rrfFusion struct {
	k int
}

func newRRFFusion() *rrfFusion { return &rrfFusion{k: DefaultRRFConstant} }

// fuse combines bm25 and vec rankings into one ordered list. Documents
// appearing in only one list receive a missing-source contribution computed
// at rank max(len(bm25), len(vec))+1. Ties break RRFScore desc -> InBothLists
// true-first -> BM25Score desc -> ChunkID asc. Scores are normalized so the
// top result is 1.0.
func (f *rrfFusion) fuse(bm25 []*store.BM25Result, vec []store.ScoredEntry, weights Weights) []*fusedResult {
	if len(bm25) == 0 && len(vec) == 0 {
		return []*fusedResult{}
	}

	scores := make(map[string]*fusedResult, len(bm25)+len(vec))
	getOrCreate := func(id string) *fusedResult {
		if r, ok := scores[id]; ok {
			return r
		}
		r := &fusedResult{ChunkID: id}
		scores[id] = r
		return r
	}

	for rank, r := range bm25 {
		result := getOrCreate(r.DocID)
		result.BM25Score = r.Score
		result.BM25Rank = rank + 1
		result.RRFScore += weights.BM25 / float64(f.k+rank+1)
	}

	for rank, r := range vec {
		id := entryChunkID(r)
		result := getOrCreate(id)
		result.VecScore = float64(r.Score)
		result.VecRank = rank + 1
		result.RRFScore += weights.Semantic / float64(f.k+rank+1)
		if result.BM25Rank > 0 {
			result.InBothLists = true
		}
	}

	missingRank := f.missingRank(len(bm25), len(vec))
	for _, r := range scores {
		if r.BM25Rank == 0 && r.VecRank > 0 {
			r.RRFScore += weights.BM25 / float64(f.k+missingRank)
		}
		if r.VecRank == 0 && r.BM25Rank > 0 {
			r.RRFScore += weights.Semantic / float64(f.k+missingRank)
		}
	}

	results := make([]*fusedResult, 0, len(scores))
	for _, r := range scores {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return f.less(results[i], results[j]) })
	f.normalize(results)
	return results
}

func (f *rrfFusion) missingRank(bm25Len, vecLen int) int {
	if bm25Len > vecLen {
		return bm25Len + 1
	}
	return vecLen + 1
}

func (f *rrfFusion) less(a, b *fusedResult) bool {
	if a.RRFScore != b.RRFScore {
		return a.RRFScore > b.RRFScore
	}
	if a.InBothLists != b.InBothLists {
		return a.InBothLists
	}
	if a.BM25Score != b.BM25Score {
		return a.BM25Score > b.BM25Score
	}
	return a.ChunkID < b.ChunkID
}

func (f *rrfFusion) normalize(results []*fusedResult) {
	if len(results) == 0 {
		return
	}
	maxScore := results[0].RRFScore
	if maxScore == 0 {
		return
	}
	for _, r := range results {
		r.RRFScore /= maxScore
	}
}

// entryChunkID returns the chunk id a vector search hit should be keyed by
// during fusion, preferring the chunk's own id (the canonical
// "path:start-end" form) and falling back to the entry id.
func entryChunkID(e store.ScoredEntry) string {
	if e.Entry.Chunk.ID != "" {
		return e.Entry.Chunk.ID
	}
	return e.Entry.ID
}

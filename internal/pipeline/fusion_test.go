package pipeline

import (
	"testing"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

func scoredEntry(id string, score float32) store.ScoredEntry {
	return store.ScoredEntry{
		Entry: store.VectorEntry{ID: id, Chunk: chunk.Chunk{ID: id}},
		Score: score,
	}
}

func TestRRFFusion_EmptyInputsReturnsEmptyNotNil(t *testing.T) {
	results := newRRFFusion().fuse(nil, nil, DefaultWeights())
	if results == nil {
		t.Fatal("fuse(nil, nil) = nil, want empty slice")
	}
	if len(results) != 0 {
		t.Fatalf("len = %d, want 0", len(results))
	}
}

func TestRRFFusion_DocumentInBothListsOutranksSingleList(t *testing.T) {
	bm25 := []*store.BM25Result{
		{DocID: "a", Score: 5.0},
		{DocID: "b", Score: 4.0},
	}
	vec := []store.ScoredEntry{
		scoredEntry("a", 0.9),
		scoredEntry("c", 0.8),
	}

	results := newRRFFusion().fuse(bm25, vec, DefaultWeights())
	if len(results) != 3 {
		t.Fatalf("len = %d, want 3", len(results))
	}
	if results[0].ChunkID != "a" {
		t.Fatalf("top result = %q, want %q (present in both lists)", results[0].ChunkID, "a")
	}
	if !results[0].InBothLists {
		t.Error("top result should be marked InBothLists")
	}
}

func TestRRFFusion_TopScoreNormalizedToOne(t *testing.T) {
	vec := []store.ScoredEntry{scoredEntry("a", 0.9), scoredEntry("b", 0.5)}
	results := newRRFFusion().fuse(nil, vec, DefaultWeights())
	if results[0].RRFScore != 1.0 {
		t.Errorf("top RRFScore = %f, want 1.0", results[0].RRFScore)
	}
}

func TestRRFFusion_TieBreaksByChunkIDLexicographically(t *testing.T) {
	// z is only in the vector list and a only in the BM25 list, each at rank
	// 1 with the other source missing, so RRF score, InBothLists and
	// BM25Score all tie and the chunk id decides.
	vec := []store.ScoredEntry{scoredEntry("z", 0.5)}
	bm25 := []*store.BM25Result{{DocID: "a", Score: 0}}
	results := newRRFFusion().fuse(bm25, vec, DefaultWeights())

	if len(results) != 2 {
		t.Fatalf("len = %d, want 2", len(results))
	}
	if results[0].ChunkID != "a" {
		t.Errorf("top result = %q, want %q (tie broken by chunk id)", results[0].ChunkID, "a")
	}
}

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/graph"
	"github.com/ossara-labs/coderag/internal/rerank"
	"github.com/ossara-labs/coderag/internal/store"
)

// fakeEmbedder returns a fixed vector regardless of input.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}
func (f *fakeEmbedder) Dimensions() int                { return len(f.vec) }
func (f *fakeEmbedder) ModelName() string              { return "fake" }
func (f *fakeEmbedder) Available(context.Context) bool { return true }
func (f *fakeEmbedder) Close() error                   { return nil }

// fakeVectorStore returns a fixed, pre-scored result set for Search.
type fakeVectorStore struct {
	results []store.ScoredEntry
	err     error
}

func (f *fakeVectorStore) Init(context.Context) error  { return nil }
func (f *fakeVectorStore) Close(context.Context) error { return nil }
func (f *fakeVectorStore) Add(context.Context, []store.VectorEntry) error { return nil }
func (f *fakeVectorStore) Search(context.Context, []float32, store.SearchOptions) ([]store.ScoredEntry, error) {
	return f.results, f.err
}
func (f *fakeVectorStore) Delete(context.Context, []string) (int, error) { return 0, nil }
func (f *fakeVectorStore) DeleteByFilepath(context.Context, string) (int, error) { return 0, nil }
func (f *fakeVectorStore) GetByFilepath(context.Context, string) ([]store.VectorEntry, error) {
	return nil, nil
}
func (f *fakeVectorStore) GetStats(context.Context) (store.Stats, error) { return store.Stats{}, nil }

func mkEntry(id string, score float32) store.ScoredEntry {
	return store.ScoredEntry{
		Entry: store.VectorEntry{ID: id, Chunk: chunk.Chunk{ID: id, FilePath: "a.go", Content: "content " + id}},
		Score: score,
	}
}

func TestEngine_New_RequiresEmbedderAndStore(t *testing.T) {
	if _, err := New(nil, &fakeVectorStore{}); err == nil {
		t.Error("New with nil embedder should error")
	}
	if _, err := New(&fakeEmbedder{}, nil); err == nil {
		t.Error("New with nil vector store should error")
	}
}

// Invariant 3: with expandGraph=false and reranker=none, Search returns
// exactly the vector store's top-topK results by similarity, unmodified.
func TestEngine_Search_VectorOnlyNoExpandNoRerank(t *testing.T) {
	vs := &fakeVectorStore{results: []store.ScoredEntry{
		mkEntry("a", 0.9),
		mkEntry("b", 0.8),
		mkEntry("c", 0.7),
	}}
	e, err := New(&fakeEmbedder{vec: []float32{1, 0}}, vs)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	noExpand := false
	resp, err := e.Search(context.Background(), Request{
		Query:   "find me",
		Options: SearchOptions{TopK: 10, ExpandGraph: &noExpand, Reranker: RerankerNone, RerankTopK: 10},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Chunks) != 3 {
		t.Fatalf("len(Chunks) = %d, want 3", len(resp.Chunks))
	}
	for i, want := range []string{"a", "b", "c"} {
		if resp.Chunks[i].Chunk.ID != want {
			t.Errorf("Chunks[%d].ID = %q, want %q", i, resp.Chunks[i].Chunk.ID, want)
		}
		if !resp.Chunks[i].HasScore {
			t.Errorf("Chunks[%d] should carry a similarity score", i)
		}
	}
	if resp.Stage.State != StateDone {
		t.Errorf("Stage.State = %q, want %q", resp.Stage.State, StateDone)
	}
}

func TestEngine_Search_EmbedFailureReturnsFailedStage(t *testing.T) {
	e, _ := New(&fakeEmbedder{err: errors.New("embedder down")}, &fakeVectorStore{})
	resp, err := e.Search(context.Background(), Request{Query: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if resp.Stage.State != StateFailed {
		t.Errorf("Stage.State = %q, want %q", resp.Stage.State, StateFailed)
	}
	if resp.Stage.Err == nil {
		t.Error("Stage.Err should be set")
	}
}

func TestEngine_Search_VectorSearchFailureReturnsFailedStage(t *testing.T) {
	e, _ := New(&fakeEmbedder{vec: []float32{1}}, &fakeVectorStore{err: errors.New("store down")})
	resp, err := e.Search(context.Background(), Request{Query: "q"})
	if err == nil {
		t.Fatal("expected error")
	}
	if resp.Stage.State != StateFailed {
		t.Errorf("Stage.State = %q, want %q", resp.Stage.State, StateFailed)
	}
	// The embedding stage still completed and should be in the trace.
	found := false
	for _, s := range resp.Stage.Stages {
		if s.Name == StateEmbeddingQuery {
			found = true
		}
	}
	if !found {
		t.Error("partial trace should include the completed EmbeddingQuery stage")
	}
}

func TestEngine_Search_GraphExpansionAppendsUnscoredChunks(t *testing.T) {
	seed := &chunk.Chunk{ID: "seed.ts:1-5", FilePath: "seed.ts", Language: "typescript", Content: "seed", Imports: []string{"./dep"}}
	dep := &chunk.Chunk{ID: "dep.ts:1-5", FilePath: "dep.ts", Language: "typescript", Content: "dep"}
	idx := graph.NewIndex([]*chunk.Chunk{seed, dep})

	vs := &fakeVectorStore{results: []store.ScoredEntry{
		{Entry: store.VectorEntry{ID: seed.ID, Chunk: *seed}, Score: 0.9},
	}}
	e, _ := New(&fakeEmbedder{vec: []float32{1}}, vs, WithGraph(idx))

	resp, err := e.Search(context.Background(), Request{
		Query:   "q",
		Options: SearchOptions{TopK: 10, RerankTopK: 10},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("len(Chunks) = %d, want 2 (seed + expanded dep)", len(resp.Chunks))
	}
	if resp.Chunks[0].Chunk.ID != seed.ID || !resp.Chunks[0].HasScore {
		t.Errorf("first chunk should be the scored seed, got %+v", resp.Chunks[0])
	}
	if resp.Chunks[1].Chunk.ID != dep.ID || resp.Chunks[1].HasScore {
		t.Errorf("second chunk should be the unscored expanded dep, got %+v", resp.Chunks[1])
	}
}

func TestEngine_Search_RerankTruncatesToRerankTopK(t *testing.T) {
	vs := &fakeVectorStore{results: []store.ScoredEntry{
		mkEntry("a", 0.9), mkEntry("b", 0.8), mkEntry("c", 0.7),
	}}
	noExpand := false
	e, _ := New(&fakeEmbedder{vec: []float32{1}}, vs, WithReranker(rerank.ModeCrossEncoder, &rerank.NoOpReranker{}))

	resp, err := e.Search(context.Background(), Request{
		Query:   "q",
		Options: SearchOptions{TopK: 10, ExpandGraph: &noExpand, Reranker: RerankerBGE, RerankTopK: 2},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("len(Chunks) = %d, want 2", len(resp.Chunks))
	}
}

// Isolates the no-expand/no-rerank invariant from the expand/rerank
// scenarios above: with reranker=none, RerankTopK must have no effect.
// Only the vector search's own TopK bounds the result — the pipeline's
// output must be exactly the vector store's top-TopK.
func TestEngine_Search_NoRerankerIgnoresRerankTopK(t *testing.T) {
	vs := &fakeVectorStore{results: []store.ScoredEntry{
		mkEntry("a", 0.9), mkEntry("b", 0.8), mkEntry("c", 0.7),
	}}
	noExpand := false
	e, _ := New(&fakeEmbedder{vec: []float32{1}}, vs)

	resp, err := e.Search(context.Background(), Request{
		Query:   "q",
		Options: SearchOptions{TopK: 10, ExpandGraph: &noExpand, Reranker: RerankerNone, RerankTopK: 2},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Chunks) != 3 {
		t.Fatalf("len(Chunks) = %d, want 3 (RerankTopK=2 must not truncate when reranker=none)", len(resp.Chunks))
	}
}

func TestEngine_Search_UnregisteredRerankerModeFallsBackToNoOp(t *testing.T) {
	vs := &fakeVectorStore{results: []store.ScoredEntry{mkEntry("a", 0.9), mkEntry("b", 0.8)}}
	noExpand := false
	e, _ := New(&fakeEmbedder{vec: []float32{1}}, vs)

	resp, err := e.Search(context.Background(), Request{
		Query:   "q",
		Options: SearchOptions{TopK: 10, ExpandGraph: &noExpand, Reranker: RerankerBGE, RerankTopK: 10},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Chunks) != 2 {
		t.Fatalf("len(Chunks) = %d, want 2", len(resp.Chunks))
	}
	if resp.Chunks[0].Chunk.ID != "a" {
		t.Errorf("Chunks[0].ID = %q, want %q (NoOp preserves order)", resp.Chunks[0].Chunk.ID, "a")
	}
}

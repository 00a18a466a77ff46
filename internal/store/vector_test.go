package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossara-labs/coderag/internal/chunk"
)

func newTestStore(t *testing.T, dim int) *InMemoryStore {
	t.Helper()
	s := NewInMemoryStore(InMemoryConfig{Dimension: dim, Model: "test-model"})
	require.NoError(t, s.Init(context.Background()))
	return s
}

func entryAt(id string, vec []float32, filePath string) VectorEntry {
	return VectorEntry{
		ID:        id,
		Embedding: vec,
		Chunk:     chunk.Chunk{ID: id, FilePath: filePath, NodeType: chunk.NodeFunction, Name: id},
	}
}

func TestInMemoryStore_SearchReturnsMostSimilarFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)

	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("a", []float32{1, 0, 0}, "a.go"),
		entryAt("b", []float32{0, 1, 0}, "b.go"),
		entryAt("c", []float32{0.9, 0.1, 0}, "c.go"),
	}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Entry.ID)
	assert.Equal(t, "c", results[1].Entry.ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestInMemoryStore_SearchTopKZeroReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)
	require.NoError(t, s.Add(ctx, []VectorEntry{entryAt("a", []float32{1, 0, 0}, "a.go")}))

	results, err := s.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 0})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestInMemoryStore_SearchAppliesMinScoreBeforeTopK(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("close", []float32{1, 0}, "a.go"),
		entryAt("far", []float32{0, 1}, "b.go"),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10, MinScore: 0.5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "close", results[0].Entry.ID)
}

func TestInMemoryStore_SearchDimensionMismatchFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 768)

	_, err := s.Search(ctx, make([]float32, 1024), SearchOptions{TopK: 5})
	require.Error(t, err)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 768, dimErr.Expected)
	assert.Equal(t, 1024, dimErr.Got)
}

func TestInMemoryStore_AddDimensionMismatchFails(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 3)

	err := s.Add(ctx, []VectorEntry{entryAt("a", []float32{1, 0}, "a.go")})
	require.Error(t, err)
	var dimErr *ErrDimensionMismatch
	require.ErrorAs(t, err, &dimErr)
}

func TestInMemoryStore_OperationsBeforeInitFail(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore(InMemoryConfig{Dimension: 3})

	_, err := s.Search(ctx, []float32{1, 0, 0}, SearchOptions{TopK: 1})
	require.Error(t, err)
	var notInit *ErrNotInitialized
	require.ErrorAs(t, err, &notInit)
}

func TestInMemoryStore_AddUpsertsByID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)

	require.NoError(t, s.Add(ctx, []VectorEntry{entryAt("a", []float32{1, 0}, "a.go")}))
	require.NoError(t, s.Add(ctx, []VectorEntry{entryAt("a", []float32{0, 1}, "a.go")}))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)

	results, err := s.Search(ctx, []float32{0, 1}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestInMemoryStore_DeleteRemovesFromSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("a", []float32{1, 0}, "a.go"),
		entryAt("b", []float32{0, 1}, "b.go"),
	}))

	count, err := s.Delete(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].Entry.ID)
}

func TestInMemoryStore_DeleteByFilepathRemovesAllChunksForFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("a1", []float32{1, 0}, "a.go"),
		entryAt("a2", []float32{0.9, 0.1}, "a.go"),
		entryAt("b1", []float32{0, 1}, "b.go"),
	}))

	count, err := s.DeleteByFilepath(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := s.GetByFilepath(ctx, "a.go")
	require.NoError(t, err)
	assert.Empty(t, entries)

	remaining, err := s.GetByFilepath(ctx, "b.go")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestInMemoryStore_ReingestConsistency(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("f:1-3", []float32{1, 0}, "f.go"),
		entryAt("f:4-6", []float32{0, 1}, "f.go"),
		entryAt("f:7-9", []float32{0.5, 0.5}, "f.go"),
	}))

	_, err := s.DeleteByFilepath(ctx, "f.go")
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, []VectorEntry{
		entryAt("f:1-3", []float32{1, 0}, "f.go"),
		entryAt("f:4-5-renamed", []float32{0, 1}, "f.go"),
	}))

	entries, err := s.GetByFilepath(ctx, "f.go")
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	results, err := s.Search(ctx, []float32{0.5, 0.5}, SearchOptions{TopK: 10})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "f:7-9", r.Entry.ID)
	}
}

func TestInMemoryStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob")

	s1 := NewInMemoryStore(InMemoryConfig{Dimension: 2, Model: "m", SnapshotPath: path})
	require.NoError(t, s1.Init(ctx))
	entries := []VectorEntry{
		entryAt("a", []float32{1, 0}, "a.go"),
		entryAt("b", []float32{0, 1}, "b.go"),
	}
	require.NoError(t, s1.Add(ctx, entries))
	require.NoError(t, s1.Close(ctx))

	s2 := NewInMemoryStore(InMemoryConfig{Dimension: 2, Model: "m", SnapshotPath: path})
	require.NoError(t, s2.Init(ctx))

	stats, err := s2.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(entries), stats.TotalEntries)

	results, err := s2.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entry.ID)
}

func TestInMemoryStore_SnapshotMismatchRequiresReindex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.gob")

	s1 := NewInMemoryStore(InMemoryConfig{Dimension: 2, Model: "m-old", SnapshotPath: path})
	require.NoError(t, s1.Init(ctx))
	require.NoError(t, s1.Add(ctx, []VectorEntry{entryAt("a", []float32{1, 0}, "a.go")}))
	require.NoError(t, s1.Close(ctx))

	s2 := NewInMemoryStore(InMemoryConfig{Dimension: 2, Model: "m-new", SnapshotPath: path})
	require.NoError(t, s2.Init(ctx))

	err := s2.Add(ctx, []VectorEntry{entryAt("b", []float32{0, 1}, "b.go")})
	require.Error(t, err)
	var reindexErr *ErrReindexRequired
	require.ErrorAs(t, err, &reindexErr)
}

func TestInMemoryStore_SnapshotMissingFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "does-not-exist.gob")
	s := NewInMemoryStore(InMemoryConfig{Dimension: 2, Model: "m", SnapshotPath: path})
	require.NoError(t, s.Init(ctx))

	stats, err := s.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalEntries)
}

func TestInMemoryStore_ZeroMagnitudeVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{entryAt("zero", []float32{0, 0}, "z.go")}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 1, MinScore: -1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0), results[0].Score)
}

func TestInMemoryStore_RepositoryScopedSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	e1 := entryAt("a", []float32{1, 0}, "a.go")
	e1.Repository = "repo1"
	e2 := entryAt("b", []float32{1, 0}, "b.go")
	e2.Repository = "repo2"
	require.NoError(t, s.Add(ctx, []VectorEntry{e1, e2}))

	results, err := s.Search(ctx, []float32{1, 0}, SearchOptions{TopK: 10, Repository: "repo1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Entry.ID)
}

func TestInMemoryStore_CloseWithoutSnapshotPathIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, 2)
	require.NoError(t, s.Add(ctx, []VectorEntry{entryAt("a", []float32{1, 0}, "a.go")}))
	require.NoError(t, s.Close(ctx))
	_, err := os.Stat(filepath.Join(t.TempDir(), "unused"))
	assert.Error(t, err) // sanity: nothing was written anywhere
}

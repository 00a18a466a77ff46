package graph

import (
	"sync/atomic"

	"github.com/ossara-labs/coderag/internal/chunk"
)

// Index owns the live Graph instance and makes reload atomic: the graph is
// rebuilt wholesale from a given chunk set and swapped in behind an
// atomic.Pointer, so concurrent readers always see either the pre- or
// post-rebuild graph, never a half-built one.
type Index struct {
	ptr atomic.Pointer[Graph]
}

// NewIndex builds an Index from an initial chunk set. A nil/empty slice
// yields an empty, queryable graph.
func NewIndex(chunks []*chunk.Chunk) *Index {
	idx := &Index{}
	idx.ptr.Store(Build(chunks))
	return idx
}

// Reload rebuilds the graph from the given chunk set and atomically swaps it
// in. Safe to call concurrently with Current/Expand.
func (idx *Index) Reload(chunks []*chunk.Chunk) {
	idx.ptr.Store(Build(chunks))
}

// Current returns the live Graph. The returned pointer is safe to read
// concurrently with a Reload; it simply reflects either the old or new
// graph, never a mix of both.
func (idx *Index) Current() *Graph {
	return idx.ptr.Load()
}

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ossara-labs/coderag/internal/chunk"
)

func TestIndex_ReloadSwapsAtomically(t *testing.T) {
	a := chunkAt("a.ts", 1, 5, chunk.NodeFunction, "a")
	idx := NewIndex([]*chunk.Chunk{a})

	_, ok := idx.Current().ChunkByID(a.ID)
	assert.True(t, ok)

	b := chunkAt("b.ts", 1, 5, chunk.NodeFunction, "b")
	idx.Reload([]*chunk.Chunk{b})

	_, stillThere := idx.Current().ChunkByID(a.ID)
	assert.False(t, stillThere)
	_, nowThere := idx.Current().ChunkByID(b.ID)
	assert.True(t, nowThere)
}

func TestIndex_EmptyChunksYieldsQueryableGraph(t *testing.T) {
	idx := NewIndex(nil)
	result := idx.Current().Expand(nil, ExpandOptions{MaxHops: 2, MaxExpanded: 5})
	assert.Empty(t, result)
}

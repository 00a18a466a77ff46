package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

// chain builds a -> b -> c -> d import chain (each file imports the next).
func chainChunks() (a, b, c, d *chunk.Chunk) {
	a = chunkAt("a.ts", 1, 5, chunk.NodeFunction, "a")
	a.Imports = []string{"./b"}
	b = chunkAt("b.ts", 1, 5, chunk.NodeFunction, "b")
	b.Imports = []string{"./c"}
	c = chunkAt("c.ts", 1, 5, chunk.NodeFunction, "c")
	c.Imports = []string{"./d"}
	d = chunkAt("d.ts", 1, 5, chunk.NodeFunction, "d")
	return
}

func TestExpand_MaxHopsZeroReturnsSeeds(t *testing.T) {
	a, b, _, _ := chainChunks()
	g := Build([]*chunk.Chunk{a, b})

	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 0, MaxExpanded: 10})
	require.Len(t, result, 1)
	assert.Equal(t, a.ID, result[0].ID)
}

func TestExpand_RespectsHopBudget(t *testing.T) {
	a, b, c, d := chainChunks()
	g := Build([]*chunk.Chunk{a, b, c, d})

	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 2, MaxExpanded: 10})
	ids := idSet(result)
	assert.True(t, ids[a.ID])
	assert.True(t, ids[b.ID])
	assert.True(t, ids[c.ID]) // 2 hops away
	assert.False(t, ids[d.ID])
}

func TestExpand_RespectsMaxExpandedBudget(t *testing.T) {
	a, b, c, d := chainChunks()
	g := Build([]*chunk.Chunk{a, b, c, d})

	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 5, MaxExpanded: 1})
	assert.LessOrEqual(t, len(result), 1+1)
	assert.True(t, idSet(result)[a.ID])
}

func TestExpand_NoDuplicates(t *testing.T) {
	// Diamond: a imports b and c; both b and c import d.
	a := chunkAt("a.ts", 1, 5, chunk.NodeFunction, "a")
	a.Imports = []string{"./b", "./c"}
	b := chunkAt("b.ts", 1, 5, chunk.NodeFunction, "b")
	b.Imports = []string{"./d"}
	c := chunkAt("c.ts", 1, 5, chunk.NodeFunction, "c")
	c.Imports = []string{"./d"}
	d := chunkAt("d.ts", 1, 5, chunk.NodeFunction, "d")

	g := Build([]*chunk.Chunk{a, b, c, d})
	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 5, MaxExpanded: 10})

	seen := map[string]int{}
	for _, r := range result {
		seen[r.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "chunk %s appeared more than once", id)
	}
	assert.Len(t, result, 4)
}

func TestExpand_KindFilter(t *testing.T) {
	iface := chunkAt("types.ts", 1, 3, chunk.NodeInterface, "Widget")
	fn := chunkAt("use.ts", 1, 5, chunk.NodeFunction, "render")
	fn.Types = []string{"Widget"}
	fn.Imports = []string{"./other"}
	other := chunkAt("other.ts", 1, 5, chunk.NodeFunction, "other")

	g := Build([]*chunk.Chunk{iface, fn, other})

	result := g.Expand([]*chunk.Chunk{fn}, ExpandOptions{
		MaxHops: 2, MaxExpanded: 10, Kinds: []store.EdgeKind{store.EdgeImports},
	})
	ids := idSet(result)
	assert.True(t, ids[other.ID])
	assert.False(t, ids[iface.ID], "uses-type edges excluded by kind filter")
}

func TestExpand_SeedsAlwaysIncluded(t *testing.T) {
	a := chunkAt("a.ts", 1, 5, chunk.NodeFunction, "a")
	g := Build([]*chunk.Chunk{a})

	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 0, MaxExpanded: 0})
	require.Len(t, result, 1)
	assert.Equal(t, a.ID, result[0].ID)
}

func idSet(chunks []*chunk.Chunk) map[string]bool {
	out := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		out[c.ID] = true
	}
	return out
}

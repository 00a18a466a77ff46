package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

func chunkAt(file string, start, end int, kind chunk.NodeKind, name string) *chunk.Chunk {
	return &chunk.Chunk{
		ID:        chunk.FormatID(file, start, end),
		FilePath:  file,
		Language:  "typescript",
		StartLine: start,
		EndLine:   end,
		NodeType:  kind,
		Name:      name,
	}
}

// a.ts imports ./b; b.ts defines helper. The import must produce a
// file-spanning edge from every chunk in a.ts to every chunk in b.ts.
func TestBuild_ImportEdgeSpansFile(t *testing.T) {
	a := chunkAt("src/a.ts", 1, 10, chunk.NodeFunction, "main")
	a.Imports = []string{"./b"}

	b := chunkAt("src/b.ts", 1, 5, chunk.NodeFunction, "helper")

	g := Build([]*chunk.Chunk{a, b})

	out := g.Out(a.ID)
	require.Len(t, out, 1)
	assert.Equal(t, store.EdgeImports, out[0].Kind)
	assert.Equal(t, b.ID, out[0].To)
}

func TestBuild_UnresolvableImportDropped(t *testing.T) {
	a := chunkAt("src/a.ts", 1, 10, chunk.NodeFunction, "main")
	a.Imports = []string{"react"} // bare package specifier, not in repo

	g := Build([]*chunk.Chunk{a})
	assert.Empty(t, g.Out(a.ID))
}

func TestBuild_UsesTypeEdge(t *testing.T) {
	iface := chunkAt("src/types.ts", 1, 3, chunk.NodeInterface, "Widget")
	fn := chunkAt("src/use.ts", 1, 5, chunk.NodeFunction, "render")
	fn.Types = []string{"Widget"}

	g := Build([]*chunk.Chunk{iface, fn})

	out := g.Out(fn.ID)
	require.Len(t, out, 1)
	assert.Equal(t, store.EdgeUsesType, out[0].Kind)
	assert.Equal(t, iface.ID, out[0].To)
}

func TestBuild_SelfTypeReferenceNotAnEdge(t *testing.T) {
	iface := chunkAt("src/types.ts", 1, 3, chunk.NodeInterface, "Widget")
	iface.Types = []string{"Widget"} // declaring node references its own name

	g := Build([]*chunk.Chunk{iface})
	assert.Empty(t, g.Out(iface.ID))
}

func TestBuild_GoImportResolvesWholePackage(t *testing.T) {
	a := chunkAt("cmd/main.go", 1, 10, chunk.NodeFunction, "main")
	a.Language = "go"
	a.Imports = []string{"example.com/repo/internal/util"}

	u1 := chunkAt("internal/util/helper.go", 1, 5, chunk.NodeFunction, "Helper")
	u1.Language = "go"
	u2 := chunkAt("internal/util/other.go", 1, 5, chunk.NodeFunction, "Other")
	u2.Language = "go"

	g := Build([]*chunk.Chunk{a, u1, u2})

	out := g.Out(a.ID)
	require.Len(t, out, 2)
	targets := map[string]bool{out[0].To: true, out[1].To: true}
	assert.True(t, targets[u1.ID])
	assert.True(t, targets[u2.ID])
}

func TestBuild_OrphanEdgesPrunedAtQueryTime(t *testing.T) {
	a := chunkAt("src/a.ts", 1, 10, chunk.NodeFunction, "main")
	a.Imports = []string{"./b"}
	b := chunkAt("src/b.ts", 1, 5, chunk.NodeFunction, "helper")

	g := Build([]*chunk.Chunk{a, b})

	// Simulate a stale edge to a chunk no longer in the arena.
	delete(g.chunks, b.ID)

	result := g.Expand([]*chunk.Chunk{a}, ExpandOptions{MaxHops: 2, MaxExpanded: 10})
	assert.Len(t, result, 1) // only the seed; the dangling edge is pruned
}

func TestBuild_DuplicateEdgesCollapsed(t *testing.T) {
	a := chunkAt("src/a.ts", 1, 10, chunk.NodeFunction, "main")
	a.Imports = []string{"./b", "./b"} // same specifier twice

	b := chunkAt("src/b.ts", 1, 5, chunk.NodeFunction, "helper")

	g := Build([]*chunk.Chunk{a, b})
	assert.Len(t, g.Out(a.ID), 1)
}

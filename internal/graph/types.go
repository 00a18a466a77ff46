// Package graph builds and queries the dependency graph linking chunks by
// import, type-reference, and call edges (C4). The graph is an arena of
// chunks indexed by id plus adjacency maps per edge kind; it holds no owned
// back-pointers, matching the pack's id-keyed adjacency idiom (see
// other_examples' siherrmann-grapher/bbiangul-go-reason graph builders).
package graph

import (
	"sort"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

// kindPriority orders edge kinds for BFS tie-breaking within a layer, per
// the contract: imports > uses-type > calls.
var kindPriority = map[store.EdgeKind]int{
	store.EdgeImports:  0,
	store.EdgeUsesType: 1,
	store.EdgeCalls:    2,
}

// Graph is the C4 dependency graph: an immutable, in-memory adjacency
// structure built from a chunk set. The ingest coordinator rebuilds it
// wholesale from its own chunk set after every ingest, and it is never
// mutated in place; callers swap in a freshly built Graph atomically. It is
// not saved, and nothing loads it from the persisted store when a process
// starts, so a new process begins with an empty graph.
type Graph struct {
	chunks map[string]*chunk.Chunk    // id -> chunk
	out    map[string][]store.Edge   // id -> outbound edges
	in     map[string][]store.Edge   // id -> inbound edges
	edges  []store.Edge              // flat edge list, for inspection/tests
}

// Chunks returns the chunk arena backing this graph. The returned map must
// not be mutated by callers.
func (g *Graph) Chunks() map[string]*chunk.Chunk {
	return g.chunks
}

// Edges returns every edge in the graph in construction order.
func (g *Graph) Edges() []store.Edge {
	return g.edges
}

// ChunkByID looks up a chunk by id, returning (nil, false) if absent.
func (g *Graph) ChunkByID(id string) (*chunk.Chunk, bool) {
	c, ok := g.chunks[id]
	return c, ok
}

// Out returns the outbound edges from id, sorted by kind priority then
// target id for deterministic iteration.
func (g *Graph) Out(id string) []store.Edge {
	return sortedEdges(g.out[id])
}

// In returns the inbound edges to id, sorted by kind priority then source id.
func (g *Graph) In(id string) []store.Edge {
	return sortedEdges(g.in[id])
}

func sortedEdges(edges []store.Edge) []store.Edge {
	if len(edges) == 0 {
		return nil
	}
	out := make([]store.Edge, len(edges))
	copy(out, edges)
	sort.SliceStable(out, func(i, j int) bool {
		if kindPriority[out[i].Kind] != kindPriority[out[j].Kind] {
			return kindPriority[out[i].Kind] < kindPriority[out[j].Kind]
		}
		return out[i].To < out[j].To
	})
	return out
}

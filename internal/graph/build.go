package graph

import (
	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

// Build constructs a Graph from the full chunk set. For each chunk c: each
// import specifier is resolved to filepath(s) and an imports edge is added
// from c to every chunk in those files; each referenced type name is
// resolved by name+nodeType lookup across the whole arena and a uses-type
// edge is added. Unresolvable specifiers/types are silently dropped.
func Build(chunks []*chunk.Chunk) *Graph {
	g := &Graph{
		chunks: make(map[string]*chunk.Chunk, len(chunks)),
		out:    make(map[string][]store.Edge),
		in:     make(map[string][]store.Edge),
	}

	filesByPath := make(map[string]bool)
	chunksByFile := make(map[string][]*chunk.Chunk)
	// typeDefiners indexes chunks that can serve as the target of a
	// uses-type edge: named interface/type/class declarations.
	typeDefiners := make(map[string][]*chunk.Chunk)

	for _, c := range chunks {
		g.chunks[c.ID] = c
		filesByPath[c.FilePath] = true
		chunksByFile[c.FilePath] = append(chunksByFile[c.FilePath], c)

		if c.Name != "" && isTypeDefiningKind(c.NodeType) {
			typeDefiners[c.Name] = append(typeDefiners[c.Name], c)
		}
	}

	for _, c := range chunks {
		g.addImportEdges(c, chunksByFile, filesByPath)
		g.addUsesTypeEdges(c, typeDefiners)
	}

	return g
}

func isTypeDefiningKind(k chunk.NodeKind) bool {
	switch k {
	case chunk.NodeInterface, chunk.NodeTypeAlias, chunk.NodeClass:
		return true
	default:
		return false
	}
}

// addImportEdges resolves c's import specifiers to files and adds an
// imports edge from c to every chunk in each resolved file.
func (g *Graph) addImportEdges(c *chunk.Chunk, chunksByFile map[string][]*chunk.Chunk, filesByPath map[string]bool) {
	for _, spec := range c.Imports {
		for _, targetFile := range resolveImportFiles(c.FilePath, spec, c.Language, filesByPath) {
			if targetFile == c.FilePath {
				continue
			}
			for _, target := range chunksByFile[targetFile] {
				g.addEdge(store.Edge{Kind: store.EdgeImports, From: c.ID, To: target.ID})
			}
		}
	}
}

// addUsesTypeEdges resolves c's referenced type names against every chunk
// in the repository named with that type and nodeType in
// {interface, type, class}, adding a uses-type edge per match.
func (g *Graph) addUsesTypeEdges(c *chunk.Chunk, typeDefiners map[string][]*chunk.Chunk) {
	for _, typeName := range c.Types {
		for _, target := range typeDefiners[typeName] {
			if target.ID == c.ID {
				continue // a type's own declaration doesn't reference itself
			}
			g.addEdge(store.Edge{Kind: store.EdgeUsesType, From: c.ID, To: target.ID})
		}
	}
}

// addEdge records e in both the flat list and the out/in adjacency maps,
// skipping exact duplicates (same kind/from/to already recorded).
func (g *Graph) addEdge(e store.Edge) {
	for _, existing := range g.out[e.From] {
		if existing.Kind == e.Kind && existing.To == e.To {
			return
		}
	}
	g.edges = append(g.edges, e)
	g.out[e.From] = append(g.out[e.From], e)
	g.in[e.To] = append(g.in[e.To], e)
}

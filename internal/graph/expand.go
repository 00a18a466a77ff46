package graph

import (
	"sort"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/store"
)

// ExpandOptions bounds a graph traversal.
type ExpandOptions struct {
	// MaxHops caps the BFS depth from the seed set. 0 means expansion
	// returns exactly the seeds.
	MaxHops int

	// MaxExpanded caps the number of non-seed chunks added to the result.
	MaxExpanded int

	// Kinds restricts traversal to these edge kinds; nil/empty means all
	// kinds are permitted.
	Kinds []store.EdgeKind
}

// Expand performs a breadth-first traversal from the union of seeds,
// following edges of the permitted kinds, and returns the seeds plus every
// newly discovered chunk within budget. Seeds are always included. The
// traversal stops when the hop budget is exhausted, the expanded-chunk
// budget is reached, or the frontier empties. Newly discovered chunks are
// appended in BFS order; ties within a layer are broken by edge kind
// priority (imports > uses-type > calls) then chunk id, lexicographically.
// Output contains no duplicates (dedup by chunk id).
func (g *Graph) Expand(seeds []*chunk.Chunk, opts ExpandOptions) []*chunk.Chunk {
	allowed := allowedKindSet(opts.Kinds)

	visited := make(map[string]bool, len(seeds))
	result := make([]*chunk.Chunk, 0, len(seeds))
	frontier := make([]string, 0, len(seeds))

	for _, s := range seeds {
		if s == nil || visited[s.ID] {
			continue
		}
		visited[s.ID] = true
		result = append(result, s)
		frontier = append(frontier, s.ID)
	}

	expanded := 0
	for hop := 0; hop < opts.MaxHops && len(frontier) > 0 && expanded < opts.MaxExpanded; hop++ {
		type candidate struct {
			id   string
			edge store.Edge
		}
		var candidates []candidate

		for _, id := range frontier {
			for _, e := range g.Out(id) {
				if !allowed[e.Kind] || visited[e.To] {
					continue
				}
				if _, ok := g.chunks[e.To]; !ok {
					continue // orphan edge: endpoint not in the current chunk set
				}
				candidates = append(candidates, candidate{id: e.To, edge: e})
			}
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			pi, pj := kindPriority[candidates[i].edge.Kind], kindPriority[candidates[j].edge.Kind]
			if pi != pj {
				return pi < pj
			}
			return candidates[i].id < candidates[j].id
		})

		var nextFrontier []string
		for _, cd := range candidates {
			if visited[cd.id] || expanded >= opts.MaxExpanded {
				continue
			}
			visited[cd.id] = true
			result = append(result, g.chunks[cd.id])
			nextFrontier = append(nextFrontier, cd.id)
			expanded++
		}
		frontier = nextFrontier
	}

	return result
}

func allowedKindSet(kinds []store.EdgeKind) map[store.EdgeKind]bool {
	if len(kinds) == 0 {
		return map[store.EdgeKind]bool{
			store.EdgeImports:     true,
			store.EdgeDefinesType: true,
			store.EdgeUsesType:    true,
			store.EdgeCalls:       true,
		}
	}
	out := make(map[store.EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		out[k] = true
	}
	return out
}

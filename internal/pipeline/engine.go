package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/embed"
	"github.com/ossara-labs/coderag/internal/graph"
	"github.com/ossara-labs/coderag/internal/rerank"
	"github.com/ossara-labs/coderag/internal/store"
)

// ErrNilDependency reports a required Engine dependency that was never
// configured, matching the corpus's Engine construction-time validation.
type ErrNilDependency struct {
	Dependency string
}

func (e *ErrNilDependency) Error() string {
	return fmt.Sprintf("pipeline: %s is required", e.Dependency)
}

// Engine runs Search requests against the configured C1–C6 components. Build
// one with New and the With* options; an Engine is safe for concurrent use.
type Engine struct {
	embedder    embed.Embedder
	vectorStore store.VectorStore
	graphIndex  *graph.Index
	bm25        store.BM25Index
	weights     Weights
	rerankers   map[rerank.Mode]rerank.Reranker
}

// EngineOption configures an Engine at construction time, mirroring the
// corpus's functional-options Engine construction.
type EngineOption func(*Engine)

// WithGraph attaches the dependency graph used for query-result expansion.
// Without it, ExpandGraph requests degrade to vector-search-only.
func WithGraph(idx *graph.Index) EngineOption {
	return func(e *Engine) { e.graphIndex = idx }
}

// WithBM25 attaches a keyword index fused with vector search via RRF. Without
// it, Search runs on vector results alone.
func WithBM25(idx store.BM25Index, weights Weights) EngineOption {
	return func(e *Engine) {
		e.bm25 = idx
		e.weights = weights
	}
}

// WithReranker registers a reranker implementation for a given mode. A
// request whose Options.Reranker resolves to an unregistered mode falls back
// to NoOpReranker.
func WithReranker(mode rerank.Mode, r rerank.Reranker) EngineOption {
	return func(e *Engine) { e.rerankers[mode] = r }
}

// New builds an Engine. embedder and vectorStore are required; every other
// dependency is optional and its absence degrades the corresponding stage
// rather than failing construction.
func New(embedder embed.Embedder, vectorStore store.VectorStore, opts ...EngineOption) (*Engine, error) {
	if embedder == nil {
		return nil, &ErrNilDependency{Dependency: "embedder"}
	}
	if vectorStore == nil {
		return nil, &ErrNilDependency{Dependency: "vectorStore"}
	}
	e := &Engine{
		embedder:    embedder,
		vectorStore: vectorStore,
		weights:     DefaultWeights(),
		rerankers:   make(map[rerank.Mode]rerank.Reranker),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search runs the full pipeline: embed the query, search the vector store
// for at most TopK base results (fused with BM25 if configured), optionally
// expand across the dependency graph, then rerank to RerankTopK if a
// reranker is requested; with no reranker the base and expanded chunks are
// returned without further truncation. Every stage dedups by chunk id against
// everything already accumulated. A failure at any stage returns the
// originating error plus a Stage trace recording whatever stages completed.
func (e *Engine) Search(ctx context.Context, req Request) (Response, error) {
	opts := applyDefaults(req.Options)
	trace := Stage{QueryID: uuid.New().String(), State: StateIdle}
	log := slog.With("query_id", trace.QueryID)

	record := func(name State, count int, start time.Time) {
		trace.Stages = append(trace.Stages, StageRecord{Name: name, Count: count, Duration: time.Since(start)})
	}
	fail := func(state State, err error) (Response, error) {
		trace.State = StateFailed
		trace.Err = err
		log.Warn("search failed", "stage", state, "error", err)
		return Response{Stage: trace}, err
	}

	// Stage 1: embed the query.
	trace.State = StateEmbeddingQuery
	start := time.Now()
	queryVec, err := e.embedder.Embed(ctx, req.Query)
	if err != nil {
		return fail(StateEmbeddingQuery, fmt.Errorf("embed query: %w", err))
	}
	record(StateEmbeddingQuery, 1, start)
	if err := ctx.Err(); err != nil {
		return fail(StateVectorSearch, err)
	}

	// Stage 2: vector search, optionally fused with BM25. The two run
	// concurrently via errgroup, matching the corpus's hybridSearch
	// concurrency pattern (internal/search.Engine.hybridSearch).
	trace.State = StateVectorSearch
	start = time.Now()

	var (
		vecResults  []store.ScoredEntry
		bm25Results []*store.BM25Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vecResults, err = e.vectorStore.Search(gctx, queryVec, store.SearchOptions{
			TopK:       opts.TopK,
			Repository: req.RepositoryID,
		})
		return err
	})
	if e.bm25 != nil {
		g.Go(func() error {
			// BM25 is an optional fusion partner: a failure here degrades
			// to vector-only rather than failing the whole query, so its
			// error is swallowed instead of returned to the group.
			res, err := e.bm25.Search(gctx, req.Query, opts.TopK)
			if err == nil {
				bm25Results = res
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(StateVectorSearch, fmt.Errorf("vector search: %w", err))
	}

	seen := make(map[string]bool, opts.TopK)
	var base []ResultChunk
	if e.bm25 != nil {
		fused := newRRFFusion().fuse(bm25Results, vecResults, e.weights)
		byID := make(map[string]store.ScoredEntry, len(vecResults))
		for _, v := range vecResults {
			byID[entryChunkID(v)] = v
		}
		for _, f := range fused {
			if seen[f.ChunkID] {
				continue
			}
			c, ok := e.resolveChunk(f.ChunkID, byID)
			if !ok {
				continue
			}
			seen[f.ChunkID] = true
			base = append(base, ResultChunk{Chunk: c, Score: float32(f.RRFScore), HasScore: true})
			if len(base) >= opts.TopK {
				break
			}
		}
	} else {
		for _, v := range vecResults {
			id := entryChunkID(v)
			if seen[id] {
				continue
			}
			seen[id] = true
			c := v.Entry.Chunk
			base = append(base, ResultChunk{Chunk: &c, Score: v.Score, HasScore: true})
		}
	}
	record(StateVectorSearch, len(base), start)
	if err := ctx.Err(); err != nil {
		return fail(StateGraphExpand, err)
	}

	results := base

	// Stage 3: optional graph expansion.
	if *opts.ExpandGraph && e.graphIndex != nil {
		trace.State = StateGraphExpand
		start = time.Now()
		seedChunks := make([]*chunk.Chunk, 0, len(base))
		for _, r := range base {
			seedChunks = append(seedChunks, r.Chunk)
		}
		expanded := e.graphIndex.Current().Expand(seedChunks, graph.ExpandOptions{
			MaxHops:     opts.MaxHops,
			MaxExpanded: opts.MaxExpandedChunks,
		})
		results = results[:0]
		results = append(results, base...)
		for _, c := range expanded {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			results = append(results, ResultChunk{Chunk: c, HasScore: false})
		}
		record(StateGraphExpand, len(results), start)
	}

	if err := ctx.Err(); err != nil {
		return fail(StateRerank, err)
	}

	// Stage 4: rerank. results is already bounded by the vector search's
	// TopK plus whatever graph expansion added; with no reranker
	// requested that set passes through unchanged — RerankTopK only
	// governs the reranker's own output size.
	if opts.Reranker != RerankerNone {
		trace.State = StateRerank
		start = time.Now()
		reranked, err := e.rerank(ctx, req.Query, results, opts)
		if err != nil {
			return fail(StateRerank, fmt.Errorf("rerank: %w", err))
		}
		results = reranked
		record(StateRerank, len(results), start)
	}

	trace.State = StateDone
	log.Debug("search completed", "result_count", len(results))
	return Response{Chunks: results, Stage: trace}, nil
}

// resolveChunk recovers the chunk.Chunk for a fused chunk id, preferring the
// vector search hit (which already carries the full chunk) and falling back
// to the dependency graph's chunk arena for BM25-only hits.
func (e *Engine) resolveChunk(id string, byID map[string]store.ScoredEntry) (*chunk.Chunk, bool) {
	if v, ok := byID[id]; ok {
		c := v.Entry.Chunk
		return &c, true
	}
	if e.graphIndex != nil {
		if c, ok := e.graphIndex.Current().ChunkByID(id); ok {
			return c, true
		}
	}
	return nil, false
}

func (e *Engine) rerank(ctx context.Context, query string, results []ResultChunk, opts SearchOptions) ([]ResultChunk, error) {
	mode := opts.Reranker.toRerankMode()
	r, ok := e.rerankers[mode]
	if !ok || r == nil {
		r = &rerank.NoOpReranker{}
	}

	candidates := make([]rerank.Candidate, len(results))
	for i, rc := range results {
		candidates[i] = rerank.Candidate{
			ID:      rc.Chunk.ID,
			Content: rc.Chunk.Content,
		}
	}

	reranked, err := r.Rerank(ctx, query, candidates, opts.RerankTopK)
	if err != nil {
		return nil, err
	}

	out := make([]ResultChunk, 0, len(reranked))
	for _, res := range reranked {
		if res.Index < 0 || res.Index >= len(results) {
			continue
		}
		orig := results[res.Index]
		orig.Score = float32(res.Score)
		orig.HasScore = true
		out = append(out, orig)
	}
	return out, nil
}

// Package pipeline composes the C1–C6 components into a single search
// operation (C7): embed the query, search the vector store, optionally
// fusing in a BM25 pass, optionally expand across the dependency graph, and
// rerank — grounded on the corpus's search.Engine (EngineOption
// functional-options construction, RRF fusion) and index.Coordinator
// (per-repository ingestion).
package pipeline

import (
	"time"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/rerank"
)

// Defaults and bounds for SearchOptions.
const (
	DefaultTopK              = 10
	MinTopK                  = 1
	MaxTopK                  = 50
	DefaultRerankTopK         = 5
	DefaultExpandGraph        = true
	DefaultMaxHops            = 2
	MaxHops                   = 5
	DefaultMaxExpandedChunks  = 15
	MaxMaxExpandedChunks      = 100
)

// RerankerMode names the reranker selection exposed at the pipeline
// boundary. It maps onto internal/rerank's Mode constants (bge ->
// cross-encoder, since no concrete model backs "bge" in this system).
type RerankerMode string

const (
	RerankerBGE  RerankerMode = "bge"
	RerankerLLM  RerankerMode = "llm"
	RerankerNone RerankerMode = "none"
)

// toRerankMode maps a pipeline-facing RerankerMode onto an internal/rerank Mode.
func (m RerankerMode) toRerankMode() rerank.Mode {
	switch m {
	case RerankerBGE:
		return rerank.ModeCrossEncoder
	case RerankerLLM:
		return rerank.ModeLLMJudge
	default:
		return rerank.ModeNone
	}
}

// SearchOptions controls one Search call. Zero values select the documented
// defaults via applyDefaults.
type SearchOptions struct {
	TopK              int
	Reranker          RerankerMode
	RerankTopK        int
	ExpandGraph       *bool // nil selects DefaultExpandGraph
	MaxHops           int
	MaxExpandedChunks int
}

// Request is a single pipeline query.
type Request struct {
	Query        string
	RepositoryID string
	Options      SearchOptions
}

// ResultChunk is one chunk in a Response, in final order. HasScore is false
// for chunks discovered only through graph expansion, which carry no
// similarity score.
type ResultChunk struct {
	Chunk    *chunk.Chunk
	Score    float32
	HasScore bool
}

// State is a position in the pipeline's query state machine.
type State string

const (
	StateIdle           State = "Idle"
	StateEmbeddingQuery  State = "EmbeddingQuery"
	StateVectorSearch    State = "VectorSearch"
	StateGraphExpand     State = "GraphExpand"
	StateRerank          State = "Rerank"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
)

// StageRecord captures one stage's contribution to the trace: how many
// chunks it touched and how long it took.
type StageRecord struct {
	Name     State
	Count    int
	Duration time.Duration
}

// Stage is the full per-query trace: the final state reached and a record
// per stage actually executed. On failure, Err names the originating cause
// and Stages holds whatever stages completed before the failure. QueryID
// correlates this trace with log lines emitted during the same Search call.
type Stage struct {
	QueryID string
	State   State
	Stages  []StageRecord
	Err     error
}

// Response is the result of a Search call.
type Response struct {
	Chunks []ResultChunk
	Stage  Stage
}

// applyDefaults fills in default values and clamps out-of-range options,
// matching the corpus's Engine.applyDefaults pattern.
func applyDefaults(opts SearchOptions) SearchOptions {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.TopK > MaxTopK {
		opts.TopK = MaxTopK
	}
	if opts.TopK < MinTopK {
		opts.TopK = MinTopK
	}

	if opts.Reranker == "" {
		opts.Reranker = RerankerNone
	}

	if opts.RerankTopK <= 0 {
		opts.RerankTopK = DefaultRerankTopK
	}

	if opts.ExpandGraph == nil {
		v := DefaultExpandGraph
		opts.ExpandGraph = &v
	}

	if opts.MaxHops <= 0 {
		opts.MaxHops = DefaultMaxHops
	}
	if opts.MaxHops > MaxHops {
		opts.MaxHops = MaxHops
	}

	if opts.MaxExpandedChunks <= 0 {
		opts.MaxExpandedChunks = DefaultMaxExpandedChunks
	}
	if opts.MaxExpandedChunks > MaxMaxExpandedChunks {
		opts.MaxExpandedChunks = MaxMaxExpandedChunks
	}

	return opts
}

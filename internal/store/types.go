// Package store provides vector storage (HNSW, pgvector) and BM25 keyword
// indexing: the persistence layer for all indexed chunks.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ossara-labs/coderag/internal/chunk"
)

// VectorEntry is a single embedded chunk held by a vector store. All entries
// in a store share one dimension equal to the store's declared dimension;
// ids are unique and add() upserts by id.
type VectorEntry struct {
	ID         string
	Embedding  []float32
	Chunk      chunk.Chunk
	Repository string // optional; empty means unscoped
}

// StoreMetadata describes a store's configuration and is compared on load to
// detect a stale or incompatible index.
type StoreMetadata struct {
	Dimension int
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats adds runtime counts to the persisted metadata for getStats().
type Stats struct {
	StoreMetadata
	TotalEntries int
}

// SearchOptions controls a vector store search.
type SearchOptions struct {
	TopK       int
	MinScore   float32
	Repository string // optional; scopes results to this repository
}

// ScoredEntry pairs a VectorEntry with its similarity score.
type ScoredEntry struct {
	Entry VectorEntry
	Score float32
}

// EdgeKind classifies a dependency graph edge.
type EdgeKind string

const (
	EdgeImports     EdgeKind = "imports"
	EdgeDefinesType EdgeKind = "defines-type"
	EdgeUsesType    EdgeKind = "uses-type"
	EdgeCalls       EdgeKind = "calls"
)

// Edge is a directed dependency graph edge between two chunk ids.
type Edge struct {
	Kind EdgeKind
	From string
	To   string
}

// VectorStore is the C3 component: durable, queryable storage of embedded
// chunks. Implementations include an in-memory HNSW-backed store with
// snapshot persistence and a Postgres+pgvector backend.
type VectorStore interface {
	// Init prepares the store for use (loading a snapshot, opening a
	// connection pool, etc). Every other method fails with NotInitialized
	// until Init has succeeded.
	Init(ctx context.Context) error

	// Close flushes and releases resources. A successful Close guarantees
	// durability of all prior mutations.
	Close(ctx context.Context) error

	// Add upserts entries by id.
	Add(ctx context.Context, entries []VectorEntry) error

	// Search returns entries ranked by cosine similarity to queryVector,
	// highest first, with ties broken by insertion order. MinScore is
	// applied before TopK truncation. TopK=0 returns an empty result.
	Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]ScoredEntry, error)

	// Delete removes entries by id and returns the count actually removed.
	Delete(ctx context.Context, ids []string) (int, error)

	// DeleteByFilepath removes every entry whose chunk belongs to path and
	// returns the count removed.
	DeleteByFilepath(ctx context.Context, path string) (int, error)

	// GetByFilepath returns every entry whose chunk belongs to path.
	GetByFilepath(ctx context.Context, path string) ([]VectorEntry, error)

	// GetStats returns the store's metadata plus live entry counts.
	GetStats(ctx context.Context) (Stats, error)
}

// ErrDimensionMismatch indicates a vector's length differs from the store's
// configured dimension. Fatal: it indicates misconfiguration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: store expects %d, got %d (reindex required)", e.Expected, e.Got)
}

// ErrNotInitialized indicates an operation was invoked before Init succeeded.
type ErrNotInitialized struct{}

func (e *ErrNotInitialized) Error() string { return "vector store not initialized" }

// ErrStoreIO wraps a persistence failure. Fatal for writes; logged on load.
type ErrStoreIO struct {
	Op    string
	Cause error
}

func (e *ErrStoreIO) Error() string { return fmt.Sprintf("store io: %s: %v", e.Op, e.Cause) }
func (e *ErrStoreIO) Unwrap() error { return e.Cause }

// ErrReindexRequired indicates a loaded snapshot's dimension or model does
// not match the running configuration. The store refuses writes until the
// condition is resolved by a full reindex.
type ErrReindexRequired struct {
	ConfiguredDimension int
	SnapshotDimension   int
	ConfiguredModel     string
	SnapshotModel       string
}

func (e *ErrReindexRequired) Error() string {
	return fmt.Sprintf("reindex required: snapshot was built with model=%q dim=%d, configured model=%q dim=%d",
		e.SnapshotModel, e.SnapshotDimension, e.ConfiguredModel, e.ConfiguredDimension)
}

// Document represents a chunk's text content to be indexed in BM25.
type Document struct {
	ID      string // chunk ID
	Content string
}

// BM25Result represents a single BM25 search result.
type BM25Result struct {
	DocID        string
	Score        float64
	MatchedTerms []string
}

// IndexStats provides statistics about the BM25 index.
type IndexStats struct {
	DocumentCount int
	TermCount     int
	AvgDocLength  float64
}

// BM25Index provides keyword search using BM25, used as the optional
// fusion partner to vector search inside the pipeline.
type BM25Index interface {
	Index(ctx context.Context, docs []*Document) error
	Search(ctx context.Context, query string, limit int) ([]*BM25Result, error)
	Delete(ctx context.Context, docIDs []string) error
	AllIDs() ([]string, error)
	Stats() *IndexStats
	Save(path string) error
	Load(path string) error
	Close() error
}

// BM25Config configures the BM25 index.
type BM25Config struct {
	K1             float64
	B              float64
	StopWords      []string
	MinTokenLength int
}

// DefaultBM25Config returns default BM25 configuration.
func DefaultBM25Config() BM25Config {
	return BM25Config{
		K1:             1.2,
		B:              0.75,
		StopWords:      DefaultCodeStopWords,
		MinTokenLength: 2,
	}
}

// DefaultCodeStopWords contains programming keywords to filter out.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

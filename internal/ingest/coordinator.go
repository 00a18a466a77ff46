// Package ingest builds and maintains a single repository's index: scanning
// its files, chunking them (C1), embedding and storing the chunks (C2/C3),
// indexing them for BM25, and keeping the dependency graph (C4) in sync.
// Grounded on the corpus's index.Coordinator, narrowed to two operations,
// full ingest and single-file re-ingest, each serialized by an exclusive
// per-repository writer lock.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/embed"
	"github.com/ossara-labs/coderag/internal/graph"
	"github.com/ossara-labs/coderag/internal/scanner"
	"github.com/ossara-labs/coderag/internal/store"
)

// DefaultLockFile is the writer-lock filename created under a repository's
// data directory.
const DefaultLockFile = ".coderag.lock"

// DefaultLockTimeout bounds how long IngestAll/IngestFile wait for the
// repository's writer lock before giving up.
const DefaultLockTimeout = 30 * time.Second

// DefaultEmbedBatchSize caps how many chunk texts are embedded per
// EmbedBatch call during a full ingest.
const DefaultEmbedBatchSize = 32

// Config wires a Coordinator's dependencies for one repository.
type Config struct {
	RepositoryID string
	RootPath     string // absolute path to the repository root

	// LockPath is the writer-lock file path. Defaults to
	// filepath.Join(RootPath, DefaultLockFile).
	LockPath string

	Scanner     *scanner.Scanner
	CodeChunker chunk.Chunker
	MDChunker   chunk.Chunker
	Embedder    embed.Embedder
	VectorStore store.VectorStore

	// BM25 is optional; when nil, IngestAll/IngestFile skip keyword indexing.
	BM25 store.BM25Index

	// GraphIndex is optional; when nil, dependency-graph expansion is
	// unavailable for this repository's queries but ingestion still succeeds.
	GraphIndex *graph.Index

	ExcludePatterns []string
	EmbedBatchSize  int
}

// Coordinator ingests and re-ingests one repository's files. It serializes
// writers with an exclusive filesystem lock (so a second process or a
// concurrent goroutine blocks rather than racing a partial rebuild) and
// tracks the repository's live chunk set so the dependency graph can be
// rebuilt wholesale after every mutation, per C4's rebuild-on-reingest
// contract.
type Coordinator struct {
	cfg Config

	mu     sync.Mutex
	chunks map[string]*chunk.Chunk // id -> chunk, this repository's current arena
}

// New validates cfg and returns a Coordinator ready to ingest.
func New(cfg Config) (*Coordinator, error) {
	if cfg.RepositoryID == "" {
		return nil, fmt.Errorf("ingest: RepositoryID is required")
	}
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("ingest: RootPath is required")
	}
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("ingest: Scanner is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("ingest: Embedder is required")
	}
	if cfg.VectorStore == nil {
		return nil, fmt.Errorf("ingest: VectorStore is required")
	}
	if cfg.LockPath == "" {
		cfg.LockPath = filepath.Join(cfg.RootPath, DefaultLockFile)
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = DefaultEmbedBatchSize
	}
	return &Coordinator{cfg: cfg, chunks: make(map[string]*chunk.Chunk)}, nil
}

// withWriterLock runs fn while holding the repository's exclusive writer
// lock, guaranteeing at most one ingest (in this process or another) mutates
// the repository's index at a time.
func (c *Coordinator) withWriterLock(ctx context.Context, fn func(ctx context.Context) error) error {
	lock := flock.New(c.cfg.LockPath)
	lockCtx, cancel := context.WithTimeout(ctx, DefaultLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("ingest: acquire writer lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("ingest: repository %s is locked by another writer", c.cfg.RepositoryID)
	}
	defer lock.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	return fn(ctx)
}

// IngestAll performs a full (re-)ingest: scans the repository, chunks every
// indexable file, embeds and stores every chunk, rebuilds the BM25 index if
// configured, and rebuilds the dependency graph. Any prior chunk set for
// this repository is discarded and replaced.
func (c *Coordinator) IngestAll(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.withWriterLock(ctx, func(ctx context.Context) error {
		results, err := c.cfg.Scanner.Scan(ctx, &scanner.ScanOptions{
			RootDir:          c.cfg.RootPath,
			RespectGitignore: true,
			ExcludePatterns:  c.cfg.ExcludePatterns,
		})
		if err != nil {
			return fmt.Errorf("scan repository: %w", err)
		}

		newChunks := make(map[string]*chunk.Chunk)
		var entries []store.VectorEntry
		var texts []string
		var pendingChunks []*chunk.Chunk

		flush := func() error {
			if len(texts) == 0 {
				return nil
			}
			vectors, err := c.cfg.Embedder.EmbedBatch(ctx, texts)
			if err != nil {
				return fmt.Errorf("embed batch: %w", err)
			}
			for i, v := range vectors {
				entries = append(entries, store.VectorEntry{
					ID:         pendingChunks[i].ID,
					Embedding:  v,
					Chunk:      *pendingChunks[i],
					Repository: c.cfg.RepositoryID,
				})
			}
			texts = texts[:0]
			pendingChunks = pendingChunks[:0]
			return nil
		}

		var docs []*store.Document
		for result := range results {
			if result.Error != nil || result.File == nil {
				continue
			}
			chunks, err := c.chunkFile(ctx, result.File.Path, result.File.Language)
			if err != nil {
				stats.FilesFailed++
				continue
			}
			for _, ch := range chunks {
				newChunks[ch.ID] = ch
				texts = append(texts, ch.Content)
				pendingChunks = append(pendingChunks, ch)
				docs = append(docs, &store.Document{ID: ch.ID, Content: ch.Content})
				if len(texts) >= c.cfg.EmbedBatchSize {
					if err := flush(); err != nil {
						return err
					}
				}
			}
			stats.FilesIndexed++
		}
		if err := flush(); err != nil {
			return err
		}

		if len(entries) > 0 {
			if err := c.cfg.VectorStore.Add(ctx, entries); err != nil {
				return fmt.Errorf("store chunks: %w", err)
			}
		}
		if c.cfg.BM25 != nil && len(docs) > 0 {
			if err := c.cfg.BM25.Index(ctx, docs); err != nil {
				return fmt.Errorf("index bm25: %w", err)
			}
		}

		c.chunks = newChunks
		stats.ChunksIndexed = len(newChunks)
		if c.cfg.GraphIndex != nil {
			c.cfg.GraphIndex.Reload(c.chunkSliceLocked())
		}
		return nil
	})
	return stats, err
}

// IngestFile re-ingests a single file: every existing chunk belonging to
// path is deleted from the vector store, BM25 index, and chunk arena before
// the file is re-read, re-chunked, re-embedded, and re-inserted. This
// delete-then-insert order guarantees a modified file never leaves stale
// chunks for the spans it no longer contains.
func (c *Coordinator) IngestFile(ctx context.Context, relPath string) (Stats, error) {
	var stats Stats
	err := c.withWriterLock(ctx, func(ctx context.Context) error {
		if err := c.removeFileLocked(ctx, relPath); err != nil {
			return err
		}

		language := scanner.DetectLanguage(relPath)
		chunks, err := c.chunkFile(ctx, relPath, language)
		if err != nil {
			return fmt.Errorf("chunk file: %w", err)
		}
		if len(chunks) == 0 {
			c.reloadGraphLocked()
			return nil
		}

		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Content
		}
		vectors, err := c.cfg.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}

		entries := make([]store.VectorEntry, len(chunks))
		docs := make([]*store.Document, len(chunks))
		for i, ch := range chunks {
			entries[i] = store.VectorEntry{ID: ch.ID, Embedding: vectors[i], Chunk: *ch, Repository: c.cfg.RepositoryID}
			docs[i] = &store.Document{ID: ch.ID, Content: ch.Content}
			c.chunks[ch.ID] = ch
		}

		if err := c.cfg.VectorStore.Add(ctx, entries); err != nil {
			return fmt.Errorf("store chunks: %w", err)
		}
		if c.cfg.BM25 != nil {
			if err := c.cfg.BM25.Index(ctx, docs); err != nil {
				return fmt.Errorf("index bm25: %w", err)
			}
		}

		stats.FilesIndexed = 1
		stats.ChunksIndexed = len(chunks)
		c.reloadGraphLocked()
		return nil
	})
	return stats, err
}

// RemoveFile deletes every chunk belonging to path from the vector store,
// BM25 index, and dependency graph.
func (c *Coordinator) RemoveFile(ctx context.Context, relPath string) error {
	return c.withWriterLock(ctx, func(ctx context.Context) error {
		if err := c.removeFileLocked(ctx, relPath); err != nil {
			return err
		}
		c.reloadGraphLocked()
		return nil
	})
}

func (c *Coordinator) removeFileLocked(ctx context.Context, relPath string) error {
	existing, err := c.cfg.VectorStore.GetByFilepath(ctx, relPath)
	if err != nil {
		return fmt.Errorf("look up existing chunks: %w", err)
	}
	if len(existing) == 0 {
		return nil
	}

	ids := make([]string, len(existing))
	for i, e := range existing {
		ids[i] = e.ID
		delete(c.chunks, e.ID)
	}

	if _, err := c.cfg.VectorStore.DeleteByFilepath(ctx, relPath); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}
	if c.cfg.BM25 != nil {
		if err := c.cfg.BM25.Delete(ctx, ids); err != nil {
			return fmt.Errorf("delete bm25 entries: %w", err)
		}
	}
	return nil
}

func (c *Coordinator) reloadGraphLocked() {
	if c.cfg.GraphIndex != nil {
		c.cfg.GraphIndex.Reload(c.chunkSliceLocked())
	}
}

func (c *Coordinator) chunkSliceLocked() []*chunk.Chunk {
	out := make([]*chunk.Chunk, 0, len(c.chunks))
	for _, ch := range c.chunks {
		out = append(out, ch)
	}
	return out
}

// chunkFile reads and chunks a single repository-relative file with the
// chunker selected by its detected content type, matching the corpus's
// code-vs-markdown chunker selection.
func (c *Coordinator) chunkFile(ctx context.Context, relPath, language string) ([]*chunk.Chunk, error) {
	contentType := scanner.DetectContentType(language)

	var chunker chunk.Chunker
	switch contentType {
	case scanner.ContentTypeCode:
		chunker = c.cfg.CodeChunker
	case scanner.ContentTypeMarkdown:
		chunker = c.cfg.MDChunker
	default:
		return nil, nil
	}
	if chunker == nil {
		return nil, nil
	}

	content, err := os.ReadFile(filepath.Join(c.cfg.RootPath, relPath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", relPath, err)
	}

	return chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: content, Language: language})
}

// Stats summarizes one ingest call.
type Stats struct {
	FilesIndexed  int
	FilesFailed   int
	ChunksIndexed int
}

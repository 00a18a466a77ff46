package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ossara-labs/coderag/internal/chunk"
	"github.com/ossara-labs/coderag/internal/config"
	"github.com/ossara-labs/coderag/internal/embed"
	"github.com/ossara-labs/coderag/internal/graph"
	"github.com/ossara-labs/coderag/internal/ingest"
	"github.com/ossara-labs/coderag/internal/llm"
	"github.com/ossara-labs/coderag/internal/pipeline"
	"github.com/ossara-labs/coderag/internal/rerank"
	"github.com/ossara-labs/coderag/internal/scanner"
	"github.com/ossara-labs/coderag/internal/store"
)

// dataDirName is where coderag keeps its per-repository index state: the
// BM25 index, the in-memory store's snapshot, and the ingest writer lock.
const dataDirName = ".coderag"

// deps is every component wired up from a loaded Config, shared by the
// index, search, and status subcommands.
type deps struct {
	cfg         *config.Config
	root        string
	dataDir     string
	embedder    embed.Embedder
	vectorStore store.VectorStore
	bm25        store.BM25Index
	graphIndex  *graph.Index
	engine      *pipeline.Engine
}

// resolveRoot finds the repository root, defaulting to the current
// directory, and loads its layered configuration.
func resolveRoot(path string) (root string, cfg *config.Config, err error) {
	root, err = config.FindProjectRoot(path)
	if err != nil {
		root, err = filepath.Abs(path)
		if err != nil {
			return "", nil, err
		}
	}
	cfg, err = config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("load config: %w", err)
	}
	return root, cfg, nil
}

// wireDeps constructs every pipeline dependency named by cfg: the embedder
// (C2), the vector store (C3, memory or postgres per cfg.VectorStore), the
// BM25 keyword index, the dependency graph (C4), and the search engine
// itself with whichever reranker (C6) cfg.Reranker names.
func wireDeps(ctx context.Context, root string, cfg *config.Config) (*deps, error) {
	dataDir := filepath.Join(root, dataDirName)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ProviderType(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		return nil, fmt.Errorf("construct embedder: %w", err)
	}

	vsCfg := cfg.VectorStore
	if vsCfg.Dimension <= 0 {
		vsCfg.Dimension = embedder.Dimensions()
	}
	if vsCfg.Backend == "" || vsCfg.Backend == "memory" {
		if vsCfg.SnapshotPath == "" {
			vsCfg.SnapshotPath = filepath.Join(dataDir, "vectors.gob")
		}
	}
	vectorStore, err := store.NewVectorStore(ctx, vsCfg)
	if err != nil {
		return nil, fmt.Errorf("construct vector store: %w", err)
	}

	bm25Base := filepath.Join(dataDir, "bm25")
	backend := store.BM25Backend(cfg.Search.BM25Backend)
	if backend == "" {
		if detected := store.DetectBM25Backend(bm25Base); detected != "" {
			backend = detected
		} else {
			backend = store.BM25BackendSQLite
		}
	}
	bm25, err := store.NewBM25IndexWithBackend(bm25Base, store.DefaultBM25Config(), string(backend))
	if err != nil {
		return nil, fmt.Errorf("construct bm25 index: %w", err)
	}

	graphIndex := graph.NewIndex(nil)

	mode := rerank.ParseMode(cfg.Reranker.Mode)

	var provider llm.Provider
	if mode == rerank.ModeLLMJudge && cfg.LLM.Provider != "" {
		provider, err = llm.NewProvider(llm.ProviderName(cfg.LLM.Provider), cfg.LLM.Model)
		if err != nil {
			return nil, fmt.Errorf("construct llm provider: %w", err)
		}
	}

	reranker, err := rerank.New(ctx, mode, provider, cfg.LLM.Model, rerank.DefaultCrossEncoderConfig())
	if err != nil {
		return nil, fmt.Errorf("construct reranker: %w", err)
	}

	weights := pipeline.DefaultWeights()
	engine, err := pipeline.New(embedder, vectorStore,
		pipeline.WithGraph(graphIndex),
		pipeline.WithBM25(bm25, weights),
		pipeline.WithReranker(mode, reranker),
	)
	if err != nil {
		return nil, fmt.Errorf("construct pipeline engine: %w", err)
	}

	return &deps{
		cfg:         cfg,
		root:        root,
		dataDir:     dataDir,
		embedder:    embedder,
		vectorStore: vectorStore,
		bm25:        bm25,
		graphIndex:  graphIndex,
		engine:      engine,
	}, nil
}

// coordinator builds the ingest Coordinator for this repository's deps.
func (d *deps) coordinator(repositoryID string) (*ingest.Coordinator, error) {
	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("construct scanner: %w", err)
	}
	return ingest.New(ingest.Config{
		RepositoryID: repositoryID,
		RootPath:     d.root,
		LockPath:     filepath.Join(d.dataDir, ingest.DefaultLockFile),
		Scanner:      sc,
		CodeChunker:  chunk.NewCodeChunker(),
		MDChunker:    chunk.NewMarkdownChunker(),
		Embedder:     d.embedder,
		VectorStore:  d.vectorStore,
		BM25:         d.bm25,
		GraphIndex:   d.graphIndex,
	})
}

func repositoryID(root string) string {
	return filepath.Base(root)
}

// close releases every backing resource, persisting the memory vector
// store's snapshot and the BM25 index's on-disk state in the process.
func (d *deps) close(ctx context.Context) {
	if d.vectorStore != nil {
		_ = d.vectorStore.Close(ctx)
	}
	if d.bm25 != nil {
		_ = d.bm25.Close()
	}
	if d.embedder != nil {
		_ = d.embedder.Close()
	}
}

package store

import (
	"context"
	"fmt"

	"github.com/ossara-labs/coderag/internal/config"
)

// NewVectorStore selects and initializes the C3 vector store backend named
// by cfg.Backend, mirroring the factory-selection pattern the BM25 side uses
// in NewBM25IndexWithBackend. The returned store has already had Init called.
func NewVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (VectorStore, error) {
	switch cfg.Backend {
	case "postgres":
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("store: vector_store.postgres_dsn is required for backend \"postgres\"")
		}
		s := NewPostgresStore(PostgresConfig{
			ConnString: cfg.PostgresDSN,
			Dimension:  cfg.Dimension,
		})
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("store: init postgres backend: %w", err)
		}
		return s, nil
	case "memory", "":
		s := NewInMemoryStore(InMemoryConfig{
			Dimension:    cfg.Dimension,
			SnapshotPath: cfg.SnapshotPath,
		})
		if err := s.Init(ctx); err != nil {
			return nil, fmt.Errorf("store: init memory backend: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("store: unknown vector_store.backend %q", cfg.Backend)
	}
}

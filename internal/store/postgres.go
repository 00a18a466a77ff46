package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/ossara-labs/coderag/internal/chunk"
)

// PostgresConfig wires a PostgresStore's connection and declared dimension,
// grounded on seanblong-reposearch's store.New/Migrate shape.
type PostgresConfig struct {
	ConnString string
	Dimension  int
	Model      string

	// MaxConns bounds the pool's connection count; 0 leaves the pgx default.
	MaxConns int32
}

// PostgresStore is the external indexed VectorStore backend: embeddings and
// chunk metadata live in Postgres via pgvector, with search pushed down to
// an ORDER BY cosine_distance SQL query rather than scanned in process.
type PostgresStore struct {
	cfg  PostgresConfig
	pool *pgxpool.Pool

	initialized     bool
	reindexRequired bool
}

// NewPostgresStore constructs a store that is not yet usable until Init
// succeeds.
func NewPostgresStore(cfg PostgresConfig) *PostgresStore {
	return &PostgresStore{cfg: cfg}
}

// Init opens the connection pool, ensures the pgvector extension and schema
// exist, and reconciles the store_metadata row against the configured
// dimension/model. A mismatch does not fail Init; it marks the store
// reindex-required, mirroring InMemoryStore's snapshot-mismatch handling.
func (s *PostgresStore) Init(ctx context.Context) error {
	pcfg, err := pgxpool.ParseConfig(s.cfg.ConnString)
	if err != nil {
		return &ErrStoreIO{Op: "connect", Cause: err}
	}
	if s.cfg.MaxConns > 0 {
		pcfg.MaxConns = s.cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return &ErrStoreIO{Op: "connect", Cause: err}
	}

	if err := s.ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return &ErrStoreIO{Op: "migrate", Cause: err}
	}

	var dim int
	var model string
	row := pool.QueryRow(ctx, `SELECT dimension, model FROM store_metadata WHERE id = 1`)
	switch err := row.Scan(&dim, &model); {
	case err == pgx.ErrNoRows:
		now := time.Now()
		_, err := pool.Exec(ctx,
			`INSERT INTO store_metadata (id, dimension, model, created_at, updated_at) VALUES (1, $1, $2, $3, $3)`,
			s.cfg.Dimension, s.cfg.Model, now)
		if err != nil {
			pool.Close()
			return &ErrStoreIO{Op: "migrate", Cause: err}
		}
	case err != nil:
		pool.Close()
		return &ErrStoreIO{Op: "load", Cause: err}
	default:
		if dim != s.cfg.Dimension || model != s.cfg.Model {
			s.reindexRequired = true
		}
	}

	s.pool = pool
	s.initialized = true
	return nil
}

// ensureSchema creates the chunks/store_metadata tables and the pgvector
// extension if they do not already exist, matching
// fbrzx-airplane-chat/seanblong-reposearch's idempotent migration style.
func (s *PostgresStore) ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS chunks (
	id           TEXT PRIMARY KEY,
	seq          BIGSERIAL,
	repository   TEXT NOT NULL DEFAULT '',
	filepath     TEXT NOT NULL,
	language     TEXT,
	node_type    TEXT,
	name         TEXT,
	content      TEXT,
	raw_content  TEXT,
	context      TEXT,
	start_line   INT,
	end_line     INT,
	imports      TEXT[],
	exports      TEXT[],
	types        TEXT[],
	metadata     JSONB,
	embedding    vector(%[1]d) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS chunks_repository_idx ON chunks (repository);
CREATE INDEX IF NOT EXISTS chunks_filepath_idx ON chunks (filepath);

CREATE TABLE IF NOT EXISTS store_metadata (
	id         INT PRIMARY KEY,
	dimension  INT NOT NULL,
	model      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_indexes
		WHERE schemaname = current_schema() AND indexname = 'chunks_embedding_idx'
	) THEN
		EXECUTE 'CREATE INDEX chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);';
	END IF;
EXCEPTION WHEN OTHERS THEN
	-- ivfflat needs rows to train on; skip it on an empty table and let a
	-- later reindex pick it up.
	NULL;
END
$$;
`
	_, err := pool.Exec(ctx, fmt.Sprintf(stmt, s.cfg.Dimension))
	return err
}

// Close releases the connection pool. Postgres already durably commits each
// statement, so Close has no additional flush to perform.
func (s *PostgresStore) Close(ctx context.Context) error {
	if s.pool != nil {
		s.pool.Close()
	}
	s.initialized = false
	return nil
}

// Add upserts entries by id inside one transaction.
func (s *PostgresStore) Add(ctx context.Context, entries []VectorEntry) error {
	if !s.initialized {
		return &ErrNotInitialized{}
	}
	if s.reindexRequired {
		return &ErrReindexRequired{ConfiguredDimension: s.cfg.Dimension, ConfiguredModel: s.cfg.Model}
	}
	for _, e := range entries {
		if len(e.Embedding) != s.cfg.Dimension {
			return &ErrDimensionMismatch{Expected: s.cfg.Dimension, Got: len(e.Embedding)}
		}
	}
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &ErrStoreIO{Op: "add", Cause: err}
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	const upsert = `
INSERT INTO chunks (
	id, repository, filepath, language, node_type, name, content, raw_content, context,
	start_line, end_line, imports, exports, types, metadata, embedding, created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17
)
ON CONFLICT (id) DO UPDATE SET
	repository  = EXCLUDED.repository,
	filepath    = EXCLUDED.filepath,
	language    = EXCLUDED.language,
	node_type   = EXCLUDED.node_type,
	name        = EXCLUDED.name,
	content     = EXCLUDED.content,
	raw_content = EXCLUDED.raw_content,
	context     = EXCLUDED.context,
	start_line  = EXCLUDED.start_line,
	end_line    = EXCLUDED.end_line,
	imports     = EXCLUDED.imports,
	exports     = EXCLUDED.exports,
	types       = EXCLUDED.types,
	metadata    = EXCLUDED.metadata,
	embedding   = EXCLUDED.embedding,
	updated_at  = EXCLUDED.updated_at;`

	for _, e := range entries {
		c := e.Chunk
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return &ErrStoreIO{Op: "add", Cause: err}
		}
		_, err = tx.Exec(ctx, upsert,
			e.ID, e.Repository, c.FilePath, c.Language, string(c.NodeType), c.Name,
			c.Content, c.RawContent, c.Context, c.StartLine, c.EndLine,
			c.Imports, c.Exports, c.Types, metaJSON, pgvector.NewVector(e.Embedding), now,
		)
		if err != nil {
			return &ErrStoreIO{Op: "add", Cause: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &ErrStoreIO{Op: "add", Cause: err}
	}
	return s.touchMetadata(ctx, now)
}

func (s *PostgresStore) touchMetadata(ctx context.Context, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE store_metadata SET updated_at = $1 WHERE id = 1`, at)
	if err != nil {
		return &ErrStoreIO{Op: "add", Cause: err}
	}
	return nil
}

// Search pushes top-K cosine similarity down to Postgres via the `<=>`
// cosine-distance operator, ordering by score descending with `seq` as the
// stable insertion-order tiebreak.
func (s *PostgresStore) Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]ScoredEntry, error) {
	if !s.initialized {
		return nil, &ErrNotInitialized{}
	}
	if len(queryVector) != s.cfg.Dimension {
		return nil, &ErrDimensionMismatch{Expected: s.cfg.Dimension, Got: len(queryVector)}
	}
	if opts.TopK <= 0 {
		return nil, nil
	}

	vec := pgvector.NewVector(queryVector)
	var where strings.Builder
	where.WriteString("TRUE")
	args := []any{vec}
	argN := 2
	if opts.Repository != "" {
		where.WriteString(fmt.Sprintf(" AND repository = $%d", argN))
		args = append(args, opts.Repository)
		argN++
	}

	query := fmt.Sprintf(`
SELECT id, repository, filepath, language, node_type, name, content, raw_content, context,
       start_line, end_line, imports, exports, types, metadata, embedding,
       1 - (embedding <=> $1) AS score
FROM chunks
WHERE %s
ORDER BY score DESC, seq ASC
LIMIT $%d`, where.String(), argN)
	args = append(args, opts.TopK)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &ErrStoreIO{Op: "search", Cause: err}
	}
	defer rows.Close()

	var out []ScoredEntry
	for rows.Next() {
		entry, score, err := scanEntry(rows)
		if err != nil {
			return nil, &ErrStoreIO{Op: "search", Cause: err}
		}
		if score < opts.MinScore {
			continue
		}
		out = append(out, ScoredEntry{Entry: entry, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, &ErrStoreIO{Op: "search", Cause: err}
	}
	return out, nil
}

// Delete removes entries by id.
func (s *PostgresStore) Delete(ctx context.Context, ids []string) (int, error) {
	if !s.initialized {
		return 0, &ErrNotInitialized{}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, &ErrStoreIO{Op: "delete", Cause: err}
	}
	return int(tag.RowsAffected()), nil
}

// DeleteByFilepath removes every entry whose chunk belongs to path.
func (s *PostgresStore) DeleteByFilepath(ctx context.Context, path string) (int, error) {
	if !s.initialized {
		return 0, &ErrNotInitialized{}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE filepath = $1`, path)
	if err != nil {
		return 0, &ErrStoreIO{Op: "delete", Cause: err}
	}
	return int(tag.RowsAffected()), nil
}

// GetByFilepath returns every entry whose chunk belongs to path.
func (s *PostgresStore) GetByFilepath(ctx context.Context, path string) ([]VectorEntry, error) {
	if !s.initialized {
		return nil, &ErrNotInitialized{}
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, repository, filepath, language, node_type, name, content, raw_content, context,
       start_line, end_line, imports, exports, types, metadata, embedding, 0
FROM chunks WHERE filepath = $1 ORDER BY seq ASC`, path)
	if err != nil {
		return nil, &ErrStoreIO{Op: "get", Cause: err}
	}
	defer rows.Close()

	var out []VectorEntry
	for rows.Next() {
		entry, _, err := scanEntry(rows)
		if err != nil {
			return nil, &ErrStoreIO{Op: "get", Cause: err}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// GetStats returns the store's metadata plus live entry count.
func (s *PostgresStore) GetStats(ctx context.Context) (Stats, error) {
	if !s.initialized {
		return Stats{}, &ErrNotInitialized{}
	}
	var dim int
	var model string
	var createdAt, updatedAt time.Time
	row := s.pool.QueryRow(ctx, `SELECT dimension, model, created_at, updated_at FROM store_metadata WHERE id = 1`)
	if err := row.Scan(&dim, &model, &createdAt, &updatedAt); err != nil {
		return Stats{}, &ErrStoreIO{Op: "stats", Cause: err}
	}
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM chunks`).Scan(&total); err != nil {
		return Stats{}, &ErrStoreIO{Op: "stats", Cause: err}
	}
	return Stats{
		StoreMetadata: StoreMetadata{Dimension: dim, Model: model, CreatedAt: createdAt, UpdatedAt: updatedAt},
		TotalEntries:  total,
	}, nil
}

// rowScanner abstracts pgx.Rows so scanEntry works for any query projecting
// the same 17 columns in the same order.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry decodes one chunks row (plus a trailing score column) into a
// VectorEntry and its similarity score.
func scanEntry(row rowScanner) (VectorEntry, float32, error) {
	var e VectorEntry
	var c chunk.Chunk
	var nodeType string
	var metaJSON []byte
	var vec pgvector.Vector
	var score float32

	err := row.Scan(
		&e.ID, &e.Repository, &c.FilePath, &c.Language, &nodeType, &c.Name,
		&c.Content, &c.RawContent, &c.Context, &c.StartLine, &c.EndLine,
		&c.Imports, &c.Exports, &c.Types, &metaJSON, &vec, &score,
	)
	if err != nil {
		return VectorEntry{}, 0, err
	}

	c.ID = e.ID
	c.NodeType = chunk.NodeKind(nodeType)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			return VectorEntry{}, 0, err
		}
	}
	e.Chunk = c
	e.Embedding = vec.Slice()
	return e, score, nil
}

var _ VectorStore = (*PostgresStore)(nil)

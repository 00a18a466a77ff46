package store

import (
	"context"
	"encoding/gob"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// candidateFanout controls how many extra candidates the HNSW graph is
// asked for beyond topK, before exact cosine rescoring narrows them down.
// Over-fetching trades a little search time for ranking fidelity against an
// approximate index.
const candidateFanout = 8

// minCandidateFetch is the floor on how many nodes to ask the graph for,
// so small topK values don't starve the rescore step of candidates.
const minCandidateFetch = 64

// InMemoryConfig configures an InMemoryStore.
type InMemoryConfig struct {
	Dimension int
	Model     string

	// SnapshotPath, if set, is where Init loads from and Close persists to.
	// Empty means the store is purely in-memory for the process lifetime.
	SnapshotPath string
}

// InMemoryStore is the default VectorStore: an in-process HNSW-accelerated
// index with exact cosine rescoring of ANN candidates, snapshotted to a
// single gob-encoded file.
type InMemoryStore struct {
	mu  sync.RWMutex
	cfg InMemoryConfig

	graph   *hnsw.Graph[uint64]
	entries []*VectorEntry // insertion order; nil marks a tombstoned slot
	idIndex map[string]int
	keyToID map[uint64]string
	nextKey uint64

	meta            StoreMetadata
	initialized     bool
	reindexRequired bool
}

// snapshot is the on-disk shape of a persisted store, matching the format
// {entries, dimension, metadata{createdAt, updatedAt, model}}.
type snapshot struct {
	Entries   []VectorEntry
	Dimension int
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInMemoryStore constructs a store that is not yet usable until Init
// succeeds.
func NewInMemoryStore(cfg InMemoryConfig) *InMemoryStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 32
	graph.Ml = 0.25

	return &InMemoryStore{
		cfg:     cfg,
		graph:   graph,
		idIndex: make(map[string]int),
		keyToID: make(map[uint64]string),
	}
}

// Init loads a snapshot from cfg.SnapshotPath if one exists, or starts
// empty. A dimension/model mismatch against a loaded snapshot does not fail
// Init; it marks the store reindex-required, which Add then refuses.
func (s *InMemoryStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.meta = StoreMetadata{Dimension: s.cfg.Dimension, Model: s.cfg.Model, CreatedAt: now, UpdatedAt: now}

	if s.cfg.SnapshotPath == "" {
		s.initialized = true
		return nil
	}

	f, err := os.Open(s.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			s.initialized = true
			return nil
		}
		return &ErrStoreIO{Op: "load", Cause: err}
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return &ErrStoreIO{Op: "load", Cause: err}
	}

	if snap.Dimension != s.cfg.Dimension || snap.Model != s.cfg.Model {
		slog.Warn("vector store snapshot configuration mismatch, reindex required",
			slog.Int("snapshot_dimension", snap.Dimension), slog.Int("configured_dimension", s.cfg.Dimension),
			slog.String("snapshot_model", snap.Model), slog.String("configured_model", s.cfg.Model))
		s.reindexRequired = true
		s.initialized = true
		return nil
	}

	s.meta.CreatedAt = snap.CreatedAt
	s.meta.UpdatedAt = snap.UpdatedAt
	for i := range snap.Entries {
		s.insertLocked(&snap.Entries[i])
	}
	s.initialized = true
	return nil
}

// Close persists the current state atomically (write to temp, then rename)
// when a snapshot path is configured.
func (s *InMemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.SnapshotPath == "" {
		s.initialized = false
		return nil
	}

	snap := snapshot{Dimension: s.cfg.Dimension, Model: s.cfg.Model, CreatedAt: s.meta.CreatedAt, UpdatedAt: s.meta.UpdatedAt}
	for _, e := range s.entries {
		if e != nil {
			snap.Entries = append(snap.Entries, *e)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.cfg.SnapshotPath), 0o755); err != nil {
		return &ErrStoreIO{Op: "save", Cause: err}
	}
	tmp := s.cfg.SnapshotPath + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return &ErrStoreIO{Op: "save", Cause: err}
	}
	if err := gob.NewEncoder(f).Encode(snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return &ErrStoreIO{Op: "save", Cause: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &ErrStoreIO{Op: "save", Cause: err}
	}
	if err := os.Rename(tmp, s.cfg.SnapshotPath); err != nil {
		os.Remove(tmp)
		return &ErrStoreIO{Op: "save", Cause: err}
	}

	s.initialized = false
	return nil
}

// Add upserts entries by id. Refuses to write while the store is marked
// reindex-required by a mismatched snapshot load.
func (s *InMemoryStore) Add(ctx context.Context, entries []VectorEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return &ErrNotInitialized{}
	}
	if s.reindexRequired {
		return &ErrReindexRequired{
			ConfiguredDimension: s.cfg.Dimension, ConfiguredModel: s.cfg.Model,
		}
	}
	for _, e := range entries {
		if len(e.Embedding) != s.cfg.Dimension {
			return &ErrDimensionMismatch{Expected: s.cfg.Dimension, Got: len(e.Embedding)}
		}
	}
	for i := range entries {
		s.insertLocked(&entries[i])
	}
	s.meta.UpdatedAt = time.Now()
	return nil
}

// insertLocked upserts a single entry. Caller holds s.mu.
func (s *InMemoryStore) insertLocked(e *VectorEntry) {
	cp := *e
	if idx, exists := s.idIndex[e.ID]; exists {
		if old := s.entries[idx]; old != nil {
			// lazy delete: orphan the old graph node rather than removing it,
			// since coder/hnsw can't safely delete its last remaining node.
			for k, id := range s.keyToID {
				if id == e.ID {
					delete(s.keyToID, k)
					break
				}
			}
		}
		s.entries[idx] = &cp
	} else {
		s.idIndex[e.ID] = len(s.entries)
		s.entries = append(s.entries, &cp)
	}

	vec := make([]float32, len(e.Embedding))
	copy(vec, e.Embedding)
	normalizeVectorInPlace(vec)
	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, vec))
	s.keyToID[key] = e.ID
}

// Search returns entries ranked by cosine similarity, using the HNSW graph
// to narrow candidates and an exact rescore to guarantee ranking fidelity.
func (s *InMemoryStore) Search(ctx context.Context, queryVector []float32, opts SearchOptions) ([]ScoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, &ErrNotInitialized{}
	}
	if len(queryVector) != s.cfg.Dimension {
		return nil, &ErrDimensionMismatch{Expected: s.cfg.Dimension, Got: len(queryVector)}
	}
	if opts.TopK <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(queryVector))
	copy(normalized, queryVector)
	normalizeVectorInPlace(normalized)

	fetch := opts.TopK * candidateFanout
	if fetch < minCandidateFetch {
		fetch = minCandidateFetch
	}
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	candidates := make(map[int]bool)
	if fetch > 0 {
		for _, node := range s.graph.Search(normalized, fetch) {
			if id, ok := s.keyToID[node.Key]; ok {
				if idx, ok := s.idIndex[id]; ok && s.entries[idx] != nil {
					candidates[idx] = true
				}
			}
		}
	}
	// Full scan fallback when the ANN graph couldn't supply enough live
	// candidates (small stores, heavy tombstoning) so ranking stays exact.
	if len(candidates) < fetch || fetch == s.graph.Len() {
		candidates = make(map[int]bool, len(s.entries))
		for i, e := range s.entries {
			if e != nil {
				candidates[i] = true
			}
		}
	}

	type scored struct {
		idx   int
		score float32
	}
	ordered := make([]int, 0, len(candidates))
	for idx := range candidates {
		ordered = append(ordered, idx)
	}
	sort.Ints(ordered)

	var results []scored
	for _, idx := range ordered {
		e := s.entries[idx]
		if opts.Repository != "" && e.Repository != opts.Repository {
			continue
		}
		score := cosineSimilarity(queryVector, e.Embedding)
		if score < opts.MinScore {
			continue
		}
		results = append(results, scored{idx: idx, score: score})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}

	out := make([]ScoredEntry, len(results))
	for i, r := range results {
		out[i] = ScoredEntry{Entry: *s.entries[r.idx], Score: r.score}
	}
	return out, nil
}

// Delete removes entries by id.
func (s *InMemoryStore) Delete(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, &ErrNotInitialized{}
	}

	count := 0
	for _, id := range ids {
		idx, exists := s.idIndex[id]
		if !exists || s.entries[idx] == nil {
			continue
		}
		s.entries[idx] = nil
		delete(s.idIndex, id)
		for k, mappedID := range s.keyToID {
			if mappedID == id {
				delete(s.keyToID, k)
				break
			}
		}
		count++
	}
	return count, nil
}

// DeleteByFilepath removes every entry whose chunk belongs to path.
func (s *InMemoryStore) DeleteByFilepath(ctx context.Context, path string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, &ErrNotInitialized{}
	}

	count := 0
	for idx, e := range s.entries {
		if e == nil || e.Chunk.FilePath != path {
			continue
		}
		s.entries[idx] = nil
		delete(s.idIndex, e.ID)
		for k, mappedID := range s.keyToID {
			if mappedID == e.ID {
				delete(s.keyToID, k)
				break
			}
		}
		count++
	}
	return count, nil
}

// GetByFilepath returns every live entry whose chunk belongs to path.
func (s *InMemoryStore) GetByFilepath(ctx context.Context, path string) ([]VectorEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return nil, &ErrNotInitialized{}
	}

	var out []VectorEntry
	for _, e := range s.entries {
		if e != nil && e.Chunk.FilePath == path {
			out = append(out, *e)
		}
	}
	return out, nil
}

// GetStats returns the store's metadata plus the live entry count.
func (s *InMemoryStore) GetStats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return Stats{}, &ErrNotInitialized{}
	}

	total := 0
	for _, e := range s.entries {
		if e != nil {
			total++
		}
	}
	return Stats{StoreMetadata: s.meta, TotalEntries: total}, nil
}

var _ VectorStore = (*InMemoryStore)(nil)

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// cosineSimilarity computes dot(a,b)/(|a|*|b|); if either magnitude is
// zero, the score is 0.
func cosineSimilarity(a, b []float32) float32 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}

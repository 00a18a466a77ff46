package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the embedding model used when none is configured.
const DefaultGeminiModel = "text-embedding-004"

// GeminiConfig configures the Gemini embedding backend.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	TaskType   string // e.g. "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY"
}

// DefaultGeminiConfig returns sane defaults for the Gemini embedding backend.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		Model:      DefaultGeminiModel,
		Dimensions: DefaultDimensions,
		TaskType:   "RETRIEVAL_DOCUMENT",
	}
}

// GeminiEmbedder generates embeddings via the Gemini API (google.golang.org/genai).
type GeminiEmbedder struct {
	mu     sync.RWMutex
	client *genai.Client
	cfg    GeminiConfig
	closed bool
}

// NewGeminiEmbedder creates a Gemini-backed embedder.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig) (*GeminiEmbedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.TaskType == "" {
		cfg.TaskType = "RETRIEVAL_DOCUMENT"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	return &GeminiEmbedder{client: client, cfg: cfg}, nil
}

// Embed generates an embedding for a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, errors.New("gemini: embedder is closed")
	}
	e.mu.RUnlock()

	econfig := &genai.EmbedContentConfig{TaskType: e.cfg.TaskType}
	resp, err := e.client.Models.EmbedContent(ctx, e.cfg.Model, genai.Text(text), econfig)
	if err != nil {
		return nil, fmt.Errorf("gemini: embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 {
		return nil, errors.New("gemini: no embedding returned")
	}

	return normalizeVector(resp.Embeddings[0].Values), nil
}

// EmbedBatch generates embeddings for multiple texts, preserving input order.
// The Gemini SDK has no batch embedding call, so requests are issued sequentially;
// a failure on any text fails the whole batch per the bulk-or-nothing contract.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("gemini: embed text %d: %w", i, err)
		}
		results[i] = vec
	}
	return results, nil
}

// Dimensions returns the configured embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.cfg.Dimensions
}

// ModelName returns the model identifier.
func (e *GeminiEmbedder) ModelName() string {
	return e.cfg.Model
}

// Available reports whether the embedder can still be used.
func (e *GeminiEmbedder) Available(_ context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close releases resources held by the embedder.
func (e *GeminiEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

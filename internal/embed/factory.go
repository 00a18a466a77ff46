package embed

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// ProviderType represents an embedding provider
type ProviderType string

const (
	// ProviderOllama uses Ollama's local HTTP API for embeddings (default, cross-platform)
	ProviderOllama ProviderType = "ollama"

	// ProviderGemini uses the Gemini API for embeddings
	ProviderGemini ProviderType = "gemini"

	// ProviderOpenAI uses the OpenAI (or an OpenAI-compatible) embeddings endpoint
	ProviderOpenAI ProviderType = "openai"

	// ProviderStatic uses hash-based embeddings (no network, reduced semantic quality)
	ProviderStatic ProviderType = "static"
)

// NewEmbedder creates an embedder based on provider type.
// The CODERAG_EMBEDDER environment variable can override the provider:
//   - "ollama": local Ollama server (default)
//   - "gemini": Gemini API
//   - "openai": OpenAI or an OpenAI-compatible server
//   - "static": hash-based fallback, no network required
//
// Unlike a model-download backend, none of these providers silently fall back
// to another provider on failure: an explicit or default selection that
// can't be reached returns an error naming what to fix.
//
// Query embedding caching is enabled by default (saves 50-200ms per repeated
// query). Set CODERAG_EMBED_CACHE=false to disable caching.
func NewEmbedder(ctx context.Context, provider ProviderType, model string) (Embedder, error) {
	if envProvider := os.Getenv("CODERAG_EMBEDDER"); envProvider != "" {
		provider = ParseProvider(envProvider)
	}

	var embedder Embedder
	var err error

	switch provider {
	case ProviderGemini:
		embedder, err = newGeminiEmbedder(ctx, model)
	case ProviderOpenAI:
		embedder, err = newOpenAIEmbedder(ctx, model)
	case ProviderStatic:
		embedder, err = NewStaticEmbedder(), nil
	default:
		embedder, err = newOllamaEmbedder(ctx, model)
	}

	if err != nil {
		return nil, err
	}

	if !isCacheDisabled() {
		embedder = NewCachedEmbedderWithDefaults(embedder)
	}

	return embedder, nil
}

// isCacheDisabled checks if embedding cache is disabled via environment.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("CODERAG_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// newOllamaEmbedder creates an Ollama embedder, applying environment overrides.
func newOllamaEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOllamaConfig()
	if model != "" && isOllamaModelName(model) {
		cfg.Model = model
	}
	if host := os.Getenv("CODERAG_OLLAMA_HOST"); host != "" {
		cfg.Host = host
	}
	if modelOverride := os.Getenv("CODERAG_OLLAMA_MODEL"); modelOverride != "" {
		cfg.Model = modelOverride
	}
	if timeoutStr := os.Getenv("CODERAG_OLLAMA_TIMEOUT"); timeoutStr != "" {
		if timeout, err := time.ParseDuration(timeoutStr); err == nil {
			cfg.Timeout = timeout
		}
	}

	embedder, err := NewOllamaEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w\n\nTo fix:\n  1. Start Ollama: ollama serve\n  2. Or use the static backend: CODERAG_EMBEDDER=static coderag index", err)
	}
	return embedder, nil
}

// newGeminiEmbedder creates a Gemini embedder, applying environment overrides.
func newGeminiEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultGeminiConfig()
	if model != "" {
		cfg.Model = model
	}
	if key := os.Getenv("CODERAG_GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.APIKey = key
	}

	embedder, err := NewGeminiEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini unavailable: %w\n\nTo fix:\n  1. Set CODERAG_GEMINI_API_KEY\n  2. Or use the static backend: CODERAG_EMBEDDER=static coderag index", err)
	}
	return embedder, nil
}

// newOpenAIEmbedder creates an OpenAI-compatible embedder, applying environment overrides.
func newOpenAIEmbedder(ctx context.Context, model string) (Embedder, error) {
	cfg := DefaultOpenAIConfig()
	if model != "" {
		cfg.Model = model
	}
	if key := os.Getenv("CODERAG_OPENAI_API_KEY"); key != "" {
		cfg.APIKey = key
	} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if baseURL := os.Getenv("CODERAG_OPENAI_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	embedder, err := NewOpenAIEmbedder(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("openai unavailable: %w\n\nTo fix:\n  1. Set CODERAG_OPENAI_API_KEY\n  2. Or use the static backend: CODERAG_EMBEDDER=static coderag index", err)
	}
	return embedder, nil
}

// ParseProvider converts a string to ProviderType
func ParseProvider(s string) ProviderType {
	switch strings.ToLower(s) {
	case "gemini":
		return ProviderGemini
	case "openai":
		return ProviderOpenAI
	case "static":
		return ProviderStatic
	case "ollama":
		return ProviderOllama
	default:
		return ProviderOllama
	}
}

// String returns the string representation of ProviderType
func (p ProviderType) String() string {
	return string(p)
}

// isOllamaModelName checks if a model name looks like an Ollama model
// Ollama models have a ":" tag (e.g., "qwen3-embedding:8b")
// GGUF models have version numbers (e.g., "nomic-embed-text-v1.5")
func isOllamaModelName(model string) bool {
	if strings.Contains(model, ":") {
		return true
	}
	if strings.Contains(model, "-v") && (strings.Contains(model, ".") || strings.HasSuffix(model, "-v1") || strings.HasSuffix(model, "-v2")) {
		return false
	}
	if strings.HasSuffix(strings.ToLower(model), ".gguf") {
		return false
	}
	return false
}

// ValidProviders returns all valid provider names
func ValidProviders() []string {
	return []string{
		string(ProviderOllama),
		string(ProviderGemini),
		string(ProviderOpenAI),
		string(ProviderStatic),
	}
}

// IsValidProvider checks if a provider name is valid
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

// EmbedderInfo contains information about an embedder
type EmbedderInfo struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo returns information about an embedder
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	info := EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.inner
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = ProviderOllama
	case *GeminiEmbedder:
		info.Provider = ProviderGemini
	case *OpenAIEmbedder:
		info.Provider = ProviderOpenAI
	default:
		info.Provider = ProviderStatic
	}

	return info
}

// MustNewEmbedder creates an embedder and panics on failure
// Use only in tests or initialization code where failure is fatal
func MustNewEmbedder(ctx context.Context, provider ProviderType, model string) Embedder {
	embedder, err := NewEmbedder(ctx, provider, model)
	if err != nil {
		panic(fmt.Sprintf("failed to create embedder: %v", err))
	}
	return embedder
}

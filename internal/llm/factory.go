package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderName identifies an LLM backend.
type ProviderName string

const (
	// ProviderAnthropic uses the hosted Anthropic Messages API.
	ProviderAnthropic ProviderName = "anthropic"

	// ProviderOpenAI uses the OpenAI (or an OpenAI-compatible) Chat
	// Completions endpoint.
	ProviderOpenAI ProviderName = "openai"
)

// NewProvider creates a Provider based on name. The CODERAG_LLM environment
// variable overrides the selection:
//   - "anthropic": hosted Claude models (default)
//   - "openai": OpenAI or an OpenAI-compatible server
//
// Unlike the embedding factory there is no no-network fallback provider:
// rerank's llm-judge mode and any other LLM-backed component must either
// reach a configured backend or be skipped by the caller.
func NewProvider(name ProviderName, model string) (Provider, error) {
	if envProvider := os.Getenv("CODERAG_LLM"); envProvider != "" {
		name = ParseProviderName(envProvider)
	}

	switch name {
	case ProviderOpenAI:
		return newOpenAIProvider(model)
	default:
		return newAnthropicProvider(model)
	}
}

func newAnthropicProvider(model string) (Provider, error) {
	cfg := DefaultAnthropicConfig()
	if model != "" {
		cfg.Model = model
	}
	if key := os.Getenv("CODERAG_ANTHROPIC_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if baseURL := os.Getenv("CODERAG_ANTHROPIC_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	provider, err := NewAnthropicProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("anthropic unavailable: %w\n\nTo fix:\n  1. Set ANTHROPIC_API_KEY or CODERAG_ANTHROPIC_API_KEY\n  2. Or select another provider: CODERAG_LLM=openai", err)
	}
	return provider, nil
}

func newOpenAIProvider(model string) (Provider, error) {
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

	provider, err := NewOpenAIProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("openai unavailable: %w\n\nTo fix:\n  1. Set OPENAI_API_KEY or CODERAG_OPENAI_API_KEY\n  2. Or select another provider: CODERAG_LLM=anthropic", err)
	}
	return provider, nil
}

// ParseProviderName converts a string to a ProviderName, defaulting to
// ProviderAnthropic for unrecognized values.
func ParseProviderName(s string) ProviderName {
	switch strings.ToLower(s) {
	case "openai":
		return ProviderOpenAI
	default:
		return ProviderAnthropic
	}
}

// ValidProviders returns all valid provider names.
func ValidProviders() []string {
	return []string{string(ProviderAnthropic), string(ProviderOpenAI)}
}

// IsValidProvider reports whether s names a known provider.
func IsValidProvider(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range ValidProviders() {
		if lower == p {
			return true
		}
	}
	return false
}

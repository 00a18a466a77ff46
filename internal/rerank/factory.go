package rerank

import (
	"context"
	"fmt"

	"github.com/ossara-labs/coderag/internal/llm"
)

// New creates a Reranker for the given mode. llm-judge requires a non-nil
// provider; cross-encoder dials the configured HTTP server.
func New(ctx context.Context, mode Mode, provider llm.Provider, model string, ceConfig CrossEncoderConfig) (Reranker, error) {
	switch mode {
	case ModeCrossEncoder:
		return NewCrossEncoderReranker(ctx, ceConfig)
	case ModeLLMJudge:
		if provider == nil {
			return nil, fmt.Errorf("rerank: llm-judge mode requires an LLM provider")
		}
		return NewLLMJudgeReranker(provider, model), nil
	default:
		return &NoOpReranker{}, nil
	}
}

// ParseMode converts a string to a Mode, defaulting to ModeNone for
// unrecognized values.
func ParseMode(s string) Mode {
	switch s {
	case string(ModeCrossEncoder):
		return ModeCrossEncoder
	case string(ModeLLMJudge):
		return ModeLLMJudge
	default:
		return ModeNone
	}
}

package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ossara-labs/coderag/internal/llm"
)

// stubProvider is a minimal llm.Provider whose Chat reply is fixed at
// construction, used to drive LLMJudgeReranker without a live backend.
type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Chat(_ context.Context, _ []llm.Message, _ llm.ChatOptions) (string, error) {
	return s.reply, s.err
}

func (s *stubProvider) Stream(_ context.Context, _ []llm.Message, _ llm.ChatOptions) (<-chan llm.StreamDelta, error) {
	ch := make(chan llm.StreamDelta, 1)
	ch <- llm.StreamDelta{Outcome: llm.StreamStopped}
	close(ch)
	return ch, nil
}

func (s *stubProvider) CountTokens(text string) int { return len(text) }

// S3 — reranker fallback: malformed llm-judge output never fails the query.
func TestLLMJudgeReranker_MalformedOutputFallsBackToInputOrder(t *testing.T) {
	provider := &stubProvider{reply: "I cannot comply with this request."}
	r := NewLLMJudgeReranker(provider, "")

	candidates := candsOf("a", "b", "c")
	results, err := r.Rerank(context.Background(), "query", candidates, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Candidate.ID)
	assert.Equal(t, "b", results[1].Candidate.ID)
}

func TestLLMJudgeReranker_ParsesOrderedIndices(t *testing.T) {
	provider := &stubProvider{reply: "Here you go: [3, 1]"}
	r := NewLLMJudgeReranker(provider, "")

	candidates := candsOf("a", "b", "c")
	results, err := r.Rerank(context.Background(), "query", candidates, 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c", results[0].Candidate.ID)
	assert.Equal(t, "a", results[1].Candidate.ID)
}

func TestLLMJudgeReranker_DropsOutOfRangeIndices(t *testing.T) {
	provider := &stubProvider{reply: "[1, 99, 2]"}
	r := NewLLMJudgeReranker(provider, "")

	candidates := candsOf("a", "b")
	results, err := r.Rerank(context.Background(), "query", candidates, 5)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Candidate.ID)
	assert.Equal(t, "b", results[1].Candidate.ID)
}

func TestLLMJudgeReranker_ProviderErrorFallsBack(t *testing.T) {
	provider := &stubProvider{err: assert.AnError}
	r := NewLLMJudgeReranker(provider, "")

	candidates := candsOf("a", "b")
	results, err := r.Rerank(context.Background(), "query", candidates, 0)

	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestLLMJudgeReranker_NeverIntroducesUnknownCandidate(t *testing.T) {
	provider := &stubProvider{reply: "[2, 1]"}
	r := NewLLMJudgeReranker(provider, "")

	candidates := candsOf("x", "y")
	results, err := r.Rerank(context.Background(), "query", candidates, 0)

	require.NoError(t, err)
	for _, res := range results {
		found := false
		for _, c := range candidates {
			if c.ID == res.Candidate.ID {
				found = true
			}
		}
		assert.True(t, found, "result candidate must be present in input")
	}
}

func TestLLMJudgeReranker_EmptyCandidates(t *testing.T) {
	provider := &stubProvider{reply: "[]"}
	r := NewLLMJudgeReranker(provider, "")

	results, err := r.Rerank(context.Background(), "query", nil, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

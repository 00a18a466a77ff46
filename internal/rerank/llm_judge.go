package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ossara-labs/coderag/internal/llm"
)

// jsonArrayPattern extracts the first JSON array literal from free-form LLM
// text, tolerating prose or markdown code fences around it.
var jsonArrayPattern = regexp.MustCompile(`(?s)\[[\s\d,\s]*\]`)

const judgeSystemPrompt = "You are a relevance judge for a code search tool. " +
	"Given a query and a numbered list of candidate snippets, return a JSON " +
	"array of the candidate numbers (1-based) ordered from most to least " +
	"relevant, selecting at most the requested number of candidates. " +
	"Respond with ONLY the JSON array, nothing else."

// LLMJudgeReranker asks a C5 LLM provider to select and order the most
// relevant subset of candidates. It never fails a query over malformed
// backend output: parse failures fall back to the input order truncated to
// topK, matching the corpus's general "never fail a query over a soft
// feature" posture.
type LLMJudgeReranker struct {
	provider llm.Provider
	model    string
}

var _ Reranker = (*LLMJudgeReranker)(nil)

// NewLLMJudgeReranker creates a reranker backed by the given LLM provider.
func NewLLMJudgeReranker(provider llm.Provider, model string) *LLMJudgeReranker {
	return &LLMJudgeReranker{provider: provider, model: model}
}

// Rerank builds a single numbered-candidate prompt, asks the provider to
// judge it, and maps the returned indices back onto the input candidates.
func (r *LLMJudgeReranker) Rerank(ctx context.Context, query string, candidates []Candidate, topK int) ([]Result, error) {
	if len(candidates) == 0 {
		return []Result{}, nil
	}

	limit := topK
	if limit <= 0 {
		limit = len(candidates)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: judgeSystemPrompt},
		{Role: llm.RoleUser, Content: buildJudgePrompt(query, candidates, limit)},
	}

	reply, err := r.provider.Chat(ctx, messages, llm.ChatOptions{Model: r.model})
	if err != nil {
		slog.Warn("llm-judge rerank call failed, falling back to input order", "error", err)
		return identityFallback(candidates, limit), nil
	}

	order, ok := parseJudgeIndices(reply, len(candidates))
	if !ok {
		slog.Warn("llm-judge rerank returned unparseable output, falling back to input order")
		return identityFallback(candidates, limit), nil
	}

	results := make([]Result, 0, len(order))
	for rank, idx := range order {
		if len(results) >= limit {
			break
		}
		score := 1.0 - float64(rank)*(1.0/float64(len(order)+1))
		results = append(results, Result{Index: idx, Score: score, Candidate: candidates[idx]})
	}
	return results, nil
}

// Available reports whether an LLM provider is configured.
// There is no cheap way to probe a chat provider's health without spending
// a request, so this reports true whenever a provider is set and lets Rerank's
// fallback absorb any failure.
func (r *LLMJudgeReranker) Available(_ context.Context) bool { return r.provider != nil }

// Close is a no-op: the LLM provider's lifecycle is owned by its caller.
func (r *LLMJudgeReranker) Close() error { return nil }

func buildJudgePrompt(query string, candidates []Candidate, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n\nSelect and order at most %d of the following candidates by relevance:\n\n", query, limit)
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, truncateSnippet(c.Content, 500))
	}
	return b.String()
}

func truncateSnippet(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// parseJudgeIndices extracts a JSON array of 1-based candidate numbers from
// reply and converts it to 0-based indices, dropping out-of-range or
// duplicate entries. Returns ok=false if no valid array could be recovered.
func parseJudgeIndices(reply string, numCandidates int) ([]int, bool) {
	match := jsonArrayPattern.FindString(reply)
	if match == "" {
		return nil, false
	}

	var raw []int
	if err := json.Unmarshal([]byte(match), &raw); err != nil {
		return nil, false
	}

	seen := make(map[int]bool, len(raw))
	order := make([]int, 0, len(raw))
	for _, n := range raw {
		idx := n - 1
		if idx < 0 || idx >= numCandidates || seen[idx] {
			continue
		}
		seen[idx] = true
		order = append(order, idx)
	}
	if len(order) == 0 {
		return nil, false
	}
	return order, true
}

// identityFallback returns candidates in input order with decreasing
// scores, truncated to limit — the safe disposition whenever llm-judge
// output can't be trusted.
func identityFallback(candidates []Candidate, limit int) []Result {
	n := len(candidates)
	if limit < n {
		n = limit
	}
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		results[i] = Result{Index: i, Score: 1.0 - float64(i)*0.01, Candidate: candidates[i]}
	}
	return results
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when no model is set on ChatOptions/config.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicConfig configures the hosted Anthropic backend.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// DefaultAnthropicConfig reads the API key from ANTHROPIC_API_KEY if set.
func DefaultAnthropicConfig() AnthropicConfig {
	return AnthropicConfig{
		APIKey: os.Getenv("ANTHROPIC_API_KEY"),
		Model:  DefaultAnthropicModel,
	}
}

// AnthropicProvider implements Provider over Anthropic's Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicProvider creates an Anthropic-backed Provider.
func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}, nil
}

// Name identifies this backend.
func (p *AnthropicProvider) Name() string { return "anthropic" }

// Chat sends messages and returns Claude's full reply text.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	params := p.buildParams(messages, opts)

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", classifyError(p.Name(), ctx, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb := block.AsAny(); tb != nil {
			if t, ok := tb.(anthropic.TextBlock); ok {
				text.WriteString(t.Text)
			}
		}
	}
	return text.String(), nil
}

// Stream sends messages and returns a finite channel of text deltas.
func (p *AnthropicProvider) Stream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamDelta, error) {
	params := p.buildParams(messages, opts)

	ch := make(chan StreamDelta, 16)
	go func() {
		defer close(ch)

		stream := p.client.Messages.NewStreaming(ctx, params)
		for stream.Next() {
			event := stream.Current()
			switch variant := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if textDelta, ok := variant.Delta.AsAny().(anthropic.TextDelta); ok {
					ch <- StreamDelta{Text: textDelta.Text}
				}
			}
		}

		if err := stream.Err(); err != nil {
			ch <- StreamDelta{Outcome: StreamError, Err: classifyError(p.Name(), ctx, err)}
			return
		}
		ch <- StreamDelta{Outcome: StreamStopped}
	}()

	return ch, nil
}

// CountTokens approximates Claude's tokenizer with a word-based heuristic
// (roughly 1.3 tokens per word for English prose/code), since anthropic-sdk-go
// does not expose a local tokenizer.
func (p *AnthropicProvider) CountTokens(text string) int {
	return approximateTokenCount(text)
}

func (p *AnthropicProvider) buildParams(messages []Message, opts ChatOptions) anthropic.MessageNewParams {
	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	maxTokens := int64(4096)
	if opts.MaxTokens > 0 {
		maxTokens = int64(opts.MaxTokens)
	}

	var system string
	var msgParams []anthropic.MessageParam
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = m.Content
		case RoleAssistant:
			msgParams = append(msgParams, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			msgParams = append(msgParams, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  msgParams,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	return params
}

// classifyError maps a raw SDK/context error onto one of the LLMError kinds:
// Timeout, RateLimited, UpstreamRefused, Canceled. An error that matches none
// of them is returned wrapped with the provider name, not as an LLMError.
func classifyError(providerName string, ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || ctx.Err() == context.Canceled {
		return &LLMError{Kind: ErrCanceled, Provider: providerName, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return &LLMError{Kind: ErrTimeout, Provider: providerName, Cause: err}
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		return &LLMError{Kind: ErrRateLimited, Provider: providerName, Cause: err}
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "400"):
		return &LLMError{Kind: ErrUpstreamRefused, Provider: providerName, Cause: err}
	default:
		return fmt.Errorf("%s: %w", providerName, err)
	}
}

// approximateTokenCount estimates token count via a word-based heuristic,
// the same order-of-magnitude approach other_examples' bbiangul-go-reason
// uses for its own local token budget (~1.3 tokens per word).
func approximateTokenCount(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(float64(words)*1.3) + 1
}

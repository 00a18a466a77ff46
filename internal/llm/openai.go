package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIChatModel is used when no model is set on ChatOptions/config.
const DefaultOpenAIChatModel = "gpt-4o-mini"

// OpenAIConfig configures an OpenAI (or OpenAI-compatible) chat backend.
// BaseURL lets this point at any compatible server (vLLM, LM Studio, Azure
// OpenAI gateways, a local Ollama OpenAI-compat endpoint), not just
// api.openai.com — the same role BaseURL plays in internal/embed's
// OpenAIConfig.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// DefaultOpenAIConfig returns sane defaults for the OpenAI chat backend.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{Model: DefaultOpenAIChatModel}
}

// OpenAIProvider implements Provider over the Chat Completions API, usable
// against OpenAI itself or any OpenAI-compatible server.
type OpenAIProvider struct {
	client openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIProvider creates an OpenAI-backed Provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIChatModel
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIProvider{client: openai.NewClient(opts...), cfg: cfg}, nil
}

// Name identifies this backend.
func (p *OpenAIProvider) Name() string { return "openai" }

// Chat sends messages and returns the model's full reply text.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	params := p.buildParams(messages, opts)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyError(p.Name(), ctx, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream sends messages and returns a finite channel of text deltas.
func (p *OpenAIProvider) Stream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan StreamDelta, error) {
	params := p.buildParams(messages, opts)

	ch := make(chan StreamDelta, 16)
	go func() {
		defer close(ch)

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		outcome := StreamStopped
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			choice := chunk.Choices[0]
			if choice.Delta.Content != "" {
				ch <- StreamDelta{Text: choice.Delta.Content}
			}
			if choice.FinishReason == "length" {
				outcome = StreamLengthLimited
			}
		}

		if err := stream.Err(); err != nil {
			ch <- StreamDelta{Outcome: StreamError, Err: classifyError(p.Name(), ctx, err)}
			return
		}
		ch <- StreamDelta{Outcome: outcome}
	}()

	return ch, nil
}

// CountTokens approximates GPT's tokenizer with the same word-based
// heuristic used by AnthropicProvider; openai-go does not expose a local
// tokenizer either.
func (p *OpenAIProvider) CountTokens(text string) int {
	return approximateTokenCount(text)
}

func (p *OpenAIProvider) buildParams(messages []Message, opts ChatOptions) openai.ChatCompletionNewParams {
	model := p.cfg.Model
	if opts.Model != "" {
		model = opts.Model
	}

	var msgParams []openai.ChatCompletionMessageParamUnion
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			msgParams = append(msgParams, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgParams = append(msgParams, openai.AssistantMessage(m.Content))
		default:
			msgParams = append(msgParams, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgParams,
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	return params
}

// Package anthropic is a thin reference adaptor satisfying
// agentloop.CompletionProvider against the Anthropic Messages API. It
// exercises the external completion contract (SPEC_FULL.md §6) end to
// end in tests; it is not part of the core per spec.md §1's Non-goals.
// Grounded on the teacher's internal/agent/providers/anthropic.go
// (haasonsaas/nexus), trimmed to the non-streaming contract the Agent
// Loop actually calls (buffering a stream into one CompletionResponse
// is the generalization, not a capability reduction).
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentfabric/agentd/internal/agentloop"
)

// defaultModel matches the teacher's AnthropicConfig.DefaultModel default.
const defaultModel = "claude-sonnet-4-20250514"

// defaultMaxTokens matches the teacher's getMaxTokens default.
const defaultMaxTokens = 4096

// contextLimit is Claude's published context window for the models this
// adaptor targets.
const contextLimit = 200000

// Config holds construction parameters for Provider.
type Config struct {
	APIKey       string // required
	BaseURL      string // optional
	DefaultModel string // optional, defaults to defaultModel
}

// Provider adapts the Anthropic SDK client to CompletionProvider.
type Provider struct {
	client       anthropic.Client
	defaultModel string
}

// New constructs a Provider. APIKey is required, matching the teacher's
// NewAnthropicProvider validation.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	return &Provider{client: anthropic.NewClient(opts...), defaultModel: model}, nil
}

// ProviderName implements agentloop.CompletionProvider.
func (p *Provider) ProviderName() string { return "anthropic" }

// SupportsTools implements agentloop.CompletionProvider.
func (p *Provider) SupportsTools() bool { return true }

// ContextLimit implements agentloop.CompletionProvider.
func (p *Provider) ContextLimit() int { return contextLimit }

// Complete implements agentloop.CompletionProvider against the
// non-streaming Messages endpoint.
func (p *Provider) Complete(ctx context.Context, req agentloop.CompletionRequest) (agentloop.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
	}

	var systemPrompt string
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			systemPrompt += m.Content
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: systemPrompt}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return agentloop.CompletionResponse{}, fmt.Errorf("anthropic: completion request failed: %w", err)
	}

	var content string
	for _, block := range msg.Content {
		if text := block.AsText(); text.Text != "" {
			content += text.Text
		}
	}

	return agentloop.CompletionResponse{
		Content: content,
		Model:   string(msg.Model),
		Usage: &agentloop.Usage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
			TotalTokens:      int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: string(msg.StopReason),
	}, nil
}

// Stream implements agentloop.CompletionProvider by buffering one
// Complete call into a single final chunk, per SPEC_FULL.md §4.2+'s
// decision to honor the Stream contract without a streaming core.
func (p *Provider) Stream(ctx context.Context, req agentloop.CompletionRequest) (<-chan agentloop.StreamChunk, error) {
	resp, err := p.Complete(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan agentloop.StreamChunk, 2)
	ch <- agentloop.StreamChunk{Delta: resp.Content}
	ch <- agentloop.StreamChunk{IsFinal: true, FinishReason: resp.FinishReason}
	close(ch)
	return ch, nil
}

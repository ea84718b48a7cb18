// Package openai is a thin reference adaptor satisfying
// agentloop.CompletionProvider against the OpenAI Chat Completions API.
// Grounded on the teacher's internal/agent/providers/openai.go
// (haasonsaas/nexus), trimmed to the non-streaming contract the Agent
// Loop actually calls.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentfabric/agentd/internal/agentloop"
)

const (
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 4096
	contextLimit     = 128000
)

// Provider adapts the go-openai client to CompletionProvider.
type Provider struct {
	client       *openai.Client
	defaultModel string
}

// New constructs a Provider. apiKey is required.
func New(apiKey string) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	return &Provider{client: openai.NewClient(apiKey), defaultModel: defaultModel}, nil
}

// ProviderName implements agentloop.CompletionProvider.
func (p *Provider) ProviderName() string { return "openai" }

// SupportsTools implements agentloop.CompletionProvider. It reports false:
// Complete forwards only Role and Content, so the Agent Loop renders tool
// results as user-role messages for this adaptor.
func (p *Provider) SupportsTools() bool { return false }

// ContextLimit implements agentloop.CompletionProvider.
func (p *Provider) ContextLimit() int { return contextLimit }

// Complete implements agentloop.CompletionProvider against the
// non-streaming chat completions endpoint.
func (p *Provider) Complete(ctx context.Context, req agentloop.CompletionRequest) (agentloop.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil && *req.MaxTokens > 0 {
		maxTokens = *req.MaxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: maxTokens,
	}
	for _, m := range req.Messages {
		chatReq.Messages = append(chatReq.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	if req.Temperature != nil {
		chatReq.Temperature = float32(*req.Temperature)
	}
	if req.TopP != nil {
		chatReq.TopP = float32(*req.TopP)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return agentloop.CompletionResponse{}, fmt.Errorf("openai: completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return agentloop.CompletionResponse{}, errors.New("openai: completion response had no choices")
	}
	choice := resp.Choices[0]

	return agentloop.CompletionResponse{
		Content: choice.Message.Content,
		Model:   resp.Model,
		Usage: &agentloop.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		FinishReason: string(choice.FinishReason),
	}, nil
}

// Stream implements agentloop.CompletionProvider by buffering one
// Complete call into a single final chunk.
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

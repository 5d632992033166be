package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/tyson/internal/model/contract"

	"github.com/sashabaranov/go-openai"
)

const (
	PerplexityBaseURL = "https://api.perplexity.ai"
	OpenAIBaseURL     = "https://api.openai.com/v1"
)

// Provider talks to any endpoint speaking the OpenAI chat-completions wire
// format. Perplexity (the primary backend) and OpenAI itself both resolve
// here, differing only in name and base URL.
type Provider struct {
	client *openai.Client
	name   string
}

func New(name, apiKey, baseURL string) *Provider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL == "" {
		baseURL = PerplexityBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")

	if name == "" {
		name = "perplexity"
	}

	return &Provider{client: openai.NewClientWithConfig(cfg), name: name}
}

func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) Complete(ctx context.Context, req contract.CompletionRequest) (*contract.Completion, error) {
	resp, err := p.client.CreateChatCompletion(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	choice := resp.Choices[0]
	result := &contract.Completion{Content: choice.Message.Content}

	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d", len(result.ToolCalls)+1)
		}
		result.ToolCalls = append(result.ToolCalls, &contract.ToolCall{
			ID:    id,
			Name:  tc.Function.Name,
			Input: tc.Function.Arguments,
		})
	}

	return result, nil
}

func (p *Provider) Stream(ctx context.Context, req contract.CompletionRequest, onDelta contract.StreamFunc) (*contract.Completion, error) {
	stream, err := p.client.CreateChatCompletionStream(ctx, buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("%s stream failed: %w", p.name, err)
	}
	defer stream.Close()

	var content strings.Builder
	calls := map[int]*contract.ToolCall{}
	maxIndex := -1

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s stream recv failed: %w", p.name, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if onDelta != nil {
				onDelta(delta.Content)
			}
		}

		// Tool-call fragments are accumulated silently and surfaced only on
		// the assembled completion, never mid-stream.
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			call, ok := calls[idx]
			if !ok {
				call = &contract.ToolCall{}
				calls[idx] = call
				if idx > maxIndex {
					maxIndex = idx
				}
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name = tc.Function.Name
			}
			call.Input += tc.Function.Arguments
		}
	}

	result := &contract.Completion{Content: content.String()}
	for i := 0; i <= maxIndex; i++ {
		if call, ok := calls[i]; ok {
			if call.ID == "" {
				call.ID = fmt.Sprintf("call_%d", i+1)
			}
			result.ToolCalls = append(result.ToolCalls, call)
		}
	}

	return result, nil
}

func buildRequest(req contract.CompletionRequest) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
		}

		if len(m.ToolCalls) > 0 {
			var tcs []openai.ToolCall
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Input,
					},
				})
			}
			msg.ToolCalls = tcs
		}

		messages = append(messages, msg)
	}

	var tools []openai.Tool
	for _, t := range req.Tools {
		params := t.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	return openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
		Tools:    tools,
	}
}

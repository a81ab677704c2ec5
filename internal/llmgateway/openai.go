package llmgateway

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/ragcorpus/ragd/internal/domain"
)

// OpenAIBackend drives chat completions through the real openai-go/v2
// client. The same type also backs the Azure variant: Azure OpenAI
// speaks the OpenAI-compatible wire protocol, so pointing the SDK's
// base URL and key at an Azure deployment needs no separate client
// (see DESIGN.md — no azopenai SDK appears anywhere in the pack).
type OpenAIBackend struct {
	client openai.Client
	model  string
}

func NewOpenAIBackend(apiKey, model, baseURL string) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIBackend{client: openai.NewClient(opts...), model: model}
}

func toOpenAIMessages(history domain.History) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(t.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(t.Content))
		default:
			out = append(out, openai.UserMessage(t.Content))
		}
	}
	return out
}

func (b *OpenAIBackend) Complete(ctx context.Context, history domain.History, temperature float64) (string, error) {
	resp, err := b.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       b.model,
		Messages:    toOpenAIMessages(history),
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (b *OpenAIBackend) Stream(ctx context.Context, history domain.History, temperature float64) (<-chan StreamEvent, error) {
	stream := b.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:       b.model,
		Messages:    toOpenAIMessages(history),
		Temperature: openai.Float(temperature),
	})

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			token := chunk.Choices[0].Delta.Content
			if token == "" {
				continue
			}
			select {
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			case events <- StreamEvent{Token: token}:
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("openai stream: %w", err)}
		}
	}()

	return events, nil
}

var _ Backend = (*OpenAIBackend)(nil)

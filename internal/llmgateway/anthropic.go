package llmgateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ragcorpus/ragd/internal/domain"
)

// AnthropicBackend drives the Messages API through anthropic-sdk-go.
// Anthropic takes its system prompt as a dedicated field rather than a
// message-list turn, so the system content is lifted out before the
// call.
type AnthropicBackend struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicBackend(apiKey, model string) *AnthropicBackend {
	return &AnthropicBackend{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 4096,
	}
}

func toAnthropicMessages(history domain.History) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, t := range history {
		switch t.Role {
		case domain.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Content)))
		case domain.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Content)))
		}
	}
	return out
}

func (b *AnthropicBackend) params(history domain.History, temperature float64) anthropic.MessageNewParams {
	systemContent, rest := liftSystem(history)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(b.model),
		MaxTokens:   b.maxTokens,
		Messages:    toAnthropicMessages(rest),
		Temperature: anthropic.Float(temperature),
	}
	if systemContent != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemContent}}
	}
	return params
}

// Complete flattens the response content blocks to a single string of
// concatenated text parts, always — per spec.md §9's open-question
// decision that the non-flattened behavior is a bug, not a feature.
func (b *AnthropicBackend) Complete(ctx context.Context, history domain.History, temperature float64) (string, error) {
	resp, err := b.client.Messages.New(ctx, b.params(history, temperature))
	if err != nil {
		return "", fmt.Errorf("anthropic completion: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if tb := block.AsText(); tb.Text != "" {
			text.WriteString(tb.Text)
		}
	}
	return text.String(), nil
}

func (b *AnthropicBackend) Stream(ctx context.Context, history domain.History, temperature float64) (<-chan StreamEvent, error) {
	stream := b.client.Messages.NewStreaming(ctx, b.params(history, temperature))

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		for stream.Next() {
			event := stream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			textDelta, ok := delta.Delta.AsAny().(anthropic.TextDelta)
			if !ok || textDelta.Text == "" {
				continue
			}
			select {
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			case events <- StreamEvent{Token: textDelta.Text}:
			}
		}
		if err := stream.Err(); err != nil {
			events <- StreamEvent{Err: fmt.Errorf("anthropic stream: %w", err)}
		}
	}()

	return events, nil
}

var _ Backend = (*AnthropicBackend)(nil)

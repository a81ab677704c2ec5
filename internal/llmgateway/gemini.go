package llmgateway

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/ragcorpus/ragd/internal/domain"
)

// GeminiBackend drives Gemini generateContent through the official
// google.golang.org/genai client. Gemini also takes a dedicated system
// instruction field rather than a message-list turn.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

func NewGeminiBackend(ctx context.Context, apiKey, model string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiBackend{client: client, model: model}, nil
}

func toGeminiContents(history domain.History) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, t := range history {
		role := genai.RoleUser
		if t.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(t.Content, role))
	}
	return out
}

func (b *GeminiBackend) config(history domain.History, temperature float64) (*genai.GenerateContentConfig, []*genai.Content) {
	systemContent, rest := liftSystem(history)
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if systemContent != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemContent, genai.RoleUser)
	}
	return cfg, toGeminiContents(rest)
}

func (b *GeminiBackend) Complete(ctx context.Context, history domain.History, temperature float64) (string, error) {
	cfg, contents := b.config(history, temperature)

	resp, err := b.client.Models.GenerateContent(ctx, b.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	return resp.Text(), nil
}

func (b *GeminiBackend) Stream(ctx context.Context, history domain.History, temperature float64) (<-chan StreamEvent, error) {
	cfg, contents := b.config(history, temperature)

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		for resp, err := range b.client.Models.GenerateContentStream(ctx, b.model, contents, cfg) {
			if err != nil {
				events <- StreamEvent{Err: fmt.Errorf("gemini stream: %w", err)}
				return
			}
			token := resp.Text()
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
	}()

	return events, nil
}

var _ Backend = (*GeminiBackend)(nil)

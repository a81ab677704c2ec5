package llmgateway

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ragcorpus/ragd/internal/domain"
)

// OllamaBackend talks to Ollama's /api/chat endpoint. Adapted from the
// teacher's OllamaClient (internal/llm/ollama.go) — no Ollama Go SDK
// exists anywhere in the retrieval pack, so this backend stays
// hand-rolled HTTP (see DESIGN.md).
type OllamaBackend struct {
	baseURL    string
	httpClient *http.Client
	model      string
}

type OllamaOption func(*OllamaBackend)

func WithOllamaBaseURL(url string) OllamaOption {
	return func(b *OllamaBackend) { b.baseURL = strings.TrimSuffix(url, "/") }
}

func NewOllamaBackend(model string, opts ...OllamaOption) *OllamaBackend {
	b := &OllamaBackend{
		baseURL:    "http://localhost:11434",
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		model:      model,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

func toOllamaMessages(history domain.History) []ollamaChatMessage {
	out := make([]ollamaChatMessage, len(history))
	for i, t := range history {
		out[i] = ollamaChatMessage{Role: string(t.Role), Content: t.Content}
	}
	return out
}

func (b *OllamaBackend) buildRequest(ctx context.Context, history domain.History, temperature float64, stream bool) (*http.Request, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    b.model,
		Messages: toOllamaMessages(history),
		Stream:   stream,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ollama chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build ollama chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (b *OllamaBackend) Complete(ctx context.Context, history domain.History, temperature float64) (string, error) {
	req, err := b.buildRequest(ctx, history, temperature, false)
	if err != nil {
		return "", err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama status %d: %s", resp.StatusCode, body)
	}

	var out ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return out.Message.Content, nil
}

func (b *OllamaBackend) Stream(ctx context.Context, history domain.History, temperature float64) (<-chan StreamEvent, error) {
	req, err := b.buildRequest(ctx, history, temperature, true)
	if err != nil {
		return nil, err
	}

	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama chat stream request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama status %d: %s", resp.StatusCode, body)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		for {
			select {
			case <-ctx.Done():
				events <- StreamEvent{Err: ctx.Err()}
				return
			default:
			}

			line, err := reader.ReadBytes('\n')
			if err != nil {
				if err == io.EOF {
					return
				}
				events <- StreamEvent{Err: fmt.Errorf("read ollama stream: %w", err)}
				return
			}
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				events <- StreamEvent{Err: fmt.Errorf("parse ollama chunk: %w", err)}
				return
			}
			if chunk.Message.Content != "" {
				select {
				case <-ctx.Done():
					events <- StreamEvent{Err: ctx.Err()}
					return
				case events <- StreamEvent{Token: chunk.Message.Content}:
				}
			}
			if chunk.Done {
				return
			}
		}
	}()

	return events, nil
}

var _ Backend = (*OllamaBackend)(nil)

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaEmbedder calls Ollama's /api/embeddings endpoint. Adapted from
// the teacher's OllamaClient (internal/llm/ollama.go): same base-URL
// option, same bare http.Client, no SDK exists for Ollama anywhere in
// the retrieval pack so this stays hand-rolled HTTP (see DESIGN.md).
type OllamaEmbedder struct {
	baseURL    string
	httpClient *http.Client
	model      string
	dimension  int
}

// OllamaOption configures an OllamaEmbedder.
type OllamaOption func(*OllamaEmbedder)

func WithOllamaBaseURL(url string) OllamaOption {
	return func(e *OllamaEmbedder) { e.baseURL = strings.TrimSuffix(url, "/") }
}

func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(e *OllamaEmbedder) { e.httpClient = client }
}

// NewOllamaEmbedder constructs an Embedder backed by a local or remote
// Ollama server for the named embedding model.
func NewOllamaEmbedder(model string, opts ...OllamaOption) *OllamaEmbedder {
	e := &OllamaEmbedder{
		baseURL:    "http://localhost:11434",
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		model:      model,
		dimension:  GetModelConfig(model).Dimension,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: request ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: ollama status %d", resp.StatusCode)
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	return out.Embedding, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding: batch item %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

func (e *OllamaEmbedder) Dimension() int { return e.dimension }
func (e *OllamaEmbedder) ModelName() string { return e.model }

var _ Embedder = (*OllamaEmbedder)(nil)

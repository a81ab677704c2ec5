package embedding

import "github.com/ragcorpus/ragd/internal/config"

// Select picks one Embedder from the configuration snapshot. Ollama is
// the distillation's default embedding path (local, no credential),
// falling back to OpenAI-compatible embeddings when an API key is
// configured (spec.md §6's embedding_model/embedding_cpu options).
func Select(snapshot *config.Snapshot) Embedder {
	model := snapshot.String("embedding_model", "nomic-embed-text")
	if apiKey, ok := snapshot.Get("openai_api_key"); ok && apiKey != "" {
		return NewOpenAIEmbedder(apiKey, model, snapshot.String("openai_base_url", ""))
	}
	var opts []OllamaOption
	if baseURL := snapshot.String("ollama_base_url", ""); baseURL != "" {
		opts = append(opts, WithOllamaBaseURL(baseURL))
	}
	return NewOllamaEmbedder(model, opts...)
}

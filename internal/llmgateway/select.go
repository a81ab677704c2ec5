package llmgateway

import (
	"context"

	"github.com/ragcorpus/ragd/internal/apperr"
	"github.com/ragcorpus/ragd/internal/config"
)

// Select picks one Backend from the configuration snapshot's backend
// selector flags (spec.md §6), in the fixed priority order the
// original system checks them. Validate should be called first so a
// missing credential surfaces as config_invalid rather than reaching
// here.
func Select(ctx context.Context, snapshot *config.Snapshot) (Backend, error) {
	switch {
	case snapshot.Bool("use_anthropic", false):
		apiKey, _ := snapshot.Get("anthropic_api_key")
		return NewAnthropicBackend(apiKey, snapshot.String("anthropic_model", "claude-3-5-sonnet-latest")), nil
	case snapshot.Bool("use_openai", false):
		apiKey, _ := snapshot.Get("openai_api_key")
		return NewOpenAIBackend(apiKey, snapshot.String("openai_model", "gpt-4o-mini"), snapshot.String("openai_base_url", "")), nil
	case snapshot.Bool("use_azure", false):
		apiKey, _ := snapshot.Get("azure_api_key")
		return NewAzureBackend(apiKey, snapshot.String("azure_model", ""), snapshot.String("azure_base_url", "")), nil
	case snapshot.Bool("use_gemini", false):
		apiKey, _ := snapshot.Get("gemini_api_key")
		return NewGeminiBackend(ctx, apiKey, snapshot.String("gemini_model", "gemini-1.5-flash"))
	case snapshot.Bool("use_ollama", false):
		var opts []OllamaOption
		if baseURL := snapshot.String("ollama_base_url", ""); baseURL != "" {
			opts = append(opts, WithOllamaBaseURL(baseURL))
		}
		return NewOllamaBackend(snapshot.String("ollama_model", "llama3.1"), opts...), nil
	default:
		return nil, apperr.New(apperr.KindConfigInvalid, "no backend selected")
	}
}

package orchestrator

import (
	"context"

	"github.com/ragcorpus/ragd/internal/config"
	"github.com/ragcorpus/ragd/internal/llmgateway"
	"github.com/ragcorpus/ragd/internal/provenance"
	"github.com/ragcorpus/ragd/internal/rerank"
)

// SelectAttributor builds the provenance.Attributor named by method,
// or nil for config.ProvenanceNone. Centralized here because it is the
// one place that needs to see the reranker, gateway, and embedder
// together to pick a provenance strategy.
func SelectAttributor(method config.ProvenanceMethod, reranker rerank.Reranker, gateway *llmgateway.Gateway, embed func(ctx context.Context, text string) ([]float32, error)) provenance.Attributor {
	switch method {
	case config.ProvenanceRerank:
		return provenance.NewRerankAttributor(reranker)
	case config.ProvenanceLLM:
		return provenance.NewLLMAttributor(gateway)
	case config.ProvenanceSimilarity:
		return provenance.NewSimilarityAttributor(embed)
	default:
		return nil
	}
}

// Package provenance implements ProvenanceAttributor (spec.md §4.5):
// per-document contribution scores for a generated answer, via one of
// three methods selected by configuration.
package provenance

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
	"github.com/ragcorpus/ragd/internal/rerank"
)

// Attributor computes a per-document score expressing that document's
// contribution to answer, attaching it in-place to docs.
type Attributor interface {
	Attribute(ctx context.Context, answer string, docs domain.RetrievalResult) error
}

// rerankAttributor reuses the reranker to score (answer, doc) pairs.
type rerankAttributor struct {
	reranker rerank.Reranker
}

func NewRerankAttributor(r rerank.Reranker) Attributor {
	return &rerankAttributor{reranker: r}
}

func (a *rerankAttributor) Attribute(ctx context.Context, answer string, docs domain.RetrievalResult) error {
	scored, err := a.reranker.Rerank(ctx, docs, answer)
	if err != nil {
		return fmt.Errorf("provenance: rerank attribution: %w", err)
	}

	byID := make(map[string]float64, len(scored))
	for _, s := range scored {
		if s.RerankScore != nil {
			byID[s.ID] = *s.RerankScore
		}
	}
	for i := range docs {
		if score, ok := byID[docs[i].ID]; ok {
			docs[i].Provenance = &score
		}
	}
	return nil
}

// llmAttributor prompts the LLM per document with the answer and asks
// for a 0-1 contribution score.
type llmAttributor struct {
	gateway *llmgateway.Gateway
}

func NewLLMAttributor(gateway *llmgateway.Gateway) Attributor {
	return &llmAttributor{gateway: gateway}
}

func (a *llmAttributor) Attribute(ctx context.Context, answer string, docs domain.RetrievalResult) error {
	for i := range docs {
		prompt := fmt.Sprintf(
			"Answer:\n%s\n\nDocument:\n%s\n\nOn a scale of 0.0 to 1.0, how much did this document contribute to the answer? Reply with only the number.",
			answer, docs[i].Text,
		)
		reply, _, err := a.gateway.Respond(ctx, nil, prompt, nil)
		if err != nil {
			return fmt.Errorf("provenance: llm attribution for %s: %w", docs[i].ID, err)
		}
		score := parseScore(reply)
		docs[i].Provenance = &score
	}
	return nil
}

func parseScore(reply string) float64 {
	reply = strings.TrimSpace(reply)
	score, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0.5
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// similarityAttributor does cosine-like attribution of the answer
// against each doc in embedding space.
type similarityAttributor struct {
	embed func(ctx context.Context, text string) ([]float32, error)
}

func NewSimilarityAttributor(embed func(ctx context.Context, text string) ([]float32, error)) Attributor {
	return &similarityAttributor{embed: embed}
}

func (a *similarityAttributor) Attribute(ctx context.Context, answer string, docs domain.RetrievalResult) error {
	answerVec, err := a.embed(ctx, answer)
	if err != nil {
		return fmt.Errorf("provenance: embed answer: %w", err)
	}

	for i := range docs {
		var vec []float32
		if len(docs[i].Embedding) > 0 {
			vec = docs[i].Embedding
		} else {
			vec, err = a.embed(ctx, docs[i].Text)
			if err != nil {
				return fmt.Errorf("provenance: embed doc %s: %w", docs[i].ID, err)
			}
		}
		score := cosineSimilarity(answerVec, vec)
		docs[i].Provenance = &score
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Package rerank implements Reranker (spec.md §4.2): a pure, idempotent
// re-scoring of a candidate set against the query. Truncation to
// rerank_k happens at the call site, not inside the reranker.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
)

// Reranker reorders candidates by descending relevance to query. The
// orchestrator treats its output as authoritative.
type Reranker interface {
	Rerank(ctx context.Context, candidates domain.RetrievalResult, query string) (domain.RetrievalResult, error)
}

// LLMReranker prompts the gateway's LLM for a cross-encoder-style
// relevance score per candidate, adapted from the teacher's
// reranker.LLMReranker.
type LLMReranker struct {
	gateway *llmgateway.Gateway
}

func NewLLMReranker(gateway *llmgateway.Gateway) *LLMReranker {
	return &LLMReranker{gateway: gateway}
}

type relevanceScore struct {
	DocIndex int     `json:"doc_index"`
	Score    float64 `json:"score"`
}

type rerankResponse struct {
	Scores []relevanceScore `json:"scores"`
}

func (r *LLMReranker) Rerank(ctx context.Context, candidates domain.RetrievalResult, query string) (domain.RetrievalResult, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	prompt := buildRerankPrompt(query, candidates)
	reply, _, err := r.gateway.Respond(ctx, nil, prompt, nil)

	out := make(domain.RetrievalResult, len(candidates))
	copy(out, candidates)

	scores := fallbackScores(out)
	if err == nil {
		if parsed, parseErr := parseRerankResponse(reply, len(out)); parseErr == nil {
			scores = parsed
		}
	}

	for i := range out {
		s := scores[i]
		out[i].RerankScore = &s
	}

	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].RerankScore > *out[j].RerankScore
	})
	return out, nil
}

func buildRerankPrompt(query string, candidates domain.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString("You are a relevance scoring system. Score each document's relevance to the query.\n\n")
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\n\nDocuments to score:\n")

	for i, c := range candidates {
		text := c.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Fprintf(&sb, "[Doc %d]: %s\n\n", i, text)
	}

	sb.WriteString(`Score each document from 0.0 to 1.0 based on relevance to the query.
Output ONLY valid JSON in this exact format:
{"scores": [{"doc_index": 0, "score": 0.9}, {"doc_index": 1, "score": 0.3}]}

Be strict: irrelevant documents should score below 0.3, somewhat relevant 0.3-0.7, highly relevant above 0.7.
Output only JSON, no explanation:`)
	return sb.String()
}

func parseRerankResponse(reply string, numCandidates int) ([]float64, error) {
	reply = strings.TrimSpace(reply)
	if idx := strings.Index(reply, "```"); idx != -1 {
		rest := reply[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			reply = rest[:end]
		}
	}
	reply = strings.TrimSpace(reply)

	var parsed rerankResponse
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return nil, fmt.Errorf("rerank: parse response: %w", err)
	}

	scores := make([]float64, numCandidates)
	for i := range scores {
		scores[i] = 0.5
	}
	for _, s := range parsed.Scores {
		if s.DocIndex >= 0 && s.DocIndex < numCandidates {
			score := s.Score
			if score < 0 {
				score = 0
			}
			if score > 1 {
				score = 1
			}
			scores[s.DocIndex] = score
		}
	}
	return scores, nil
}

func fallbackScores(candidates domain.RetrievalResult) []float64 {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		scores[i] = c.FusedScore
	}
	return scores
}

var _ Reranker = (*LLMReranker)(nil)

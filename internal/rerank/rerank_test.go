package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/llmgateway"
)

type stubBackend struct {
	reply string
}

func (s *stubBackend) Complete(ctx context.Context, messages domain.History, temperature float64) (string, error) {
	return s.reply, nil
}

func (s *stubBackend) Stream(ctx context.Context, messages domain.History, temperature float64) (<-chan llmgateway.StreamEvent, error) {
	ch := make(chan llmgateway.StreamEvent)
	close(ch)
	return ch, nil
}

func candidates() domain.RetrievalResult {
	return domain.RetrievalResult{
		{Chunk: domain.Chunk{ID: "a", Text: "about cats"}},
		{Chunk: domain.Chunk{ID: "b", Text: "about dogs"}},
	}
}

func TestRerankOrdersByScoreDescending(t *testing.T) {
	backend := &stubBackend{reply: `{"scores": [{"doc_index": 0, "score": 0.2}, {"doc_index": 1, "score": 0.9}]}`}
	r := NewLLMReranker(llmgateway.New(backend, 0))

	out, err := r.Rerank(context.Background(), candidates(), "dogs")
	require.NoError(t, err)
	require.Equal(t, "b", out[0].ID)
	require.Equal(t, "a", out[1].ID)
}

func TestRerankFallsBackOnUnparsableResponse(t *testing.T) {
	backend := &stubBackend{reply: "not json at all"}
	r := NewLLMReranker(llmgateway.New(backend, 0))

	cands := candidates()
	cands[0].FusedScore = 0.1
	cands[1].FusedScore = 0.9

	out, err := r.Rerank(context.Background(), cands, "dogs")
	require.NoError(t, err)
	require.Equal(t, "b", out[0].ID)
}

func TestRerankEmptyCandidates(t *testing.T) {
	backend := &stubBackend{reply: `{"scores": []}`}
	r := NewLLMReranker(llmgateway.New(backend, 0))

	out, err := r.Rerank(context.Background(), nil, "dogs")
	require.NoError(t, err)
	require.Empty(t, out)
}

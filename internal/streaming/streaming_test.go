package streaming

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/orchestrator"
)

type scriptedChatter struct {
	events []orchestrator.Event
	result *orchestrator.ChatResult
	err    error
}

func (s *scriptedChatter) ChatStream(ctx context.Context, req orchestrator.ChatRequest, emit orchestrator.Emit) (*orchestrator.ChatResult, error) {
	for _, e := range s.events {
		emit(e)
	}
	return s.result, s.err
}

func TestRunSetsProxyBufferingHeaderAndWiresDonePayload(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	require.Equal(t, "text/event-stream; charset=utf-8", rec.Header().Get("Content-Type"))

	chatter := &scriptedChatter{
		events: []orchestrator.Event{
			{Kind: orchestrator.EventStep, Step: "retrieve"},
			{Kind: orchestrator.EventDocuments, Documents: domain.RetrievalResult{{Chunk: domain.Chunk{ID: "a", Text: "doc"}}}},
			{Kind: orchestrator.EventToken, Token: "hi"},
		},
		result: &orchestrator.ChatResult{
			Reply:               "hi",
			FetchedNewDocuments: true,
		},
	}

	Run(context.Background(), chatter, orchestrator.ChatRequest{Prompt: "hello"}, w, zerolog.Nop())
	require.NoError(t, w.Close())

	body := rec.Body.String()
	stepIdx := strings.Index(body, "event: step")
	docsIdx := strings.Index(body, "event: documents")
	tokenIdx := strings.Index(body, "event: token")
	doneIdx := strings.Index(body, "event: done")

	require.True(t, stepIdx >= 0 && docsIdx > stepIdx && tokenIdx > docsIdx && doneIdx > tokenIdx,
		"expected step < documents < token < done, got body: %s", body)
	require.Contains(t, body, `"fetched_new_documents":true`)
}

func TestRunSendsErrorEventInsteadOfDoneOnFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(context.Background(), rec)
	require.NoError(t, err)

	chatter := &scriptedChatter{err: context.DeadlineExceeded}
	Run(context.Background(), chatter, orchestrator.ChatRequest{Prompt: "hello"}, w, zerolog.Nop())
	require.NoError(t, w.Close())

	body := rec.Body.String()
	require.Contains(t, body, "event: error")
	require.NotContains(t, body, "event: done")
}

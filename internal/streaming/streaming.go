// Package streaming implements StreamMultiplexer (spec.md §4.6): it
// drains the orchestrator's ordered event stream onto one Server-Sent
// Events connection, tagging each payload with its event kind and
// sending the terminal done/error event last. Built directly on
// github.com/Tangerg/lynx/sse's Writer, which already owns SSE
// headers, heartbeats, and flush-per-message.
package streaming

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Tangerg/lynx/sse"
	"github.com/rs/zerolog"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/orchestrator"
)

// Chatter is the subset of orchestrator.Orchestrator the multiplexer
// drives.
type Chatter interface {
	ChatStream(ctx context.Context, req orchestrator.ChatRequest, emit orchestrator.Emit) (*orchestrator.ChatResult, error)
}

// DonePayload is the terminal `done` event body (spec.md §4.6). Unlike
// the non-streaming /chat response, it carries no `question` field.
type DonePayload struct {
	Reply               string                 `json:"reply"`
	History             domain.History         `json:"history"`
	Documents           domain.RetrievalResult `json:"documents"`
	Rewritten           *string                `json:"rewritten"`
	FetchedNewDocuments bool                   `json:"fetched_new_documents"`
}

// DocumentsPayload is the `documents` event body.
type DocumentsPayload struct {
	Documents domain.RetrievalResult `json:"documents"`
}

// NewWriter opens an SSE response on w, setting the proxy-buffering
// opt-out header the lynx Writer doesn't set itself (spec.md §6).
func NewWriter(ctx context.Context, w http.ResponseWriter) (*sse.Writer, error) {
	w.Header().Set("X-Accel-Buffering", "no")
	return sse.NewWriter(&sse.WriterConfig{Context: ctx, ResponseWriter: w})
}

// Run drives chatter through w: every orchestrator.Event becomes one
// SSE event in emission order, and the pipeline's terminal outcome
// becomes the final `done` or `error` event. Because every send here
// is driven off the single ordered callback plus the single terminal
// return, the ordering and at-most-once-token guarantees of spec.md §5
// and §8 fall out of orchestrator.ChatStream's own contract.
func Run(ctx context.Context, chatter Chatter, req orchestrator.ChatRequest, w *sse.Writer, log zerolog.Logger) {
	result, err := chatter.ChatStream(ctx, req, func(e orchestrator.Event) {
		switch e.Kind {
		case orchestrator.EventStep:
			send(w, "step", e.Step, log)
		case orchestrator.EventDocuments:
			send(w, "documents", DocumentsPayload{Documents: e.Documents}, log)
		case orchestrator.EventToken:
			send(w, "token", e.Token, log)
		}
	})
	if err != nil {
		send(w, "error", err.Error(), log)
		return
	}

	send(w, "done", DonePayload{
		Reply:               result.Reply,
		History:             result.History,
		Documents:           result.Documents,
		Rewritten:           result.Rewritten,
		FetchedNewDocuments: result.FetchedNewDocuments,
	}, log)
}

func send(w *sse.Writer, event string, payload any, log zerolog.Logger) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode sse payload")
		return
	}
	if err := w.Send(&sse.Message{Event: event, Data: data}); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("send sse message")
	}
}

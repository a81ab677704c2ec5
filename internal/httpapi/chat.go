package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ragcorpus/ragd/internal/domain"
	"github.com/ragcorpus/ragd/internal/orchestrator"
	"github.com/ragcorpus/ragd/internal/streaming"
)

// chatRequestBody is the shared wire shape of /chat and /chat_stream
// (spec.md §6).
type chatRequestBody struct {
	Prompt   string                 `json:"prompt"`
	History  domain.History         `json:"history"`
	Docs     domain.RetrievalResult `json:"docs"`
	Datasets []string               `json:"datasets"`
}

func decodeChatRequest(r *http.Request) (orchestrator.ChatRequest, error) {
	var body chatRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return orchestrator.ChatRequest{}, badRequest("invalid JSON body")
	}
	if body.Prompt == "" {
		return orchestrator.ChatRequest{}, badRequest("missing required field prompt")
	}
	return orchestrator.ChatRequest{
		Prompt:   body.Prompt,
		History:  historyOrEmpty(body.History),
		Docs:     body.Docs,
		Datasets: body.Datasets,
	}, nil
}

// chatResponse is the non-streaming /chat response body (spec.md §6);
// unlike the streaming `done` payload it also carries `question`.
type chatResponse struct {
	Reply               string                 `json:"reply"`
	History             domain.History         `json:"history"`
	Documents           domain.RetrievalResult `json:"documents"`
	Rewritten           *string                `json:"rewritten"`
	Question            string                 `json:"question"`
	FetchedNewDocuments bool                   `json:"fetched_new_documents"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := s.orchestratorFor().Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Reply:               result.Reply,
		History:             result.History,
		Documents:           result.Documents,
		Rewritten:           result.Rewritten,
		Question:            req.Prompt,
		FetchedNewDocuments: result.FetchedNewDocuments,
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := decodeChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writer, err := streaming.NewWriter(r.Context(), w)
	if err != nil {
		writeError(w, err)
		return
	}
	defer writer.Close()

	streaming.Run(r.Context(), s.orchestratorFor(), req, writer, s.log)
}

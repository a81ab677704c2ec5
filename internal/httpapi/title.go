package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type createTitleRequest struct {
	Question string `json:"question"`
}

type createTitleResponse struct {
	Title string `json:"title"`
}

// handleCreateTitle drives the gateway directly rather than the full
// pipeline: a title is a one-shot completion with no retrieval
// (spec.md §6, original system's create_title route).
func (s *Server) handleCreateTitle(w http.ResponseWriter, r *http.Request) {
	var req createTitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, badRequest("missing required field question"))
		return
	}

	prompt := fmt.Sprintf(
		"Write a succinct title (few words) for a chat that has the question: %s\n\n"+
			"You never give explanations, only the title, and you always start and end with an emoji (two distinct ones). "+
			"Stick to the language of the question.",
		req.Question,
	)

	reply, _, err := s.current().gateway.Respond(r.Context(), nil, prompt, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, createTitleResponse{Title: reply})
}

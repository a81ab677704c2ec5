package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
)

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Current().All())
}

type putConfigRequest struct {
	Config       map[string]string `json:"config"`
	Reinitialize bool              `json:"reinitialize"`
}

type putConfigResponse struct {
	Status  string   `json:"status"`
	Updated []string `json:"updated"`
}

// handlePutConfig merges req.Config into the options file, preserving
// line order and comments (config.Store.Update), and optionally
// rebuilds the backend/embedder/reranker/attributor (spec.md §6, §8
// scenario 6).
func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var req putConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Config) == 0 {
		writeError(w, badRequest("no config values provided"))
		return
	}

	updated, err := s.store.Update(req.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Strings(updated)
	s.log.Info().Strs("changed_keys", updated).Msg("config updated")

	if req.Reinitialize {
		if err := s.rebuild(r.Context(), s.store.Current()); err != nil {
			writeError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, putConfigResponse{Status: "ok", Updated: updated})
}

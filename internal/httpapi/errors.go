package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/ragcorpus/ragd/internal/apperr"
)

// statusFor maps an apperr.Kind to the HTTP status spec.md §7 assigns
// it. Unclassified errors default to 500.
func statusFor(err error) int {
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case apperr.KindBadRequest, apperr.KindConfigInvalid:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRetrievalFailed, apperr.KindLLMFailed, apperr.KindIngestItemFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes spec.md §7's {error: string} body with the status
// derived from err's apperr.Kind.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// badRequest is a convenience constructor for a missing-field error.
func badRequest(msg string) error {
	return apperr.New(apperr.KindBadRequest, msg)
}

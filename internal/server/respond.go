package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slatehq/slate/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps the storage error taxonomy onto HTTP statuses. Validation
// and invariant messages are surfaced verbatim; anything unclassified becomes
// a generic 500 so internal details never leak.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case types.IsValidation(err), types.IsInvariant(err):
		writeErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, err.Error())
	case types.IsConflict(err):
		writeErrorMessage(w, http.StatusConflict, err.Error())
	default:
		writeErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close() // nolint:errcheck
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &types.ValidationError{Field: "body", Reason: "invalid JSON payload"}
	}
	return nil
}

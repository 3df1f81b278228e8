package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// HandleError maps domain errors onto HTTP responses.
// Every unlock failure that is not local validation or re-entry gets the same
// status and the same message, whatever actually broke.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptyPassword):
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: domain.EmptyPasswordMessage})
	case errors.Is(err, domain.ErrUnlockInProgress), errors.Is(err, domain.ErrAlreadyUnlocked):
		writeJSON(w, http.StatusConflict, errorResponse{Message: domain.UserMessage(err)})
	case errors.Is(err, domain.ErrSessionRequired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "Unlock required"})
	case errors.Is(err, domain.ErrLocked):
		writeJSON(w, http.StatusLocked, errorResponse{Message: "Data is locked. Unlock with the password first."})
	case errors.Is(err, domain.ErrThreadNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "Thread not found"})
	default:
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: domain.UnlockFailureMessage})
	}
}

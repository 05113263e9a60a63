package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Validation messages
// are safe to echo; everything unexpected gets a generic body.
func writeError(w http.ResponseWriter, err error) {
	var verr *apperr.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, apperr.ErrForbidden):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "conflict"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// eventRecipients lists every principal entitled to live updates for an event.
func eventRecipients(e *model.Event) []string {
	recipients := []string{e.OwnerID}
	for _, g := range e.Guests {
		recipients = append(recipients, g.UserID)
	}
	return recipients
}

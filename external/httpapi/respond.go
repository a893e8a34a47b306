package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/VladimirHumeniuk/custiq-backend/internal/apperr"
)

var kindStatusCodes = map[apperr.Kind]int{
	apperr.KindInvalidRequest: http.StatusBadRequest,
	apperr.KindUnauthorized:   http.StatusUnauthorized,
	apperr.KindForbidden:      http.StatusForbidden,
	apperr.KindNotFound:       http.StatusNotFound,
	apperr.KindInvalidState:   http.StatusConflict,
	apperr.KindConflict:       http.StatusConflict,
	apperr.KindInternal:       http.StatusInternalServerError,
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeAppError maps the taxonomy kind to a status code. Only the kind and
// the user-safe message leave the process; the cause is logged here.
func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status, ok := kindStatusCodes[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if kind == apperr.KindInternal {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{
		"error":   string(kind),
		"message": apperr.MessageOf(err),
	})
}

func decodeJSON(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("request body is not valid JSON")
	}
	return nil
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Billy-Davies-2/bo7-match-logger/internal/logger"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/rules"
	"github.com/Billy-Davies-2/bo7-match-logger/internal/session"
)

// ErrorResponse is the error shape of every API failure. Session carries the
// unchanged form when an event was rejected.
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Session *session.Outcome `json:"session,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string, out *session.Outcome) {
	resp := ErrorResponse{Session: out}
	resp.Error.Code = code
	resp.Error.Message = message
	writeJSON(w, status, resp)
}

// errorStatus maps domain errors to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rules.ErrValidation):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, rules.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, session.ErrIncomplete):
		return http.StatusUnprocessableEntity, "INCOMPLETE"
	case errors.Is(err, session.ErrUnauthorized):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, session.ErrPersistence):
		return http.StatusBadGateway, "PERSISTENCE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// writeError reports err. A non-empty outcome is echoed back so the client
// can redraw the form it still has.
func writeError(w http.ResponseWriter, err error, out session.Outcome) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	}
	var echo *session.Outcome
	if out.SessionID != "" {
		echo = &out
	}
	writeErrorCode(w, status, code, err.Error(), echo)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"overlayd/internal/completion"
	"overlayd/internal/manager"
	"overlayd/internal/overlay"
	"overlayd/pkg/types"
)

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case manager.IsTransitionRejected(err):
		return http.StatusConflict
	case errors.Is(err, completion.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case completion.IsUnsupportedContext(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, overlay.ErrEmptyText):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && zlog != nil {
		zlog.Debug().Err(err).Msg("encode response")
	}
}

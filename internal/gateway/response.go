package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"showpass-core/internal/backend"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, errMsg string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     errMsg,
		Timestamp: time.Now(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the client error taxonomy onto HTTP statuses: caller
// mistakes are 400, lost races are 409, a backend that answered with an
// error is 502 and one that never answered is 503.
func writeError(w http.ResponseWriter, message string, err error) {
	var (
		validation *backend.ValidationError
		conflict   *backend.StateConflict
		service    *backend.ServiceError
		transport  *backend.TransportError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, ErrorResponse(message, err.Error()))
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse(message, err.Error()))
	case errors.As(err, &service):
		writeJSON(w, http.StatusBadGateway, ErrorResponse(message, err.Error()))
	case errors.As(err, &transport):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse(message, err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, ErrorResponse(message, err.Error()))
	}
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error codes returned in API error bodies.
const (
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeSessionRequired    = "SESSION_REQUIRED"
	CodeRunInProgress      = "RUN_IN_PROGRESS"
	CodeUnknownStage       = "UNKNOWN_STAGE"
	CodeResultNotFound     = "RESULT_NOT_FOUND"
	CodeStreamUnsupported  = "STREAM_UNSUPPORTED"
	CodeInternalError      = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody is the inner object of ErrorResponse.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error body and logs 5xx responses.
func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		logger.Error(message, "code", code, "status", status)
	}
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

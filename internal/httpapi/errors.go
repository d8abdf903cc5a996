package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"llamaswitch/internal/supervisor"
	"llamaswitch/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeErrorResponse(w, types.ErrorResponse{Error: msg, Code: status})
}

func writeErrorResponse(w http.ResponseWriter, body types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(body.Code)
	_ = json.NewEncoder(w).Encode(body)
}

// writeServiceError maps supervisor errors to HTTP responses and returns the
// status written.
func writeServiceError(w http.ResponseWriter, err error, model string) int {
	var sfe *supervisor.StartFailedError
	if errors.As(err, &sfe) {
		writeErrorResponse(w, types.ErrorResponse{
			Error:  "model_start_failed",
			Code:   sfe.StatusCode(),
			Model:  sfe.Model,
			Hint:   sfe.Hint(),
			Detail: sfe.Diagnostic,
		})
		return sfe.StatusCode()
	}
	if supervisor.IsUnavailable(err) {
		writeErrorResponse(w, types.ErrorResponse{
			Error: "server_unavailable",
			Code:  http.StatusServiceUnavailable,
			Model: model,
			Hint:  "llama-server not running; check /last_start_error",
		})
		return http.StatusServiceUnavailable
	}
	var he HTTPError
	if errors.As(err, &he) {
		writeJSONError(w, he.StatusCode(), he.Error())
		return he.StatusCode()
	}
	writeJSONError(w, http.StatusInternalServerError, err.Error())
	return http.StatusInternalServerError
}

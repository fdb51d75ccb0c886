// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stockshastri/shastri/internal/core"
)

// ErrorResponse is the error body: {"error": "<message>", "code": "<CODE>"}.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StatusResponse acknowledges a write operation.
type StatusResponse struct {
	Status string `json:"status"`
	Result any    `json:"result,omitempty"`
}

// JSON writes data as the response body.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Status maps an error to its HTTP status. Bad instrument input is a
// client error; a missing or mismatched model means the service is not
// ready; everything else is internal.
func Status(err error) int {
	switch {
	case errors.Is(err, core.ErrUnknownInstrument), errors.Is(err, core.ErrNoData), errors.Is(err, core.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStaleArtifact), errors.Is(err, core.ErrModelNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error writes an error response with the status derived from err.
func Error(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error: "an internal error occurred",
		Code:  "INTERNAL_ERROR",
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		resp.Code = coreErr.Code
		resp.Error = coreErr.Error()
	}

	JSON(w, Status(err), resp)
}

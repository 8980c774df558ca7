// Package httputil centralizes the JSON response envelope and the single
// point where domain errors become HTTP status codes.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "pollboard/pkg/domain-errors"
)

// Envelope is the uniform response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:   http.StatusBadRequest,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeForbidden:    http.StatusForbidden,
	dErrors.CodeNotFound:     http.StatusNotFound,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeUnavailable:  http.StatusInternalServerError,
	dErrors.CodeInternal:     http.StatusInternalServerError,
}

// StatusOf maps a domain error code onto its HTTP status.
func StatusOf(code dErrors.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteSuccess writes a 2xx envelope with an optional data payload.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Message: message, Data: data})
}

// WriteError translates err into a non-2xx envelope. Domain errors keep their
// caller-safe message; anything else is surfaced as an opaque 500.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusOf(code))
	_ = json.NewEncoder(w).Encode(Envelope{Success: false, Message: dErrors.MessageOf(err)})
}

// DecodeJSON parses the request body into T, reporting failures as a
// validation error already written to w. The second return is false when the
// caller should stop.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var payload T
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return payload, false
	}
	return payload, true
}

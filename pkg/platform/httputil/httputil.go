// Package httputil centralizes JSON encoding and domain error translation for
// HTTP handlers so transport mapping lives in one place.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "fecguard/pkg/domain-errors"
)

// errorResponse is the wire shape for all error replies.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON encodes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code to an HTTP status and writes the error
// body. Internal errors omit the description so infrastructure details never
// leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	resp := errorResponse{Error: wireCode(code)}
	if code != dErrors.CodeInternal && code != dErrors.CodeInvariantViolation {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	WriteJSON(w, statusFor(code), resp)
}

// Decode parses the request body into T. On failure it writes a bad request
// response and returns false; handlers should return immediately.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return req, true
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeLimitExceeded:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnavailable:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func wireCode(code dErrors.Code) string {
	if code == dErrors.CodeInternal || code == dErrors.CodeInvariantViolation {
		return "internal_error"
	}
	return string(code)
}

// Package httputil holds the shared JSON response helpers for HTTP
// handlers, including the single place where domain error codes map to
// HTTP status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/millisami/flow-name-service/pkg/domain-errors"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteError maps a domain error to an HTTP response. Internal errors omit
// the description so infrastructure details never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			body.ErrorDescription = domainErr.Message()
		} else {
			body.ErrorDescription = err.Error()
		}
	}
	WriteJSON(w, statusFor(code), body)
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeDuration, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeDelegation:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeAvailability, dErrors.CodeConflict, dErrors.CodeState, dErrors.CodeExpiration:
		return http.StatusConflict
	case dErrors.CodePayment:
		return http.StatusPaymentRequired
	case dErrors.CodePricing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Decode reads the JSON request body into a value of type T. A failure is
// reported to the client as a bad request and ok is false.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		var zero T
		return zero, false
	}
	return v, true
}

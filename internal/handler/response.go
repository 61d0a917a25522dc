package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Bidon15/popbatch/internal/batch"
)

// APIError is the JSON error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

// Error codes.
const (
	CodeBadRequest          = "bad_request"
	CodeInvalidIntent       = "invalid_intent"
	CodeEncoding            = "encoding_failed"
	CodeInsufficientBalance = "insufficient_balance"
	CodeUnsupportedRoute    = "unsupported_route"
	CodeReadFailure         = "ledger_unavailable"
	CodeRateLimited         = "rate_limited"
	CodeInternal            = "internal"
)

// errorFor maps a planning error to its HTTP status and code.
func errorFor(err error) *APIError {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.Is(err, batch.ErrInvalidIntent):
		return &APIError{Code: CodeInvalidIntent, Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, batch.ErrEncoding):
		return &APIError{Code: CodeEncoding, Message: err.Error(), Status: http.StatusBadRequest}
	case errors.Is(err, batch.ErrInsufficientBalance):
		return &APIError{Code: CodeInsufficientBalance, Message: err.Error(), Status: http.StatusUnprocessableEntity}
	case errors.Is(err, batch.ErrUnsupportedRoute):
		return &APIError{Code: CodeUnsupportedRoute, Message: err.Error(), Status: http.StatusUnprocessableEntity}
	case errors.Is(err, batch.ErrReadFailure):
		return &APIError{Code: CodeReadFailure, Message: err.Error(), Status: http.StatusBadGateway}
	default:
		return &APIError{Code: CodeInternal, Message: "internal error", Status: http.StatusInternalServerError}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := errorFor(err)
	writeJSON(w, apiErr.Status, map[string]*APIError{"error": apiErr})
}

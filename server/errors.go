package server

import (
	"net/http"

	"github.com/teranos/atomdb/errors"
)

// Error codes carried in the "code" field of error bodies. Clients map
// them back onto the sentinels in the errors package.
const (
	CodeNotFound         = "not_found"
	CodeInvalidRequest   = "invalid_request"
	CodeMalformedPattern = "malformed_pattern"
	CodeQueryFormat      = "unexpected_query_format"
	CodeInternal         = "internal"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// classify maps a backend error onto an HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, errors.ErrMalformedPattern):
		return http.StatusBadRequest, CodeMalformedPattern
	case errors.Is(err, errors.ErrUnexpectedQueryFormat):
		return http.StatusBadRequest, CodeQueryFormat
	case errors.Is(err, errors.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Sentinel returns the error sentinel a code stands for, or nil for
// CodeInternal and unknown codes.
func Sentinel(code string) error {
	switch code {
	case CodeNotFound:
		return errors.ErrNotFound
	case CodeMalformedPattern:
		return errors.ErrMalformedPattern
	case CodeQueryFormat:
		return errors.ErrUnexpectedQueryFormat
	case CodeInvalidRequest:
		return errors.ErrInvalidRequest
	default:
		return nil
	}
}

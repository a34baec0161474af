package usecase

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrorInvalidInput          ErrorCode = "INVALID_INPUT"
	ErrorServiceUnavailable    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorEmptyUpstreamResponse ErrorCode = "EMPTY_UPSTREAM_RESPONSE"
	ErrorUpstream              ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal              ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus is the response status a transport should use for the code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrorInvalidInput:
		return http.StatusBadRequest
	case ErrorEmptyUpstreamResponse, ErrorUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the only error type ChatService returns. Detail is safe to show to
// the caller; Err keeps the underlying cause for logs.
type Error struct {
	Code   ErrorCode
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Detail)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Detail, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, detail string, err error) *Error {
	return &Error{Code: code, Detail: detail, Err: err}
}

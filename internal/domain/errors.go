package domain

import (
	"errors"
	"fmt"
)

// ErrEmptyResponse is returned when the provider answered but produced no text.
var ErrEmptyResponse = errors.New("upstream returned an empty completion")

// ConfigurationError reports a server-side setting that prevents the upstream
// client from being used at all.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is not set.", e.Setting)
}

// UpstreamError is any transport or provider-side failure of a completion call.
type UpstreamError struct {
	StatusCode  int
	Description string
	Err         error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	return e.Description
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *UpstreamError) HTTPStatusCode() int {
	return e.StatusCode
}

package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrNotFound is matched by any APIError carrying a 404 status and by
	// errors passed through EntityError.
	ErrNotFound = errors.New("entity not found")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrRateLimited is returned when the rate limit gate refuses a request.
	ErrRateLimited = errors.New("request blocked: upstream rate limit critical")

	// ErrDecode is returned when an upstream body cannot be decoded.
	ErrDecode = errors.New("decode upstream response")
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	ErrorClassClient    ErrorClass = "client"
	ErrorClassNotFound  ErrorClass = "not_found"
	ErrorClassServer    ErrorClass = "server"
	ErrorClassRateLimit ErrorClass = "rate_limit"
	ErrorClassNetwork   ErrorClass = "network"
)

// APIError is a non-success upstream response.
type APIError struct {
	StatusCode int
	ErrorClass ErrorClass
	Endpoint   string
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d) on %s: %s: %v",
			e.ErrorClass, e.StatusCode, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d) on %s: %s",
		e.ErrorClass, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// Is reports a 404 APIError as ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is, or wraps, a not-found upstream response.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// EntityError reports any non-success upstream response as ErrNotFound.
// Single-entity lookups have no failure state besides a missing entity.
// Transport, decode and rate gate errors are returned unchanged.
func EntityError(err error) error {
	var apiErr *APIError
	if err == nil || IsNotFound(err) || !errors.As(err, &apiErr) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}

// ClassifyStatus maps an HTTP status code to an ErrorClass. Success codes map to "".
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusNotFound:
		return ErrorClassNotFound
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// shouldRetry determines if an error class is worth another attempt.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassRateLimit, ErrorClassNetwork:
		return true
	default:
		// 4xx responses will not change on retry
		return false
	}
}

package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Call Error Type
// -----------------------------------------------------------------------------

// CallError describes a single failed HTTP exchange with a resource API.
// It is the cause attached to status errors produced by the transport so that
// callers can still reach the raw response when they need it.
type CallError struct {
	// Method is the HTTP method used (GET, POST, PUT, PATCH, DELETE)
	Method string
	// URL is the request URL
	URL string
	// StatusCode is the HTTP status code (0 if request failed before getting response)
	StatusCode int
	// Status is the HTTP status string (e.g., "503 Service Unavailable")
	Status string
	// ResponseBody is the response body (may contain error details from the API)
	ResponseBody []byte
	// Duration is how long the exchange took
	Duration time.Duration
	// Err is the underlying error
	Err error
}

func (e *CallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s returned %s: %v", e.Method, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Method, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *CallError) Unwrap() error {
	return e.Err
}

// -----------------------------------------------------------------------------
// Status Code Helpers
// -----------------------------------------------------------------------------

// IsTimeout returns true if the error was caused by a timeout
func (e *CallError) IsTimeout() bool {
	return e.StatusCode == 408 || e.StatusCode == 504 || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsServerError returns true if the error was a server error (5xx)
func (e *CallError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsClientError returns true if the error was a client error (4xx)
func (e *CallError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// IsNotFound returns true if the error was a 404 Not Found
func (e *CallError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsRateLimited returns true if the error was a 429 Too Many Requests
func (e *CallError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsConflict returns true if the error was a 409 Conflict
func (e *CallError) IsConflict() bool {
	return e.StatusCode == 409
}

// ResponseBodyString returns the response body as a string
func (e *CallError) ResponseBodyString() string {
	if e.ResponseBody == nil {
		return ""
	}
	return string(e.ResponseBody)
}

// NewCallError creates a new CallError with all fields
func NewCallError(method, url string, statusCode int, status string, body []byte, duration time.Duration, err error) *CallError {
	return &CallError{
		Method:       method,
		URL:          url,
		StatusCode:   statusCode,
		Status:       status,
		ResponseBody: body,
		Duration:     duration,
		Err:          err,
	}
}

// IsCallError checks if an error is a CallError and returns it.
// This function supports wrapped errors via errors.As.
//
// Example usage:
//
//	if callErr, ok := errors.IsCallError(err); ok {
//	    log.Printf("call failed: status=%d body=%s", callErr.StatusCode, callErr.ResponseBodyString())
//	}
func IsCallError(err error) (*CallError, bool) {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr, true
	}
	return nil, false
}

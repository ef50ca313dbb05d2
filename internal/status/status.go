// Package status is the outcome vocabulary shared by every admin call: a
// code and message pair, the typed error wrapping it, and conversions from
// HTTP responses, gRPC errors and context cancellation.
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
)

// Status is the outcome of one attempt or one logical call.
// The zero value is OK.
type Status struct {
	Code    codes.Code `json:"code"`
	Message string     `json:"message,omitempty"`
}

// OK returns the success status.
func OK() Status {
	return Status{Code: codes.OK}
}

// New returns a status with the given code and message.
func New(code codes.Code, message string) Status {
	return Status{Code: code, Message: message}
}

// Newf returns a status with a formatted message.
func Newf(code codes.Code, format string, args ...interface{}) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Malformed returns the status used when a server response cannot be
// interpreted. It carries InvalidArgument and is never retried.
func Malformed(format string, args ...interface{}) Status {
	return Status{Code: codes.InvalidArgument, Message: "malformed response: " + fmt.Sprintf(format, args...)}
}

// IsOK reports whether the status is a success.
func (s Status) IsOK() bool {
	return s.Code == codes.OK
}

// String formats the status as "[CODE] message".
func (s Status) String() string {
	if s.Message == "" {
		return fmt.Sprintf("[%s]", s.Code)
	}
	return fmt.Sprintf("[%s] %s", s.Code, s.Message)
}

// Err returns nil for OK and a *Error otherwise.
func (s Status) Err() error {
	if s.IsOK() {
		return nil
	}
	return &Error{Status: s}
}

// -----------------------------------------------------------------------------
// Conversion
// -----------------------------------------------------------------------------

// Convert extracts a Status from any error. Unrecognized errors map to Unknown.
func Convert(err error) Status {
	if err == nil {
		return OK()
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	if errors.Is(err, context.Canceled) {
		return New(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return New(codes.DeadlineExceeded, err.Error())
	}
	if callErr, ok := apperrors.IsCallError(err); ok && callErr.StatusCode > 0 {
		return FromHTTP(callErr.StatusCode, callErr.ResponseBody)
	}
	var grpcErr interface{ GRPCStatus() *grpcstatus.Status }
	if errors.As(err, &grpcErr) {
		gs := grpcErr.GRPCStatus()
		return New(gs.Code(), gs.Message())
	}
	return New(codes.Unknown, err.Error())
}

// Code returns the status code carried by err, OK for nil.
func Code(err error) codes.Code {
	return Convert(err).Code
}

// FromHTTP maps an HTTP status code and response body to a Status.
// The body becomes the message so server diagnostics are preserved.
func FromHTTP(statusCode int, body []byte) Status {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return New(CodeFromHTTP(statusCode), msg)
}

// CodeFromHTTP maps an HTTP status code to a status code.
func CodeFromHTTP(statusCode int) codes.Code {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return codes.OK
	case statusCode == http.StatusBadRequest:
		return codes.InvalidArgument
	case statusCode == http.StatusUnauthorized:
		return codes.Unauthenticated
	case statusCode == http.StatusForbidden:
		return codes.PermissionDenied
	case statusCode == http.StatusNotFound:
		return codes.NotFound
	case statusCode == http.StatusRequestTimeout:
		return codes.DeadlineExceeded
	case statusCode == http.StatusConflict:
		return codes.AlreadyExists
	case statusCode == http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case statusCode == http.StatusRequestedRangeNotSatisfiable:
		return codes.OutOfRange
	case statusCode == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case statusCode == 499:
		return codes.Canceled
	case statusCode == http.StatusNotImplemented:
		return codes.Unimplemented
	case statusCode == http.StatusBadGateway, statusCode == http.StatusServiceUnavailable:
		return codes.Unavailable
	case statusCode == http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case statusCode >= 300 && statusCode < 400:
		// Redirects are not followed by the admin transports
		return codes.FailedPrecondition
	case statusCode >= 400 && statusCode < 500:
		return codes.FailedPrecondition
	case statusCode >= 500:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsTransient reports whether a failure with this code may succeed if retried.
// Internal is included because resource APIs report most 5xx responses with it.
func IsTransient(code codes.Code) bool {
	switch code {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return true
	default:
		return false
	}
}

// IsPermanent reports whether a failure with this code must never be retried.
func IsPermanent(code codes.Code) bool {
	switch code {
	case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied,
		codes.Unauthenticated, codes.FailedPrecondition, codes.OutOfRange, codes.Unimplemented,
		codes.Canceled:
		return true
	default:
		return false
	}
}

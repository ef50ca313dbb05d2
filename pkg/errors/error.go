package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// ErrorCodePrefix prefixes the string form of a code: hyperfleet-admin-9
const ErrorCodePrefix = "hyperfleet-admin"

// ServiceErrorCode identifies a class of local failure
type ServiceErrorCode int

const (
	ErrorNotFound ServiceErrorCode = iota + 1
	ErrorValidation
	ErrorConflict
	ErrorForbidden
	ErrorUnauthenticated
	ErrorBadRequest
	ErrorMalformedResponse
	ErrorGeneral
	ErrorConfigNotFound
	ErrorRetryExhausted
	ErrorOperationFailed
	ErrorStreamError
)

type codeInfo struct {
	reason string
	grpc   codes.Code
}

var registry = map[ServiceErrorCode]codeInfo{
	ErrorNotFound:          {"Resource not found", codes.NotFound},
	ErrorValidation:        {"General validation failure", codes.InvalidArgument},
	ErrorConflict:          {"Resource already exists or precondition failed", codes.FailedPrecondition},
	ErrorForbidden:         {"Forbidden to perform this action", codes.PermissionDenied},
	ErrorUnauthenticated:   {"Credentials could not be verified", codes.Unauthenticated},
	ErrorBadRequest:        {"Bad request", codes.InvalidArgument},
	ErrorMalformedResponse: {"Malformed response from server", codes.Internal},
	ErrorGeneral:           {"Unspecified error", codes.Unknown},
	ErrorConfigNotFound:    {"Client configuration not found", codes.NotFound},
	ErrorRetryExhausted:    {"Retry policy exhausted", codes.Unavailable},
	ErrorOperationFailed:   {"Long-running operation failed", codes.Aborted},
	ErrorStreamError:       {"Stream could not continue", codes.DataLoss},
}

// ServiceError is an error raised locally, before or after talking to a
// service. It converts to a status code so callers can classify it the same
// way they classify remote failures.
type ServiceError struct {
	Code   ServiceErrorCode
	Reason string
}

// New builds a ServiceError. reason may hold format verbs for values; an
// empty reason keeps the code's default text. Unknown codes become ErrorGeneral.
func New(code ServiceErrorCode, reason string, values ...interface{}) *ServiceError {
	info, ok := registry[code]
	if !ok {
		code, info = ErrorGeneral, registry[ErrorGeneral]
	}
	err := &ServiceError{Code: code, Reason: info.reason}
	if reason != "" {
		err.Reason = fmt.Sprintf(reason, values...)
	}
	return err
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (c ServiceErrorCode) String() string {
	return fmt.Sprintf("%s-%d", ErrorCodePrefix, int(c))
}

// StatusCode is the status code the error maps to
func (e *ServiceError) StatusCode() codes.Code {
	if info, ok := registry[e.Code]; ok {
		return info.grpc
	}
	return codes.Unknown
}

// GRPCStatus lets status.Code and status.FromError classify the error
func (e *ServiceError) GRPCStatus() *grpcstatus.Status {
	return grpcstatus.New(e.StatusCode(), e.Error())
}

func (e *ServiceError) Is404() bool {
	return e.Code == ErrorNotFound || e.Code == ErrorConfigNotFound
}

func (e *ServiceError) IsConflict() bool {
	return e.Code == ErrorConflict
}

func (e *ServiceError) IsForbidden() bool {
	return e.Code == ErrorForbidden
}

func NotFound(reason string, values ...interface{}) *ServiceError {
	return New(ErrorNotFound, reason, values...)
}

func GeneralError(reason string, values ...interface{}) *ServiceError {
	return New(ErrorGeneral, reason, values...)
}

func Unauthenticated(reason string, values ...interface{}) *ServiceError {
	return New(ErrorUnauthenticated, reason, values...)
}

func Forbidden(reason string, values ...interface{}) *ServiceError {
	return New(ErrorForbidden, reason, values...)
}

func Conflict(reason string, values ...interface{}) *ServiceError {
	return New(ErrorConflict, reason, values...)
}

func Validation(reason string, values ...interface{}) *ServiceError {
	return New(ErrorValidation, reason, values...)
}

func BadRequest(reason string, values ...interface{}) *ServiceError {
	return New(ErrorBadRequest, reason, values...)
}

func MalformedResponse(reason string, values ...interface{}) *ServiceError {
	return New(ErrorMalformedResponse, reason, values...)
}

func ConfigNotFound(reason string, values ...interface{}) *ServiceError {
	return New(ErrorConfigNotFound, reason, values...)
}

func RetryExhausted(reason string, values ...interface{}) *ServiceError {
	return New(ErrorRetryExhausted, reason, values...)
}

func OperationFailed(reason string, values ...interface{}) *ServiceError {
	return New(ErrorOperationFailed, reason, values...)
}

func StreamError(reason string, values ...interface{}) *ServiceError {
	return New(ErrorStreamError, reason, values...)
}

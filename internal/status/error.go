package status

import (
	"errors"
	"fmt"

	grpcstatus "google.golang.org/grpc/status"
)

// Error is the typed failure returned by every admin call.
type Error struct {
	Status
	// Op is the logical call that failed (e.g. "storage.GetObjectMetadata")
	Op string
	// Attempts is how many times the call was issued
	Attempts int
	// Exhausted is set when the retry policy gave up on a transient failure
	Exhausted bool
	// HTTPStatus is the HTTP status code of the last response, 0 for RPC calls
	HTTPStatus int
	// Cause is the transport-level error behind Status, if any
	Cause error
}

func (e *Error) Error() string {
	var msg string
	if e.Exhausted {
		msg = fmt.Sprintf("retry policy exhausted after %d attempt(s), last error: %s", e.Attempts, e.Status)
	} else {
		msg = e.Status.String()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

// Unwrap returns the transport-level cause for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Cause
}

// GRPCStatus lets google.golang.org/grpc/status.FromError understand Error.
func (e *Error) GRPCStatus() *grpcstatus.Status {
	return grpcstatus.New(e.Code, e.Error())
}

// Is matches another *Error with the same code and exhaustion.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Exhausted == e.Exhausted
}

// AsError returns err as *Error, converting it if needed.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return &Error{Status: Convert(err), Cause: err}
}

// Exhausted builds the error returned once the retry policy gives up.
func Exhausted(op string, last Status, attempts int, cause error) *Error {
	return &Error{Status: last, Op: op, Attempts: attempts, Exhausted: true, Cause: cause}
}

// IsExhausted reports whether err is a retry-exhausted failure.
func IsExhausted(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Exhausted
}

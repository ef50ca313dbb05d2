package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
)

// maxFrames bounds the stack trace attached to a log entry
const maxFrames = 15

// WithErrorField returns a context carrying the error message as a log field.
// Unexpected errors also get a stack_trace field; failures that are a normal
// part of talking to a remote API (HTTP errors, classified status codes,
// cancellation) do not.
func WithErrorField(ctx context.Context, err error) context.Context {
	if err == nil {
		return ctx
	}
	ctx = WithLogField(ctx, "error", err.Error())
	if shouldCaptureStackTrace(err) {
		ctx = WithLogField(ctx, "stack_trace", CaptureStackTrace(1))
	}
	return ctx
}

func shouldCaptureStackTrace(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return false
	}
	if _, ok := apperrors.IsCallError(err); ok {
		return false
	}
	var svcErr *apperrors.ServiceError
	if errors.As(err, &svcErr) {
		return false
	}
	// Errors carrying a classified status code are expected API outcomes
	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		switch grpcErr.GRPCStatus().Code() {
		case codes.Unknown, codes.Internal:
			return true
		default:
			return false
		}
	}
	return true
}

// CaptureStackTrace returns up to maxFrames frames of the caller's stack,
// formatted as "file:line function". skip=0 starts at the caller.
func CaptureStackTrace(skip int) []string {
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		if !more {
			break
		}
	}
	return stack
}

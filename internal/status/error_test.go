package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Status: New(codes.NotFound, "no such object"), Op: "storage.GetObjectMetadata"}
	assert.Equal(t, "storage.GetObjectMetadata: [NotFound] no such object", err.Error())

	err = &Error{Status: New(codes.NotFound, "no such object")}
	assert.Equal(t, "[NotFound] no such object", err.Error())
}

func TestExhausted(t *testing.T) {
	cause := errors.New("503 from server")
	err := Exhausted("storage.ListBuckets", New(codes.Unavailable, "try later"), 3, cause)

	assert.True(t, IsExhausted(err))
	assert.True(t, IsExhausted(fmt.Errorf("outer: %w", err)))
	assert.False(t, IsExhausted(New(codes.Unavailable, "x").Err()))
	assert.Equal(t,
		"storage.ListBuckets: retry policy exhausted after 3 attempt(s), last error: [Unavailable] try later",
		err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, codes.Unavailable, Code(err))
}

func TestErrorInteroperatesWithGRPC(t *testing.T) {
	err := New(codes.PermissionDenied, "denied").Err()

	gs, ok := grpcstatus.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.PermissionDenied, gs.Code())
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(codes.NotFound, "a").Err())
	assert.ErrorIs(t, err, &Error{Status: New(codes.NotFound, "other message")})
	assert.NotErrorIs(t, err, &Error{Status: New(codes.AlreadyExists, "")})
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	plain := errors.New("socket closed")
	se := AsError(plain)
	require.NotNil(t, se)
	assert.Equal(t, codes.Unknown, se.Code)
	assert.ErrorIs(t, se, plain)

	orig := &Error{Status: New(codes.Aborted, "retry")}
	assert.Same(t, orig, AsError(fmt.Errorf("x: %w", orig)))
}

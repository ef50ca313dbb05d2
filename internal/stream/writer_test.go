package stream

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

type chunk struct {
	offset int64
	data   []byte
}

// recordingUploader keeps copies of every chunk it receives.
type recordingUploader struct {
	chunks   []chunk
	finals   []chunk
	chunkErr error
	finalErr error
}

func (u *recordingUploader) UploadChunk(_ context.Context, offset int64, data []byte) error {
	if u.chunkErr != nil {
		return u.chunkErr
	}
	u.chunks = append(u.chunks, chunk{offset, bytes.Clone(data)})
	return nil
}

func (u *recordingUploader) Finalize(_ context.Context, offset int64, data []byte) (int64, error) {
	if u.finalErr != nil {
		return 0, u.finalErr
	}
	u.finals = append(u.finals, chunk{offset, bytes.Clone(data)})
	return offset + int64(len(data)), nil
}

func TestWriterBelowThreshold(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u, WithWriteBufferSize(8))

	n, err := w.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, w.Close())

	assert.Equal(t, 0, w.Flushes())
	assert.Empty(t, u.chunks)
	require.Len(t, u.finals, 1)
	assert.Equal(t, chunk{0, []byte("hello")}, u.finals[0])

	size, ok := w.Result()
	assert.True(t, ok)
	assert.Equal(t, int64(5), size)
}

func TestWriterExceedingThresholdTwice(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u, WithWriteBufferSize(4))

	_, err := w.Write([]byte("aaaabbbbc"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.Equal(t, 2, w.Flushes())
	assert.Equal(t, []chunk{{0, []byte("aaaa")}, {4, []byte("bbbb")}}, u.chunks)
	assert.Equal(t, []chunk{{8, []byte("c")}}, u.finals)
	assert.Equal(t, int64(9), w.Size())
}

func TestWriterExactMultipleKeepsLastChunkForFinalize(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u, WithWriteBufferSize(4))

	for _, part := range []string{"aa", "aa", "bb", "bb"} {
		_, err := w.Write([]byte(part))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	assert.Equal(t, 1, w.Flushes())
	assert.Equal(t, []chunk{{4, []byte("bbbb")}}, u.finals)
}

func TestWriterEmptyClose(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u)

	require.NoError(t, w.Close())
	require.Len(t, u.finals, 1)
	assert.Empty(t, u.finals[0].data)
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u)

	_, err := w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Len(t, u.finals, 1)

	_, err = w.Write([]byte("y"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestWriterChunkFailureIsSticky(t *testing.T) {
	boom := status.New(codes.Unavailable, "upload session lost").Err()
	u := &recordingUploader{chunkErr: boom}
	w := NewWriter[int64](context.Background(), u, WithWriteBufferSize(2))

	n, err := w.Write([]byte("abc"))
	assert.Equal(t, 2, n)
	require.ErrorIs(t, err, boom)

	_, err = w.Write([]byte("d"))
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, w.Close(), boom)
	assert.Empty(t, u.finals)

	_, ok := w.Result()
	assert.False(t, ok)
}

func TestWriterFinalizeFailure(t *testing.T) {
	u := &recordingUploader{finalErr: errors.New("finalize failed")}
	w := NewWriter[int64](context.Background(), u)

	err := w.Close()
	require.EqualError(t, err, "finalize failed")
	require.EqualError(t, w.Close(), "finalize failed")
}

// abortingUploader records whether the partial upload was discarded.
type abortingUploader struct {
	recordingUploader
	aborted int
}

func (u *abortingUploader) Abort(context.Context) error {
	u.aborted++
	return nil
}

func TestWriterAbortSkipsFinalize(t *testing.T) {
	u := &abortingUploader{}
	w := NewWriter[int64](context.Background(), u, WithWriteBufferSize(4))

	_, err := w.Write([]byte("abcdef"))
	require.NoError(t, err)
	readErr := errors.New("source went away")
	require.NoError(t, w.Abort(readErr))

	assert.Equal(t, 1, u.aborted)
	assert.Len(t, u.chunks, 1)
	assert.Empty(t, u.finals)

	err = w.Close()
	assert.Equal(t, codes.Aborted, status.Code(err))
	assert.ErrorIs(t, err, readErr)
	assert.Empty(t, u.finals)

	_, err = w.Write([]byte("g"))
	assert.Error(t, err)
	_, ok := w.Result()
	assert.False(t, ok)

	require.NoError(t, w.Abort(readErr))
	assert.Equal(t, 1, u.aborted)
}

func TestWriterAbortWithoutAborter(t *testing.T) {
	u := &recordingUploader{}
	w := NewWriter[int64](context.Background(), u)

	_, err := w.Write([]byte("partial"))
	require.NoError(t, err)
	require.NoError(t, w.Abort(errors.New("cancelled")))
	assert.Equal(t, codes.Aborted, status.Code(w.Close()))
	assert.Empty(t, u.finals)
}

func TestWriterAbortAfterClose(t *testing.T) {
	u := &abortingUploader{}
	w := NewWriter[int64](context.Background(), u)

	require.NoError(t, w.Close())
	err := w.Abort(errors.New("late"))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
	assert.Zero(t, u.aborted)
}

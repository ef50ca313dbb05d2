package stream

import (
	"context"
	"io"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// Uploader receives the chunks of a sequential write. chunk is only valid for
// the duration of the call.
type Uploader[T any] interface {
	// UploadChunk sends a full, non-final chunk starting at offset
	UploadChunk(ctx context.Context, offset int64, chunk []byte) error
	// Finalize sends the last (possibly empty) chunk and returns the result
	Finalize(ctx context.Context, offset int64, chunk []byte) (T, error)
}

// Aborter is implemented by uploaders that can discard a partial upload.
// Writer.Abort calls it so no object is created from the bytes sent so far.
type Aborter interface {
	Abort(ctx context.Context) error
}

// WriterOption configures a Writer
type WriterOption func(*writerOptions)

type writerOptions struct {
	bufSize int
}

// WithWriteBufferSize sets the chunk size
func WithWriteBufferSize(size int) WriterOption {
	return func(o *writerOptions) {
		if size > 0 {
			o.bufSize = size
		}
	}
}

// Writer is a sequential byte sink that uploads a chunk each time its buffer
// fills and more data arrives. Close uploads the remainder as the final
// chunk. It is not safe for concurrent use.
type Writer[T any] struct {
	ctx     context.Context
	u       Uploader[T]
	buf     []byte
	offset  int64
	flushes int

	closed bool
	done   bool
	result T
	err    error
}

// NewWriter returns a Writer that sends its chunks to u.
func NewWriter[T any](ctx context.Context, u Uploader[T], opts ...WriterOption) *Writer[T] {
	o := writerOptions{bufSize: DefaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Writer[T]{
		ctx: ctx,
		u:   u,
		buf: make([]byte, 0, o.bufSize),
	}
}

// Write implements io.Writer.
func (w *Writer[T]) Write(p []byte) (int, error) {
	if w.closed {
		return 0, status.New(codes.FailedPrecondition, "write on closed stream").Err()
	}
	if w.err != nil {
		return 0, w.err
	}

	written := 0
	for len(p) > 0 {
		if len(w.buf) == cap(w.buf) {
			if err := w.flush(); err != nil {
				return written, err
			}
		}
		n := copy(w.buf[len(w.buf):cap(w.buf)], p)
		w.buf = w.buf[:len(w.buf)+n]
		p = p[n:]
		written += n
	}
	return written, nil
}

func (w *Writer[T]) flush() error {
	if err := w.u.UploadChunk(w.ctx, w.offset, w.buf); err != nil {
		w.err = err
		return err
	}
	w.offset += int64(len(w.buf))
	w.flushes++
	w.buf = w.buf[:0]
	return nil
}

// Close finalizes the upload. Later calls return the first Close's error.
func (w *Writer[T]) Close() error {
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err != nil {
		return w.err
	}

	result, err := w.u.Finalize(w.ctx, w.offset, w.buf)
	if err != nil {
		w.err = err
		return err
	}
	w.offset += int64(len(w.buf))
	w.buf = w.buf[:0]
	w.result = result
	w.done = true
	return nil
}

// Abort abandons the upload without finalizing it, typically because the
// source failed. Buffered bytes are dropped, later writes fail, and Close
// returns an Aborted error wrapping cause. Aborting after a successful Close
// is a FailedPrecondition error.
func (w *Writer[T]) Abort(cause error) error {
	if w.done {
		return status.New(codes.FailedPrecondition, "abort after the upload was finalized").Err()
	}
	if w.closed {
		return nil
	}
	w.closed = true
	w.buf = w.buf[:0]
	if w.err == nil {
		w.err = &status.Error{Status: status.Newf(codes.Aborted, "upload abandoned: %v", cause), Cause: cause}
	}
	if a, ok := w.u.(Aborter); ok {
		return a.Abort(w.ctx)
	}
	return nil
}

// Result returns the finalized result; ok is false until Close succeeds.
func (w *Writer[T]) Result() (T, bool) {
	return w.result, w.done
}

// Flushes returns how many non-final chunks have been uploaded.
func (w *Writer[T]) Flushes() int {
	return w.flushes
}

// Size returns how many bytes have been accepted by the uploader.
func (w *Writer[T]) Size() int64 {
	return w.offset
}

var _ io.WriteCloser = (*Writer[struct{}])(nil)

package stream

import (
	"bufio"
	"context"
	"errors"
	"io"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// DefaultBufferSize is the read and write buffer size used when none is set.
const DefaultBufferSize = 128 * 1024

// DefaultMaxResumes bounds how many times a Reader re-requests the remainder
// of a range after the body fails mid-stream.
const DefaultMaxResumes = 3

// DownloadResponse is one ranged response from a Downloader.
type DownloadResponse struct {
	// ContentRange is the raw Content-Range header, empty when absent
	ContentRange string
	// ContentLength is the body length, -1 when unknown
	ContentLength int64
	// Body is the payload; the Reader closes it
	Body io.ReadCloser
}

// Downloader issues a ranged read starting offset bytes into the requested
// range. Implementations map HTTP failures to *status.Error.
type Downloader interface {
	Download(ctx context.Context, offset int64) (*DownloadResponse, error)
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithReadBufferSize sets the refill buffer size
func WithReadBufferSize(size int) ReaderOption {
	return func(r *Reader) {
		if size > 0 {
			r.bufSize = size
		}
	}
}

// WithMaxResumes sets how many mid-stream failures are resumed; 0 disables it
func WithMaxResumes(n int) ReaderOption {
	return func(r *Reader) {
		if n >= 0 {
			r.maxResumes = n
		}
	}
}

// Reader is a sequential byte source over a ranged download. It is not safe
// for concurrent use.
type Reader struct {
	ctx        context.Context
	d          Downloader
	bufSize    int
	maxResumes int
	resumes    int

	rng    ContentRange
	known  bool
	body   io.ReadCloser
	buf    *bufio.Reader
	read   int64
	closed bool
	err    error
}

// NewReader issues the initial request and returns a Reader positioned at
// the start of the range.
func NewReader(ctx context.Context, d Downloader, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		ctx:        ctx,
		d:          d,
		bufSize:    DefaultBufferSize,
		maxResumes: DefaultMaxResumes,
	}
	for _, opt := range opts {
		opt(r)
	}

	resp, err := d.Download(ctx, 0)
	if err != nil {
		return nil, err
	}
	rng, known, err := rangeOf(resp)
	if err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	r.rng = rng
	r.known = known
	r.attach(resp.Body)
	return r, nil
}

// rangeOf extracts the payload range. A full response without Content-Range
// falls back to its Content-Length.
func rangeOf(resp *DownloadResponse) (ContentRange, bool, error) {
	if resp.ContentRange != "" {
		rng, err := ParseContentRange(resp.ContentRange)
		return rng, true, err
	}
	switch {
	case resp.ContentLength > 0:
		return ContentRange{First: 0, Last: resp.ContentLength - 1, Total: resp.ContentLength}, true, nil
	case resp.ContentLength == 0:
		return ContentRange{Total: 0, SizeOnly: true}, true, nil
	default:
		return ContentRange{Total: UnknownTotal}, false, nil
	}
}

func (r *Reader) attach(body io.ReadCloser) {
	r.body = body
	var src io.Reader = body
	if r.known {
		src = io.LimitReader(body, r.rng.Length()-r.read)
	}
	r.buf = bufio.NewReaderSize(src, r.bufSize)
}

// Range returns the range reported by the initial response.
func (r *Reader) Range() ContentRange {
	return r.rng
}

// Size returns the total object size, or UnknownTotal.
func (r *Reader) Size() int64 {
	return r.rng.Total
}

// Offset returns how many payload bytes have been consumed.
func (r *Reader) Offset() int64 {
	return r.read
}

// Read implements io.Reader. A body that ends before the announced range is
// reported as a DataLoss error wrapping io.ErrUnexpectedEOF.
func (r *Reader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, status.New(codes.FailedPrecondition, "read on closed stream").Err()
	}
	if r.err != nil {
		return 0, r.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if r.known && r.read >= r.rng.Length() {
		r.err = io.EOF
		return 0, io.EOF
	}

	for {
		n, err := r.buf.Read(p)
		r.read += int64(n)
		switch {
		case err == nil:
			return n, nil
		case errors.Is(err, io.EOF):
			if r.known && r.read < r.rng.Length() {
				r.err = &status.Error{
					Status: status.Newf(codes.DataLoss, "stream ended after %d of %d bytes", r.read, r.rng.Length()),
					Cause:  io.ErrUnexpectedEOF,
				}
				return n, r.err
			}
			r.err = io.EOF
			return n, io.EOF
		}

		if n > 0 {
			// Surface the bytes now and report the failure on the next call
			// if resuming does not recover.
			if rerr := r.resume(err); rerr != nil {
				r.err = rerr
			}
			return n, nil
		}
		if rerr := r.resume(err); rerr != nil {
			r.err = rerr
			return 0, rerr
		}
	}
}

// resume re-requests the remainder of the range after a body failure.
func (r *Reader) resume(cause error) error {
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return &status.Error{Status: status.Convert(ctxErr), Cause: cause}
	}
	if !r.known || r.resumes >= r.maxResumes {
		return &status.Error{Status: status.Newf(codes.Unavailable, "stream read failed: %v", cause), Cause: cause}
	}
	r.resumes++
	_ = r.body.Close()

	resp, err := r.d.Download(r.ctx, r.read)
	if err != nil {
		return err
	}
	// A resumed response without Content-Range may be the whole object
	// from a server that ignored the Range header.
	want := r.rng.First + r.read
	if resp.ContentRange == "" {
		_ = resp.Body.Close()
		return status.Malformed("resumed response at offset %d has no content-range", want).Err()
	}
	rng, err := ParseContentRange(resp.ContentRange)
	if err != nil {
		_ = resp.Body.Close()
		return err
	}
	if rng.First != want {
		_ = resp.Body.Close()
		return status.Malformed("resumed range %s does not continue at offset %d", rng, want).Err()
	}
	r.attach(resp.Body)
	return nil
}

// Close releases the underlying body. It is safe to call more than once.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.body != nil {
		return r.body.Close()
	}
	return nil
}

var _ io.ReadCloser = (*Reader)(nil)

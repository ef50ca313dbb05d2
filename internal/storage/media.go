package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/stream"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// statusResumeIncomplete acknowledges a non-final resumable upload chunk
const statusResumeIncomplete = http.StatusPermanentRedirect

// maxErrorBody bounds how much of a failed streaming response is kept
const maxErrorBody = 64 * 1024

// ReadOptions selects the byte range [Begin, End) of an object. A zero End
// reads to the end of the object.
type ReadOptions struct {
	Begin int64
	End   int64
}

// WriteOptions describes the object created by WriteObject
type WriteOptions struct {
	ContentType string
	Metadata    map[string]string
}

// -----------------------------------------------------------------------------
// Downloads
// -----------------------------------------------------------------------------

// ReadObject opens a streaming reader over an object's contents. The initial
// request is made before ReadObject returns. Idempotent.
func (c *Client) ReadObject(ctx context.Context, bucket, object string, opts ReadOptions) (*stream.Reader, error) {
	ctx = logger.WithObject(ctx, bucket, object)
	if opts.Begin < 0 || (opts.End != 0 && opts.End <= opts.Begin) {
		return nil, status.Newf(codes.InvalidArgument, "invalid read range [%d, %d)", opts.Begin, opts.End).Err()
	}
	d := &objectDownloader{c: c, bucket: bucket, object: object, opts: opts}
	return stream.NewReader(ctx, d, stream.WithReadBufferSize(c.readBufferSize))
}

type objectDownloader struct {
	c      *Client
	bucket string
	object string
	opts   ReadOptions
}

// rangeHeader returns the Range header for a read starting offset bytes into
// the requested range, or "" for a whole-object read.
func (d *objectDownloader) rangeHeader(offset int64) string {
	first := d.opts.Begin + offset
	if first == 0 && d.opts.End == 0 {
		return ""
	}
	if d.opts.End == 0 {
		return fmt.Sprintf("bytes=%d-", first)
	}
	return fmt.Sprintf("bytes=%d-%d", first, d.opts.End-1)
}

func (d *objectDownloader) Download(ctx context.Context, offset int64) (*stream.DownloadResponse, error) {
	c := d.c
	return executor.Execute(ctx, c.exec.NewCall("storage.ReadObject"), func(ctx context.Context) (*stream.DownloadResponse, error) {
		req := transport.NewRequest(http.MethodGet, c.objectURL(d.bucket, d.object),
			transport.WithQueryParam("alt", "media"))
		rangeHeader := d.rangeHeader(offset)
		if rangeHeader != "" {
			req.Headers = map[string]string{"Range": rangeHeader}
		}

		resp, err := c.transport.Stream(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusMultipleChoices {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			return nil, transport.ResponseError(req, resp.StatusCode, resp.Status, body, 0)
		}
		contentRange := resp.Headers.Get("Content-Range")
		if rangeHeader != "" {
			if err := checkRangeStart(contentRange, d.opts.Begin+offset); err != nil {
				_ = resp.Body.Close()
				return nil, err
			}
		}
		return &stream.DownloadResponse{
			ContentRange:  contentRange,
			ContentLength: resp.ContentLength,
			Body:          resp.Body,
		}, nil
	})
}

// checkRangeStart verifies that a ranged read was answered with the range
// asked for. A server that ignores Range sends the whole object with 200 and
// no Content-Range, which must not be read as if it started at first.
func checkRangeStart(contentRange string, first int64) error {
	if contentRange == "" {
		return status.Malformed("ranged read from offset %d returned no content-range", first).Err()
	}
	rng, err := stream.ParseContentRange(contentRange)
	if err != nil {
		return err
	}
	if rng.First != first {
		return status.Malformed("ranged read from offset %d returned %s", first, rng).Err()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Uploads
// -----------------------------------------------------------------------------

// WriteObject starts a resumable upload session and returns a writer for the
// object's contents. The object exists once Close succeeds; Result then
// returns its metadata.
func (c *Client) WriteObject(ctx context.Context, bucket, object string, opts WriteOptions) (*stream.Writer[*ObjectMetadata], error) {
	ctx = logger.WithObject(ctx, bucket, object)

	contentType := opts.ContentType
	if contentType == "" {
		contentType = DefaultContentType
	}
	body, err := jsonBody(&ObjectMetadata{Bucket: bucket, Name: object, ContentType: contentType, Metadata: opts.Metadata})
	if err != nil {
		return nil, err
	}

	// Starting a session twice only leaves an unused session behind.
	session, err := executor.Execute(ctx, c.exec.NewCall("storage.StartResumableUpload"), func(ctx context.Context) (string, error) {
		req := newJSONRequest(http.MethodPost, c.uploadEndpoint+"/b/"+pathEscape(bucket)+"/o", body,
			transport.WithQueryParam("uploadType", "resumable"),
			transport.WithQueryParam("name", object),
			transport.WithHeader("X-Upload-Content-Type", contentType),
		)
		resp, err := c.exchange(ctx, req)
		if err != nil {
			return "", err
		}
		location := resp.Headers.Get("Location")
		if location == "" {
			return "", status.Malformed("resumable upload response has no Location header").Err()
		}
		return location, nil
	})
	if err != nil {
		return nil, err
	}

	u := &resumableUploader{c: c, session: session}
	return stream.NewWriter[*ObjectMetadata](ctx, u, stream.WithWriteBufferSize(chunkSize(c.writeBufferSize))), nil
}

// chunkSize rounds size up to the resumable chunk quantum
func chunkSize(size int) int {
	if size <= 0 {
		size = stream.DefaultBufferSize
	}
	return (size + resumableChunkQuantum - 1) / resumableChunkQuantum * resumableChunkQuantum
}

// resumableUploader sends writer chunks to an upload session. Each chunk is
// addressed by offset, so retried attempts are idempotent.
type resumableUploader struct {
	c       *Client
	session string
}

func (u *resumableUploader) put(offset int64, chunk []byte, total int64) *transport.Request {
	rng := stream.ContentRange{First: offset, Last: offset + int64(len(chunk)) - 1, Total: total}
	if len(chunk) == 0 {
		rng = stream.ContentRange{Total: total, SizeOnly: true}
	}
	return transport.NewRequest(http.MethodPut, u.session,
		transport.WithHeader("Content-Range", rng.String()),
		transport.WithHeader("Content-Type", DefaultContentType),
		transport.WithBody(chunk),
	)
}

func (u *resumableUploader) UploadChunk(ctx context.Context, offset int64, chunk []byte) error {
	want := offset + int64(len(chunk))
	return executor.Do(ctx, u.c.exec.NewCall("storage.UploadChunk"), func(ctx context.Context) error {
		req := u.put(offset, chunk, stream.UnknownTotal)
		resp, err := u.c.transport.Do(ctx, req)
		if err != nil {
			return err
		}
		if resp.StatusCode != statusResumeIncomplete {
			if err := transport.CheckResponse(req, resp); err != nil {
				return err
			}
			return status.Malformed("upload session finished before the final chunk (HTTP %d)", resp.StatusCode).Err()
		}
		committed, err := committedBytes(resp.Headers.Get("Range"))
		if err != nil {
			return err
		}
		if committed != want {
			return status.Newf(codes.Aborted, "upload session committed %d bytes, expected %d", committed, want).Err()
		}
		return nil
	})
}

func (u *resumableUploader) Finalize(ctx context.Context, offset int64, chunk []byte) (*ObjectMetadata, error) {
	total := offset + int64(len(chunk))
	return executor.Execute(ctx, u.c.exec.NewCall("storage.FinalizeUpload"), func(ctx context.Context) (*ObjectMetadata, error) {
		resp, err := u.c.exchange(ctx, u.put(offset, chunk, total))
		if err != nil {
			return nil, err
		}
		return decode[*ObjectMetadata]("storage.FinalizeUpload", resp)
	})
}

// statusClientClosed is how a cancelled upload session acknowledges DELETE
const statusClientClosed = 499

// Abort cancels the upload session so none of the uploaded chunks become an
// object. A session that is already gone counts as cancelled.
func (u *resumableUploader) Abort(ctx context.Context) error {
	return executor.Do(ctx, u.c.exec.NewCall("storage.CancelUpload"), func(ctx context.Context) error {
		req := transport.NewRequest(http.MethodDelete, u.session)
		resp, err := u.c.transport.Do(ctx, req)
		if err != nil {
			return err
		}
		switch {
		case resp.StatusCode == statusClientClosed, resp.StatusCode == http.StatusNotFound, resp.IsSuccess():
			return nil
		}
		return transport.CheckResponse(req, resp)
	})
}

// committedBytes parses the "bytes=0-<last>" Range header of a 308 response.
// A missing header means nothing has been committed.
func committedBytes(header string) (int64, error) {
	if header == "" {
		return 0, nil
	}
	span, ok := strings.CutPrefix(header, "bytes=0-")
	if !ok {
		return 0, status.Malformed("invalid upload range header <%s>", header).Err()
	}
	last, err := strconv.ParseInt(span, 10, 64)
	if err != nil || last < 0 {
		return 0, status.Malformed("invalid upload range header <%s>", header).Err()
	}
	return last + 1, nil
}

// Package storage is an admin client for buckets, objects and their access
// control lists over the JSON storage API. Every operation is one logical
// call run by the executor; whether a retried attempt is safe is noted on
// each operation.
package storage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/patch"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/stream"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/transport"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// DefaultAPIVersion is the storage API version used in request paths
const DefaultAPIVersion = "v1"

// resumableChunkQuantum is the size every non-final resumable upload chunk
// must be a multiple of.
const resumableChunkQuantum = 256 * 1024

// Client performs storage admin operations. It is safe for concurrent use;
// per-call retry state lives in the executor's calls.
type Client struct {
	transport transport.Client
	exec      *executor.Executor
	launcher  *executor.Launcher
	log       logger.Logger

	endpoint        string
	apiVersion      string
	readBufferSize  int
	writeBufferSize int

	storageEndpoint string
	uploadEndpoint  string
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint sets the service root (defaults to the transport's base URL)
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithAPIVersion sets the API version path segment
func WithAPIVersion(version string) Option {
	return func(c *Client) {
		c.apiVersion = version
	}
}

// WithReadBufferSize sets the buffer size of object readers
func WithReadBufferSize(size int) Option {
	return func(c *Client) {
		c.readBufferSize = size
	}
}

// WithWriteBufferSize sets the chunk size of object writers. It is rounded up
// to a multiple of 256 KiB.
func WithWriteBufferSize(size int) Option {
	return func(c *Client) {
		c.writeBufferSize = size
	}
}

// WithLauncher sets the launcher used by the Async operations
func WithLauncher(l *executor.Launcher) Option {
	return func(c *Client) {
		c.launcher = l
	}
}

// NewClient creates a storage client over t, running every call through exec.
func NewClient(t transport.Client, exec *executor.Executor, opts ...Option) *Client {
	c := &Client{
		transport:       t,
		exec:            exec,
		log:             exec.Logger(),
		apiVersion:      DefaultAPIVersion,
		readBufferSize:  stream.DefaultBufferSize,
		writeBufferSize: stream.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.endpoint == "" {
		c.endpoint = t.BaseURL()
	}
	if c.launcher == nil {
		c.launcher = executor.NewLauncher(executor.DefaultMaxInFlight, exec.Metrics())
	}
	c.endpoint = strings.TrimRight(c.endpoint, "/")
	c.storageEndpoint = c.endpoint + "/storage/" + c.apiVersion
	c.uploadEndpoint = c.endpoint + "/upload/storage/" + c.apiVersion
	return c
}

// -----------------------------------------------------------------------------
// Request helpers
// -----------------------------------------------------------------------------

func pathEscape(segment string) string {
	return url.PathEscape(segment)
}

func (c *Client) bucketURL(bucket string, parts ...string) string {
	u := c.storageEndpoint + "/b/" + pathEscape(bucket)
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

func (c *Client) objectURL(bucket, object string, parts ...string) string {
	return c.bucketURL(bucket, append([]string{"o", pathEscape(object)}, parts...)...)
}

// exchange issues one request and checks its status
func (c *Client) exchange(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := transport.CheckResponse(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func decode[T any](method string, resp *transport.Response) (T, error) {
	var out T
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		var zero T
		return zero, status.Malformed("%s: cannot decode response body: %v", method, err).Err()
	}
	return out, nil
}

// callJSON runs one logical call whose attempts each send req() and decode
// the JSON response into T.
func callJSON[T any](ctx context.Context, c *Client, method string, req func() *transport.Request) (T, error) {
	return executor.Execute(ctx, c.exec.NewCall(method), func(ctx context.Context) (T, error) {
		resp, err := c.exchange(ctx, req())
		if err != nil {
			var zero T
			return zero, err
		}
		return decode[T](method, resp)
	})
}

// callEmpty runs one logical call whose response body is ignored.
func callEmpty(ctx context.Context, c *Client, method string, req func() *transport.Request) error {
	return executor.Do(ctx, c.exec.NewCall(method), func(ctx context.Context) error {
		_, err := c.exchange(ctx, req())
		return err
	})
}

func jsonBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Newf(codes.InvalidArgument, "cannot encode request body: %v", err).Err()
	}
	return data, nil
}

func patchBody(p patch.Patcher) ([]byte, error) {
	return jsonBody(p.Build())
}

func newJSONRequest(method, target string, body []byte, opts ...transport.RequestOption) *transport.Request {
	opts = append([]transport.RequestOption{transport.WithJSONBody(body)}, opts...)
	return transport.NewRequest(method, target, opts...)
}

func getRequest(target string, opts ...transport.RequestOption) func() *transport.Request {
	return func() *transport.Request {
		return transport.NewRequest(http.MethodGet, target, opts...)
	}
}

package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	apperrors "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/errors"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
	pkgotel "github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/otel"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/version"
)

// -----------------------------------------------------------------------------
// HTTP Client Implementation
// -----------------------------------------------------------------------------

// httpClient implements the Client interface
type httpClient struct {
	client  *http.Client
	config  *ClientConfig
	limiter *rate.Limiter
	log     logger.Logger
}

// ClientOption is a functional option for configuring the client
type ClientOption func(*httpClient)

// WithHTTPClient sets a custom http.Client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *httpClient) {
		c.client = client
	}
}

// WithConfig sets the client configuration
func WithConfig(config *ClientConfig) ClientOption {
	return func(c *httpClient) {
		if config != nil {
			c.config = config
		}
	}
}

// WithBaseURL sets the base URL for relative request URLs
func WithBaseURL(baseURL string) ClientOption {
	return func(c *httpClient) {
		c.config.BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithDefaultHeader adds a default header to all requests
func WithDefaultHeader(key, value string) ClientOption {
	return func(c *httpClient) {
		if c.config.DefaultHeaders == nil {
			c.config.DefaultHeaders = make(map[string]string)
		}
		c.config.DefaultHeaders[key] = value
	}
}

// WithTimeout sets the per-exchange timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *httpClient) {
		c.config.Timeout = timeout
	}
}

// WithRateLimit limits the client to qps requests per second with the given burst
func WithRateLimit(qps float64, burst int) ClientOption {
	return func(c *httpClient) {
		c.config.RateLimit = qps
		c.config.RateBurst = burst
	}
}

// NewClient creates a new HTTP transport
func NewClient(log logger.Logger, opts ...ClientOption) Client {
	c := &httpClient{
		config: DefaultClientConfig(),
		log:    log,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Timeouts are applied per request so streams can outlive them
	if c.client == nil {
		c.client = &http.Client{}
	}

	if c.config.RateLimit > 0 {
		burst := c.config.RateBurst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(c.config.RateLimit), burst)
	}

	return c
}

func (c *httpClient) BaseURL() string {
	return c.config.BaseURL
}

// Do executes a single buffered exchange
func (c *httpClient) Do(ctx context.Context, req *Request) (*Response, error) {
	if req == nil {
		return nil, status.New(codes.InvalidArgument, "request cannot be nil").Err()
	}

	timeout := c.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, exchangeError(ctx, req, httpReq.URL.String(), start, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, exchangeError(ctx, req, httpReq.URL.String(), start, fmt.Errorf("failed to read response body: %w", err))
	}

	response := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       respBody,
		Duration:   time.Since(start),
	}

	c.log.Debugf(ctx, "HTTP %s %s -> %d", req.Method, httpReq.URL.Redacted(), response.StatusCode)
	return response, nil
}

// Stream executes a single exchange and hands the open body to the caller
func (c *httpClient) Stream(ctx context.Context, req *Request) (*StreamResponse, error) {
	if req == nil {
		return nil, status.New(codes.InvalidArgument, "request cannot be nil").Err()
	}

	start := time.Now()
	httpReq, err := c.newHTTPRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, exchangeError(ctx, req, httpReq.URL.String(), start, err)
	}

	c.log.Debugf(ctx, "HTTP stream %s %s -> %d", req.Method, httpReq.URL.Redacted(), httpResp.StatusCode)
	return &StreamResponse{
		StatusCode:    httpResp.StatusCode,
		Status:        httpResp.Status,
		Headers:       httpResp.Header,
		ContentLength: httpResp.ContentLength,
		Body:          httpResp.Body,
	}, nil
}

func (c *httpClient) newHTTPRequest(ctx context.Context, req *Request) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, &status.Error{Status: status.Convert(ctxErr), Cause: err}
			}
			// The limiter refuses waits that would outlast the deadline
			return nil, &status.Error{Status: status.New(codes.DeadlineExceeded, err.Error()), Cause: err}
		}
	}

	target, err := c.resolveURL(req)
	if err != nil {
		return nil, &status.Error{Status: status.Newf(codes.InvalidArgument, "invalid URL %q: %v", req.URL, err), Cause: err}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, &status.Error{Status: status.Newf(codes.InvalidArgument, "failed to create HTTP request: %v", err), Cause: err}
	}

	httpReq.Header.Set("User-Agent", version.UserAgent())

	for k, v := range c.config.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}

	// Request-specific headers override defaults
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	if id, ok := executor.RequestIDFromContext(ctx); ok && httpReq.Header.Get(executor.RequestIDHeader) == "" {
		httpReq.Header.Set(executor.RequestIDHeader, id)
	}

	pkgotel.InjectHTTPHeaders(ctx, httpReq.Header)
	return httpReq, nil
}

func (c *httpClient) resolveURL(req *Request) (string, error) {
	raw := req.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = c.config.BaseURL + "/" + strings.TrimLeft(raw, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// exchangeError classifies a failure that produced no HTTP response.
// Caller cancellation keeps its context code; anything else on the wire
// (refused, reset, per-request timeout) is Unavailable or DeadlineExceeded.
func exchangeError(ctx context.Context, req *Request, target string, start time.Time, err error) error {
	callErr := apperrors.NewCallError(req.Method, target, 0, "", nil, time.Since(start), err)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &status.Error{Status: status.Convert(ctxErr), Cause: callErr}
	}
	return &status.Error{Status: status.New(codes.Unavailable, err.Error()), Cause: callErr}
}

// CheckResponse returns nil for 2xx responses and a *status.Error built from
// the HTTP status and body otherwise.
func CheckResponse(req *Request, resp *Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return ResponseError(req, resp.StatusCode, resp.Status, resp.Body, resp.Duration)
}

// ResponseError builds the *status.Error for a non-success HTTP response.
func ResponseError(req *Request, statusCode int, statusText string, body []byte, duration time.Duration) error {
	st := status.FromHTTP(statusCode, body)
	callErr := apperrors.NewCallError(req.Method, req.URL, statusCode, statusText, body, duration,
		fmt.Errorf("HTTP %d", statusCode))
	return &status.Error{Status: st, HTTPStatus: statusCode, Cause: callErr}
}

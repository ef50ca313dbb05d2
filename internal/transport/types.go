package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout bounds a buffered exchange when ClientConfig.Timeout is unset
const DefaultTimeout = 60 * time.Second

// ClientConfig configures a Client
type ClientConfig struct {
	// BaseURL is prefixed to relative request URLs
	BaseURL string
	// Timeout bounds a single buffered exchange. Streams are not bounded by it.
	Timeout time.Duration
	// DefaultHeaders are added to every request (credentials go here)
	DefaultHeaders map[string]string
	// RateLimit is the sustained requests per second; 0 disables limiting
	RateLimit float64
	// RateBurst is the burst size allowed above RateLimit
	RateBurst int
}

// DefaultClientConfig returns an unlimited config with DefaultTimeout
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:        DefaultTimeout,
		DefaultHeaders: make(map[string]string),
	}
}

// Request is one HTTP exchange with a resource API
type Request struct {
	Method string
	// URL is absolute, or relative to the client's BaseURL
	URL     string
	Headers map[string]string
	// Query is encoded onto the URL
	Query url.Values
	Body  []byte
	// Timeout replaces ClientConfig.Timeout when positive
	Timeout time.Duration
}

// RequestOption mutates a Request under construction
type RequestOption func(*Request)

// WithHeader sets one request header
func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(map[string]string)
		}
		r.Headers[key] = value
	}
}

// WithQueryParam sets a query parameter. Empty values are skipped so
// optional parameters can be passed unconditionally.
func WithQueryParam(key, value string) RequestOption {
	return func(r *Request) {
		if value == "" {
			return
		}
		if r.Query == nil {
			r.Query = url.Values{}
		}
		r.Query.Set(key, value)
	}
}

// WithBody attaches a raw payload, such as an upload chunk
func WithBody(body []byte) RequestOption {
	return func(r *Request) {
		r.Body = body
	}
}

// WithJSONBody attaches an encoded JSON resource
func WithJSONBody(body []byte) RequestOption {
	return func(r *Request) {
		WithBody(body)(r)
		WithHeader("Content-Type", "application/json")(r)
	}
}

// NewRequest builds a request from options
func NewRequest(method, url string, opts ...RequestOption) *Request {
	req := &Request{Method: method, URL: url}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Response is a fully-read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	// Duration covers sending the request and reading the body
	Duration time.Duration
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// StreamResponse is an HTTP response whose body is read incrementally.
// The caller must close Body.
type StreamResponse struct {
	StatusCode    int
	Status        string
	Headers       http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// Client is the HTTP capability used by resource clients. Each method makes
// exactly one attempt; retries belong to the executor.
type Client interface {
	// Do sends req and buffers the whole response body
	Do(ctx context.Context, req *Request) (*Response, error)

	// Stream sends req and hands back the open body
	Stream(ctx context.Context, req *Request) (*StreamResponse, error)

	BaseURL() string
}

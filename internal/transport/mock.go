package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
)

// MockClient provides a mock implementation of Client for unit testing.
// Responses are served from per-call queues; when a queue is empty the
// Default fields are used.
type MockClient struct {
	mu sync.Mutex

	// DoResponses are returned from Do in order
	DoResponses []*Response
	// DoErrors are returned from Do in order, paired with DoResponses
	DoErrors []error
	// DefaultResponse is returned from Do once the queues are drained
	DefaultResponse *Response

	// StreamResponses are returned from Stream in order
	StreamResponses []*StreamResponse
	// StreamErrors are returned from Stream in order, paired with StreamResponses
	StreamErrors []error

	// Requests tracks every request passed to Do or Stream
	Requests []*Request

	baseURL string
}

// NewMockClient creates a new mock client that answers 200 with an empty body
func NewMockClient() *MockClient {
	return &MockClient{
		DefaultResponse: &Response{StatusCode: http.StatusOK, Status: "200 OK", Headers: http.Header{}},
		baseURL:         "http://mock.invalid",
	}
}

// Do implements Client
func (m *MockClient) Do(ctx context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp *Response
	var err error
	if len(m.DoResponses) > 0 || len(m.DoErrors) > 0 {
		if len(m.DoResponses) > 0 {
			resp = m.DoResponses[0]
			m.DoResponses = m.DoResponses[1:]
		}
		if len(m.DoErrors) > 0 {
			err = m.DoErrors[0]
			m.DoErrors = m.DoErrors[1:]
		}
		return resp, err
	}
	return m.DefaultResponse, nil
}

// Stream implements Client
func (m *MockClient) Stream(ctx context.Context, req *Request) (*StreamResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp *StreamResponse
	var err error
	if len(m.StreamResponses) > 0 {
		resp = m.StreamResponses[0]
		m.StreamResponses = m.StreamResponses[1:]
	}
	if len(m.StreamErrors) > 0 {
		err = m.StreamErrors[0]
		m.StreamErrors = m.StreamErrors[1:]
	}
	if resp == nil && err == nil {
		resp = &StreamResponse{
			StatusCode: http.StatusOK,
			Status:     "200 OK",
			Headers:    http.Header{},
			Body:       io.NopCloser(bytes.NewReader(nil)),
		}
	}
	return resp, err
}

// BaseURL implements Client
func (m *MockClient) BaseURL() string {
	return m.baseURL
}

// GetRequests returns a copy of the recorded requests
func (m *MockClient) GetRequests() []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Request, len(m.Requests))
	copy(out, m.Requests)
	return out
}

// Reset clears all recorded requests and queued responses
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DoResponses = nil
	m.DoErrors = nil
	m.StreamResponses = nil
	m.StreamErrors = nil
	m.Requests = nil
}

// Ensure MockClient implements Client
var _ Client = (*MockClient)(nil)

// Package lro drives server-side long-running operations to completion.
// An initiating call returns an Operation handle; the poller re-reads it
// through the executor until it is done, then unwraps the typed result.
package lro

import (
	"context"
	"encoding/json"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// Operation is a server-owned job handle. Once Done is true exactly one of
// Response and Error is set.
type Operation struct {
	Name     string          `json:"name"`
	Done     bool            `json:"done,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    *status.Status  `json:"error,omitempty"`
}

// Getter re-reads an operation by name.
type Getter func(ctx context.Context, name string) (*Operation, error)

// Result unwraps a finished operation into T. A failed operation returns its
// status as a *status.Error; a successful one without a response is malformed.
func Result[T any](op *Operation) (T, error) {
	var zero T
	if op == nil {
		return zero, status.Malformed("nil operation").Err()
	}
	if !op.Done {
		return zero, status.Malformed("operation %s is not done", op.Name).Err()
	}
	if op.Error != nil && !op.Error.IsOK() {
		return zero, &status.Error{Status: *op.Error, Op: op.Name}
	}
	if len(op.Response) == 0 {
		return zero, status.Malformed("operation %s completed without a response", op.Name).Err()
	}

	var out T
	if err := json.Unmarshal(op.Response, &out); err != nil {
		return zero, &status.Error{
			Status: status.Malformed("cannot decode response of operation %s: %v", op.Name, err),
			Op:     op.Name,
			Cause:  err,
		}
	}
	return out, nil
}

package executor

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
)

// DefaultMaxInFlight bounds concurrent asynchronous calls per client
const DefaultMaxInFlight = 16

// Launcher runs asynchronous calls with a bound on how many hold a slot at
// once. Calls beyond the bound wait for a slot before starting.
type Launcher struct {
	sem     *semaphore.Weighted
	metrics *Metrics
}

// NewLauncher creates a Launcher allowing maxInFlight concurrent calls.
func NewLauncher(maxInFlight int64, metrics *Metrics) *Launcher {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &Launcher{
		sem:     semaphore.NewWeighted(maxInFlight),
		metrics: metrics,
	}
}

// Future is the handle to an asynchronous call.
type Future[T any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	value  T
	err    error
}

// Go starts fn on its own goroutine once a launcher slot is free.
// Cancelling ctx or the Future stops waiting for a slot and cancels fn's context.
func Go[T any](l *Launcher, ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[T]{
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer close(f.done)
		defer cancel()

		if err := l.sem.Acquire(ctx, 1); err != nil {
			f.err = &status.Error{Status: status.Convert(err), Cause: err}
			return
		}
		l.metrics.addInFlight(1)
		defer func() {
			l.metrics.addInFlight(-1)
			l.sem.Release(1)
		}()

		f.value, f.err = fn(ctx)
	}()

	return f
}

// Done is closed once the call has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Cancel asks the call to stop. The Future still completes; Wait returns
// the call's result, typically a Canceled status.
func (f *Future[T]) Cancel() {
	f.cancel()
}

// Wait blocks until the call finishes or ctx is done.
// A ctx expiry does not cancel the call itself.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, &status.Error{Status: status.Convert(ctx.Err()), Cause: ctx.Err()}
	}
}

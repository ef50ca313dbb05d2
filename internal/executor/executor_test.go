package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// recordingSleeper records requested delays without sleeping
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func testPolicies(maxAttempts int) policy.Policies {
	return policy.Policies{
		Retry: policy.RetryConfig{MaxAttempts: maxAttempts},
		Backoff: policy.BackoffConfig{
			Strategy:     policy.BackoffExponential,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
		},
		Polling: policy.RetryConfig{MaxAttempts: 10},
	}
}

func newTestExecutor(maxAttempts int) (*Executor, *recordingSleeper, *Metrics) {
	sleeper := &recordingSleeper{}
	metrics := NewMetrics(prometheus.NewRegistry())
	exec := New(logger.NewTestLogger(),
		WithPolicies(testPolicies(maxAttempts)),
		WithSleeper(sleeper.Sleep),
		WithMetrics(metrics),
	)
	return exec, sleeper, metrics
}

// failingThen fails with code for the first n calls, then returns value
func failingThen(n int, code codes.Code, value string, calls *int) func(ctx context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		*calls++
		if *calls <= n {
			return "", status.New(code, "attempt failed").Err()
		}
		return value, nil
	}
}

func TestExecuteTransientFailuresThenSuccess(t *testing.T) {
	const maxAttempts = 5

	for n := 0; n < maxAttempts; n++ {
		exec, sleeper, _ := newTestExecutor(maxAttempts)
		calls := 0

		call := exec.NewCall("test.Get")
		got, err := Execute(context.Background(), call, failingThen(n, codes.Unavailable, "ok", &calls))

		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, "ok", got)
		assert.Equal(t, n+1, calls, "n=%d", n)
		assert.Equal(t, n+1, call.Attempts())
		assert.Len(t, sleeper.Delays(), n)
	}
}

func TestExecuteExhaustsRetryBudget(t *testing.T) {
	for _, n := range []int{3, 4, 10} {
		exec, _, _ := newTestExecutor(3)
		calls := 0

		got, err := Execute(context.Background(), exec.NewCall("test.List"), failingThen(n, codes.ResourceExhausted, "never", &calls))

		require.Error(t, err)
		assert.Empty(t, got)
		assert.Equal(t, 3, calls, "never more than MaxAttempts calls")
		assert.True(t, status.IsExhausted(err))

		var se *status.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, codes.ResourceExhausted, se.Code)
		assert.Equal(t, "attempt failed", se.Message)
		assert.Equal(t, 3, se.Attempts)
		assert.Contains(t, err.Error(), "retry policy exhausted")
		assert.Contains(t, err.Error(), "last error: [ResourceExhausted] attempt failed")
	}
}

func TestExecutePermanentFailureStopsImmediately(t *testing.T) {
	for _, code := range []codes.Code{codes.InvalidArgument, codes.NotFound, codes.AlreadyExists, codes.PermissionDenied} {
		exec, sleeper, _ := newTestExecutor(5)
		calls := 0

		_, err := Execute(context.Background(), exec.NewCall("test.Create"), failingThen(10, code, "", &calls))

		require.Error(t, err)
		assert.Equal(t, 1, calls, code.String())
		assert.Empty(t, sleeper.Delays())
		assert.False(t, status.IsExhausted(err))
		assert.Equal(t, code, status.Code(err))

		var se *status.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "test.Create", se.Op)
		assert.Equal(t, 1, se.Attempts)
	}
}

func TestExecuteBackoffGrowsPerCall(t *testing.T) {
	exec, sleeper, _ := newTestExecutor(4)
	calls := 0

	_, err := Execute(context.Background(), exec.NewCall("test.Get"), failingThen(3, codes.Unavailable, "ok", &calls))
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeper.Delays())

	// A second call starts from the initial delay again
	calls = 0
	_, err = Execute(context.Background(), exec.NewCall("test.Get"), failingThen(1, codes.Unavailable, "ok", &calls))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, sleeper.Delays()[3])
}

func TestExecuteStopsOnCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	exec := New(logger.NewTestLogger(),
		WithPolicies(testPolicies(10)),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}),
	)

	_, err := Execute(ctx, exec.NewCall("test.Get"), failingThen(10, codes.Unavailable, "", &calls))

	require.Error(t, err)
	assert.Equal(t, 1, calls, "no new attempt after cancellation")
	assert.Equal(t, codes.Canceled, status.Code(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "last error: [Unavailable] attempt failed")
}

func TestExecuteDoesNotStartWhenContextDone(t *testing.T) {
	exec, _, _ := newTestExecutor(3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	_, err := Execute(ctx, exec.NewCall("test.Get"), failingThen(0, codes.OK, "ok", &calls))

	require.Error(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, codes.Canceled, status.Code(err))
}

func TestExecuteReusesRequestIDAcrossAttempts(t *testing.T) {
	exec, _, _ := newTestExecutor(3)
	call := exec.NewCall("test.Insert")
	var seen []string

	_, err := Execute(context.Background(), call, func(ctx context.Context) (int, error) {
		id, ok := RequestIDFromContext(ctx)
		require.True(t, ok)
		seen = append(seen, id)
		if len(seen) < 3 {
			return 0, status.New(codes.Unavailable, "").Err()
		}
		return 1, nil
	})

	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Equal(t, call.RequestID, seen[0])
	assert.Equal(t, seen[0], seen[1])
	assert.Equal(t, seen[1], seen[2])
	assert.NotEqual(t, call.RequestID, exec.NewCall("test.Insert").RequestID)
}

func TestExecutePreservesTypedCause(t *testing.T) {
	exec, _, _ := newTestExecutor(3)
	cause := errors.New("tls: handshake failure")

	err := Do(context.Background(), exec.NewCall("test.Delete"), func(ctx context.Context) error {
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, codes.Unknown, status.Code(err))
}

func TestExecuteDoesNotMutateCallerError(t *testing.T) {
	exec, _, _ := newTestExecutor(3)
	original := &status.Error{Status: status.New(codes.NotFound, "gone")}

	err := Do(context.Background(), exec.NewCall("test.Get"), func(ctx context.Context) error {
		return original
	})

	require.Error(t, err)
	assert.Empty(t, original.Op)
	assert.Zero(t, original.Attempts)
}

func TestConcurrentCallsDoNotShareState(t *testing.T) {
	exec, _, _ := newTestExecutor(3)
	var wg sync.WaitGroup
	results := make([]error, 8)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			calls := 0
			_, results[i] = Execute(context.Background(), exec.NewCall("test.Get"), failingThen(2, codes.Unavailable, "ok", &calls))
		}(i)
	}
	wg.Wait()

	for i, err := range results {
		assert.NoError(t, err, "call %d", i)
	}
}

func TestDeriveContinuesBackoff(t *testing.T) {
	exec, sleeper, _ := newTestExecutor(3)
	call := exec.NewCall("test.CreateInstance")

	require.NoError(t, call.Wait(context.Background()))
	poll := call.Derive("test.GetOperation")
	require.NoError(t, poll.Wait(context.Background()))
	require.NoError(t, call.Wait(context.Background()))

	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}, sleeper.Delays())
	assert.NotEqual(t, call.RequestID, poll.RequestID)
	assert.Zero(t, poll.Attempts())
}

func TestExecuteRecordsMetrics(t *testing.T) {
	exec, _, metrics := newTestExecutor(3)
	calls := 0

	_, err := Execute(context.Background(), exec.NewCall("test.Get"), failingThen(2, codes.Unavailable, "ok", &calls))
	require.NoError(t, err)

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.attempts.WithLabelValues("test.Get", "Unavailable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.attempts.WithLabelValues("test.Get", "OK")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.duration))
}

func TestExecuteLogsRetries(t *testing.T) {
	log, capture := logger.NewCaptureLogger()
	exec := New(log, WithPolicies(testPolicies(3)), WithSleeper((&recordingSleeper{}).Sleep))
	calls := 0

	_, err := Execute(context.Background(), exec.NewCall("storage.GetBucketMetadata"), failingThen(3, codes.Unavailable, "", &calls))
	require.Error(t, err)

	assert.True(t, capture.Contains("storage.GetBucketMetadata failed with [Unavailable] attempt failed, retrying in"))
	assert.True(t, capture.Contains("gave up after 3 attempt(s)"))
	assert.True(t, capture.Contains("request_id="))
}

func TestTimerSleeper(t *testing.T) {
	assert.NoError(t, TimerSleeper(context.Background(), time.Millisecond))
	assert.NoError(t, TimerSleeper(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, TimerSleeper(ctx, time.Hour), context.Canceled)
}

// Package executor turns one logical admin operation into a policy-governed
// sequence of attempts. Policies are cloned per call from the prototypes held
// by the Executor, so concurrent calls never share retry or backoff state.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/policy"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

const tracerName = "hyperfleet-admin-core/executor"

// Executor is shared by every call a client makes. It is read-only after
// construction and safe for concurrent use.
type Executor struct {
	policies policy.Policies
	log      logger.Logger
	metrics  *Metrics
	sleep    Sleeper
	tracer   trace.Tracer
}

// Option configures an Executor
type Option func(*Executor)

// WithPolicies sets the retry, backoff and polling prototypes
func WithPolicies(p policy.Policies) Option {
	return func(e *Executor) {
		e.policies = p
	}
}

// WithLogger sets the logger used for retry and failure logging
func WithLogger(log logger.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// WithMetrics sets the Prometheus collectors
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithSleeper replaces the backoff sleeper (tests use a recording fake)
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		e.sleep = s
	}
}

// WithTracer sets the tracer used for per-call spans
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

// New creates an Executor with default policies unless overridden.
func New(log logger.Logger, opts ...Option) *Executor {
	e := &Executor{
		policies: policy.Defaults(),
		log:      log,
		sleep:    TimerSleeper,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// Policies returns the prototypes calls are cloned from.
func (e *Executor) Policies() policy.Policies {
	return e.policies
}

// Logger returns the executor's logger.
func (e *Executor) Logger() logger.Logger {
	return e.log
}

// Metrics returns the executor's collectors (nil when metrics are disabled).
func (e *Executor) Metrics() *Metrics {
	return e.metrics
}

// RecordPoll counts one long-running operation poll for method.
func (e *Executor) RecordPoll(method string) {
	e.metrics.recordPoll(method)
}

// NewCall starts a logical call with fresh retry and backoff state.
// method names the call for logs, metrics and spans (e.g. "storage.PatchObject").
func (e *Executor) NewCall(method string) *Call {
	return &Call{
		Method:    method,
		RequestID: uuid.NewString(),
		exec:      e,
		retry:     e.policies.Retry.New(),
		backoff:   e.policies.Backoff.New(),
	}
}

// Call is the state of one logical call. It must not be shared between
// goroutines.
type Call struct {
	// Method names the logical call
	Method string
	// RequestID is sent with every attempt so servers can deduplicate
	// retried mutations
	RequestID string

	exec     *Executor
	retry    policy.RetryPolicy
	backoff  policy.BackoffPolicy
	attempts int
}

// Attempts returns how many attempts the call has issued.
func (c *Call) Attempts() int {
	return c.attempts
}

// Executor returns the executor the call was created from.
func (c *Call) Executor() *Executor {
	return c.exec
}

// Wait sleeps for the next backoff interval of this call.
func (c *Call) Wait(ctx context.Context) error {
	return c.exec.sleep(ctx, c.backoff.Next())
}

// Derive returns a call for a follow-up request (such as an operation poll)
// with fresh retry state that continues this call's backoff growth.
func (c *Call) Derive(method string) *Call {
	return &Call{
		Method:    method,
		RequestID: uuid.NewString(),
		exec:      c.exec,
		retry:     c.exec.policies.Retry.New(),
		backoff:   c.backoff,
	}
}

// Execute runs fn until it succeeds, fails permanently, or the call's retry
// policy is exhausted. Every failure is returned as a *status.Error paired
// with the zero value of T. fn receives a context carrying the call's request
// ID (see RequestIDFromContext).
func Execute[T any](ctx context.Context, call *Call, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	e := call.exec
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, call.Method, trace.WithAttributes(
		attribute.String("hyperfleet.request_id", call.RequestID),
	))
	defer span.End()

	ctx = logger.WithOTelTraceContext(ctx)
	ctx = logger.WithMethod(ctx, call.Method)
	ctx = logger.WithRequestID(ctx, call.RequestID)
	ctx = WithRequestID(ctx, call.RequestID)

	for {
		if err := ctx.Err(); err != nil {
			return zero, e.finish(ctx, span, call, start, OutcomeCanceled, canceled(call, err, nil))
		}

		call.attempts++
		resp, err := fn(ctx)
		if err == nil {
			e.metrics.recordAttempt(call.Method, status.OK().Code)
			e.metrics.recordCall(call.Method, OutcomeOK, time.Since(start))
			span.SetAttributes(attribute.Int("hyperfleet.attempts", call.attempts))
			e.log.Debugf(ctx, "%s succeeded after %d attempt(s)", call.Method, call.attempts)
			return resp, nil
		}

		st := status.Convert(err)
		e.metrics.recordAttempt(call.Method, st.Code)
		span.AddEvent("attempt failed", trace.WithAttributes(
			attribute.Int("attempt", call.attempts),
			attribute.String("code", st.Code.String()),
		))

		switch call.retry.OnFailure(st) {
		case policy.Permanent:
			return zero, e.finish(ctx, span, call, start, OutcomePermanent, annotate(call, err))
		case policy.Exhausted:
			return zero, e.finish(ctx, span, call, start, OutcomeExhausted, status.Exhausted(call.Method, st, call.attempts, err))
		case policy.Retry:
		}

		delay := call.backoff.Next()
		e.log.Warnf(logger.WithAttempt(ctx, call.attempts), "%s failed with %s, retrying in %v", call.Method, st, delay)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, e.finish(ctx, span, call, start, OutcomeCanceled, canceled(call, err, &st))
		}
	}
}

// Do is Execute for calls without a result.
func Do(ctx context.Context, call *Call, fn func(ctx context.Context) error) error {
	_, err := Execute(ctx, call, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (e *Executor) finish(ctx context.Context, span trace.Span, call *Call, start time.Time, outcome string, err *status.Error) error {
	e.metrics.recordCall(call.Method, outcome, time.Since(start))
	span.SetAttributes(
		attribute.Int("hyperfleet.attempts", call.attempts),
		attribute.String("hyperfleet.outcome", outcome),
	)
	span.SetStatus(otelcodes.Error, err.Error())

	errCtx := logger.WithErrorField(ctx, err)
	switch outcome {
	case OutcomeExhausted:
		e.log.Errorf(errCtx, "%s gave up after %d attempt(s)", call.Method, call.attempts)
	case OutcomeCanceled:
		e.log.Infof(errCtx, "%s canceled after %d attempt(s)", call.Method, call.attempts)
	default:
		e.log.Debugf(errCtx, "%s failed permanently", call.Method)
	}
	return err
}

// annotate returns err as a *status.Error tagged with the call's method and
// attempt count, without mutating an error the caller may still hold.
func annotate(call *Call, err error) *status.Error {
	se := *status.AsError(err)
	if se.Op == "" {
		se.Op = call.Method
	}
	se.Attempts = call.attempts
	return &se
}

func canceled(call *Call, ctxErr error, last *status.Status) *status.Error {
	st := status.Convert(ctxErr)
	if last != nil {
		st.Message = fmt.Sprintf("%s, last error: %s", st.Message, last)
	}
	return &status.Error{Status: st, Op: call.Method, Attempts: call.attempts, Cause: ctxErr}
}

package lro

import (
	"context"

	"google.golang.org/grpc/codes"

	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/executor"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/internal/status"
	"github.com/openshift-hyperfleet/hyperfleet-admin-core/pkg/logger"
)

// notDone is recorded against the polling budget for every poll that finds
// the operation still running
var notDone = status.New(codes.Unavailable, "operation not done")

// Poll waits for op to finish and returns its typed result.
//
// Between polls it waits on call's backoff, continuing the growth started
// by the initiating request. Each poll runs through the executor, so
// transient poll failures are retried. The number of polls is bounded by the
// executor's polling policy; when it runs out Poll returns an exhausted
// error shaped like a unary one.
func Poll[T any](ctx context.Context, call *executor.Call, op *Operation, get Getter) (T, error) {
	var zero T
	if op == nil {
		return zero, status.Malformed("%s returned no operation", call.Method).Err()
	}

	exec := call.Executor()
	log := exec.Logger()
	polling := exec.Policies().Polling.New()
	ctx = logger.WithOperationName(ctx, op.Name)

	for !op.Done {
		if polling.IsExhausted() {
			last := status.Newf(codes.DeadlineExceeded, "operation %s did not complete", op.Name)
			err := status.Exhausted(call.Method, last, polling.Failures(), nil)
			log.Errorf(logger.WithErrorField(ctx, err), "Stopped polling operation after %d poll(s)", polling.Failures())
			return zero, err
		}

		if err := call.Wait(ctx); err != nil {
			return zero, &status.Error{
				Status:   status.Convert(err),
				Op:       call.Method,
				Attempts: polling.Failures(),
				Cause:    err,
			}
		}

		name := op.Name
		next, err := executor.Execute(ctx, call.Derive(call.Method+".GetOperation"), func(ctx context.Context) (*Operation, error) {
			return get(ctx, name)
		})
		exec.RecordPoll(call.Method)
		if err != nil {
			return zero, err
		}
		if next == nil {
			return zero, status.Malformed("polling %s returned no operation", name).Err()
		}
		op = next

		if !op.Done {
			polling.OnFailure(notDone)
			log.Debugf(ctx, "Operation still running after %d poll(s)", polling.Failures())
		}
	}

	log.Debugf(ctx, "Operation finished")
	return Result[T](op)
}

// Await issues the initiating request through the executor and polls the
// returned operation to completion using the same call state.
func Await[T any](ctx context.Context, call *executor.Call, start func(ctx context.Context) (*Operation, error), get Getter) (T, error) {
	op, err := executor.Execute(ctx, call, start)
	if err != nil {
		var zero T
		return zero, err
	}
	return Poll[T](ctx, call, op, get)
}

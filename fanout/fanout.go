// Package fanout applies a function to many independent units concurrently,
// bounded by a counting semaphore. A unit whose function fails or panics
// keeps its input; siblings are never cancelled.
package fanout

import (
	"context"
	"fmt"
	"runtime/debug"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcore/logging"
)

// DefaultLimit is the number of units processed concurrently.
const DefaultLimit = 10

// Options configures Map.
type Options struct {
	Limit  int
	Logger logging.Logger
}

// Map applies fn to every item and returns the results in input order.
// Units that fail, panic or cannot acquire the semaphore because ctx is done
// degrade to their input.
func Map[T any](ctx context.Context, items []T, fn func(ctx context.Context, item T) (T, error), optFns ...func(o *Options)) []T {
	opts := Options{Limit: DefaultLimit}
	for _, f := range optFns {
		f(&opts)
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}
	logger := logging.OrNoOp(opts.Logger)

	out := make([]T, len(items))
	copy(out, items)
	if len(items) == 0 {
		return out
	}

	sem := semaphore.NewWeighted(int64(opts.Limit))
	done := make(chan struct{}, len(items))
	started := 0
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			logger.Warn("fanout.acquire.failed", "index", i, "error", err.Error())
			break
		}
		started++
		i, item := i, item
		go func() {
			defer func() { done <- struct{}{} }()
			defer sem.Release(1)
			res, err := safeCall(ctx, item, fn)
			if err != nil {
				logger.Warn("fanout.unit.degraded", "index", i, "error", err.Error())
				return
			}
			out[i] = res
		}()
	}
	for j := 0; j < started; j++ {
		<-done
	}
	return out
}

func safeCall[T any](ctx context.Context, item T, fn func(ctx context.Context, item T) (T, error)) (res T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v\n%s", r, debug.Stack())
		}
	}()
	return fn(ctx, item)
}

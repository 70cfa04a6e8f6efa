package model

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

const (
	defaultRetryAttempts = 2
	defaultBackoffBase   = 500 * time.Millisecond
	defaultBackoffMax    = 10 * time.Second
)

// RetryOptions configures a Retrying reasoner.
type RetryOptions struct {
	// Timeout bounds each attempt. Zero disables the per-attempt timeout.
	Timeout time.Duration
	// Attempts is the number of retries after the first call.
	Attempts    int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	Jitter      bool
	Logger      logging.Logger
}

// Retrying wraps a Reasoner with a per-attempt timeout and exponential
// backoff. Only Timeout and RateLimited failures are retried.
type Retrying struct {
	next Reasoner
	opts RetryOptions
}

var _ Reasoner = (*Retrying)(nil)

// NewRetrying creates a Retrying reasoner around next.
func NewRetrying(next Reasoner, optFns ...func(o *RetryOptions)) *Retrying {
	opts := RetryOptions{
		Attempts:    defaultRetryAttempts,
		BackoffBase: defaultBackoffBase,
		BackoffMax:  defaultBackoffMax,
		Jitter:      true,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Attempts < 0 || opts.Attempts > 100 {
		opts.Attempts = defaultRetryAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = defaultBackoffMax
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Retrying{next: next, opts: opts}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) func(o *RetryOptions) {
	return func(o *RetryOptions) { o.Timeout = d }
}

// WithRetries sets the number of retries and the backoff bounds.
func WithRetries(attempts int, base, maxDelay time.Duration) func(o *RetryOptions) {
	return func(o *RetryOptions) {
		o.Attempts = attempts
		o.BackoffBase = base
		o.BackoffMax = maxDelay
	}
}

// WithoutJitter disables backoff jitter.
func WithoutJitter() func(o *RetryOptions) {
	return func(o *RetryOptions) { o.Jitter = false }
}

// WithRetryLogger sets the logger.
func WithRetryLogger(l logging.Logger) func(o *RetryOptions) {
	return func(o *RetryOptions) { o.Logger = l }
}

// Info implements Reasoner.
func (r *Retrying) Info() Info { return r.next.Info() }

// Invoke implements Reasoner.
func (r *Retrying) Invoke(ctx context.Context, req Request) (Reply, error) {
	exponential := retry.NewExponential(r.opts.BackoffBase)
	exponential = retry.WithCappedDuration(r.opts.BackoffMax, exponential)

	var backoff retry.Backoff = exponential
	if r.opts.Jitter {
		backoff = retry.WithJitterPercent(10, backoff)
	}
	backoff = retry.WithMaxRetries(uint64(r.opts.Attempts), backoff) // #nosec G115 -- bounded above

	attempt := 0
	var reply Reply
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var callErr error
		reply, callErr = r.attempt(ctx, req)
		if callErr == nil {
			return nil
		}
		kind := core.KindOf(callErr)
		if (kind == core.KindTimeout || kind == core.KindRateLimited) && ctx.Err() == nil {
			r.opts.Logger.Warn("reasoning.retry",
				"agent", req.Agent,
				"attempt", attempt,
				"kind", string(kind),
				"error", callErr.Error(),
			)
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	if err != nil {
		return Reply{}, Classify("reasoning.invoke", err)
	}
	return reply, nil
}

func (r *Retrying) attempt(ctx context.Context, req Request) (Reply, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	reply, err := r.next.Invoke(ctx, req)
	if err != nil {
		return Reply{}, Classify("reasoning.invoke", err)
	}
	return reply, nil
}

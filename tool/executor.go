package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// DefaultMaxParallel bounds concurrent tool calls of one batch.
const DefaultMaxParallel = 8

// Invocation identifies who issued a batch of action requests.
type Invocation struct {
	Agent     string
	ContextID string
	Catalog   *Catalog
}

// Executor runs a batch of action requests. Implementations must return
// exactly one tool-result message per request, in request order. Failures of
// individual tools become error results; a non-nil error means the batch as a
// whole could not be executed and is classified ActionExecutionFailed.
type Executor interface {
	Execute(ctx context.Context, inv Invocation, reqs []core.ActionRequest) ([]core.Message, error)
}

// ExecutorOptions configures ParallelExecutor.
type ExecutorOptions struct {
	MaxParallel int           // <1 => DefaultMaxParallel
	Timeout     time.Duration // per action; 0 disables
	Logger      logging.Logger
}

// ParallelExecutor executes independent requests concurrently.
type ParallelExecutor struct {
	opts ExecutorOptions
}

var _ Executor = (*ParallelExecutor)(nil)

// NewParallelExecutor constructs the default executor.
func NewParallelExecutor(optFns ...func(o *ExecutorOptions)) *ParallelExecutor {
	opts := ExecutorOptions{MaxParallel: DefaultMaxParallel}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = DefaultMaxParallel
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &ParallelExecutor{opts: opts}
}

// Execute implements Executor.
func (e *ParallelExecutor) Execute(ctx context.Context, inv Invocation, reqs []core.ActionRequest) ([]core.Message, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	batchStart := time.Now()
	results := make([]core.Message, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxParallel)
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.executeOne(gctx, inv, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, core.NewError(core.KindActionExecutionFailed, "tool.execute", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, core.NewError(core.KindActionExecutionFailed, "tool.execute", err)
	}

	e.opts.Logger.Debug("tool.batch.complete",
		"agent", inv.Agent,
		"count", len(reqs),
		"parallelism", min(e.opts.MaxParallel, len(reqs)),
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
	return results, nil
}

func (e *ParallelExecutor) executeOne(ctx context.Context, inv Invocation, req core.ActionRequest) core.Message {
	start := time.Now()
	callCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	logger := logging.WithConversation(e.opts.Logger, inv.ContextID, inv.Agent)
	tc := &Context{
		Context:   callCtx,
		CallID:    req.ID,
		ContextID: inv.ContextID,
		Agent:     inv.Agent,
		Logger:    logger,
	}

	result, err := e.guarded(tc, inv, req)
	logging.LogToolCall(logger, req.Name, req.ID, time.Since(start), err)

	if err != nil {
		return core.NewToolResult(inv.Agent, req, errorContent(req.Name, err, callCtx), true)
	}
	return core.NewToolResult(inv.Agent, req, Stringify(result), false)
}

// guarded runs the call in its own goroutine and returns no later than the
// tool context is done. Panics are recovered into errors.
func (e *ParallelExecutor) guarded(tc *Context, inv Invocation, req core.ActionRequest) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out.err = &panicError{tool: req.Name, val: r, stack: debug.Stack()}
				e.opts.Logger.Error("tool.call.panic", "agent", inv.Agent, "tool", req.Name, "recover", r)
			}
			done <- out
		}()
		out.result, out.err = call(tc, inv.Catalog, req)
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-tc.Done():
		return nil, NewToolError(req.Name, tc.Err().Error(), CodeTimeout)
	}
}

func call(tc *Context, catalog *Catalog, req core.ActionRequest) (any, error) {
	impl, ok := catalog.Get(req.Name)
	if !ok {
		return nil, NewToolError(req.Name, fmt.Sprintf("tool %s not found", req.Name), CodeNotFound)
	}
	args, err := DecodeArguments(req.Arguments)
	if err != nil {
		return nil, &ToolError{Tool: req.Name, Message: err.Error(), Code: CodeValidation}
	}
	return impl.Call(tc, args)
}

// DecodeArguments parses serialized JSON arguments. Empty input yields an
// empty map.
func DecodeArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// Stringify renders a tool result as message content. Strings pass through;
// everything else is JSON encoded.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func errorContent(name string, err error, callCtx context.Context) string {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("Error: tool %s timed out", name)
	}
	return "Error: " + err.Error()
}

type panicError struct {
	tool  string
	val   any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("tool %s panicked: %v", p.tool, p.val) }

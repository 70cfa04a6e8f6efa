package delegation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// DefaultMaxDepth is the default maximum number of nested delegations.
const DefaultMaxDepth = 5

// PathSeparator joins agent identifiers in cycle and depth messages.
const PathSeparator = " → "

// TransferVerdict is the outcome of RequestTransfer: either Accepted or Rejected.
type TransferVerdict interface {
	isVerdict()
}

// Accepted carries the state delta of a legal transfer.
type Accepted struct {
	Delta Delta
}

// Rejected explains why a transfer was refused. No state was changed.
type Rejected struct {
	Target string
	Kind   core.Kind
	Reason string
}

func (Accepted) isVerdict() {}
func (Rejected) isVerdict() {}

// Err converts the rejection into a classified error.
func (r Rejected) Err() error {
	return core.NewError(r.Kind, "delegation.transfer", errors.New(r.Reason))
}

// Delta is the state change produced by an accepted transfer.
type Delta struct {
	Target      string
	Task        string
	CallStack   []string // stack after the push
	CallHistory []string // history after the append
	ActiveAgent string
	// TransferResult is the synthetic tool-result recording the handoff. Its
	// RespondsTo is bound by Answer.
	TransferResult core.Message
	// TaskMessage seeds the delegate's conversation.
	TaskMessage core.Message
}

// Answer returns the tool-result for req carrying the delegate's output.
func (d Delta) Answer(req core.ActionRequest, output string) core.Message {
	m := d.TransferResult.Clone()
	m.RespondsTo = req.ID
	m.Name = req.Name
	if output != "" {
		m.Content = fmt.Sprintf("%s\n\n%s", m.Content, output)
	}
	return m
}

// Options configures a Controller.
type Options struct {
	MaxDepth int
	Registry core.Registry
	Logger   logging.Logger
}

// Controller decides whether agent-to-agent transfers are legal. It holds
// no conversation state and is safe for concurrent use.
type Controller struct {
	opts Options
}

// NewController creates a Controller with functional options.
func NewController(optFns ...func(o *Options)) *Controller {
	opts := Options{MaxDepth: DefaultMaxDepth, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Controller{opts: opts}
}

// WithMaxDepth sets the maximum stack depth.
func WithMaxDepth(depth int) func(o *Options) {
	return func(o *Options) { o.MaxDepth = depth }
}

// WithRegistry makes the controller reject unknown or non-invocable targets.
func WithRegistry(r core.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = r }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// MaxDepth returns the configured depth ceiling.
func (c *Controller) MaxDepth() int { return c.opts.MaxDepth }

// RequestTransfer checks, in order, the cycle rule (target already in the
// call stack), the depth rule (stack already at MaxDepth) and, when a
// registry is configured, that the target exists and is invocable. The call
// history is never consulted: an agent that has already returned may be
// delegated to again.
func (c *Controller) RequestTransfer(state core.ConversationState, target, task string) TransferVerdict {
	target = strings.TrimSpace(target)
	if target == "" {
		return c.reject(state, target, core.KindUnexpected, "delegation rejected: no target agent given")
	}

	if state.InStack(target) {
		path := strings.Join(append(append([]string{}, state.CallStack...), target), PathSeparator)
		return c.reject(state, target, core.KindCycleRejected,
			fmt.Sprintf("delegation to %q rejected: cycle detected (%s)", target, path))
	}

	if state.Depth() >= c.opts.MaxDepth {
		return c.reject(state, target, core.KindDepthExceeded,
			fmt.Sprintf("delegation to %q rejected: maximum depth %d reached (stack: %s)",
				target, c.opts.MaxDepth, formatStack(state.CallStack)))
	}

	if c.opts.Registry != nil {
		desc, err := c.opts.Registry.Resolve(target)
		if err != nil {
			return c.reject(state, target, core.KindUnexpected,
				fmt.Sprintf("delegation to %q rejected: unknown agent", target))
		}
		if !desc.Invocable {
			return c.reject(state, target, core.KindUnexpected,
				fmt.Sprintf("delegation to %q rejected: agent cannot be delegated to", target))
		}
	}

	stack := append(append([]string{}, state.CallStack...), target)
	hist := append(append([]string{}, state.CallHistory...), target)

	c.opts.Logger.Info("delegation.accepted",
		"context_id", state.ContextID,
		"from", state.ActiveAgent,
		"to", target,
		"depth", len(stack),
	)

	return Accepted{Delta: Delta{
		Target:         target,
		Task:           task,
		CallStack:      stack,
		CallHistory:    hist,
		ActiveAgent:    target,
		TransferResult: core.NewToolResult(state.ActiveAgent, core.ActionRequest{}, fmt.Sprintf("Transferred to %s.", target), false),
		TaskMessage:    core.NewUserMessage(task),
	}}
}

func (c *Controller) reject(state core.ConversationState, target string, kind core.Kind, reason string) Rejected {
	c.opts.Logger.Warn("delegation.rejected",
		"context_id", state.ContextID,
		"from", state.ActiveAgent,
		"to", target,
		"kind", string(kind),
		"reason", reason,
	)
	return Rejected{Target: target, Kind: kind, Reason: reason}
}

func formatStack(stack []string) string {
	if len(stack) == 0 {
		return "empty"
	}
	return strings.Join(stack, PathSeparator)
}

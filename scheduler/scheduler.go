package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/compaction"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/delegation"
	"github.com/hupe1980/agentcore/fanout"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/tool"
)

// Options configures a Scheduler. Zero values are replaced with defaults.
type Options struct {
	Registry          core.Registry
	Catalog           *tool.Catalog
	Executor          tool.Executor
	Delegation        *delegation.Controller
	Budget            *budget.Controller
	Compactor         compaction.Executor
	Counter           budget.TokenCounter
	Results           *fanout.ResultProcessor
	FallbackKeep      int
	ReasoningTimeout  time.Duration
	CompactionTimeout time.Duration
	Logger            logging.Logger
}

// Outcome is the result of one turn.
type Outcome struct {
	State  core.ConversationState
	Answer string
	Reason FinishReason
	Err    error
	Kind   core.Kind // set when Err is non-nil
	Trace  []string  // visited states
}

// Scheduler runs turns. It holds no per-conversation state and is safe for
// concurrent use across different ConversationStates.
type Scheduler struct {
	reasoner model.Reasoner
	opts     Options
}

// New creates a Scheduler around reasoner.
func New(reasoner model.Reasoner, optFns ...func(o *Options)) *Scheduler {
	opts := Options{FallbackKeep: compaction.DefaultFallbackKeep}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Registry == nil {
		opts.Registry = agent.MustRegistry()
	}
	if opts.Catalog == nil {
		opts.Catalog = tool.MustCatalog()
	}
	if opts.Executor == nil {
		opts.Executor = tool.NewParallelExecutor(func(o *tool.ExecutorOptions) { o.Logger = opts.Logger })
	}
	if opts.Delegation == nil {
		opts.Delegation = delegation.NewController(delegation.WithRegistry(opts.Registry), delegation.WithLogger(opts.Logger))
	}
	if opts.Budget == nil {
		opts.Budget = budget.NewController(budget.WithLogger(opts.Logger))
	}
	if opts.Counter == nil {
		opts.Counter = budget.ApproxCounter{}
	}
	if opts.Compactor == nil {
		opts.Compactor = compaction.NewSummarizer(func(o *compaction.SummarizerOptions) {
			o.Counter = opts.Counter
			o.Logger = opts.Logger
		})
	}
	if opts.Results == nil {
		opts.Results = fanout.NewResultProcessor()
	}
	if opts.FallbackKeep <= 0 {
		opts.FallbackKeep = compaction.DefaultFallbackKeep
	}
	return &Scheduler{reasoner: reasoner, opts: opts}
}

// WithRegistry sets the agent registry.
func WithRegistry(r core.Registry) func(o *Options) {
	return func(o *Options) { o.Registry = r }
}

// WithCatalog sets the tool catalog.
func WithCatalog(c *tool.Catalog) func(o *Options) {
	return func(o *Options) { o.Catalog = c }
}

// WithExecutor sets the tool executor.
func WithExecutor(e tool.Executor) func(o *Options) {
	return func(o *Options) { o.Executor = e }
}

// WithDelegation sets the delegation controller.
func WithDelegation(c *delegation.Controller) func(o *Options) {
	return func(o *Options) { o.Delegation = c }
}

// WithBudget sets the budget controller.
func WithBudget(b *budget.Controller) func(o *Options) {
	return func(o *Options) { o.Budget = b }
}

// WithCompactor sets the compaction executor.
func WithCompactor(c compaction.Executor) func(o *Options) {
	return func(o *Options) { o.Compactor = c }
}

// WithCounter sets the token counter used when a reply carries no usage.
func WithCounter(c budget.TokenCounter) func(o *Options) {
	return func(o *Options) { o.Counter = c }
}

// WithResultProcessor sets the tool-result post-processor.
func WithResultProcessor(p *fanout.ResultProcessor) func(o *Options) {
	return func(o *Options) { o.Results = p }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// turn carries the mutable bookkeeping of one Run.
type turn struct {
	state    core.ConversationState
	snapshot core.ConversationState
	reason   FinishReason
	answer   string
	logger   logging.Logger
}

// Run drives state through one turn until it terminates. The caller is
// expected to have appended the user message (see ConversationState.BeginTurn).
func (s *Scheduler) Run(ctx context.Context, state core.ConversationState) (out Outcome) {
	if state.LoopLimit <= 0 {
		state.LoopLimit = core.DefaultLoopLimit
	}
	if state.ActiveAgent == "" {
		state.ActiveAgent = core.RootAgent
	}
	t := &turn{
		state:    state,
		snapshot: state,
		logger:   logging.WithConversation(s.opts.Logger, state.ContextID, state.ActiveAgent),
	}
	m := newMachine(t.logger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := core.NewError(core.KindUnexpected, "scheduler.run", fmt.Errorf("panic: %v", r))
			logging.ErrorWithStack(t.logger, err, "scheduler.panic",
				"agent", t.state.ActiveAgent,
				"state", m.current(),
			)
			out = s.failed(m, t, err)
		}
		t.logger.Info("scheduler.turn.complete",
			"reason", out.Reason,
			"loops", out.State.LoopCount,
			"error", out.Err != nil,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}()

	for {
		t.snapshot = t.state
		var err error
		switch m.current() {
		case StateAwaitingReasoning:
			err = s.awaitReasoning(ctx, m, t)
		case StateExecutingTools:
			err = s.executeTools(ctx, t)
			if err == nil {
				t.state = t.state.IncrementLoop()
				err = m.fire(ctx, EventToolsDone)
			}
		case StateCompressing:
			s.compress(ctx, t)
			err = m.fire(ctx, EventCompacted)
		case StateFinalizing:
			err = s.finalize(ctx, t)
			if err == nil {
				err = m.fire(ctx, EventFinish)
			}
		case StateTerminated:
			return Outcome{
				State:  t.state,
				Answer: t.answer,
				Reason: t.reason,
				Trace:  append([]string(nil), m.trace...),
			}
		default:
			err = core.NewError(core.KindUnexpected, "scheduler.run", fmt.Errorf("unknown state %q", m.current()))
		}
		if err != nil {
			return s.failed(m, t, err)
		}
	}
}

func (s *Scheduler) awaitReasoning(ctx context.Context, m *machine, t *turn) error {
	d := Route(t.state, s.opts.Budget.MustCompress(t.state))
	t.logger.Debug("scheduler.route",
		"action", d.Action.String(),
		"loop", t.state.LoopCount,
		"limit", t.state.LoopLimit,
	)
	switch d.Action {
	case ActionExecuteTools:
		return m.fire(ctx, EventAct)
	case ActionCompress:
		return m.fire(ctx, EventCompress)
	case ActionFinalize:
		t.reason = d.Reason
		return m.fire(ctx, EventFinalize)
	default:
		state, err := s.reason(ctx, t.logger, t.state, true)
		if err != nil {
			return err
		}
		t.state = state
		return m.fire(ctx, EventReason)
	}
}

// failed terminates the turn with the pre-step snapshot and a user-facing
// message for err.
func (s *Scheduler) failed(m *machine, t *turn, err error) Outcome {
	kind := core.KindOf(err)
	t.logger.Error("scheduler.turn.failed",
		"state", m.current(),
		"kind", string(kind),
		"error", err.Error(),
	)
	if m.current() != StateTerminated {
		// fail is declared from every non-terminal state.
		_ = m.fire(context.Background(), EventFail)
	}
	return Outcome{
		State:  t.snapshot,
		Answer: core.UserMessage(kind),
		Reason: FinishFailed,
		Err:    err,
		Kind:   kind,
		Trace:  append([]string(nil), m.trace...),
	}
}

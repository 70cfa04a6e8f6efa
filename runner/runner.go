package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
	"github.com/hupe1980/agentcore/scheduler"
	"github.com/hupe1980/agentcore/session"
)

// ErrRunNotFound is returned by Cancel when no turn is in flight.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// MaxConcurrentInvocations limits turns running at the same time.
	MaxConcurrentInvocations int
	// ModelID is recorded on newly created conversations.
	ModelID string
	// LoopLimit is the per-turn iteration ceiling of new conversations.
	LoopLimit int
	// Store persists conversation states between turns.
	Store core.StateStore
	// Logger receives runner events.
	Logger logging.Logger
}

// Result is the outcome of one user turn.
type Result struct {
	ContextID string
	Answer    string
	Reason    scheduler.FinishReason
	Err       error
	Kind      core.Kind
	Trace     []string
	State     core.ConversationState
}

// Runner coordinates turns. Public methods are safe for concurrent use.
type Runner struct {
	scheduler *scheduler.Scheduler
	opts      Options
	sem       *semaphore.Weighted

	mu         sync.Mutex
	locks      map[string]*contextLock
	activeRuns map[string]context.CancelFunc
}

type contextLock struct {
	ch   chan struct{}
	refs int
}

// New constructs a Runner with optional overrides.
func New(s *scheduler.Scheduler, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxConcurrentInvocations: 10,
		LoopLimit:                core.DefaultLoopLimit,
		Store:                    session.NewInMemoryStore(),
		Logger:                   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxConcurrentInvocations < 1 {
		opts.MaxConcurrentInvocations = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Runner{
		scheduler:  s,
		opts:       opts,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrentInvocations)),
		locks:      make(map[string]*contextLock),
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Run executes one turn for contextID with the user's text. An empty
// contextID starts a new conversation. The returned error reports storage or
// cancellation problems only; failures inside the turn are carried by Result.
func (r *Runner) Run(ctx context.Context, contextID, text string) (Result, error) {
	if contextID == "" {
		contextID = core.NewID()
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("acquire invocation slot: %w", err)
	}
	defer r.sem.Release(1)

	unlock, err := r.lock(ctx, contextID)
	if err != nil {
		return Result{}, err
	}
	defer unlock()

	state, err := r.load(ctx, contextID)
	if err != nil {
		return Result{}, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.activeRuns[contextID] = cancel
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, contextID)
		r.mu.Unlock()
		cancel()
	}()

	start := time.Now()
	out := r.scheduler.Run(runCtx, state.BeginTurn(core.NewUserMessage(text)))

	if err := r.opts.Store.Save(ctx, out.State); err != nil {
		return Result{}, fmt.Errorf("failed to save state: %w", err)
	}
	r.opts.Logger.Info("runner.turn",
		"context_id", contextID,
		"reason", string(out.Reason),
		"loops", out.State.LoopCount,
		"messages", len(out.State.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return Result{
		ContextID: contextID,
		Answer:    out.Answer,
		Reason:    out.Reason,
		Err:       out.Err,
		Kind:      out.Kind,
		Trace:     out.Trace,
		State:     out.State,
	}, nil
}

// Cancel cancels the in-flight turn of contextID.
func (r *Runner) Cancel(contextID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[contextID]
	r.mu.Unlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, contextID)
	}
	cancel()
	return nil
}

// Active reports whether a turn of contextID is in flight.
func (r *Runner) Active(contextID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.activeRuns[contextID]
	return ok
}

// State returns the stored state of contextID.
func (r *Runner) State(ctx context.Context, contextID string) (core.ConversationState, error) {
	return r.opts.Store.Load(ctx, contextID)
}

// Reset forgets the conversation of contextID.
func (r *Runner) Reset(ctx context.Context, contextID string) error {
	return r.opts.Store.Delete(ctx, contextID)
}

func (r *Runner) load(ctx context.Context, contextID string) (core.ConversationState, error) {
	state, err := r.opts.Store.Load(ctx, contextID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, core.ErrStateNotFound) {
		return core.ConversationState{}, fmt.Errorf("failed to load state: %w", err)
	}
	state = core.NewConversationState(r.opts.ModelID, r.opts.LoopLimit)
	state.ContextID = contextID
	r.opts.Logger.Debug("runner.conversation.created", "context_id", contextID)
	return state, nil
}

// lock serializes turns per context id. Lock entries are dropped once no
// turn holds or waits for them.
func (r *Runner) lock(ctx context.Context, contextID string) (func(), error) {
	r.mu.Lock()
	l, ok := r.locks[contextID]
	if !ok {
		l = &contextLock{ch: make(chan struct{}, 1)}
		r.locks[contextID] = l
	}
	l.refs++
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, contextID)
		}
		r.mu.Unlock()
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, fmt.Errorf("wait for conversation %s: %w", contextID, ctx.Err())
	}
}

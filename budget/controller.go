package budget

import (
	"math"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/logging"
)

// DefaultCriticalFraction is the share of the context window at which
// compaction is triggered.
const DefaultCriticalFraction = 0.95

// Observation is the result of folding one reasoning call into the counters.
type Observation struct {
	CumulativePromptTokens     int
	CumulativeCompletionTokens int
	ContextWindow              int
	Threshold                  int
	Critical                   bool
}

// Options configures a Controller.
type Options struct {
	CriticalFraction float64
	Windows          WindowLookup
	Logger           logging.Logger
}

// Controller compares token counters with a critical threshold.
type Controller struct {
	opts Options
}

// NewController creates a Controller with functional options.
func NewController(optFns ...func(o *Options)) *Controller {
	opts := Options{
		CriticalFraction: DefaultCriticalFraction,
		Windows:          NewStaticWindows(DefaultContextWindow, nil),
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.CriticalFraction <= 0 || opts.CriticalFraction > 1 {
		opts.CriticalFraction = DefaultCriticalFraction
	}
	if opts.Windows == nil {
		opts.Windows = NewStaticWindows(DefaultContextWindow, nil)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Controller{opts: opts}
}

// WithCriticalFraction sets the fraction of the window treated as critical.
func WithCriticalFraction(f float64) func(o *Options) {
	return func(o *Options) { o.CriticalFraction = f }
}

// WithWindows sets the context window lookup.
func WithWindows(w WindowLookup) func(o *Options) {
	return func(o *Options) { o.Windows = w }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// ContextWindow returns the window of modelID.
func (c *Controller) ContextWindow(modelID string) int {
	return c.opts.Windows.ContextWindow(modelID)
}

// Threshold returns the prompt token count above which usage is critical.
func (c *Controller) Threshold(modelID string) int {
	return threshold(c.opts.CriticalFraction, c.ContextWindow(modelID))
}

func threshold(fraction float64, window int) int {
	return int(math.Floor(fraction*float64(window) + 1e-9))
}

// Observe adds one call's usage to the counters held in state and reports
// whether cumulative prompt tokens now exceed the threshold.
func (c *Controller) Observe(state core.ConversationState, promptTokens, completionTokens int) Observation {
	window := c.ContextWindow(state.ModelID)
	limit := threshold(c.opts.CriticalFraction, window)
	obs := Observation{
		CumulativePromptTokens:     state.CumulativePromptTokens + max(promptTokens, 0),
		CumulativeCompletionTokens: state.CumulativeCompletionTokens + max(completionTokens, 0),
		ContextWindow:              window,
		Threshold:                  limit,
	}
	obs.Critical = obs.CumulativePromptTokens > limit
	if obs.Critical {
		c.opts.Logger.Warn("budget.critical",
			"context_id", state.ContextID,
			"model", state.ModelID,
			"prompt_tokens", obs.CumulativePromptTokens,
			"threshold", limit,
			"context_window", window,
		)
	}
	return obs
}

// Apply writes the observation's counters into a copy of state.
func Apply(state core.ConversationState, obs Observation) core.ConversationState {
	return state.WithTokens(obs.CumulativePromptTokens, obs.CumulativeCompletionTokens)
}

// Critical reports whether the counters already held in state exceed the threshold.
func (c *Controller) Critical(state core.ConversationState) bool {
	return state.CumulativePromptTokens > c.Threshold(state.ModelID)
}

// MustCompress reports critical usage that has not yet been compacted in
// this turn. It fires at most once per turn.
func (c *Controller) MustCompress(state core.ConversationState) bool {
	return !state.CompactedThisTurn && c.Critical(state)
}

package compaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/history"
)

// Strategy names reported in Result.
const (
	StrategySummarize           = "summarize"
	StrategyEmergencyTruncation = "emergency-truncation"
)

const (
	// DefaultKeepRecent is the recent window kept verbatim by Summarizer.
	DefaultKeepRecent = 10
	// DefaultFallbackKeep is the number of non-system messages kept by
	// EmergencyTruncate.
	DefaultFallbackKeep = 100
)

var (
	// ErrNothingToCompact is returned when no message falls outside the recent window.
	ErrNothingToCompact = errors.New("nothing to compact")
	// ErrEmptySummary is returned when the model produced no summary text.
	ErrEmptySummary = errors.New("empty summary")
	// ErrInvalidResult is returned by Validate.
	ErrInvalidResult = errors.New("invalid compaction result")
)

// InvokeFunc runs one tool-less reasoning call and returns its text.
type InvokeFunc func(ctx context.Context, systemPrompt string, msgs []core.Message) (string, error)

// Input is what the scheduler hands to an Executor.
type Input struct {
	ModelID       string
	Messages      []core.Message // sanitized
	Invoke        InvokeFunc
	ContextWindow int
}

// Result describes one compaction.
type Result struct {
	Messages     []core.Message
	BeforeCount  int
	AfterCount   int
	BeforeTokens int
	AfterTokens  int
	Strategy     string
	Ratio        float64 // AfterTokens / BeforeTokens
}

// Executor compacts a message sequence.
type Executor interface {
	Compact(ctx context.Context, in Input) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, in Input) (Result, error)

// Compact implements Executor.
func (f ExecutorFunc) Compact(ctx context.Context, in Input) (Result, error) { return f(ctx, in) }

// Validate checks that r is an acceptable replacement for in.Messages: it is
// strictly shorter, keeps every non-summary system message in order and
// leaves no request without its result.
func Validate(r Result, in Input) error {
	if len(r.Messages) >= len(in.Messages) {
		return fmt.Errorf("%w: %d messages is not shorter than %d", ErrInvalidResult, len(r.Messages), len(in.Messages))
	}
	want := instructions(in.Messages)
	got := instructions(r.Messages)
	if len(got) != len(want) {
		return fmt.Errorf("%w: %d of %d system messages kept", ErrInvalidResult, len(got), len(want))
	}
	for i := range want {
		if got[i].Content != want[i].Content {
			return fmt.Errorf("%w: system message %d changed", ErrInvalidResult, i)
		}
	}
	if history.Unanswered(r.Messages) || len(history.Sanitize(r.Messages)) != len(r.Messages) {
		return fmt.Errorf("%w: unpaired action requests", ErrInvalidResult)
	}
	return nil
}

// EmergencyTruncate keeps every system message plus the last keep non-system
// messages. Results whose request was cut off are dropped with it.
func EmergencyTruncate(msgs []core.Message, keep int, counter budget.TokenCounter, modelID string) Result {
	if keep < 0 {
		keep = DefaultFallbackKeep
	}
	_, rest := history.SplitSystem(msgs)
	skip := max(len(rest)-keep, 0)

	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystem() {
			out = append(out, m.Clone())
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, m.Clone())
	}
	out = history.Sanitize(out)
	return newResult(msgs, out, StrategyEmergencyTruncation, counter, modelID)
}

func newResult(before, after []core.Message, strategy string, counter budget.TokenCounter, modelID string) Result {
	if counter == nil {
		counter = budget.ApproxCounter{}
	}
	r := Result{
		Messages:    after,
		BeforeCount: len(before),
		AfterCount:  len(after),
		Strategy:    strategy,
	}
	// Estimates only; a failing counter leaves the token fields at zero.
	if n, err := budget.CountMessages(counter, modelID, before); err == nil {
		r.BeforeTokens = n
	}
	if n, err := budget.CountMessages(counter, modelID, after); err == nil {
		r.AfterTokens = n
	}
	if r.BeforeTokens > 0 {
		r.Ratio = float64(r.AfterTokens) / float64(r.BeforeTokens)
	}
	return r
}

// instructions returns the system messages that are not compaction summaries.
func instructions(msgs []core.Message) []core.Message {
	var out []core.Message
	for _, m := range msgs {
		if m.IsSystem() && !m.IsSummary() {
			out = append(out, m)
		}
	}
	return out
}

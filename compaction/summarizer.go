package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/agentcore/budget"
	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/history"
	"github.com/hupe1980/agentcore/logging"
)

// SummaryPrefix starts the content of every summary message.
const SummaryPrefix = "[Previous conversation summary]"

const defaultSummaryPrompt = `You compress conversation history for an assistant that must continue the conversation.
Summarize the transcript concisely, preserving:
1. The user's goals and open questions
2. Decisions and conclusions reached
3. Facts, identifiers and data returned by tools
4. Pending tasks

Reply with the summary only.`

const maxSnippetRunes = 2000

// SummarizerOptions configures Summarizer.
type SummarizerOptions struct {
	KeepRecent int
	Prompt     string
	Timeout    time.Duration
	Counter    budget.TokenCounter
	Logger     logging.Logger
}

// Summarizer is the default LLM-backed Executor.
type Summarizer struct {
	opts SummarizerOptions
}

var _ Executor = (*Summarizer)(nil)

// NewSummarizer creates a Summarizer.
func NewSummarizer(optFns ...func(o *SummarizerOptions)) *Summarizer {
	opts := SummarizerOptions{
		KeepRecent: DefaultKeepRecent,
		Prompt:     defaultSummaryPrompt,
		Counter:    budget.ApproxCounter{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.KeepRecent < 1 {
		opts.KeepRecent = DefaultKeepRecent
	}
	if opts.Prompt == "" {
		opts.Prompt = defaultSummaryPrompt
	}
	if opts.Counter == nil {
		opts.Counter = budget.ApproxCounter{}
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Summarizer{opts: opts}
}

// Compact implements Executor. The recent window chosen by
// history.WindowForBudget is kept verbatim; everything older, together with
// any earlier summaries, is replaced by a single summary system message
// placed where the dropped part began.
func (s *Summarizer) Compact(ctx context.Context, in Input) (Result, error) {
	if in.Invoke == nil {
		return Result{}, errors.New("compaction: no invoke function")
	}
	msgs := in.Messages
	keep := history.WindowMask(msgs, s.opts.KeepRecent)

	var (
		older  []core.Message
		prior  []string
		insert = -1
	)
	for i, m := range msgs {
		switch {
		case m.IsSummary():
			prior = append(prior, strings.TrimSpace(strings.TrimPrefix(m.Content, SummaryPrefix)))
			keep[i] = false
		case !keep[i]:
			older = append(older, m)
		default:
			continue
		}
		if insert < 0 {
			insert = i
		}
	}
	if len(older) == 0 && len(prior) < 2 {
		return Result{}, ErrNothingToCompact
	}

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := in.Invoke(ctx, s.opts.Prompt, []core.Message{core.NewUserMessage(transcript(prior, older))})
	if err != nil {
		return Result{}, fmt.Errorf("compaction: summarize: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, ErrEmptySummary
	}
	summary := core.NewSystemMessage(SummaryPrefix+"\n"+text).WithMetadata(core.MetadataSummary, "true")

	out := make([]core.Message, 0, len(msgs))
	for i, m := range msgs {
		if i == insert {
			out = append(out, summary)
		}
		if keep[i] {
			out = append(out, m.Clone())
		}
	}

	r := newResult(msgs, out, StrategySummarize, s.opts.Counter, in.ModelID)
	s.opts.Logger.Info("compaction.summarized",
		"before_count", r.BeforeCount,
		"after_count", r.AfterCount,
		"before_tokens", r.BeforeTokens,
		"after_tokens", r.AfterTokens,
		"folded_summaries", len(prior),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return r, nil
}

// transcript renders earlier summaries and older messages as plain text for
// the summarization call.
func transcript(prior []string, older []core.Message) string {
	var b strings.Builder
	if len(prior) > 0 {
		b.WriteString("Earlier summary:\n")
		b.WriteString(strings.Join(prior, "\n\n"))
		b.WriteString("\n\n")
	}
	if len(older) > 0 {
		b.WriteString("Conversation:\n")
	}
	for _, m := range older {
		fmt.Fprintf(&b, "[%s]", roleLabel(m))
		if m.Content != "" {
			b.WriteString(" ")
			b.WriteString(snippet(m.Content))
		}
		for _, r := range m.Requests {
			fmt.Fprintf(&b, " <call %s(%s)>", r.Name, snippet(r.Arguments))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func roleLabel(m core.Message) string {
	switch m.Role {
	case core.RoleTool:
		if m.IsError {
			return "tool " + m.Name + " (error)"
		}
		return "tool " + m.Name
	case core.RoleAssistant:
		if m.Author != "" {
			return "assistant " + m.Author
		}
	}
	return string(m.Role)
}

func snippet(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(cleaned) <= maxSnippetRunes {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:maxSnippetRunes]) + "..."
}

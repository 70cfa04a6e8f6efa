package fanout

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/hupe1980/agentcore/core"
)

// DefaultMaxResultChars caps the content of a single tool-result.
const DefaultMaxResultChars = 16_000

const truncationMarker = "\n...[truncated]"

// ResultProcessor normalizes tool-result messages before they re-enter the
// conversation: surrounding whitespace is trimmed and content is capped at
// MaxResultChars runes.
type ResultProcessor struct {
	MaxResultChars int
	Limit          int
	Process        func(ctx context.Context, msg core.Message) (core.Message, error)
}

// NewResultProcessor returns a processor with the default cap and limit.
func NewResultProcessor(optFns ...func(p *ResultProcessor)) *ResultProcessor {
	p := &ResultProcessor{MaxResultChars: DefaultMaxResultChars, Limit: DefaultLimit}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// Apply post-processes msgs concurrently. Order and count are preserved.
func (p *ResultProcessor) Apply(ctx context.Context, msgs []core.Message) []core.Message {
	return Map(ctx, msgs, func(ctx context.Context, m core.Message) (core.Message, error) {
		if m.Role != core.RoleTool {
			return m, nil
		}
		out := m.Clone()
		out.Content = Cap(strings.TrimSpace(out.Content), p.MaxResultChars)
		if p.Process != nil {
			return p.Process(ctx, out)
		}
		return out, nil
	}, func(o *Options) { o.Limit = p.Limit })
}

// Cap truncates s to at most limit runes, marking the cut. A non-positive
// limit disables the cap.
func Cap(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	keep := limit - utf8.RuneCountInString(truncationMarker)
	if keep < 0 {
		keep = 0
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n >= keep {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString(truncationMarker)
	return b.String()
}

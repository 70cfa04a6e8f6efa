package fanout

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
)

func TestMap_PreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	out := Map(context.Background(), items, func(_ context.Context, v int) (int, error) {
		time.Sleep(time.Duration(6-v) * time.Millisecond)
		return v * 10, nil
	})
	assert.Equal(t, []int{10, 20, 30, 40, 50}, out)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, items, "input untouched")
}

func TestMap_FailureAndPanicDegradeToInput(t *testing.T) {
	items := []string{"ok", "fail", "panic", "ok"}
	out := Map(context.Background(), items, func(_ context.Context, v string) (string, error) {
		switch v {
		case "fail":
			return "", errors.New("nope")
		case "panic":
			panic("boom")
		}
		return strings.ToUpper(v), nil
	})
	assert.Equal(t, []string{"OK", "fail", "panic", "OK"}, out)
}

func TestMap_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	Map(context.Background(), items, func(_ context.Context, v int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return v, nil
	}, func(o *Options) { o.Limit = 3 })
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Positive(t, peak.Load())
}

func TestMap_CancelledContextReturnsInputs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := Map(ctx, []int{1, 2}, func(ctx context.Context, _ int) (int, error) { return 0, ctx.Err() })
	assert.Equal(t, []int{1, 2}, out)
}

func TestMap_Empty(t *testing.T) {
	out := Map(context.Background(), []int(nil), func(_ context.Context, v int) (int, error) { return v, nil })
	assert.Empty(t, out)
}

func TestCap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "abc", 10, "abc"},
		{"disabled", "abcdef", 0, "abcdef"},
		{"exact", "abcdef", 6, "abcdef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Cap(tt.in, tt.max))
		})
	}

	long := strings.Repeat("ä", 100)
	capped := Cap(long, 50)
	assert.Equal(t, 50, utf8.RuneCountInString(capped))
	assert.True(t, strings.HasSuffix(capped, truncationMarker))
}

func TestResultProcessor(t *testing.T) {
	req := core.ActionRequest{ID: "r1", Name: "search"}
	msgs := []core.Message{
		core.NewUserMessage("  keep  "),
		core.NewToolResult("main", req, "  "+strings.Repeat("x", 100)+"  ", false),
	}
	p := NewResultProcessor(func(p *ResultProcessor) { p.MaxResultChars = 40 })
	out := p.Apply(context.Background(), msgs)

	require.Len(t, out, 2)
	assert.Equal(t, "  keep  ", out[0].Content, "non tool messages untouched")
	assert.Equal(t, 40, utf8.RuneCountInString(out[1].Content))
	assert.Equal(t, "r1", out[1].RespondsTo)
	assert.NotEqual(t, msgs[1].Content, out[1].Content)
}

func TestResultProcessor_ProcessFailureKeepsMessage(t *testing.T) {
	req := core.ActionRequest{ID: "r1", Name: "search"}
	msgs := []core.Message{core.NewToolResult("main", req, " raw ", false)}
	p := NewResultProcessor(func(p *ResultProcessor) {
		p.Process = func(context.Context, core.Message) (core.Message, error) { return core.Message{}, errors.New("x") }
	})
	out := p.Apply(context.Background(), msgs)
	assert.Equal(t, " raw ", out[0].Content)
}

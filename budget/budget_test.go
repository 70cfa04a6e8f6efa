package budget

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/internal/testutil"
)

func fixedWindow(n int) WindowLookup {
	return WindowFunc(func(string) int { return n })
}

func TestObserve(t *testing.T) {
	c := NewController(WithWindows(fixedWindow(1000)))

	tests := []struct {
		name         string
		prior        int
		prompt       int
		wantCritical bool
	}{
		{"well below", 0, 100, false},
		{"exactly at threshold", 900, 50, false},
		{"just above threshold", 900, 51, true},
		{"prior usage pushes over", 940, 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := testutil.NewStateBuilder().Tokens(tt.prior, 7).Build()
			obs := c.Observe(st, tt.prompt, 3)
			assert.Equal(t, tt.prior+tt.prompt, obs.CumulativePromptTokens)
			assert.Equal(t, 10, obs.CumulativeCompletionTokens)
			assert.Equal(t, 950, obs.Threshold)
			assert.Equal(t, tt.wantCritical, obs.Critical)

			applied := Apply(st, obs)
			assert.Equal(t, obs.CumulativePromptTokens, applied.CumulativePromptTokens)
			assert.Equal(t, tt.prior, st.CumulativePromptTokens, "input untouched")
		})
	}
}

func TestObserve_NegativeUsageIgnored(t *testing.T) {
	c := NewController(WithWindows(fixedWindow(1000)))
	obs := c.Observe(testutil.NewStateBuilder().Tokens(10, 10).Build(), -5, -5)
	assert.Equal(t, 10, obs.CumulativePromptTokens)
	assert.Equal(t, 10, obs.CumulativeCompletionTokens)
}

func TestMustCompress_OncePerTurn(t *testing.T) {
	c := NewController(WithWindows(fixedWindow(100)), WithCriticalFraction(0.5))

	hot := testutil.NewStateBuilder().Tokens(60, 0).Build()
	assert.True(t, c.Critical(hot))
	assert.True(t, c.MustCompress(hot))

	done := testutil.NewStateBuilder().Tokens(60, 0).Compacted(true).Build()
	assert.True(t, c.Critical(done))
	assert.False(t, c.MustCompress(done))

	cool := testutil.NewStateBuilder().Tokens(50, 0).Build()
	assert.False(t, c.MustCompress(cool))
}

func TestNewController_InvalidFractionFallsBack(t *testing.T) {
	c := NewController(WithCriticalFraction(1.5), WithWindows(fixedWindow(1000)))
	assert.Equal(t, 950, c.Threshold("any"))
}

func TestStaticWindows(t *testing.T) {
	w := NewStaticWindows(0, map[string]int{"local-llm": 4096, "gpt-4o": 64_000})

	assert.Equal(t, 4096, w.ContextWindow("local-llm"))
	assert.Equal(t, 64_000, w.ContextWindow("gpt-4o"), "override wins")
	assert.Equal(t, 128_000, w.ContextWindow("gpt-4o-mini-2024-07-18"))
	assert.Equal(t, 200_000, w.ContextWindow("claude-3-5-sonnet-20241022"))
	assert.Equal(t, 8_192, w.ContextWindow("gpt-4-0613"))
	assert.Equal(t, DefaultContextWindow, w.ContextWindow("unknown"))
}

func TestCachedCounter(t *testing.T) {
	var calls atomic.Int32
	next := CounterFunc(func(_, text string) (int, error) {
		calls.Add(1)
		return len(text), nil
	})
	c, err := NewCachedCounter(next, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		n, err := c.CountTokens("m", "hello")
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, _ = c.CountTokens("other", "hello")
	assert.Equal(t, int32(2), calls.Load(), "cache is keyed by model")

	_, _ = c.CountTokens("m", "third")
	assert.Equal(t, 2, c.Len(), "bounded")
}

func TestCachedCounter_ErrorsNotCached(t *testing.T) {
	boom := errors.New("boom")
	fail := true
	c, err := NewCachedCounter(CounterFunc(func(string, string) (int, error) {
		if fail {
			return 0, boom
		}
		return 3, nil
	}), 8)
	require.NoError(t, err)

	_, err = c.CountTokens("m", "x")
	assert.ErrorIs(t, err, boom)

	fail = false
	n, err := c.CountTokens("m", "x")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCountMessages(t *testing.T) {
	msgs := []core.Message{
		core.NewUserMessage("abcd"),
		core.NewAssistantMessage("main", "", core.ActionRequest{ID: "1", Name: "ab", Arguments: "cd"}),
	}
	n, err := CountMessages(ApproxCounter{}, "m", msgs)
	require.NoError(t, err)
	// "abcd" = 1 token, "" = 0, "abcd" (name+args) = 1, overhead 2*4
	assert.Equal(t, 10, n)
}

func TestTiktokenCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("tiktoken downloads its BPE ranks on first use")
	}

	c := NewTiktokenCounter()
	text := "The quick brown fox jumps over the lazy dog."

	known, err := c.CountTokens("gpt-4", text)
	require.NoError(t, err)
	assert.Positive(t, known)

	// Unknown models fall back to cl100k_base, which gpt-4 also uses.
	fallback, err := c.CountTokens("my-local-model", text)
	require.NoError(t, err)
	assert.Equal(t, known, fallback)

	again, err := c.CountTokens("my-local-model", text)
	require.NoError(t, err)
	assert.Equal(t, fallback, again)
	assert.Len(t, c.encoders, 2)
}

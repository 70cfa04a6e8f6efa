package history

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/internal/testutil"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		msgs []core.Message
		want []string
	}{
		{
			name: "fully answered batch kept",
			msgs: testutil.NewConversationBuilder().
				User("q").Call("a", "b").Result("a", "1").Result("b", "2").Assistant("done").Build(),
			want: []string{"m1", "m2", "m3", "m4", "m5"},
		},
		{
			name: "partially answered batch dropped as a unit",
			msgs: testutil.NewConversationBuilder().
				User("q").Call("a", "b").Result("a", "1").Build(),
			want: []string{"m1"},
		},
		{
			name: "trailing unanswered request dropped",
			msgs: testutil.NewConversationBuilder().
				System("sys").User("q").Call("a").Build(),
			want: []string{"m1", "m2"},
		},
		{
			name: "orphan tool result dropped",
			msgs: testutil.NewConversationBuilder().
				User("q").Result("ghost", "x").Assistant("ok").Build(),
			want: []string{"m1", "m3"},
		},
		{
			name: "result before its request is not an answer",
			msgs: testutil.NewConversationBuilder().
				User("q").Result("a", "early").Call("a").Build(),
			want: []string{"m1"},
		},
		{
			name: "earlier answered batch survives later unanswered one",
			msgs: testutil.NewConversationBuilder().
				User("q").Call("a").Result("a", "1").Call("b").Build(),
			want: []string{"m1", "m2", "m3"},
		},
		{
			name: "empty",
			msgs: nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.msgs)
			assert.Equal(t, tt.want, testutil.IDs(got))
			assert.False(t, Unanswered(got))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := [][]core.Message{
		testutil.NewConversationBuilder().User("q").Call("a", "b").Result("a", "1").Build(),
		testutil.NewConversationBuilder().User("q").Call("a").Result("a", "1").Result("a", "dup").Build(),
		testutil.NewConversationBuilder().System("s").Result("x", "?").Call("y").User("u").Build(),
		testutil.NewConversationBuilder().Call("a").Call("b").Result("b", "1").Result("a", "2").Build(),
	}
	for i, in := range inputs {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			once := Sanitize(in)
			assert.Equal(t, testutil.IDs(once), testutil.IDs(Sanitize(once)))
		})
	}
}

func TestSanitize_DoesNotMutateInput(t *testing.T) {
	in := testutil.NewConversationBuilder().User("q").Call("a").Build()
	_ = Sanitize(in)
	require.Len(t, in, 2)
}

func TestPendingRequests(t *testing.T) {
	msgs := testutil.NewConversationBuilder().User("q").Call("a", "b").Result("a", "1").Build()
	pending := PendingRequests(msgs)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)

	done := testutil.NewConversationBuilder().User("q").Assistant("hi").Build()
	assert.Nil(t, PendingRequests(done))
}

// twelveMessages builds m1..m12 where m3 issues request "r" answered by m11.
func twelveMessages() []core.Message {
	b := testutil.NewConversationBuilder().System("sys").User("q").Call("r")
	for i := 0; i < 7; i++ {
		b.User(fmt.Sprintf("chatter %d", i))
	}
	return b.Result("r", "answer").Assistant("final").Build()
}

func TestWindowForBudget_PullsBackIssuingAssistant(t *testing.T) {
	msgs := twelveMessages()

	got := testutil.IDs(WindowForBudget(msgs, 10))
	assert.Contains(t, got, "m3")
	assert.Contains(t, got, "m11")
	assert.Contains(t, got, "m1", "system message kept")

	// A tighter window leaves m3 outside the naive tail; it must still come back.
	got = testutil.IDs(WindowForBudget(msgs, 2))
	assert.Equal(t, []string{"m1", "m3", "m11", "m12"}, got)
}

func TestWindowForBudget_SystemMessagesAndOrder(t *testing.T) {
	msgs := testutil.NewConversationBuilder().
		System("s1").User("u1").System("s2").User("u2").User("u3").Build()

	got := testutil.IDs(WindowForBudget(msgs, 1))
	assert.Equal(t, []string{"m1", "m3", "m5"}, got)
}

func TestWindowForBudget_PulledBackAssistantKeepsAllResults(t *testing.T) {
	msgs := testutil.NewConversationBuilder().
		User("q").Call("a", "b").Result("a", "1").Result("b", "2").Assistant("x").Build()

	got := WindowForBudget(msgs, 2)
	assert.Equal(t, []string{"m2", "m3", "m4", "m5"}, testutil.IDs(got))
	assert.False(t, Unanswered(got))
}

func TestWindowForBudget_Bounds(t *testing.T) {
	msgs := testutil.NewConversationBuilder().User("a").User("b").Build()
	assert.Len(t, WindowForBudget(msgs, 10), 2)
	assert.Empty(t, WindowForBudget(msgs, 0))
	assert.Empty(t, WindowForBudget(msgs, -1))
}

func TestSplitInFlight(t *testing.T) {
	tests := []struct {
		name         string
		msgs         []core.Message
		wantSettled  []string
		wantInflight []string
	}{
		{
			name:         "trailing batch",
			msgs:         testutil.NewConversationBuilder().User("q").Assistant("a").User("q2").Call("c1", "c2").Build(),
			wantSettled:  []string{"m1", "m2", "m3"},
			wantInflight: []string{"m4"},
		},
		{
			name:         "partially answered batch stays together",
			msgs:         testutil.NewConversationBuilder().User("q").Call("c1", "c2").Result("c1", "r").Build(),
			wantSettled:  []string{"m1"},
			wantInflight: []string{"m2", "m3"},
		},
		{
			name:        "answered batch",
			msgs:        testutil.NewConversationBuilder().User("q").Call("c1").Result("c1", "r").Build(),
			wantSettled: []string{"m1", "m2", "m3"},
		},
		{
			name:        "plain answer",
			msgs:        testutil.NewConversationBuilder().User("q").Assistant("a").Build(),
			wantSettled: []string{"m1", "m2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settled, inflight := SplitInFlight(tt.msgs)
			assert.Equal(t, tt.wantSettled, testutil.IDs(settled))
			if tt.wantInflight == nil {
				assert.Nil(t, inflight)
				return
			}
			assert.Equal(t, tt.wantInflight, testutil.IDs(inflight))
		})
	}
}

func TestWindowMask(t *testing.T) {
	msgs := testutil.NewConversationBuilder().
		System("s").User("q").Call("a").Result("a", "1").User("next").Assistant("ok").Build()

	assert.Equal(t, []bool{true, false, false, false, true, true}, WindowMask(msgs, 2))
	assert.Equal(t, []bool{true, false, true, true, true, true}, WindowMask(msgs, 3))
	assert.Len(t, WindowMask(nil, 5), 0)
}

func TestSplitSystem(t *testing.T) {
	msgs := testutil.NewConversationBuilder().System("s").User("u").System("t").Build()
	sys, rest := SplitSystem(msgs)
	assert.Equal(t, []string{"m1", "m3"}, testutil.IDs(sys))
	assert.Equal(t, []string{"m2"}, testutil.IDs(rest))
}

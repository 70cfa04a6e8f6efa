package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/model"
	"github.com/hupe1980/agentcore/scheduler"
	"github.com/hupe1980/agentcore/session"
)

func echoReasoner() model.Reasoner {
	return model.ReasonerFunc(func(_ context.Context, req model.Request) (model.Reply, error) {
		last := req.Messages[len(req.Messages)-1]
		return model.Reply{
			Message: core.NewAssistantMessage(req.Agent, "echo: "+last.Content),
			Usage:   &model.TokenUsage{PromptTokens: 10, CompletionTokens: 2, TotalTokens: 12},
		}, nil
	})
}

func TestRunner_TurnsAccumulate(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	r := New(scheduler.New(echoReasoner()), func(o *Options) {
		o.Store = store
		o.ModelID = "gpt-4o"
	})

	res, err := r.Run(ctx, "", "hello")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.ContextID)
	assert.Equal(t, "echo: hello", res.Answer)
	assert.Equal(t, scheduler.FinishAnswered, res.Reason)

	res, err = r.Run(ctx, res.ContextID, "again")
	require.NoError(t, err)
	assert.Equal(t, "echo: again", res.Answer)

	st, err := r.State(ctx, res.ContextID)
	require.NoError(t, err)
	assert.Len(t, st.Messages, 4)
	assert.Equal(t, "gpt-4o", st.ModelID)
	assert.Equal(t, 20, st.CumulativePromptTokens)

	require.NoError(t, r.Reset(ctx, res.ContextID))
	_, err = r.State(ctx, res.ContextID)
	assert.ErrorIs(t, err, core.ErrStateNotFound)
}

func TestRunner_NewTurnResetsCompactionGuard(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore()
	st := core.NewConversationState("m", 5)
	st.ContextID = "c1"
	st.CompactedThisTurn = true
	st.LoopCount = 5
	require.NoError(t, store.Save(ctx, st))

	r := New(scheduler.New(echoReasoner()), func(o *Options) { o.Store = store })
	res, err := r.Run(ctx, "c1", "hi")
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.False(t, res.State.CompactedThisTurn)
	assert.Equal(t, 0, res.State.LoopCount)
	assert.Equal(t, 5, res.State.LoopLimit)
}

func TestRunner_SerializesPerContext(t *testing.T) {
	var inFlight, peak atomic.Int32
	reasoner := model.ReasonerFunc(func(_ context.Context, req model.Request) (model.Reply, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		return model.Reply{Message: core.NewAssistantMessage(req.Agent, "ok")}, nil
	})
	r := New(scheduler.New(reasoner))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Run(context.Background(), "shared", "hi")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), peak.Load())
	st, err := r.State(context.Background(), "shared")
	require.NoError(t, err)
	assert.Len(t, st.Messages, 10)
	assert.Empty(t, r.locks, "lock entries are released")
}

func TestRunner_Cancel(t *testing.T) {
	started := make(chan struct{})
	reasoner := model.ReasonerFunc(func(ctx context.Context, _ model.Request) (model.Reply, error) {
		close(started)
		<-ctx.Done()
		return model.Reply{}, ctx.Err()
	})
	r := New(scheduler.New(reasoner))

	assert.ErrorIs(t, r.Cancel("c1"), ErrRunNotFound)

	done := make(chan Result, 1)
	go func() {
		res, err := r.Run(context.Background(), "c1", "slow")
		assert.NoError(t, err)
		done <- res
	}()

	<-started
	assert.True(t, r.Active("c1"))
	require.NoError(t, r.Cancel("c1"))

	select {
	case res := <-done:
		require.Error(t, res.Err)
		assert.Equal(t, scheduler.FinishFailed, res.Reason)
		assert.Len(t, res.State.Messages, 1, "user message kept, failed step rolled back")
	case <-time.After(2 * time.Second):
		t.Fatal("turn was not cancelled")
	}
	assert.False(t, r.Active("c1"))
}

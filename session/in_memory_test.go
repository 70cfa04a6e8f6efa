package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcore/core"
)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrStateNotFound)

	st := core.NewConversationState("gpt-4o", 10).AppendMessages(core.NewUserMessage("hi"))
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx, st.ContextID)
	require.NoError(t, err)
	assert.Equal(t, st, got)

	// returned copies are detached from the stored value
	got.Messages[0].Content = "changed"
	again, err := s.Load(ctx, st.ContextID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Messages[0].Content)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{st.ContextID}, ids)

	require.NoError(t, s.Delete(ctx, st.ContextID))
	_, err = s.Load(ctx, st.ContextID)
	assert.ErrorIs(t, err, core.ErrStateNotFound)
}

func TestInMemoryStore_RejectsEmptyID(t *testing.T) {
	assert.Error(t, NewInMemoryStore().Save(context.Background(), core.ConversationState{}))
}

func TestInMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			st := core.NewConversationState("m", 0)
			st.ContextID = fmt.Sprintf("ctx-%02d", i)
			assert.NoError(t, s.Save(ctx, st))
			_, err := s.Load(ctx, st.ContextID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 20)
}

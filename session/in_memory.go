package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/agentcore/core"
)

// InMemoryStore is a volatile StateStore keeping conversation states in a
// process local map. It is safe for concurrent access and suited for tests,
// the CLI and ephemeral servers. States are cloned on the way in and out.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]core.ConversationState
}

var _ core.StateStore = (*InMemoryStore)(nil)

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{states: make(map[string]core.ConversationState)}
}

// Load returns a copy of the state stored under contextID.
func (s *InMemoryStore) Load(_ context.Context, contextID string) (core.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[contextID]
	if !ok {
		return core.ConversationState{}, fmt.Errorf("%w: %s", core.ErrStateNotFound, contextID)
	}
	return st.Clone(), nil
}

// Save stores a copy of state, replacing any previous value.
func (s *InMemoryStore) Save(_ context.Context, state core.ConversationState) error {
	if state.ContextID == "" {
		return errors.New("session: state without context id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.ContextID] = state.Clone()
	return nil
}

// Delete removes the state; unknown ids are ignored.
func (s *InMemoryStore) Delete(_ context.Context, contextID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, contextID)
	return nil
}

// List returns stored context ids in sorted order.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

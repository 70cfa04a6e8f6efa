package core

import (
	"context"
	"errors"
)

// ErrStateNotFound is returned by a StateStore for unknown context ids.
var ErrStateNotFound = errors.New("conversation state not found")

// StateStore persists ConversationStates between turns, keyed by ContextID.
// Implementations must return copies so callers cannot mutate stored state.
type StateStore interface {
	Load(ctx context.Context, contextID string) (ConversationState, error)
	Save(ctx context.Context, state ConversationState) error
	Delete(ctx context.Context, contextID string) error
	List(ctx context.Context) ([]string, error)
}

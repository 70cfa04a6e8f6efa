package testutil

import "github.com/hupe1980/agentcore/core"

// StateBuilder helps construct conversation states with fluent chaining.
// Example:
//
//	st := NewStateBuilder().Stack("a", "b").Messages(msgs...).Build()
type StateBuilder struct {
	st core.ConversationState
}

// NewStateBuilder creates a root state with context id "ctx-test".
func NewStateBuilder() *StateBuilder {
	st := core.NewConversationState("test-model", core.DefaultLoopLimit)
	st.ContextID = "ctx-test"
	return &StateBuilder{st: st}
}

// Stack sets the call stack; the active agent becomes its top (chainable).
func (b *StateBuilder) Stack(agents ...string) *StateBuilder {
	b.st.CallStack = append([]string{}, agents...)
	if len(agents) > 0 {
		b.st.ActiveAgent = agents[len(agents)-1]
	}
	return b
}

// History sets the call history (chainable).
func (b *StateBuilder) History(agents ...string) *StateBuilder {
	b.st.CallHistory = append([]string{}, agents...)
	return b
}

// Messages replaces the message sequence (chainable).
func (b *StateBuilder) Messages(msgs ...core.Message) *StateBuilder {
	b.st.Messages = core.CloneMessages(msgs)
	return b
}

// Loop sets loop count and limit (chainable).
func (b *StateBuilder) Loop(count, limit int) *StateBuilder {
	b.st.LoopCount = count
	b.st.LoopLimit = limit
	return b
}

// Tokens sets the cumulative token counters (chainable).
func (b *StateBuilder) Tokens(prompt, completion int) *StateBuilder {
	b.st.CumulativePromptTokens = prompt
	b.st.CumulativeCompletionTokens = completion
	return b
}

// Compacted sets the compaction guard (chainable).
func (b *StateBuilder) Compacted(v bool) *StateBuilder {
	b.st.CompactedThisTurn = v
	return b
}

// Build returns a copy of the configured state.
func (b *StateBuilder) Build() core.ConversationState { return b.st.Clone() }

package core

// RootAgent is the identifier of the agent that owns a top-level conversation.
const RootAgent = "main"

// DefaultLoopLimit bounds the reason/act cycles of one user turn.
const DefaultLoopLimit = 25

// ConversationState is the complete per-request state driven by the turn
// scheduler. It is a value type: every method returns a new state and never
// mutates the receiver, so a pre-step snapshot is simply the previous value.
//
// Field merge rules:
//   - Messages appends (AppendMessages) or is atomically replaced (ReplaceMessages)
//   - CallStack / CallHistory change only through the delegation package
//   - scalar fields overwrite
type ConversationState struct {
	ContextID       string    `json:"context_id"`
	ParentContextID string    `json:"parent_context_id,omitempty"`
	ModelID         string    `json:"model_id,omitempty"`
	Messages        []Message `json:"messages"`
	LoopCount       int       `json:"loop_count"`
	LoopLimit       int       `json:"loop_limit"`
	CallStack       []string  `json:"call_stack"`
	CallHistory     []string  `json:"call_history"`
	ActiveAgent     string    `json:"active_agent"`

	CumulativePromptTokens     int  `json:"cumulative_prompt_tokens"`
	CumulativeCompletionTokens int  `json:"cumulative_completion_tokens"`
	CompactedThisTurn          bool `json:"compacted_this_turn"`
}

// NewConversationState creates an empty root state with a fresh ContextID.
func NewConversationState(modelID string, loopLimit int) ConversationState {
	if loopLimit <= 0 {
		loopLimit = DefaultLoopLimit
	}
	return ConversationState{
		ContextID:   NewID(),
		ModelID:     modelID,
		Messages:    []Message{},
		LoopLimit:   loopLimit,
		CallStack:   []string{},
		CallHistory: []string{},
		ActiveAgent: RootAgent,
	}
}

// Clone returns a deep copy of the state.
func (s ConversationState) Clone() ConversationState {
	c := s
	c.Messages = CloneMessages(s.Messages)
	c.CallStack = append([]string{}, s.CallStack...)
	c.CallHistory = append([]string{}, s.CallHistory...)
	return c
}

// AppendMessages returns a copy with msgs appended.
func (s ConversationState) AppendMessages(msgs ...Message) ConversationState {
	c := s.Clone()
	for _, m := range msgs {
		c.Messages = append(c.Messages, m.Clone())
	}
	return c
}

// ReplaceMessages returns a copy whose message sequence is msgs. Used only by
// compaction.
func (s ConversationState) ReplaceMessages(msgs []Message) ConversationState {
	c := s.Clone()
	c.Messages = CloneMessages(msgs)
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return c
}

// BeginTurn prepares the state for a new user request: the user message is
// appended, the loop counter and the compaction guard are reset.
func (s ConversationState) BeginTurn(user Message) ConversationState {
	c := s.AppendMessages(user)
	c.LoopCount = 0
	c.CompactedThisTurn = false
	return c
}

// WithTokens returns a copy with the cumulative counters overwritten.
func (s ConversationState) WithTokens(prompt, completion int) ConversationState {
	c := s.Clone()
	c.CumulativePromptTokens = prompt
	c.CumulativeCompletionTokens = completion
	return c
}

// IncrementLoop returns a copy with LoopCount advanced by one.
func (s ConversationState) IncrementLoop() ConversationState {
	c := s.Clone()
	c.LoopCount++
	return c
}

// LimitReached reports whether the loop ceiling has been hit.
func (s ConversationState) LimitReached() bool { return s.LoopCount >= s.LoopLimit }

// InStack reports whether agent is currently in flight.
func (s ConversationState) InStack(agent string) bool {
	for _, a := range s.CallStack {
		if a == agent {
			return true
		}
	}
	return false
}

// Depth returns the number of in-flight delegations.
func (s ConversationState) Depth() int { return len(s.CallStack) }

package delegation

import "github.com/hupe1980/agentcore/core"

// Apply returns state with the delta's stack, history and active agent.
func Apply(state core.ConversationState, d Delta) core.ConversationState {
	c := state.Clone()
	c.CallStack = append([]string{}, d.CallStack...)
	c.CallHistory = append([]string{}, d.CallHistory...)
	c.ActiveAgent = d.ActiveAgent
	return c
}

// ChildState builds the isolated conversation a delegate runs against: a new
// context id, messages seeded only with the task, its own loop counter and
// token counters, and the call stack carried forward for cycle checks.
func ChildState(parent core.ConversationState, d Delta) core.ConversationState {
	child := Apply(parent, d)
	child.ContextID = core.NewID()
	child.ParentContextID = parent.ContextID
	child.Messages = []core.Message{d.TaskMessage.Clone()}
	child.LoopCount = 0
	child.CumulativePromptTokens = 0
	child.CumulativeCompletionTokens = 0
	child.CompactedThisTurn = false
	return child
}

// Complete handles an agent's return. The top of the call stack is popped
// only when it equals agent; otherwise the stack is left untouched. The
// active agent becomes the caller: the new top, or the root agent.
func Complete(state core.ConversationState, agent string) core.ConversationState {
	c := state.Clone()
	n := len(c.CallStack)
	if n > 0 && c.CallStack[n-1] == agent {
		c.ActiveAgent = Caller(c.CallStack)
		c.CallStack = c.CallStack[:n-1]
		return c
	}
	c.ActiveAgent = core.RootAgent
	if n > 0 {
		c.ActiveAgent = c.CallStack[n-1]
	}
	return c
}

// Caller returns the agent that regains control when the top of stack returns.
func Caller(stack []string) string {
	if len(stack) < 2 {
		return core.RootAgent
	}
	return stack[len(stack)-2]
}

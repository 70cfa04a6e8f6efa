package core

// AgentDescriptor describes an agent that can own a conversation or be
// delegated to. Descriptors are read-only to the core; their lifecycle is
// owned by a Registry.
type AgentDescriptor struct {
	ID          string
	Name        string
	Description string
	Skills      []string
	// Invocable reports whether other agents may delegate to this one.
	Invocable bool
	// Instruction is the system prompt template used while the agent is active.
	Instruction string
	// Tools lists the catalog tool names available to the agent. Empty means all.
	Tools []string
}

// Registry resolves agent identifiers. Implementations must be safe for
// concurrent reads and are never mutated by the core.
type Registry interface {
	// Resolve returns the descriptor for id or an error wrapping ErrAgentNotFound.
	Resolve(id string) (AgentDescriptor, error)
	// List returns all descriptors in registration order.
	List() []AgentDescriptor
}

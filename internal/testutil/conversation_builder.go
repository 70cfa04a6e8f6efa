package testutil

import (
	"fmt"

	"github.com/hupe1980/agentcore/core"
)

// ConversationBuilder provides a fluent helper for constructing message
// sequences in tests. Message ids are deterministic ("m1", "m2", ...) so
// assertions can refer to positions by id.
// Example:
//
//	msgs := NewConversationBuilder().System("be nice").User("hi").
//		Call("c1:search").Result("c1", "found").Assistant("done").Build()
type ConversationBuilder struct {
	agent string
	msgs  []core.Message
}

// NewConversationBuilder creates a builder with default author "main".
func NewConversationBuilder() *ConversationBuilder {
	return &ConversationBuilder{agent: core.RootAgent}
}

// Agent sets the author of subsequent assistant messages (chainable).
func (b *ConversationBuilder) Agent(a string) *ConversationBuilder { b.agent = a; return b }

func (b *ConversationBuilder) add(m core.Message) *ConversationBuilder {
	m.ID = fmt.Sprintf("m%d", len(b.msgs)+1)
	b.msgs = append(b.msgs, m)
	return b
}

// System appends a system message (chainable).
func (b *ConversationBuilder) System(text string) *ConversationBuilder {
	return b.add(core.NewSystemMessage(text))
}

// User appends a user message (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	return b.add(core.NewUserMessage(text))
}

// Assistant appends a plain assistant answer (chainable).
func (b *ConversationBuilder) Assistant(text string) *ConversationBuilder {
	return b.add(core.NewAssistantMessage(b.agent, text))
}

// Call appends an assistant message requesting one action per id. Ids may
// be given as "id" or "id:name"; the action name defaults to "tool" (chainable).
func (b *ConversationBuilder) Call(ids ...string) *ConversationBuilder {
	reqs := make([]core.ActionRequest, 0, len(ids))
	for _, id := range ids {
		reqs = append(reqs, parseRequest(id))
	}
	return b.add(core.NewAssistantMessage(b.agent, "", reqs...))
}

// Result appends a tool-result answering request id (chainable).
func (b *ConversationBuilder) Result(id, content string) *ConversationBuilder {
	return b.add(core.NewToolResult("tool", core.ActionRequest{ID: id, Name: "tool"}, content, false))
}

// Build returns the message sequence.
func (b *ConversationBuilder) Build() []core.Message { return core.CloneMessages(b.msgs) }

func parseRequest(s string) core.ActionRequest {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return core.ActionRequest{ID: s[:i], Name: s[i+1:], Arguments: "{}"}
		}
	}
	return core.ActionRequest{ID: s, Name: "tool", Arguments: "{}"}
}

// IDs returns the ids of msgs in order.
func IDs(msgs []core.Message) []string {
	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

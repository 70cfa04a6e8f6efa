package core

import (
	"time"

	"github.com/google/uuid"
)

// Role discriminates the Message tagged union.
type Role string

const (
	// RoleUser marks a message typed by the end user (or a delegated task).
	RoleUser Role = "user"
	// RoleAssistant marks a reasoning step output, optionally carrying ActionRequests.
	RoleAssistant Role = "assistant"
	// RoleTool marks the result of exactly one ActionRequest.
	RoleTool Role = "tool"
	// RoleSystem marks system-level instructions. System messages survive every
	// sanitization and compaction pass.
	RoleSystem Role = "system"
)

// MetadataSummary is set on messages produced by compaction so later passes can
// fold them into a fresh summary instead of summarising a summary.
const MetadataSummary = "compaction_summary"

// ActionRequest is an assistant-issued request to execute a named action.
type ActionRequest struct {
	ID        string `json:"id"`                  // Correlates the tool-result message
	Name      string `json:"name"`                // Action (tool) name
	Arguments string `json:"arguments,omitempty"` // Serialized JSON arguments
}

// Message is one entry of a conversation. Which fields are meaningful depends
// on Role:
//   - RoleAssistant: Content and/or Requests
//   - RoleTool: Content, RespondsTo (exactly one request id), Name and IsError
//   - RoleUser / RoleSystem: Content only
//
// Messages are treated as immutable once appended to a ConversationState.
type Message struct {
	ID         string            `json:"id"`
	Role       Role              `json:"role"`
	Author     string            `json:"author,omitempty"`
	Content    string            `json:"content,omitempty"`
	Requests   []ActionRequest   `json:"requests,omitempty"`
	RespondsTo string            `json:"responds_to,omitempty"`
	Name       string            `json:"name,omitempty"`
	IsError    bool              `json:"is_error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// NewID generates a new unique identifier for messages and contexts.
func NewID() string { return uuid.NewString() }

func newMessage(role Role, author, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message { return newMessage(RoleUser, "user", content) }

// NewSystemMessage creates a system instruction message.
func NewSystemMessage(content string) Message { return newMessage(RoleSystem, "system", content) }

// NewAssistantMessage creates an assistant message authored by agent. Requests
// may be empty, in which case the message is a plain answer.
func NewAssistantMessage(agent, content string, requests ...ActionRequest) Message {
	m := newMessage(RoleAssistant, agent, content)
	if len(requests) > 0 {
		m.Requests = append([]ActionRequest(nil), requests...)
	}
	return m
}

// NewToolResult creates the tool-result message answering request req.
func NewToolResult(author string, req ActionRequest, content string, isError bool) Message {
	m := newMessage(RoleTool, author, content)
	m.RespondsTo = req.ID
	m.Name = req.Name
	m.IsError = isError
	return m
}

// HasRequests reports whether the message is an assistant message carrying ActionRequests.
func (m Message) HasRequests() bool { return m.Role == RoleAssistant && len(m.Requests) > 0 }

// IsSystem reports whether the message is a system message.
func (m Message) IsSystem() bool { return m.Role == RoleSystem }

// IsSummary reports whether the message was produced by a compaction pass.
func (m Message) IsSummary() bool { return m.Metadata[MetadataSummary] == "true" }

// Clone returns a deep copy (requests and metadata are not shared).
func (m Message) Clone() Message {
	c := m
	if m.Requests != nil {
		c.Requests = append([]ActionRequest(nil), m.Requests...)
	}
	if m.Metadata != nil {
		c.Metadata = make(map[string]string, len(m.Metadata))
		for k, v := range m.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

// WithMetadata returns a copy with key set to value.
func (m Message) WithMetadata(key, value string) Message {
	c := m.Clone()
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	c.Metadata[key] = value
	return c
}

// CloneMessages deep-copies a message slice. A nil input yields nil.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i := range msgs {
		out[i] = msgs[i].Clone()
	}
	return out
}

// LastAssistant returns the last message when it is an assistant message.
func LastAssistant(msgs []Message) (Message, bool) {
	if len(msgs) == 0 {
		return Message{}, false
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant {
		return Message{}, false
	}
	return last, true
}

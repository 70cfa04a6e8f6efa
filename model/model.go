package model

import (
	"context"

	"github.com/hupe1980/agentcore/core"
)

// ToolDefinition declaratively exposes a callable action to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual action. Parameters is a JSON
// Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function-typed ToolDefinition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type:     "function",
		Function: FunctionDefinition{Name: name, Description: description, Parameters: parameters},
	}
}

// Request is the normalized input of one reasoning call. An empty Tools
// slice means no actions are available and the model must answer in text.
type Request struct {
	ModelID      string           `json:"model_id,omitempty"`
	Agent        string           `json:"agent"`
	SystemPrompt string           `json:"system_prompt"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Messages     []core.Message   `json:"messages"`
}

// TokenUsage captures token usage statistics for a reply.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Reply is the result of one reasoning call.
type Reply struct {
	Message      core.Message `json:"message"`
	Usage        *TokenUsage  `json:"usage,omitempty"`
	FinishReason string       `json:"finish_reason,omitempty"`
}

// Info contains metadata about a reasoner implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "scripted", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Reasoner produces the next assistant message for a conversation.
// Failures are returned as *core.Error with a Timeout, RateLimited or
// ModelInvocationFailed kind.
type Reasoner interface {
	Invoke(ctx context.Context, req Request) (Reply, error)
	Info() Info
}

// ReasonerFunc adapts a function to Reasoner.
type ReasonerFunc func(ctx context.Context, req Request) (Reply, error)

// Invoke implements Reasoner.
func (f ReasonerFunc) Invoke(ctx context.Context, req Request) (Reply, error) { return f(ctx, req) }

// Info implements Reasoner.
func (f ReasonerFunc) Info() Info { return Info{Name: "func", Provider: "func", SupportsTools: true} }

// Classify converts a transport error into a *core.Error. Already classified
// errors pass through; context deadlines become Timeout; anything else is
// ModelInvocationFailed.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch kind := core.KindOf(err); kind {
	case core.KindTimeout, core.KindRateLimited, core.KindModelInvocationFailed:
		if _, ok := err.(*core.Error); ok {
			return err
		}
		return core.NewError(kind, op, err)
	default:
		return core.NewError(core.KindModelInvocationFailed, op, err)
	}
}

// ClassifyStatus maps an HTTP status code of a provider error.
func ClassifyStatus(op string, status int, err error) error {
	switch {
	case status == 429:
		return core.NewError(core.KindRateLimited, op, err)
	case status == 408 || status == 504:
		return core.NewError(core.KindTimeout, op, err)
	default:
		return Classify(op, err)
	}
}

// Package tool implements the static action capabilities the scheduler can
// execute: a Tool interface, a read-only Catalog, schema validated function
// adapters and a parallel Executor that answers every ActionRequest with
// exactly one tool-result message.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcore/internal/util"
	"github.com/hupe1980/agentcore/logging"
)

// Tool is a static capability: a name, an argument schema and an execute
// function. Implementations must be safe for concurrent use; the executor
// may run several calls of the same tool in parallel.
type Tool interface {
	// Name returns the unique identifier (snake_case recommended).
	Name() string

	// Description is shown to the model to decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected arguments.
	Parameters() map[string]any

	// Call executes the tool with decoded arguments.
	Call(tc *Context, args map[string]any) (any, error)
}

// Context is passed to every tool call. It carries the cancellation and
// deadline of the call plus identifiers for correlation.
type Context struct {
	context.Context
	CallID    string
	ContextID string
	Agent     string
	Logger    logging.Logger
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeTimeout    = "TIMEOUT"
	CodePanic      = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

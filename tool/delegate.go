package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcore/agent"
	"github.com/hupe1980/agentcore/core"
)

// DelegateToolName is the action name the scheduler intercepts as a
// delegation request.
const DelegateToolName = "delegate_to_agent"

// DelegateArgs are the arguments of a delegation request.
type DelegateArgs struct {
	Agent string `json:"agent" description:"Identifier of the agent to hand the task to"`
	Task  string `json:"task" description:"Self-contained description of what the agent should do"`
}

// DelegateTool advertises delegation to the model. It is never executed
// through an Executor: the scheduler routes requests for it to the
// delegation controller.
type DelegateTool struct {
	delegates []core.AgentDescriptor
}

var _ Tool = (*DelegateTool)(nil)

// NewDelegateTool builds the delegation tool for the given candidate agents.
func NewDelegateTool(delegates []core.AgentDescriptor) *DelegateTool {
	return &DelegateTool{delegates: append([]core.AgentDescriptor(nil), delegates...)}
}

// Name implements Tool.
func (t *DelegateTool) Name() string { return DelegateToolName }

// Description implements Tool.
func (t *DelegateTool) Description() string {
	return "Hand a sub-task to a specialist agent and receive its final answer. Available agents:\n" +
		agent.DescribeDelegates(t.delegates)
}

// Parameters implements Tool.
func (t *DelegateTool) Parameters() map[string]any {
	ids := make([]string, 0, len(t.delegates))
	for _, d := range t.delegates {
		ids = append(ids, d.ID)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{
				"type":        "string",
				"description": "Identifier of the agent to hand the task to",
				"enum":        ids,
			},
			"task": map[string]any{
				"type":        "string",
				"description": "Self-contained description of what the agent should do",
			},
		},
		"required": []string{"agent", "task"},
	}
}

// Call implements Tool. Delegation is handled by the scheduler, so a direct
// call is an execution error.
func (t *DelegateTool) Call(_ *Context, _ map[string]any) (any, error) {
	return nil, NewToolError(DelegateToolName, "delegation must be handled by the scheduler", CodeExecution)
}

// IsDelegation reports whether req asks for a delegation.
func IsDelegation(req core.ActionRequest) bool { return req.Name == DelegateToolName }

// ParseDelegateArgs decodes the arguments of a delegation request.
func ParseDelegateArgs(req core.ActionRequest) (DelegateArgs, error) {
	raw, err := DecodeArguments(req.Arguments)
	if err != nil {
		return DelegateArgs{}, err
	}
	var args DelegateArgs
	args.Agent, _ = raw["agent"].(string)
	args.Task, _ = raw["task"].(string)
	args.Agent = strings.TrimSpace(args.Agent)
	if args.Agent == "" {
		return args, errors.New("missing required argument \"agent\"")
	}
	if strings.TrimSpace(args.Task) == "" {
		return args, fmt.Errorf("missing required argument \"task\" for delegation to %q", args.Agent)
	}
	return args, nil
}

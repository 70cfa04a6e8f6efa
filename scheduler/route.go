package scheduler

import "github.com/hupe1980/agentcore/core"

// Action is what the scheduler does next from AwaitingReasoning.
type Action int

const (
	// ActionReason invokes the reasoner and stays in AwaitingReasoning.
	ActionReason Action = iota
	// ActionExecuteTools moves to ExecutingTools.
	ActionExecuteTools
	// ActionCompress moves to Compressing.
	ActionCompress
	// ActionFinalize moves to Finalizing.
	ActionFinalize
)

func (a Action) String() string {
	switch a {
	case ActionReason:
		return "reason"
	case ActionExecuteTools:
		return "execute_tools"
	case ActionCompress:
		return "compress"
	case ActionFinalize:
		return "finalize"
	default:
		return "unknown"
	}
}

// FinishReason explains why a turn finalized.
type FinishReason string

const (
	FinishAnswered     FinishReason = "answered"
	FinishLimitReached FinishReason = "limit_reached"
	FinishFailed       FinishReason = "failed"
)

// Decision is the result of Route.
type Decision struct {
	Action Action
	Reason FinishReason // set for ActionFinalize
}

// Route decides the next step for state. mustCompress reports whether the
// budget controller wants the history compacted: usage is critical and no
// compaction ran this turn (see budget.Controller.MustCompress). The rules
// apply in order:
//
//  1. LoopCount >= LoopLimit finalizes with FinishLimitReached.
//  2. mustCompress compresses.
//  3. A last assistant message with requests executes tools; without
//     requests it finalizes with FinishAnswered.
//  4. Anything else calls the reasoner.
func Route(state core.ConversationState, mustCompress bool) Decision {
	if state.LimitReached() {
		return Decision{Action: ActionFinalize, Reason: FinishLimitReached}
	}
	if mustCompress {
		return Decision{Action: ActionCompress}
	}
	if last, ok := core.LastAssistant(state.Messages); ok {
		if last.HasRequests() {
			return Decision{Action: ActionExecuteTools}
		}
		return Decision{Action: ActionFinalize, Reason: FinishAnswered}
	}
	return Decision{Action: ActionReason}
}

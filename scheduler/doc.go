// Package scheduler drives one user turn of a conversation through the
// reason, act, observe cycle.
//
// A turn starts in AwaitingReasoning. Each step asks Route what to do next:
// finalize when the loop limit is reached, compress when the budget is
// critical and the turn has not been compacted yet, execute the pending
// action requests of the last assistant message, finalize when the last
// assistant message is a plain answer, or otherwise call the reasoner.
// Transitions are declared with looplab/fsm and logged by an observer.
//
// Delegation requests are intercepted before tool execution: the delegation
// controller decides, an accepted delegate runs a nested turn against an
// isolated child state and its answer becomes one tool-result in the parent.
//
// Failures of the reasoner or of the tool executor end the turn with a
// user-facing message and the state as it was before the failing step.
package scheduler

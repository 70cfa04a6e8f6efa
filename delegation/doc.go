// Package delegation decides whether one agent may hand control to another.
//
// RequestTransfer is a pure function over a ConversationState returning a
// TransferVerdict (Accepted or Rejected). Cycle detection consults only the
// call stack of agents still in flight, never the call history, so sequential
// re-delegation to an agent that has already returned is legal. Apply,
// ChildState and Complete implement the push/pop discipline.
package delegation

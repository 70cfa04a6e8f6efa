// Package core provides the foundational domain types shared by the agent
// control core:
//
//   - Message / ActionRequest (the conversation tagged union)
//   - ConversationState (immutable per-request state with explicit merge rules)
//   - AgentDescriptor / Registry (read-only delegation catalog contract)
//   - Error / Kind (failure taxonomy used by the turn scheduler)
//
// Concrete behavior (sanitizing, delegation, budgeting, scheduling) lives in
// sibling packages so each can be tested in isolation against these types.
package core

// Package runner turns user messages into scheduler turns.
//
// The Runner loads (or creates) the ConversationState of a context id,
// starts a new turn with the user message, runs the scheduler and stores the
// resulting state. Turns of the same context id are serialized; turns of
// different conversations run concurrently up to MaxConcurrentInvocations.
// In-flight turns can be cancelled by context id.
package runner

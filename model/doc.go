// Package model defines the provider-agnostic reasoning contract consumed by
// the turn scheduler, plus helpers around it.
//
// Core pieces:
//   - Reasoner: Invoke(ctx, Request) returning one assistant message and its usage
//   - ToolDefinition: the declarative shape of an action exposed to the model
//   - Retrying: per-attempt timeout and exponential backoff for transient failures
//   - ScriptedReasoner: deterministic replies for tests and examples
//
// Providers (see model/openai and model/anthropic) translate core.Message
// sequences to vendor SDK calls and classify failures into core.Kind values
// so the scheduler stays decoupled from vendor SDKs.
package model

// Package budget tracks cumulative token usage against a model's context
// window and reports when a conversation must be compacted.
//
// The Controller is stateless: counters live in core.ConversationState and
// every observation returns the updated totals. Context windows come from a
// WindowLookup and token estimates from a TokenCounter, both swappable.
package budget

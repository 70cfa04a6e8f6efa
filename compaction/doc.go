// Package compaction shrinks a conversation that no longer fits the model's
// context window.
//
// An Executor replaces a sanitized message sequence with a strictly shorter
// one that keeps every system message and enough recent turns to continue.
// Summarizer is the default Executor: it keeps a recent window, asks the
// model to summarise everything older and folds earlier summaries into the
// new one. EmergencyTruncate is the deterministic fallback used whenever an
// Executor fails or returns a result that Validate rejects.
package compaction

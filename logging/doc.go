// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the scheduler, runner and collaborators use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - CoreLogger, a slog-backed logger with conversation-scoped attributes
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	sched := scheduler.New(reasoner, executor, scheduler.WithLogger(logger))
//
// Log messages are dotted event names ("scheduler.transition", "tool.call.failed")
// followed by key/value attributes.
package logging

package core

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies failures handled by the turn scheduler.
type Kind string

const (
	KindTimeout               Kind = "timeout"
	KindRateLimited           Kind = "rate_limited"
	KindModelInvocationFailed Kind = "model_invocation_failed"
	KindActionExecutionFailed Kind = "action_execution_failed"
	KindCycleRejected         Kind = "cycle_rejected"
	KindDepthExceeded         Kind = "depth_exceeded"
	KindUnexpected            Kind = "unexpected"
)

// Sentinel errors, one per Kind. *Error values match them with errors.Is.
var (
	ErrTimeout               = errors.New("timeout")
	ErrRateLimited           = errors.New("rate limited")
	ErrModelInvocationFailed = errors.New("model invocation failed")
	ErrActionExecutionFailed = errors.New("action execution failed")
	ErrCycleRejected         = errors.New("delegation cycle rejected")
	ErrDepthExceeded         = errors.New("delegation depth exceeded")
	ErrUnexpected            = errors.New("unexpected error")

	// ErrAgentNotFound is returned by a Registry for unknown agent identifiers.
	ErrAgentNotFound = errors.New("agent not found")
)

var sentinels = map[Kind]error{
	KindTimeout:               ErrTimeout,
	KindRateLimited:           ErrRateLimited,
	KindModelInvocationFailed: ErrModelInvocationFailed,
	KindActionExecutionFailed: ErrActionExecutionFailed,
	KindCycleRejected:         ErrCycleRejected,
	KindDepthExceeded:         ErrDepthExceeded,
	KindUnexpected:            ErrUnexpected,
}

// Error is a classified failure. Op names the operation that failed
// (e.g. "reasoning.invoke"); Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Terminal reports whether the kind ends the current turn. Delegation
// rejections are reported back to the model instead.
func (k Kind) Terminal() bool {
	return k != KindCycleRejected && k != KindDepthExceeded
}

// KindOf classifies an arbitrary error. Classified errors keep their kind,
// context deadlines map to KindTimeout and everything else is KindUnexpected.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	for kind, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnexpected
}

// UserMessage returns the end-user facing text for a terminal failure kind.
// Internal details are never included.
func UserMessage(kind Kind) string {
	switch kind {
	case KindTimeout:
		return "The request took too long to complete. Please try again."
	case KindRateLimited:
		return "The service is busy right now. Please wait a moment and try again."
	case KindModelInvocationFailed:
		return "The language model could not be reached. Please try again later."
	case KindActionExecutionFailed:
		return "An action required to answer could not be completed. Please try again."
	default:
		return "Sorry, something went wrong while handling your request."
	}
}

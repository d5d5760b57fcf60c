// Package apperr defines the closed error taxonomy surfaced by the
// DaleFocus operations. Every internal failure is re-expressed as exactly
// one Kind before it reaches a caller; raw transport or parse errors never
// escape the service boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller. The set is closed and stable.
type Kind string

const (
	// Unauthenticated means no valid principal accompanied the call.
	Unauthenticated Kind = "unauthenticated"
	// InvalidArgument means the input failed validation or referenced a
	// task that does not exist.
	InvalidArgument Kind = "invalid_argument"
	// PermissionDenied means the referenced task belongs to another
	// principal.
	PermissionDenied Kind = "permission_denied"
	// FailedPrecondition means the call cannot proceed in the current
	// state: task already completed, AI service unconfigured, or the
	// provider rejected our credentials.
	FailedPrecondition Kind = "failed_precondition"
	// ResourceExhausted means the per-principal rate limit was hit or the
	// provider signaled overload.
	ResourceExhausted Kind = "resource_exhausted"
	// DeadlineExceeded means the external call hit its deadline and was
	// aborted.
	DeadlineExceeded Kind = "deadline_exceeded"
	// Internal means a parse, schema, or persistence failure. The Stage
	// tag identifies the pipeline phase for diagnostics.
	Internal Kind = "internal"
)

// Stage tags Internal errors with the pipeline phase that failed.
type Stage string

const (
	StageNone     Stage = ""
	StageParse    Stage = "parse"
	StageAISchema Stage = "ai_schema"
	StagePersist  Stage = "persist"
	StageUnknown  Stage = "unknown"
)

// Error is a classified failure. Message is safe to show to callers;
// the wrapped cause is for logs only.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	cause   error
}

// New creates a classified error with a caller-facing message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a classified error around an underlying cause.
func Wrap(kind Kind, stage Stage, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, cause: cause}
}

// WithStage returns a copy of the error tagged with the given stage.
func (e *Error) WithStage(stage Stage) *Error {
	clone := *e
	clone.Stage = stage
	return &clone
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Stage != StageNone {
		return fmt.Sprintf("%s (stage=%s): %s", e.Kind, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and
// Internal otherwise. Unclassified errors are by definition internal.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// StageOf returns the Stage of err, or StageUnknown for unclassified errors.
func StageOf(err error) Stage {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return StageUnknown
}

// Retryable reports whether the failure is recoverable for the user (try
// again or fix the input) as opposed to operator-facing. Callers use this
// to decide whether to show a retry affordance.
func Retryable(err error) bool {
	switch KindOf(err) {
	case InvalidArgument, ResourceExhausted, DeadlineExceeded:
		return true
	default:
		return false
	}
}

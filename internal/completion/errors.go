package completion

import (
	"context"
	"errors"

	"overlayd/internal/manager"
)

// ErrUnsupportedContext is returned when no prompt template applies to the
// context; the model is never consulted.
var ErrUnsupportedContext = errors.New("unsupported context")

// ErrModelNotReady is the manager's fail-fast error, re-exported so callers of
// this package need not import the manager.
var ErrModelNotReady = manager.ErrModelNotReady

var errEmptyCompletion = errors.New("empty completion")

// InferenceFailedError wraps any failure raised while generating.
type InferenceFailedError struct{ Cause error }

func (e *InferenceFailedError) Error() string {
	if e.Cause == nil {
		return "inference failed"
	}
	return "inference failed: " + e.Cause.Error()
}

func (e *InferenceFailedError) Unwrap() error { return e.Cause }

// IsInferenceFailed reports whether err is an inference failure.
func IsInferenceFailed(err error) bool {
	var ie *InferenceFailedError
	return errors.As(err, &ie)
}

// IsUnsupportedContext reports whether err signals a context without a prompt.
func IsUnsupportedContext(err error) bool { return errors.Is(err, ErrUnsupportedContext) }

// FailureKind classifies the error carried by a Result.
type FailureKind string

const (
	KindNone               FailureKind = ""
	KindModelNotReady      FailureKind = "model_not_ready"
	KindInferenceFailed    FailureKind = "inference_failed"
	KindUnsupportedContext FailureKind = "unsupported_context"
	KindCancelled          FailureKind = "cancelled"
)

// KindOf maps err onto a FailureKind.
func KindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case IsUnsupportedContext(err):
		return KindUnsupportedContext
	case manager.IsModelNotReady(err):
		return KindModelNotReady
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInferenceFailed
	}
}

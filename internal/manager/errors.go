package manager

import (
	"errors"
	"fmt"
)

// ErrModelNotReady is returned by Infer when no model is loaded. Callers never
// wait for a model to become ready.
var ErrModelNotReady = errors.New("model not ready")

// IsModelNotReady reports whether err is (or wraps) ErrModelNotReady.
func IsModelNotReady(err error) bool { return errors.Is(err, ErrModelNotReady) }

// ErrModelTooLarge marks a model file that exceeds the memory tier ceiling.
var ErrModelTooLarge = errors.New("model exceeds memory tier ceiling")

// TransitionError rejects a lifecycle request that is illegal from the current
// state, including a request racing another operation.
type TransitionError struct {
	Op     string
	From   State
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}

// IsTransitionRejected reports whether err is a rejected lifecycle request.
func IsTransitionRejected(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}

// DownloadError reports a failed model download after all attempts.
type DownloadError struct {
	ModelID string
	Err     error
}

func (e *DownloadError) Error() string { return "download " + e.ModelID + ": " + e.Err.Error() }
func (e *DownloadError) Unwrap() error { return e.Err }

// IsDownloadFailed reports whether err is a download failure.
func IsDownloadFailed(err error) bool {
	var de *DownloadError
	return errors.As(err, &de)
}

// LoadError reports a failed model load.
type LoadError struct {
	ModelID string
	Err     error
}

func (e *LoadError) Error() string { return "load " + e.ModelID + ": " + e.Err.Error() }
func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadFailed reports whether err is a load failure.
func IsLoadFailed(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns an error when the configured model is not present
// in the models directory.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var nf modelNotFoundError
	return errors.As(err, &nf)
}

// dependencyUnavailableError signals a missing external dependency (e.g., llama.cpp).
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing/failed runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}

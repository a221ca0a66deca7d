package predictor

import (
	"errors"
	"fmt"
	"net/http"
)

// ModelInferenceError reports that the loaded model failed to produce a
// valid class index. It indicates an artifact/runtime mismatch and is not
// retryable.
type ModelInferenceError struct {
	Reason string
	Err    error
}

func (e *ModelInferenceError) Error() string {
	if e.Err != nil {
		return "model inference failed: " + e.Reason + ": " + e.Err.Error()
	}
	return "model inference failed: " + e.Reason
}

func (e *ModelInferenceError) Unwrap() error { return e.Err }

// StatusCode maps inference failures to 500.
func (e *ModelInferenceError) StatusCode() int { return http.StatusInternalServerError }

func inferenceError(reason string, err error) error {
	return &ModelInferenceError{Reason: reason, Err: err}
}

// IsModelInference reports whether err is (or wraps) a ModelInferenceError.
func IsModelInference(err error) bool {
	var e *ModelInferenceError
	return errors.As(err, &e)
}

// dependencyUnavailableError signals a missing model or runtime so the HTTP
// layer can return 503 instead of 500.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// ErrDependencyUnavailable constructs a dependency-unavailable error.
func ErrDependencyUnavailable(format string, args ...any) error {
	return dependencyUnavailableError{msg: fmt.Sprintf(format, args...)}
}

// IsDependencyUnavailable reports whether err indicates a missing model or runtime.
func IsDependencyUnavailable(err error) bool {
	var e dependencyUnavailableError
	return errors.As(err, &e)
}

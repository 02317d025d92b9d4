package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFileFormat signals an upload whose declared filename is not an accepted image type.
	ErrInvalidFileFormat = errors.New("invalid file format")
	// ErrLabelMismatch signals that the classifier output does not align with the label set.
	ErrLabelMismatch = errors.New("label set does not match classifier output")
	// ErrInvalidLabels signals a malformed label file.
	ErrInvalidLabels = errors.New("invalid labels")
)

// InferenceError wraps any decode, shape or runtime failure raised while handling a prediction.
// Error returns the underlying message verbatim; callers surface it as-is.
type InferenceError struct {
	Stage string
	Err   error
}

func (e *InferenceError) Error() string { return e.Err.Error() }
func (e *InferenceError) Unwrap() error { return e.Err }

// NewInferenceError wraps err as an inference failure at the given stage (decode, classify, ...).
func NewInferenceError(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &InferenceError{Stage: stage, Err: err}
}

// IsInferenceError reports whether err carries an InferenceError and returns its stage.
func IsInferenceError(err error) (string, bool) {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie.Stage, true
	}
	return "", false
}

// LabelMismatchError wraps ErrLabelMismatch with both sizes.
type LabelMismatchError struct {
	Labels  int
	Outputs int
}

func (e *LabelMismatchError) Error() string {
	return fmt.Sprintf("%s: %d labels, %d outputs", ErrLabelMismatch.Error(), e.Labels, e.Outputs)
}

func (e *LabelMismatchError) Unwrap() error { return ErrLabelMismatch }

package domain

import "context"

// Classifier runs a forward pass over one normalized input tensor and returns the probability vector.
// Implementations must be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, input []float32) ([]float32, error)
}

// OutputSizer is implemented by classifiers that know their output dimensionality up front.
// A non-positive size means the model declares a dynamic dimension.
type OutputSizer interface {
	OutputSize() int
}

// CheckOutputSize verifies len(labels) against the classifier's declared output size, if any.
func CheckOutputSize(c Classifier, labels Labels) error {
	sz, ok := c.(OutputSizer)
	if !ok {
		return nil
	}
	n := sz.OutputSize()
	if n <= 0 || n == labels.Len() {
		return nil
	}
	return &LabelMismatchError{Labels: labels.Len(), Outputs: n}
}

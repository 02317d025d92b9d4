package domain

import (
	"fmt"
	"math"
)

// Prediction is the per-request result: the top class, its probability, and every label's probability.
type Prediction struct {
	Class      string
	Confidence float32
	All        map[string]float32
}

// NewPrediction picks the argmax of probs (lowest index wins ties) and zips labels with probs.
// NaN or infinite probabilities are rejected.
func NewPrediction(labels Labels, probs []float32) (Prediction, error) {
	if len(probs) != labels.Len() {
		return Prediction{}, &LabelMismatchError{Labels: labels.Len(), Outputs: len(probs)}
	}
	if len(probs) == 0 {
		return Prediction{}, fmt.Errorf("empty probability vector")
	}

	best := 0
	all := make(map[string]float32, len(probs))
	for i, p := range probs {
		if math.IsNaN(float64(p)) || math.IsInf(float64(p), 0) {
			return Prediction{}, fmt.Errorf("non-finite probability %v for class %q", p, labels.Name(i))
		}
		all[labels.Name(i)] = p
		if p > probs[best] {
			best = i
		}
	}

	return Prediction{
		Class:      labels.Name(best),
		Confidence: probs[best],
		All:        all,
	}, nil
}

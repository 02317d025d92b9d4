package plantclf

import "sort"

// Prediction is the service's classification of one image.
type Prediction struct {
	Class          string             `json:"class"`
	Confidence     float32            `json:"confidence"`
	AllPredictions map[string]float32 `json:"all_predictions"`
}

// ClassScore pairs a class name with its probability.
type ClassScore struct {
	Class       string
	Probability float32
}

// Top returns the n most probable classes, highest first. Equal probabilities are ordered by name.
// n <= 0 returns every class.
func (p Prediction) Top(n int) []ClassScore {
	scores := make([]ClassScore, 0, len(p.AllPredictions))
	for class, prob := range p.AllPredictions {
		scores = append(scores, ClassScore{Class: class, Probability: prob})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Probability != scores[j].Probability {
			return scores[i].Probability > scores[j].Probability
		}
		return scores[i].Class < scores[j].Class
	})
	if n > 0 && n < len(scores) {
		scores = scores[:n]
	}
	return scores
}

// HealthStatus is the /health payload.
type HealthStatus struct {
	Status      string            `json:"status"`
	ModelLoaded bool              `json:"model_loaded"`
	Checks      map[string]string `json:"checks,omitempty"`
}

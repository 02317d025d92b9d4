package chi

type messageResponse struct {
	Message string `json:"message"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

type healthResponse struct {
	Status      string            `json:"status"`
	ModelLoaded bool              `json:"model_loaded"`
	Checks      map[string]string `json:"checks,omitempty"`
}

type predictionResponse struct {
	Class          string             `json:"class"`
	Confidence     float32            `json:"confidence"`
	AllPredictions map[string]float32 `json:"all_predictions"`
}

// validationError mirrors the list-shaped detail request validators emit for a missing field.
type validationError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationResponse struct {
	Detail []validationError `json:"detail"`
}

func missingFieldResponse(field string) validationResponse {
	return validationResponse{Detail: []validationError{{
		Loc:  []string{"body", field},
		Msg:  "Field required",
		Type: "missing",
	}}}
}

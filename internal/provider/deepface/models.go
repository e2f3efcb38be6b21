package deepface

// representRequest is the payload for DeepFace's /represent endpoint.
type representRequest struct {
	Image            string `json:"img"`
	ModelName        string `json:"model_name"`
	DetectorBackend  string `json:"detector_backend,omitempty"`
	EnforceDetection bool   `json:"enforce_detection"`
}

// representResponse is DeepFace's /represent response.
type representResponse struct {
	Results []representResult `json:"results"`
}

type representResult struct {
	Embedding  []float64      `json:"embedding"`
	FacialArea map[string]any `json:"facial_area,omitempty"`
	Confidence float64        `json:"face_confidence,omitempty"`
}

// errorResponse is DeepFace's error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

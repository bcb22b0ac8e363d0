package predictor

import "github.com/example/metabolic-ninja/api-go/internal/model"

// PredictRequest is the body of POST /predict on a worker.
type PredictRequest struct {
	ModelID          string `json:"model_id"`
	UniversalModelID string `json:"universal_model_id"`
	ProductID        string `json:"product_id"`
	MaxPredictions   int    `json:"max_predictions"`
}

// StreamMessage is one line of the newline-delimited JSON stream a worker
// answers with. The stream ends with a message that sets Done or Error.
type StreamMessage struct {
	Pathway *model.RawPathway `json:"pathway,omitempty"`
	Done    bool              `json:"done,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Package predictor is the boundary to the pathway prediction engine.
//
// A Predictor is built for one (model, universal model) pair and streams
// candidate pathways for a product through a callback. Building a predictor
// can be expensive, so the service goes through a Cache that keeps a bounded
// number of them alive.
package predictor

import (
	"context"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

type Predictor interface {
	// Predict finds up to maxResults pathways producing productID and calls
	// onPathway for each one as soon as it is found. An error returned by
	// onPathway stops the prediction and is returned unchanged.
	Predict(ctx context.Context, productID string, maxResults int, onPathway func(model.RawPathway) error) error
}

type ModelPair struct {
	ModelID          string `json:"model_id"`
	UniversalModelID string `json:"universal_model_id"`
}

func (p ModelPair) String() string {
	return p.ModelID + "/" + p.UniversalModelID
}

// Source hands out the predictor of a model pair.
type Source interface {
	Get(ctx context.Context, pair ModelPair) (Predictor, error)
}

// Factory builds a new predictor for a model pair.
type Factory func(ctx context.Context, pair ModelPair) (Predictor, error)

func (f Factory) Get(ctx context.Context, pair ModelPair) (Predictor, error) {
	return f(ctx, pair)
}

// Func adapts a plain function to Predictor.
type Func func(ctx context.Context, productID string, maxResults int, onPathway func(model.RawPathway) error) error

func (f Func) Predict(ctx context.Context, productID string, maxResults int, onPathway func(model.RawPathway) error) error {
	return f(ctx, productID, maxResults, onPathway)
}

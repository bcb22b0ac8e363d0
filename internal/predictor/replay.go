package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/example/metabolic-ninja/api-go/internal/blob"
	"github.com/example/metabolic-ninja/api-go/internal/model"
)

const predictionsDir = "predictions"

// Replay streams pathways recorded under
// predictions/<model>/<universal model>/<product>.json, waiting Delay before
// each one. It stands in for the optimizer on workers and in tests.
type Replay struct {
	Blobs blob.LocalFS
	Pair  ModelPair
	Delay time.Duration
}

// ReplayFactory returns a Factory of Replay predictors. Building fails for
// pairs that have no recordings.
func ReplayFactory(blobs blob.LocalFS, delay time.Duration) Factory {
	return func(_ context.Context, pair ModelPair) (Predictor, error) {
		if !blobs.Exists(path.Join(predictionsDir, pair.ModelID, pair.UniversalModelID)) {
			return nil, fmt.Errorf("no recorded predictions for %s", pair)
		}
		return &Replay{Blobs: blobs, Pair: pair, Delay: delay}, nil
	}
}

// RecordingPath is the blob path of the recordings of a product.
func RecordingPath(pair ModelPair, productID string) string {
	return path.Join(predictionsDir, pair.ModelID, pair.UniversalModelID, productID+".json")
}

func (r *Replay) Predict(ctx context.Context, productID string, maxResults int, onPathway func(model.RawPathway) error) error {
	f, err := r.Blobs.Open(RecordingPath(r.Pair, productID))
	if err != nil {
		return fmt.Errorf("open recordings of %s: %w", productID, err)
	}
	var pathways []model.RawPathway
	err = json.NewDecoder(f).Decode(&pathways)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode recordings of %s: %w", productID, err)
	}

	if maxResults >= 0 && len(pathways) > maxResults {
		pathways = pathways[:maxResults]
	}
	for _, p := range pathways {
		if r.Delay > 0 {
			timer := time.NewTimer(r.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := onPathway(p); err != nil {
			return err
		}
	}
	return nil
}

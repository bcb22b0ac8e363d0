package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/example/metabolic-ninja/api-go/internal/model"
)

// ErrTruncated is returned when a worker stream ends without a terminator.
var ErrTruncated = errors.New("prediction stream ended unexpectedly")

// Remote runs predictions on a worker process over HTTP.
type Remote struct {
	BaseURL string
	Pair    ModelPair
	Client  *http.Client
}

// RemoteFactory returns a Factory of Remote predictors talking to baseURL.
func RemoteFactory(baseURL string, client *http.Client) Factory {
	if client == nil {
		client = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return func(_ context.Context, pair ModelPair) (Predictor, error) {
		if baseURL == "" {
			return nil, errors.New("worker url is not configured")
		}
		return &Remote{BaseURL: baseURL, Pair: pair, Client: client}, nil
	}
}

func (r *Remote) Predict(ctx context.Context, productID string, maxResults int, onPathway func(model.RawPathway) error) error {
	data, err := json.Marshal(PredictRequest{
		ModelID:          r.Pair.ModelID,
		UniversalModelID: r.Pair.UniversalModelID,
		ProductID:        productID,
		MaxPredictions:   maxResults,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	url := r.BaseURL + "/predict"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call prediction endpoint %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("prediction worker returned non-200 status: %d %s, body: %s", resp.StatusCode, resp.Status, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var msg StreamMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrTruncated
			}
			return fmt.Errorf("failed to decode prediction stream: %w", err)
		}
		switch {
		case msg.Error != "":
			return fmt.Errorf("prediction worker: %s", msg.Error)
		case msg.Done:
			return nil
		case msg.Pathway != nil:
			if err := onPathway(*msg.Pathway); err != nil {
				return err
			}
		}
	}
}

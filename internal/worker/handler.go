// Package worker serves predictions to the API over HTTP.
//
// POST /predict takes a predictor.PredictRequest and answers with a stream of
// newline-delimited predictor.StreamMessage values, one per pathway, closed
// by a done or error message.
package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"

	"github.com/example/metabolic-ninja/api-go/internal/model"
	"github.com/example/metabolic-ninja/api-go/internal/predictor"
)

const defaultMaxPredictions = 10

type Handler struct {
	Source predictor.Source
	Logger logr.Logger
}

func (h Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/predict", h.handlePredict)
	return r
}

func (h Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictor.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if req.ModelID == "" || req.UniversalModelID == "" || req.ProductID == "" {
		writeErr(w, http.StatusBadRequest, errors.New("model_id, universal_model_id and product_id are required"))
		return
	}
	if req.MaxPredictions <= 0 {
		req.MaxPredictions = defaultMaxPredictions
	}

	ctx := r.Context()
	pair := predictor.ModelPair{ModelID: req.ModelID, UniversalModelID: req.UniversalModelID}
	p, err := h.Source.Get(ctx, pair)
	if err != nil {
		writeErr(w, http.StatusNotFound, err)
		return
	}

	logger := h.Logger.WithValues("pair", pair.String(), "productId", req.ProductID)
	logger.Info("Starting prediction", "maxPredictions", req.MaxPredictions)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)
	enc := json.NewEncoder(w)
	send := func(msg predictor.StreamMessage) error {
		if err := enc.Encode(msg); err != nil {
			return err
		}
		return rc.Flush()
	}

	found := 0
	err = p.Predict(ctx, req.ProductID, req.MaxPredictions, func(raw model.RawPathway) error {
		found++
		return send(predictor.StreamMessage{Pathway: &raw})
	})
	if err != nil {
		logger.Error(err, "Prediction failed", "found", found)
		_ = send(predictor.StreamMessage{Error: err.Error()})
		return
	}
	logger.Info("Prediction finished", "found", found)
	_ = send(predictor.StreamMessage{Done: true})
}

func writeErr(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err.Error()})
}

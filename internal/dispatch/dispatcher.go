// Package dispatch decides what a prediction request for a job key does and
// runs predictions in the background.
//
// A job has no stored state enum. Its state is derived from the job record on
// every request:
//
//	absent    no record                               start a run  -> accepted
//	pending   not ready, updated within the timeout   nothing      -> in progress
//	stalled   not ready, updated timeout or more ago  restart      -> restarting
//	ready     ready                                   nothing      -> ready
//
// Every run owns a fresh run id and all of its writes are conditional on that
// id, so a run that was restarted away cannot touch its successor's record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/example/metabolic-ninja/api-go/internal/logging"
	"github.com/example/metabolic-ninja/api-go/internal/metrics"
	"github.com/example/metabolic-ninja/api-go/internal/model"
	"github.com/example/metabolic-ninja/api-go/internal/pathway"
	"github.com/example/metabolic-ninja/api-go/internal/predictor"
	"github.com/example/metabolic-ninja/api-go/internal/store"
)

const (
	DefaultTimeout        = 30 * time.Minute
	DefaultMaxPredictions = 10

	cleanupTimeout = 10 * time.Second
)

// ErrInvalidKey is returned for keys that do not resolve against the
// reference lists.
var ErrInvalidKey = errors.New("unknown model, universal model, carbon source or product")

var errSuperseded = errors.New("run superseded")

type Outcome string

const (
	OutcomeAccepted   Outcome = "accepted"
	OutcomeInProgress Outcome = "in_progress"
	OutcomeRestarting Outcome = "restarting"
	OutcomeReady      Outcome = "ready"
)

// Mapper rewrites the metabolite ids of a predicted pathway before it is
// reduced.
type Mapper interface {
	MapPathway(ctx context.Context, raw model.RawPathway) model.RawPathway
}

// Alerter receives prediction failures.
type Alerter interface {
	Alert(ctx context.Context, key model.JobKey, err error)
}

// LogAlerter reports failures to a logger.
type LogAlerter struct {
	Logger logr.Logger
}

func (a LogAlerter) Alert(_ context.Context, key model.JobKey, err error) {
	a.Logger.Error(err, "Pathway prediction failed",
		"modelId", key.ModelID,
		"universalModelId", key.UniversalModelID,
		"carbonSourceId", key.CarbonSourceID,
		"productId", key.ProductID)
}

type Options struct {
	Timeout        time.Duration
	MaxPredictions int
	// Mapper is optional; pathways are reduced unmapped without one.
	Mapper  Mapper
	Alerter Alerter
	Metrics *metrics.Metrics
	Logger  logr.Logger
	Now     func() time.Time
}

type Dispatcher struct {
	store          store.Store
	source         predictor.Source
	mapper         Mapper
	alerter        Alerter
	metrics        *metrics.Metrics
	logger         logr.Logger
	now            func() time.Time
	timeout        time.Duration
	maxPredictions int

	runCtx    context.Context
	cancelRun context.CancelFunc
	runs      sync.WaitGroup
}

func New(st store.Store, source predictor.Source, opts Options) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxPredictions <= 0 {
		opts.MaxPredictions = DefaultMaxPredictions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	logger = logger.WithName("dispatch")
	if opts.Alerter == nil {
		opts.Alerter = LogAlerter{Logger: logger}
	}

	runCtx, cancel := context.WithCancel(logr.NewContext(context.Background(), logger))
	return &Dispatcher{
		store:          st,
		source:         source,
		mapper:         opts.Mapper,
		alerter:        opts.Alerter,
		metrics:        opts.Metrics,
		logger:         logger,
		now:            opts.Now,
		timeout:        opts.Timeout,
		maxPredictions: opts.MaxPredictions,
		runCtx:         runCtx,
		cancelRun:      cancel,
	}
}

// Predict moves the job of key through its state machine and reports what
// happened. It returns ErrInvalidKey without touching the store when the key
// does not resolve.
func (d *Dispatcher) Predict(ctx context.Context, key model.JobKey) (Outcome, error) {
	outcome, err := d.predict(ctx, key)
	switch {
	case errors.Is(err, ErrInvalidKey):
		d.metrics.RecordOutcome("invalid_key")
	case err != nil:
		d.metrics.RecordOutcome("error")
	default:
		d.metrics.RecordOutcome(string(outcome))
	}
	return outcome, err
}

func (d *Dispatcher) predict(ctx context.Context, key model.JobKey) (Outcome, error) {
	if !key.Complete() {
		return "", ErrInvalidKey
	}
	ok, err := d.store.IsAvailable(ctx, key)
	if err != nil {
		return "", fmt.Errorf("check key: %w", err)
	}
	if !ok {
		return "", ErrInvalidKey
	}

	rec, err := d.store.GetRecord(ctx, key)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return d.start(ctx, key, OutcomeAccepted)
	case err != nil:
		return "", fmt.Errorf("get job record: %w", err)
	case rec.Ready:
		return OutcomeReady, nil
	case rec.Stalled(d.now(), d.timeout):
		d.logger.Info("Restarting stalled prediction", "productId", key.ProductID, "run", rec.RunID, "updated", rec.UpdatedAt)
		if err := d.store.DeleteRecord(ctx, key, rec.RunID); err != nil {
			return "", fmt.Errorf("delete stalled job record: %w", err)
		}
		return d.start(ctx, key, OutcomeRestarting)
	default:
		return OutcomeInProgress, nil
	}
}

func (d *Dispatcher) start(ctx context.Context, key model.JobKey, outcome Outcome) (Outcome, error) {
	now := d.now().UTC()
	rec := model.JobRecord{
		Key:       key,
		RunID:     uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		Pathways:  []model.PathwayResult{},
	}
	if err := d.store.CreateRecord(ctx, rec); err != nil {
		if errors.Is(err, model.ErrExists) {
			// Another request started the job first.
			return OutcomeInProgress, nil
		}
		return "", fmt.Errorf("create job record: %w", err)
	}

	d.runs.Add(1)
	go d.run(rec)
	return outcome, nil
}

func (d *Dispatcher) run(rec model.JobRecord) {
	defer d.runs.Done()
	started := time.Now()
	logger := d.logger.WithValues("productId", rec.Key.ProductID, "modelId", rec.Key.ModelID, "run", rec.RunID)
	d.metrics.RunStarted()

	err := d.execute(d.runCtx, rec, logger)
	if err == nil {
		err = d.store.SetReady(d.runCtx, rec.Key, rec.RunID, d.now())
		if errors.Is(err, model.ErrNotFound) {
			err = errSuperseded
		}
	}

	switch {
	case err == nil:
		logger.Info("Prediction finished")
		d.metrics.RunFinished(metrics.ResultSucceeded, time.Since(started))
	case errors.Is(err, errSuperseded):
		logger.Info("Prediction superseded by a newer run")
		d.metrics.RunFinished(metrics.ResultSuperseded, time.Since(started))
	default:
		ctx, cancel := context.WithTimeout(context.WithoutCancel(d.runCtx), cleanupTimeout)
		defer cancel()
		if derr := d.store.DeleteRecord(ctx, rec.Key, rec.RunID); derr != nil {
			logger.Error(derr, "Failed to delete job record of failed prediction")
		}
		d.alerter.Alert(ctx, rec.Key, err)
		d.metrics.RunFinished(metrics.ResultFailed, time.Since(started))
	}
}

func (d *Dispatcher) execute(ctx context.Context, rec model.JobRecord, logger logr.Logger) error {
	key := rec.Key
	p, err := d.source.Get(ctx, predictor.ModelPair{ModelID: key.ModelID, UniversalModelID: key.UniversalModelID})
	if err != nil {
		return err
	}
	return p.Predict(ctx, key.ProductID, d.maxPredictions, func(raw model.RawPathway) error {
		if d.mapper != nil {
			raw = d.mapper.MapPathway(ctx, raw)
		}
		reduced := pathway.Reduce(raw, key.ProductID)
		if err := d.store.AppendPathway(ctx, key, rec.RunID, pathway.Summarize(raw, reduced), d.now()); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return errSuperseded
			}
			return fmt.Errorf("append pathway: %w", err)
		}
		d.metrics.PathwayAppended()
		logger.V(logging.DEBUG).Info("Pathway appended", "reactions", len(reduced.Reactions))
		return nil
	})
}

// Pathways returns the results accumulated for key so far, or an empty list
// when there is no job.
func (d *Dispatcher) Pathways(ctx context.Context, key model.JobKey) ([]model.PathwayResult, error) {
	rec, err := d.store.GetRecord(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return []model.PathwayResult{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.Pathways, nil
}

// Status is what the streaming endpoint reports about a job.
type Status struct {
	Pathways []model.PathwayResult `json:"pathways"`
	IsReady  bool                  `json:"is_ready"`
}

// Status returns the results and readiness of key. It returns ErrInvalidKey
// for keys that do not resolve and an empty, not ready status when there is
// no job.
func (d *Dispatcher) Status(ctx context.Context, key model.JobKey) (Status, error) {
	if !key.Complete() {
		return Status{}, ErrInvalidKey
	}
	ok, err := d.store.IsAvailable(ctx, key)
	if err != nil {
		return Status{}, fmt.Errorf("check key: %w", err)
	}
	if !ok {
		return Status{}, ErrInvalidKey
	}
	rec, err := d.store.GetRecord(ctx, key)
	if errors.Is(err, model.ErrNotFound) {
		return Status{Pathways: []model.PathwayResult{}}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Pathways: rec.Pathways, IsReady: rec.Ready}, nil
}

// Wait blocks until every background run has returned.
func (d *Dispatcher) Wait() {
	d.runs.Wait()
}

// Shutdown cancels background runs and waits for them until ctx is done.
// Cancelled runs delete their records like any failed run.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.cancelRun()
	done := make(chan struct{})
	go func() {
		d.runs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

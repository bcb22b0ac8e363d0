package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/example/metabolic-ninja/api-go/internal/config"
	"github.com/example/metabolic-ninja/api-go/internal/dispatch"
	"github.com/example/metabolic-ninja/api-go/internal/httpapi"
	"github.com/example/metabolic-ninja/api-go/internal/idmap"
	"github.com/example/metabolic-ninja/api-go/internal/logging"
	"github.com/example/metabolic-ninja/api-go/internal/metrics"
	"github.com/example/metabolic-ninja/api-go/internal/predictor"
	"github.com/example/metabolic-ninja/api-go/internal/refdata"
	"github.com/example/metabolic-ninja/api-go/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	envFile := config.LoadDotEnv()
	cfg, cfgErr := config.Read()

	flags := pflag.NewFlagSet("api", pflag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory of the SQLite database")
	flags.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "job store: sqlite, postgres or memory (memory needs --catalog)")
	flags.StringVar(&cfg.Catalog, "catalog", cfg.Catalog, "YAML catalog of reference lists applied to the store at startup")
	flags.StringVar(&cfg.WorkerURL, "worker-url", cfg.WorkerURL, "base URL of the prediction worker")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if cfgErr = multierr.Append(cfgErr, cfg.Validate()); cfgErr != nil {
		return fmt.Errorf("config: %w", cfgErr)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if envFile != "" {
		logger.V(logging.DEBUG).Info("Loaded environment file", "path", envFile)
	}

	if cfg.StoreDriver == store.DriverSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	jobStore, err := store.Open(cfg.StoreDriver, cfg.StoreDSN())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	if cfg.Catalog != "" {
		if _, err := refdata.Seed(context.Background(), cfg.Catalog, jobStore); err != nil {
			return multierr.Append(err, jobStore.Close())
		}
		logger.Info("Applied reference catalog", "path", cfg.Catalog)
	}

	// Prediction streams can run for a long time, so the worker client has no
	// overall timeout and relies on the run context instead.
	predictors, err := predictor.NewCache(cfg.PredictorCacheSize, predictor.RemoteFactory(cfg.WorkerURL, &http.Client{}))
	if err != nil {
		return multierr.Append(err, jobStore.Close())
	}
	if err := predictors.Warm(context.Background(), cfg.WarmPairs); err != nil {
		logger.Error(err, "Failed to warm predictors")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	dispatcher := dispatch.New(jobStore, predictors, dispatch.Options{
		Timeout:        cfg.Timeout,
		MaxPredictions: cfg.MaxPredictions,
		Mapper:         idmap.New(cfg.IDMapperURL, &http.Client{Timeout: cfg.HTTPTimeout}, logger),
		Metrics:        metrics.New(reg),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.Server{
			Jobs:        dispatcher,
			References:  jobStore,
			Logger:      logger.WithName("http"),
			CORSOrigins: cfg.CORSOrigins,
			Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("API listening", "addr", cfg.Addr, "store", cfg.StoreDriver, "worker", cfg.WorkerURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return multierr.Combine(srv.Shutdown(shutdownCtx), dispatcher.Shutdown(shutdownCtx))
	})

	err = g.Wait()
	return multierr.Append(err, jobStore.Close())
}

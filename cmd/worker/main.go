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

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/example/metabolic-ninja/api-go/internal/blob"
	"github.com/example/metabolic-ninja/api-go/internal/config"
	"github.com/example/metabolic-ninja/api-go/internal/logging"
	"github.com/example/metabolic-ninja/api-go/internal/predictor"
	"github.com/example/metabolic-ninja/api-go/internal/worker"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	config.LoadDotEnv()
	cfg, cfgErr := config.Read()

	flags := pflag.NewFlagSet("worker", pflag.ContinueOnError)
	flags.StringVar(&cfg.WorkerAddr, "addr", cfg.WorkerAddr, "HTTP listen address")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory holding predictions/<model>/<universal model>/<product>.json")
	flags.DurationVar(&cfg.ReplayDelay, "replay-delay", cfg.ReplayDelay, "pause before each replayed pathway")
	flags.IntVar(&cfg.PredictorCacheSize, "cache-size", cfg.PredictorCacheSize, "number of model pairs kept loaded")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "json or console")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if cfgErr != nil {
		return fmt.Errorf("config: %w", cfgErr)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}

	predictors, err := predictor.NewCache(cfg.PredictorCacheSize, predictor.ReplayFactory(blob.LocalFS{Root: cfg.DataDir}, cfg.ReplayDelay))
	if err != nil {
		return err
	}
	if err := predictors.Warm(context.Background(), cfg.WarmPairs); err != nil {
		logger.Error(err, "Failed to warm predictors")
	}
	srv := &http.Server{
		Addr:              cfg.WorkerAddr,
		Handler:           worker.Handler{Source: predictors, Logger: logger.WithName("worker")}.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Worker listening", "addr", cfg.WorkerAddr, "dataDir", cfg.DataDir)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

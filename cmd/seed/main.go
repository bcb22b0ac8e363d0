// Command seed loads the reference lists of a YAML catalog into the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/example/metabolic-ninja/api-go/internal/config"
	"github.com/example/metabolic-ninja/api-go/internal/logging"
	"github.com/example/metabolic-ninja/api-go/internal/model"
	"github.com/example/metabolic-ninja/api-go/internal/refdata"
	"github.com/example/metabolic-ninja/api-go/internal/store"
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

	flags := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flags.StringVarP(&cfg.Catalog, "catalog", "c", cfg.Catalog, "YAML catalog of reference lists")
	flags.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory of the SQLite database")
	flags.StringVar(&cfg.StoreDriver, "store", cfg.StoreDriver, "job store: sqlite or postgres")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if cfg.Catalog == "" {
		return errors.New("--catalog is required")
	}
	if cfgErr = multierr.Append(cfgErr, cfg.Validate()); cfgErr != nil {
		return fmt.Errorf("config: %w", cfgErr)
	}
	if cfg.StoreDriver == store.DriverMemory {
		return errors.New("seeding the memory store has no effect: pass --catalog to the api instead")
	}

	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return err
	}

	if cfg.StoreDriver == store.DriverSQLite {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("mkdir data dir: %w", err)
		}
	}
	st, err := store.Open(cfg.StoreDriver, cfg.StoreDSN())
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}

	catalog, err := refdata.Seed(context.Background(), cfg.Catalog, st)
	if err == nil {
		for _, kind := range model.ReferenceKinds {
			logger.Info("Loaded reference list", "kind", kind, "items", len(catalog.Items(kind)))
		}
	}
	return multierr.Append(err, st.Close())
}

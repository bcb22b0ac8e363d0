package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/example/metabolic-ninja/api-go/internal/predictor"
)

type Config struct {
	Addr        string
	DataDir     string
	CORSOrigins []string

	StoreDriver string
	PostgresDSN string
	// Catalog is a reference catalog applied to the store at startup.
	Catalog string

	WorkerURL   string
	IDMapperURL string
	HTTPTimeout time.Duration

	Timeout             time.Duration
	MaxPredictions      int
	PredictorCacheSize  int
	WarmPairs           []predictor.ModelPair
	WorkerAddr          string
	ReplayDelay         time.Duration
	LogLevel, LogFormat string
}

// SQLitePath is where the SQLite store keeps its database.
func (c Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "pathways.db")
}

// StoreDSN returns the data source name for the configured store driver.
func (c Config) StoreDSN() string {
	if c.StoreDriver == "postgres" {
		return c.PostgresDSN
	}
	return c.SQLitePath()
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	cfg, err := Read()
	return cfg, multierr.Append(err, cfg.Validate())
}

// Read reads the configuration from the environment without validating how
// the values fit together, so that commands can apply flags first. Every
// malformed value is reported; the returned Config then holds the defaults
// for those keys.
func Read() (Config, error) {
	var errs error
	cfg := Config{
		Addr:        getenv("PATHWAYS_ADDR", ":8000"),
		DataDir:     getenv("PATHWAYS_DATA_DIR", "local-data"),
		CORSOrigins: getenvCSV("PATHWAYS_CORS_ORIGINS", []string{"*"}),
		StoreDriver: getenv("PATHWAYS_STORE", "sqlite"),
		PostgresDSN: os.Getenv("PATHWAYS_POSTGRES_DSN"),
		Catalog:     os.Getenv("PATHWAYS_CATALOG"),
		WorkerURL:   getenv("PATHWAYS_WORKER_URL", "http://localhost:5555"),
		IDMapperURL: os.Getenv("ID_MAPPER_API"),
		WorkerAddr:  getenv("PATHWAYS_WORKER_ADDR", ":5555"),
		LogLevel:    getenv("PATHWAYS_LOG_LEVEL", "info"),
		LogFormat:   getenv("PATHWAYS_LOG_FORMAT", "json"),
	}
	cfg.HTTPTimeout = getenvDuration("PATHWAYS_HTTP_TIMEOUT", 30*time.Second, &errs)
	cfg.Timeout = getenvDuration("PATHWAYS_TIMEOUT", 30*time.Minute, &errs)
	cfg.ReplayDelay = getenvDuration("PATHWAYS_REPLAY_DELAY", time.Second, &errs)
	cfg.MaxPredictions = getenvInt("PATHWAYS_MAX_PREDICTIONS", 10, &errs)
	cfg.PredictorCacheSize = getenvInt("PATHWAYS_PREDICTOR_CACHE_SIZE", 64, &errs)
	cfg.WarmPairs = getenvPairs("PATHWAYS_WARM_PAIRS", &errs)
	return cfg, errs
}

// Validate normalizes the store driver and checks that the settings it needs
// are present.
func (c *Config) Validate() error {
	var errs error
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case "sqlite":
	case "memory":
		if c.Catalog == "" {
			errs = multierr.Append(errs, fmt.Errorf("the memory store starts empty: set PATHWAYS_CATALOG or --catalog"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = multierr.Append(errs, fmt.Errorf("PATHWAYS_POSTGRES_DSN is required for the postgres store"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("PATHWAYS_STORE: unknown driver %q", c.StoreDriver))
	}
	return errs
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvCSV(key string, fallback []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	values := splitCSV(raw)
	if len(values) == 0 {
		return fallback
	}
	return values
}

func getenvInt(key string, fallback int, errs *error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: want a positive integer, got %q", key, raw))
		return fallback
	}
	return v
}

func getenvDuration(key string, fallback time.Duration, errs *error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v < 0 {
		*errs = multierr.Append(*errs, fmt.Errorf("%s: want a duration such as 30m, got %q", key, raw))
		return fallback
	}
	return v
}

// getenvPairs parses a list such as "iJO1366/metanetx_universal_model_bigg".
func getenvPairs(key string, errs *error) []predictor.ModelPair {
	var pairs []predictor.ModelPair
	for _, entry := range splitCSV(os.Getenv(key)) {
		modelID, universalID, ok := strings.Cut(entry, "/")
		modelID, universalID = strings.TrimSpace(modelID), strings.TrimSpace(universalID)
		if !ok || modelID == "" || universalID == "" {
			*errs = multierr.Append(*errs, fmt.Errorf("%s: want <model>/<universal model>, got %q", key, entry))
			continue
		}
		pairs = append(pairs, predictor.ModelPair{ModelID: modelID, UniversalModelID: universalID})
	}
	return pairs
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

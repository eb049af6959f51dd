package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultMetricsAddr = ":9090"

	defaultRegisterTimeout  = 10 * time.Second
	defaultDirectoryTimeout = 5 * time.Second

	defaultHashMaxConcurrency = 4
	defaultLifecycleWorkers   = 4

	defaultLifecycleSubject = "bindhub.accounts.lifecycle"
)

type Config struct {
	DatabaseURL string

	NATSURL          string
	LifecycleSubject string
	LifecycleWorkers int

	DirectoryURL     string
	DirectoryTimeout time.Duration
	RegisterTimeout  time.Duration

	MetricsAddr string

	HashMaxConcurrency int
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		NATSURL:            getenvDefault("NATS_URL", ""),
		LifecycleSubject:   getenvDefault("LIFECYCLE_SUBJECT", defaultLifecycleSubject),
		LifecycleWorkers:   getenvIntDefault("LIFECYCLE_WORKERS", defaultLifecycleWorkers),
		DirectoryURL:       getenvDefault("DIRECTORY_URL", ""),
		DirectoryTimeout:   defaultDirectoryTimeout,
		RegisterTimeout:    defaultRegisterTimeout,
		MetricsAddr:        getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		HashMaxConcurrency: getenvIntDefault("HASH_MAX_CONCURRENCY", defaultHashMaxConcurrency),
	}

	if v := os.Getenv("DIRECTORY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.DirectoryTimeout = d
		}
	}
	if v := os.Getenv("REGISTER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RegisterTimeout = d
		}
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

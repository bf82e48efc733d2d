package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// allowedConcurrency is the set of accepted FETCH_CONCURRENT values. The
// archive host throttles aggressively; these are the worker counts known to
// stay under its limits.
var allowedConcurrency = []int{1, 2, 4, 6, 8}

// Config holds all tool settings, populated from environment variables.
type Config struct {
	IDAURL       string
	IDABaseDir   string
	ECSVBaseDir  string
	DatabaseFile string
	LogLevel     string
	LogFormat    string

	FetchTimeout    time.Duration
	FetchConcurrent int

	// MetricsAddr exposes a Prometheus listener when non-empty.
	MetricsAddr string
}

// Load reads configuration from environment variables, applying defaults
// where unset. IDA_URL is not required here: only the commands that talk to
// the archive server need it, and they validate it themselves. An unset
// DATABASE_FILE disables the state store.
func Load() (*Config, error) {
	fetchTimeout, err := parseFetchTimeout()
	if err != nil {
		return nil, err
	}

	fetchConcurrent, err := parseFetchConcurrent()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		IDAURL:       os.Getenv("IDA_URL"),
		IDABaseDir:   envOrDefault("IDA_BASE_DIR", "ida"),
		ECSVBaseDir:  envOrDefault("ECSV_BASE_DIR", "ecsv"),
		DatabaseFile: os.Getenv("DATABASE_FILE"),
		LogLevel:     envOrDefault("LOG_LEVEL", "info"),
		LogFormat:    envOrDefault("LOG_FORMAT", "text"),

		FetchTimeout:    fetchTimeout,
		FetchConcurrent: fetchConcurrent,

		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	return cfg, nil
}

func parseFetchTimeout() (time.Duration, error) {
	s := envOrDefault("FETCH_TIMEOUT", "300s")
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid FETCH_TIMEOUT %q", s)
	}
	return d, nil
}

func parseFetchConcurrent() (int, error) {
	s := envOrDefault("FETCH_CONCURRENT", "4")
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid FETCH_CONCURRENT %q", s)
	}
	for _, allowed := range allowedConcurrency {
		if n == allowed {
			return n, nil
		}
	}
	return 0, fmt.Errorf("FETCH_CONCURRENT must be one of %v, got %d", allowedConcurrency, n)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

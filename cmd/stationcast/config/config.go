// Package config implements the stationcast command configuration.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

var ErrMissingFlag = errors.New("required flag not set")

// Config holds all stationcast configuration.
type Config struct {
	Data     string
	Stations string

	Models    []string
	ModelDir  string
	Workers   int
	Horizon   int
	TrainSize float64
	Forecast  int
	Country   string

	CacheFile   string
	RedisURL    string
	CacheKey    string
	CacheTTL    time.Duration
	DatabaseURL string

	Output      string
	MetricsFile string
	Profile     string

	LogFormat string
	LogLevel  string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Exits with status 1 if the configuration is invalid.
func ParseFlags() *Config {
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	return cfg
}

// Parse reads args into a Config using fs. Environment variables are used as fallbacks when
// flags are not provided.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}
	var models string

	// Input
	fs.StringVar(&cfg.Data, "data", getEnv("DATA", ""), "Hourly occupancy CSV (required)")
	fs.StringVar(&cfg.Stations, "stations", getEnv("STATIONS", ""), "Station coordinates CSV")

	// Training
	fs.StringVar(&models, "models", getEnv("MODELS", ""), "Comma separated strategies, all by default")
	fs.StringVar(&cfg.ModelDir, "model-dir", getEnv("MODEL_DIR", ""), "Directory persisting fitted station models")
	fs.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 0), "Stations trained concurrently, number of CPUs by default")
	fs.IntVar(&cfg.Horizon, "horizon", getEnvInt("HORIZON", 24), "Rolling forecast window in hours")
	fs.Float64Var(&cfg.TrainSize, "train-size", getEnvFloat("TRAIN_SIZE", 0.7), "Fraction of hours used for training, 0 trains and scores on every hour")
	fs.IntVar(&cfg.Forecast, "forecast", getEnvInt("FORECAST", 24), "Hours forecast past the last observation, 0 disables")
	fs.StringVar(&cfg.Country, "country", getEnv("COUNTRY", ""), "Country of the public holiday calendar: fr or us")

	// Prediction cache
	fs.StringVar(&cfg.CacheFile, "cache-file", getEnv("CACHE_FILE", ""), "File caching evaluation predictions")
	fs.StringVar(&cfg.RedisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis URL caching evaluation predictions")
	fs.StringVar(&cfg.CacheKey, "cache-key", getEnv("CACHE_KEY", "stationcast:predictions"), "Redis key of the prediction cache")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", getEnvDuration("CACHE_TTL", 24*time.Hour), "Redis prediction cache expiry, 0 keeps it")

	// Evaluation records
	fs.StringVar(&cfg.DatabaseURL, "database-url", getEnv("DATABASE_URL", ""), "Postgres URL recording evaluation runs")

	// Output
	fs.StringVar(&cfg.Output, "output", getEnv("OUTPUT", ""), "Report file, stdout by default")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", getEnv("METRICS_FILE", ""), "Prometheus textfile of the run")
	fs.StringVar(&cfg.Profile, "profile", getEnv("PROFILE", ""), "Profile the run: cpu or mem")

	// Logging
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.Models = splitList(models)

	if cfg.Data == "" {
		return nil, fmt.Errorf("--data, %w", ErrMissingFlag)
	}
	if cfg.CacheFile != "" && cfg.RedisURL != "" {
		return nil, errors.New("--cache-file and --redis-url are mutually exclusive")
	}
	switch cfg.Profile {
	case "", "cpu", "mem":
	default:
		return nil, fmt.Errorf("unknown profile %q, expected cpu or mem", cfg.Profile)
	}
	return cfg, nil
}

func splitList(s string) []string {
	var res []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends for wizard sessions.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendHTTP     = "http"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP        HTTPConfig
	Logging     LoggingConfig
	Storage     StorageConfig
	StepService StepServiceConfig
	Catalog     CatalogConfig
	Tracing     TracingConfig
}

type HTTPConfig struct {
	Port            int
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // text|json
}

// StorageConfig selects where sessions (and idempotency records) live.
type StorageConfig struct {
	Backend       string // memory|postgres|redis
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// SessionTTL expires idle sessions (redis only). Zero keeps them forever.
	SessionTTL time.Duration
	// ReplayRetention bounds how long an Idempotency-Key on /next can replay.
	ReplayRetention time.Duration
}

// StepServiceConfig points at the remote step service. An empty URL runs the local
// simulator.
type StepServiceConfig struct {
	URL     string
	Timeout time.Duration
}

type CatalogConfig struct {
	Backend string // memory|http|postgres
	URL     string
	// File is an optional YAML catalog for the memory backend.
	File    string
	Timeout time.Duration
	// CacheTTL bounds how long a fetched list is reused. Zero fetches once.
	CacheTTL time.Duration
}

// TracingConfig enables OTLP/HTTP trace export when Endpoint is set.
type TracingConfig struct {
	Endpoint    string
	ServiceName string
}

const (
	defaultPort               = 8080
	defaultShutdownTimeout    = 10 * time.Second
	defaultLoggingLevel       = "info"
	defaultLoggingFormat      = "json"
	defaultStepServiceTimeout = 15 * time.Second
	defaultCatalogTimeout     = 5 * time.Second
	defaultSessionTTL         = 24 * time.Hour
	defaultReplayRetention    = 24 * time.Hour
	defaultServiceName        = "policy-onboarding-api"
)

// LoadFromEnv reads configuration from environment variables, applying defaults.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(valueOrDefault("LOG_LEVEL", defaultLoggingLevel)),
			Format: strings.ToLower(valueOrDefault("LOG_FORMAT", defaultLoggingFormat)),
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(valueOrDefault("STORAGE_BACKEND", BackendMemory)),
			DatabaseURL:   os.Getenv("DATABASE_URL"),
			RedisAddr:     os.Getenv("REDIS_ADDR"),
			RedisPassword: os.Getenv("REDIS_PASSWORD"),
		},
		StepService: StepServiceConfig{
			URL: os.Getenv("STEP_SERVICE_URL"),
		},
		Catalog: CatalogConfig{
			Backend: strings.ToLower(valueOrDefault("CATALOG_BACKEND", BackendMemory)),
			URL:     os.Getenv("CATALOG_URL"),
			File:    os.Getenv("CATALOG_FILE"),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("TRACE_ENDPOINT"),
			ServiceName: valueOrDefault("TRACE_SERVICE_NAME", defaultServiceName),
		},
	}

	var err error
	if cfg.HTTP.Port, err = parsePort("PORT", defaultPort); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Storage.RedisDB, err = parseInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.Storage.SessionTTL, err = parseDuration("SESSION_TTL", defaultSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.Storage.ReplayRetention, err = parseDuration("REPLAY_RETENTION", defaultReplayRetention); err != nil {
		return Config{}, err
	}
	if cfg.StepService.Timeout, err = parseDuration("STEP_SERVICE_TIMEOUT", defaultStepServiceTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Catalog.Timeout, err = parseDuration("CATALOG_TIMEOUT", defaultCatalogTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Catalog.CacheTTL, err = parseDuration("COVERAGE_CACHE_TTL", 0); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format)
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("STORAGE_BACKEND=postgres requires DATABASE_URL")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("STORAGE_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be memory, postgres or redis, got %q", c.Storage.Backend)
	}

	switch c.Catalog.Backend {
	case BackendMemory:
	case BackendHTTP:
		if c.Catalog.URL == "" {
			return fmt.Errorf("CATALOG_BACKEND=http requires CATALOG_URL")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("CATALOG_BACKEND=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("CATALOG_BACKEND must be memory, http or postgres, got %q", c.Catalog.Backend)
	}
	return nil
}

func valueOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return n, nil
}

func parsePort(key string, fallback int) (int, error) {
	port, err := parseInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535, got %d", key, port)
	}
	return port, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 30s): %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", key, d)
	}
	return d, nil
}

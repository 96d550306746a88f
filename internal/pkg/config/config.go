package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

type ObservabilityConfig struct {
	ServiceName   string
	MetricsAddr   string
	TraceEndpoint string
	LogLevel      string
}

// DiscoveryConfig holds the tunables of the ranking engine.
type DiscoveryConfig struct {
	CoVisitorSample      int
	CoVisitorConcurrency int
	CacheTTL             time.Duration
	BreakerFailures      uint32
	BreakerTimeout       time.Duration
}

type Config struct {
	Repositories  RepositoriesConfig
	Observability ObservabilityConfig
	Discovery     DiscoveryConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5454"),
				DB:       getEnvOrDefault("POSTGRES_DB", "loci_discovery"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
			},
		},
		Observability: ObservabilityConfig{
			ServiceName:   getEnvOrDefault("OTEL_SERVICE_NAME", "loci-discovery"),
			MetricsAddr:   getEnvOrDefault("METRICS_ADDR", ":9092"),
			TraceEndpoint: getEnvOrDefault("OTEL_EXPORTER_ENDPOINT", ""),
			LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		},
	}

	var err error
	pg := &cfg.Repositories.Postgres
	if pg.MaxConns, err = getEnvInt32("POSTGRES_MAX_CONNS", 30); err != nil {
		return nil, err
	}
	if pg.MinConns, err = getEnvInt32("POSTGRES_MIN_CONNS", 5); err != nil {
		return nil, err
	}

	d := &cfg.Discovery
	if d.CoVisitorSample, err = getEnvInt("DISCOVERY_COVISITOR_SAMPLE", 10); err != nil {
		return nil, err
	}
	if d.CoVisitorConcurrency, err = getEnvInt("DISCOVERY_COVISITOR_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if d.CacheTTL, err = getEnvDuration("DISCOVERY_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	failures, err := getEnvInt("DISCOVERY_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if failures < 1 {
		return nil, fmt.Errorf("invalid DISCOVERY_BREAKER_FAILURES: %d", failures)
	}
	d.BreakerFailures = uint32(failures)
	if d.BreakerTimeout, err = getEnvDuration("DISCOVERY_BREAKER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}

	if pg.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if d.CoVisitorSample < 0 || d.CoVisitorConcurrency < 1 {
		return nil, fmt.Errorf("invalid co-visitor settings: sample=%d concurrency=%d", d.CoVisitorSample, d.CoVisitorConcurrency)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvInt32(key string, defaultValue int32) (int32, error) {
	v, err := getEnvInt(key, int(defaultValue))
	return int32(v), err
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/hospital-billing/internal/cart"
)

// Stay store backends.
const (
	StayStoreMemory   = "memory"
	StayStoreRedis    = "redis"
	StayStorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	StayStore          string
	MigrateOnStart     bool
	DiscountMode       cart.DiscountMode
	IdentMaxAttempts   int
	IdentClaimTTL      time.Duration
	RateLimit          string
	IdempotencyTTL     time.Duration
	InvoiceLockTTL     time.Duration
	BodyLimitBytes     int64
	SecureHeaders      bool
	EnableHSTS         bool
	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
	HealthDBTimeout    time.Duration
	HealthRedisTimeout time.Duration
	Breaker            BreakerConfig
	Audit              AuditConfig
	Obs                ObsConfig
}

// BreakerConfig tunes the circuit breaker guarding the stay store.
type BreakerConfig struct {
	MinRequests  int
	FailureRatio float64
	OpenFor      time.Duration
}

// AuditConfig controls the audit trail of billing writes.
type AuditConfig struct {
	Enabled      bool
	SamplingRate float64
	Stream       string
	MaxLen       int64
}

// ObsConfig groups logging, metrics and tracing switches.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	EnablePrometheus bool
	MetricsBuckets   string
	EnableTracing    bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
	EnablePprof      bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	mode, err := cart.ParseDiscountMode(k.String("BILLING_DISCOUNT_MODE"))
	if err != nil {
		return nil, fmt.Errorf("BILLING_DISCOUNT_MODE: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		StayStore:          strings.ToLower(valueOrDefault(k.String("STAY_STORE"), StayStoreRedis)),
		MigrateOnStart:     parseBool(k.String("MIGRATE_ON_START"), true),
		DiscountMode:       mode,
		IdentMaxAttempts:   parseInt(k.String("IDENT_MAX_ATTEMPTS"), 16),
		IdentClaimTTL:      parseDuration(k.String("IDENT_CLAIM_TTL"), "720h"),
		RateLimit:          valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		InvoiceLockTTL:     parseDuration(k.String("INVOICE_LOCK_TTL"), "10s"),
		BodyLimitBytes:     int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		SecureHeaders:      parseBool(k.String("SECURE_HEADERS_ENABLE"), true),
		EnableHSTS:         parseBool(k.String("SECURE_HSTS_ENABLE"), false),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		ShutdownTimeout:    parseDuration(k.String("SHUTDOWN_TIMEOUT"), "15s"),
		HealthDBTimeout:    parseDuration(k.String("HEALTH_READY_DB_TIMEOUT"), "500ms"),
		HealthRedisTimeout: parseDuration(k.String("HEALTH_READY_REDIS_TIMEOUT"), "300ms"),
		Breaker: BreakerConfig{
			MinRequests:  parseInt(k.String("STAY_BREAKER_MIN_REQUESTS"), 10),
			FailureRatio: parseFloat(k.String("STAY_BREAKER_FAILURE_RATIO"), 0.5),
			OpenFor:      parseDuration(k.String("STAY_BREAKER_OPEN_FOR"), "30s"),
		},
		Audit: AuditConfig{
			Enabled:      parseBool(k.String("AUDIT_ENABLED"), true),
			SamplingRate: parseFloat(k.String("AUDIT_SAMPLING_RATE"), 1),
			Stream:       valueOrDefault(k.String("AUDIT_STREAM"), "audit:billing"),
			MaxLen:       int64(parseInt(k.String("AUDIT_STREAM_MAXLEN"), 100000)),
		},
		Obs: ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "billing"),
			EnablePrometheus: parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			EnableTracing:    parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
			EnablePprof:      parseBool(k.String("OBS_ENABLE_PPROF"), false),
			PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
			PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
		},
	}

	switch cfg.StayStore {
	case StayStoreMemory, StayStoreRedis:
	case StayStorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STAY_STORE=postgres")
		}
	default:
		return nil, fmt.Errorf("STAY_STORE must be one of memory, redis, postgres; got %q", cfg.StayStore)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.IdentMaxAttempts <= 0 {
		return nil, errors.New("IDENT_MAX_ATTEMPTS must be positive")
	}
	if cfg.Audit.SamplingRate < 0 || cfg.Audit.SamplingRate > 1 {
		return nil, errors.New("AUDIT_SAMPLING_RATE must be between 0 and 1")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// UsesPostgres reports whether a database connection is needed.
func (c *Config) UsesPostgres() bool {
	return c.StayStore == StayStorePostgres
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

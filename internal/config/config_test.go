package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-billing/internal/cart"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":             "redis://localhost:6379/0",
		"DATABASE_URL":          "",
		"STAY_STORE":            "",
		"BILLING_DISCOUNT_MODE": "",
		"IDENT_MAX_ATTEMPTS":    "",
		"IDENT_CLAIM_TTL":       "",
		"RATE_LIMIT":            "",
		"PORT":                  "",
		"CORS_ALLOWED_ORIGINS":  "",
		"OBS_ENABLE_TRACING":    "",
		"AUDIT_ENABLED":         "",
		"AUDIT_SAMPLING_RATE":   "",
		"STAY_BREAKER_OPEN_FOR": "",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadForTests(baseEnv())
	require.NoError(t, err)
	require.Equal(t, StayStoreRedis, cfg.StayStore)
	require.Equal(t, cart.DiscountModeCorrected, cfg.DiscountMode)
	require.Equal(t, 16, cfg.IdentMaxAttempts)
	require.Equal(t, 720*time.Hour, cfg.IdentClaimTTL)
	require.Equal(t, "300-M", cfg.RateLimit)
	require.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	require.Equal(t, 10*time.Second, cfg.InvoiceLockTTL)
	require.Equal(t, int64(1<<20), cfg.BodyLimitBytes)
	require.True(t, cfg.SecureHeaders)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.False(t, cfg.UsesPostgres())
	require.False(t, cfg.Obs.EnableTracing)
	require.Equal(t, "billing", cfg.Obs.MetricsNamespace)
	require.Equal(t, 10, cfg.Breaker.MinRequests)
	require.Equal(t, 30*time.Second, cfg.Breaker.OpenFor)
	require.True(t, cfg.Audit.Enabled)
	require.Equal(t, "audit:billing", cfg.Audit.Stream)
	require.Equal(t, 1.0, cfg.Audit.SamplingRate)
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["STAY_STORE"] = "Postgres"
	env["DATABASE_URL"] = "postgres://u:p@localhost:5432/billing"
	env["BILLING_DISCOUNT_MODE"] = "legacy"
	env["IDENT_MAX_ATTEMPTS"] = "4"
	env["IDENT_CLAIM_TTL"] = "1h"
	env["PORT"] = ":9000"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, ,https://b.example"
	env["OBS_ENABLE_TRACING"] = "yes"
	env["AUDIT_ENABLED"] = "false"
	env["STAY_BREAKER_OPEN_FOR"] = "5s"

	cfg, err := LoadForTests(env)
	require.NoError(t, err)
	require.True(t, cfg.UsesPostgres())
	require.Equal(t, cart.DiscountModeLegacy, cfg.DiscountMode)
	require.Equal(t, 4, cfg.IdentMaxAttempts)
	require.Equal(t, time.Hour, cfg.IdentClaimTTL)
	require.Equal(t, ":9000", cfg.HTTPAddr())
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.Obs.EnableTracing)
	require.False(t, cfg.Audit.Enabled)
	require.Equal(t, 5*time.Second, cfg.Breaker.OpenFor)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing redis":         {"REDIS_URL": ""},
		"postgres without dsn":  {"STAY_STORE": "postgres"},
		"unknown store":         {"STAY_STORE": "sqlite"},
		"unknown discount mode": {"BILLING_DISCOUNT_MODE": "generous"},
		"zero attempts":         {"IDENT_MAX_ATTEMPTS": "0"},
		"sampling above one":    {"AUDIT_SAMPLING_RATE": "1.5"},
	}
	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			env := baseEnv()
			for k, v := range overrides {
				env[k] = v
			}
			_, err := LoadForTests(env)
			require.Error(t, err)
		})
	}
}

// Package app wires configuration, infrastructure clients and services into
// the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/hospital-billing/internal/audit"
	"github.com/noah-isme/hospital-billing/internal/config"
	"github.com/noah-isme/hospital-billing/internal/ident"
	"github.com/noah-isme/hospital-billing/internal/migrations"
	"github.com/noah-isme/hospital-billing/internal/obs"
	"github.com/noah-isme/hospital-billing/internal/ratelimit"
	"github.com/noah-isme/hospital-billing/internal/resilience"
	"github.com/noah-isme/hospital-billing/internal/stay"
)

// Dependencies enumerates the infrastructure shared across handlers.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	DB      *pgxpool.Pool
	Redis   *redis.Client
	Limiter *limiter.Limiter
	Stays   stay.Store
	IDs     ident.Allocator
	Audit   audit.Sink
}

// Build connects to the configured backends and assembles Dependencies.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	deps.Redis = redis.NewClient(redisOpts)
	if cfg.Obs.EnableTracing {
		if err := redisotel.InstrumentTracing(deps.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.EnablePrometheus {
		if err := redisotel.InstrumentMetrics(deps.Redis); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := deps.Redis.Ping(ctx).Err(); err != nil {
		deps.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if cfg.UsesPostgres() {
		if err := deps.connectPostgres(ctx); err != nil {
			deps.Close()
			return nil, err
		}
	}

	if err := deps.wire(); err != nil {
		deps.Close()
		return nil, err
	}
	return deps, nil
}

// FromClients assembles Dependencies over already-open clients. pool may be
// nil unless the config selects the postgres stay store.
func FromClients(cfg *config.Config, logger zerolog.Logger, rdb *redis.Client, pool *pgxpool.Pool) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger, Redis: rdb, DB: pool}
	if err := deps.wire(); err != nil {
		return nil, err
	}
	return deps, nil
}

func (d *Dependencies) connectPostgres(ctx context.Context) error {
	cfg := d.Config
	if cfg.MigrateOnStart {
		if err := RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
		d.Logger.Info().Msg("migrations applied")
	}
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("parse database config: %w", err)
	}
	if cfg.Obs.EnableTracing {
		poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "hospital-billing"

	d.DB, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := d.DB.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (d *Dependencies) wire() error {
	cfg := d.Config
	var store stay.Store
	switch cfg.StayStore {
	case config.StayStoreMemory:
		store = stay.NewMemoryStore()
	case config.StayStoreRedis:
		store = stay.RedisStore{R: d.Redis}
	case config.StayStorePostgres:
		if d.DB == nil {
			return errors.New("postgres stay store selected without a database pool")
		}
		store = stay.NewPostgresStore(d.DB)
	default:
		return fmt.Errorf("unknown stay store %q", cfg.StayStore)
	}
	if cfg.StayStore == config.StayStoreMemory {
		d.Stays = store
	} else {
		breaker := resilience.NewBreaker(cfg.Breaker.MinRequests, cfg.Breaker.FailureRatio, cfg.Breaker.OpenFor).
			WithTarget("stay_store_" + cfg.StayStore).
			WithLogger(d.Logger)
		d.Stays = stay.NewGuardedStore(store, breaker)
	}

	d.Audit = audit.RedisStreamSink{R: d.Redis, Stream: cfg.Audit.Stream, MaxLen: cfg.Audit.MaxLen}

	d.IDs = ident.Allocator{R: d.Redis, TTL: cfg.IdentClaimTTL, MaxAttempts: cfg.IdentMaxAttempts}

	lim, err := ratelimit.New(cfg.RateLimit, d.Redis)
	if err != nil {
		return err
	}
	d.Limiter = lim
	return nil
}

// RunMigrations applies the embedded schema.
func RunMigrations(databaseURL string) error {
	return migrations.Up(databaseURL)
}

// Close releases every open client.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
}

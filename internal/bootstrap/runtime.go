// Package bootstrap wires the external dependencies a process needs.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/events"
	"murmur/internal/middleware"
	"murmur/internal/observability"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// RequireRedis fails initialization when Redis cannot be reached instead
	// of running without it.
	RequireRedis bool
	// SkipEvents leaves the publisher as a no-op even when RABBITMQ_URL is set.
	SkipEvents bool
	// Tracing installs the OpenTelemetry tracer provider from config.
	Tracing bool
}

// Runtime holds the connections shared by the server and maintenance commands.
type Runtime struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher events.Publisher

	closers []func(context.Context) error
}

// InitRuntime connects to the database, Redis and the event broker.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	rt := &Runtime{Publisher: events.Noop{}}

	if opts.Tracing {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    "murmur-api",
			ServiceVersion: "1.0",
			Environment:    cfg.Env,
			Enabled:        cfg.TracingEnabled,
			Exporter:       cfg.TracingExporter,
			OTLPEndpoint:   cfg.OTLPEndpoint,
			SamplerRatio:   cfg.TracingSamplerRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracing init failed: %w", err)
		}
		rt.closers = append(rt.closers, shutdown)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt.DB = db
	rt.closers = append(rt.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	// Without Redis the server still runs: rate limits fail open, presence is
	// local and websocket tickets are unavailable.
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	switch {
	case err == nil:
		rt.Redis = rdb
		rt.closers = append(rt.closers, func(context.Context) error { return rdb.Close() })
	case opts.RequireRedis:
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	default:
		middleware.Logger.Warn("Redis unavailable, continuing without it", slog.String("error", err.Error()))
	}

	if cfg.RabbitMQURL != "" && !opts.SkipEvents {
		pub, err := events.Dial(cfg.RabbitMQURL, events.DefaultExchange)
		if err != nil {
			_ = rt.Close(ctx)
			return nil, err
		}
		rt.Publisher = pub
		rt.closers = append(rt.closers, func(context.Context) error { return pub.Close() })
		middleware.Logger.Info("Event publisher connected", slog.String("exchange", events.DefaultExchange))
	}

	return rt, nil
}

// Close releases every connection in reverse order of acquisition.
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

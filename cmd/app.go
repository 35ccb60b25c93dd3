package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/config"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/database"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/lock"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/repository"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/service"
)

func newLogger(app config.AppConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(app.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if app.Environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("app", app.Name)), nil
}

// dependencies owns the engine and the connections behind it.
type dependencies struct {
	Engine  *service.Engine
	closers []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*dependencies, error) {
	deps := &dependencies{}

	var store service.Store
	switch cfg.Store.Driver {
	case "memory":
		logger.Warn("using in-memory event store; data is lost on restart")
		store = repository.NewMemoryStore()
	case "postgres":
		pool, err := database.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pool.Close)
		if err := database.Migrate(ctx, pool, logger); err != nil {
			deps.Close()
			return nil, err
		}
		store = repository.NewPostgresStore(pool)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var locker lock.Locker
	switch cfg.Lock.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			deps.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		deps.closers = append(deps.closers, func() { _ = rdb.Close() })
		logger.Info("Redis lock backend connected", zap.String("addr", cfg.Redis.Addr()))
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, cfg.Lock.PollInterval, logger)
	default:
		locker = lock.NewLocalLocker()
	}

	deps.Engine = service.NewEngine(store, locker, logger, m, service.Options{
		Timeout:            cfg.Store.Timeout,
		ReadRetries:        cfg.Store.ReadRetries,
		RetryInterval:      cfg.Store.RetryInterval,
		CascadeParallelism: cfg.Store.CascadeParallelism,
		StrictChoices:      cfg.Registration.StrictChoices,
	})
	return deps, nil
}

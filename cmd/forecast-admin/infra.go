package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/wastetrack/forecast-worker/config"
	"github.com/wastetrack/forecast-worker/internal/bootstrap"
)

// adminServices is the subset of the runtime a one-shot command needs.
type adminServices struct {
	bootstrap.ServiceContainer

	db          *sql.DB
	redisClient redis.UniversalClient
}

func (s *adminServices) Close() error {
	var closeErr error
	s.Wakeup.Stop()
	if err := s.Observability.Close(); err != nil {
		closeErr = errors.Join(closeErr, fmt.Errorf("close statsd: %w", err))
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close db: %w", err))
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			closeErr = errors.Join(closeErr, fmt.Errorf("close redis: %w", err))
		}
	}
	return closeErr
}

// withServices connects the database (and Redis for Redis wake-ups), wires the
// services and runs f under a signal-aware timeout.
func withServices(
	cmdCtx *commandContext,
	f func(ctx context.Context, svc *adminServices) error,
) error {
	if cmdCtx.Config.Postgres.UseMemory() {
		return errMemoryDriver
	}

	ctx, cancel := cmdCtx.withSignals(defaultCommandTimeout)
	defer cancel()

	svc, err := connectServices(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close admin services failed", "error", cerr)
		}
	}()

	return f(ctx, svc)
}

func connectServices(cmdCtx *commandContext) (*adminServices, error) {
	cfg := cmdCtx.Config

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: cmdCtx.Logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	out := &adminServices{db: db}

	if cfg.Worker.Wakeup == config.WakeupRedis {
		client, rerr := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: cmdCtx.Logger})
		if rerr != nil {
			return nil, errors.Join(fmt.Errorf("connect redis: %w", rerr), out.Close())
		}
		out.redisClient = client
	}

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          db,
		RedisClient: out.redisClient,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init services: %w", err), out.Close())
	}
	out.ServiceContainer = services
	return out, nil
}

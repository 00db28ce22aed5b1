// Package db opens the PostgreSQL pool behind the feedback store and keeps its
// schema current.
package db

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/iRail/occupancy-api/config"
	"github.com/iRail/occupancy-api/logger"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConnectAttempts = 5
	retryDelay         = time.Second
)

// NewPoolConfig builds the pgxpool configuration. Production connections are
// always made over TLS.
func NewPoolConfig(cfg *config.DatabaseConfig, env config.Environment) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}

	if env == config.EnvProduction {
		poolConfig.ConnConfig.TLSConfig = &tls.Config{
			ServerName: cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
	}

	return poolConfig, nil
}

// Connect creates the pool and waits until the database answers a ping,
// retrying with a linear backoff.
func Connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	log := logger.GetLogger()

	poolConfig, err := NewPoolConfig(&cfg.Database, cfg.Server.Environment)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == maxConnectAttempts {
			pool.Close()
			return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
		}

		log.Warnw("Database not ready, retrying",
			"attempt", attempt,
			"connection", logger.MaskConnectionString(cfg.Database.URL()),
			"error", err)

		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * retryDelay):
		}
	}

	log.Infow("Connected to database",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
		"maxConns", poolConfig.MaxConns)
	return pool, nil
}

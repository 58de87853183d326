// Package store owns the catalog's Postgres connection pool.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

// ErrClosed is returned by a Store that was never opened or has been closed.
var ErrClosed = errors.New("store: pool not open")

// Options sizes the pool. Zero durations and conn counts keep the pgx defaults.
type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
	MaxConnLifetime time.Duration
	// ConnTimeout bounds the initial connect and every HealthCheck.
	ConnTimeout time.Duration
	// StatementCacheCapacity of 0 disables prepared-statement caching; queries
	// then describe and execute in one round trip each.
	StatementCacheCapacity int
	Logger                 zerolog.Logger
}

// Store holds the pgx pool shared by the repositories. The process entry point
// owns its lifecycle.
type Store struct {
	pool        *pgxpool.Pool
	logger      zerolog.Logger
	pingTimeout time.Duration
}

// New opens the pool and pings it once before returning.
func New(ctx context.Context, dbURL string, opts Options) (*Store, error) {
	cfg, err := poolConfig(dbURL, opts)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger.With().Str("component", "store").Logger()

	connCtx, cancel := withOptionalTimeout(ctx, opts.ConnTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info().
		Int32("max_conns", cfg.MaxConns).
		Int32("min_conns", cfg.MinConns).
		Int("stmt_cache", cfg.ConnConfig.StatementCacheCapacity).
		Str("exec_mode", cfg.ConnConfig.DefaultQueryExecMode.String()).
		Msg("connection pool ready")

	return &Store{pool: pool, logger: logger, pingTimeout: opts.ConnTimeout}, nil
}

func poolConfig(dbURL string, opts Options) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	switch {
	case opts.StatementCacheCapacity > 0:
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	case opts.StatementCacheCapacity == 0:
		// pgx rejects QueryExecModeCacheStatement once the cache is gone.
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeDescribeExec
		cfg.ConnConfig.StatementCacheCapacity = 0
	default:
		return nil, fmt.Errorf("statement cache capacity %d is negative", opts.StatementCacheCapacity)
	}
	return cfg, nil
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// Close releases the pool. Safe on a nil or closed Store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.logger.Info().Msg("closing connection pool")
	s.pool.Close()
	s.pool = nil
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return ErrClosed
	}
	ctx, cancel := withOptionalTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Pool exposes the pgx pool to the repositories.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// ReportStats publishes a snapshot of the pool counters to the metrics registry.
func (s *Store) ReportStats() {
	if s == nil || s.pool == nil {
		return
	}
	stat := s.pool.Stat()
	metrics.ObservePool(metrics.PoolSnapshot{
		Total:        stat.TotalConns(),
		Idle:         stat.IdleConns(),
		Acquired:     stat.AcquiredConns(),
		Max:          stat.MaxConns(),
		AcquireCount: stat.AcquireCount(),
		EmptyAcquire: stat.EmptyAcquireCount(),
	})
}

// WatchStats calls ReportStats every interval until ctx is done.
func (s *Store) WatchStats(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.ReportStats()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReportStats()
		}
	}
}

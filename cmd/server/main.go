package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/cache"
	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	httpserver "github.com/Clark-Hu/movie-catalog/internal/http"
	"github.com/Clark-Hu/movie-catalog/internal/logging"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/scheduler"
	"github.com/Clark-Hu/movie-catalog/internal/store"
	"github.com/Clark-Hu/movie-catalog/internal/tmdb"
)

const poolStatsInterval = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("service", "movie-catalog").Logger()
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, storeOptions(cfg, logger))
	if err != nil {
		return err
	}
	defer st.Close()

	statsCtx, stopStats := context.WithCancel(ctx)
	statsDone := make(chan struct{})
	go func() {
		defer close(statsDone)
		st.WatchStats(statsCtx, poolStatsInterval)
	}()
	defer func() {
		stopStats()
		<-statsDone
	}()

	kv, err := cache.Open(dbCtx, cfg.CacheBackend, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer kv.Close()

	provider, err := newProvider(cfg, logger)
	if err != nil {
		return err
	}

	catalogStore := catalog.NewRepoStore(repository.New(st))
	synchronizer := catalog.NewSynchronizer(provider, catalogStore, catalog.SyncOptions{
		Pages:  cfg.SyncPages,
		Logger: logger,
	})
	queries := catalog.NewQueryService(catalogStore, kv, catalog.QueryOptions{
		TTL:    time.Duration(cfg.CacheTTLSecs) * time.Second,
		Logger: logger,
	})
	ratings := catalog.NewRatingAggregator(catalogStore, logger)
	watchlist := catalog.NewWatchlistService(catalogStore, logger)

	if cfg.SyncOnStart {
		if err := synchronizer.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("startup sync failed")
		}
	}

	cron, err := scheduler.Start(cfg.SyncSchedule, synchronizer.Run, scheduler.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() {
		<-cron.Stop().Done()
	}()

	server := httpserver.New(cfg, httpserver.Deps{
		Queries:   queries,
		Ratings:   ratings,
		Watchlist: watchlist,
		Sync:      synchronizer,
		Health:    st,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	var serveErr error
	select {
	case serveErr = <-serverErrCh:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("graceful shutdown error")
	}
	logger.Info().Msg("shutting down")
	return serveErr
}

func storeOptions(cfg config.Config, logger zerolog.Logger) store.Options {
	return store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}
}

func newProvider(cfg config.Config, logger zerolog.Logger) (tmdb.Client, error) {
	client, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, time.Duration(cfg.TMDBTimeoutSecs)*time.Second, logger)
	if err != nil {
		return nil, err
	}
	return tmdb.NewBreakerClient(client, tmdb.BreakerOptions{Logger: logger}), nil
}

// Command sync runs one catalog synchronization and exits. With -purge-cache it
// also drops every cached catalog read once the run succeeds.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/cache"
	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/logging"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/store"
	"github.com/Clark-Hu/movie-catalog/internal/tmdb"
)

func main() {
	var (
		pages      = flag.Int("pages", 0, "popular pages to fetch (default TMDB_SYNC_PAGES)")
		purgeCache = flag.Bool("purge-cache", false, "delete cached catalog reads after a successful run")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New(logging.Config{})
		bootLogger.Fatal().Err(err).Msg("config error")
	}
	if *pages > 0 {
		cfg.SyncPages = *pages
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("service", "movie-catalog-sync").Logger()
	if err := run(ctx, cfg, *purgeCache, logger); err != nil {
		logger.Fatal().Err(err).Msg("sync failed")
	}
}

func run(ctx context.Context, cfg config.Config, purge bool, logger zerolog.Logger) error {
	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, time.Duration(cfg.TMDBTimeoutSecs)*time.Second, logger)
	if err != nil {
		return err
	}

	synchronizer := catalog.NewSynchronizer(client, catalog.NewRepoStore(repository.New(st)), catalog.SyncOptions{
		Pages:  cfg.SyncPages,
		Logger: logger,
	})
	if err := synchronizer.Run(ctx); err != nil {
		return err
	}
	if !purge {
		return nil
	}

	kv, err := cache.Open(ctx, cfg.CacheBackend, cache.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	defer kv.Close()
	if err := catalog.Purge(ctx, kv); err != nil {
		return err
	}
	logger.Info().Msg("catalog cache purged")
	return nil
}

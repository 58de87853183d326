package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/tmdb"
)

// SyncOptions configures a Synchronizer.
type SyncOptions struct {
	// Pages is the number of popular-movie pages fetched per run.
	Pages  int
	Logger zerolog.Logger
}

// Synchronizer mirrors the provider catalog into the store.
type Synchronizer struct {
	provider tmdb.Client
	store    SyncStore
	pages    int
	logger   zerolog.Logger
}

// NewSynchronizer wires a provider client to a sync store.
func NewSynchronizer(provider tmdb.Client, store SyncStore, opts SyncOptions) *Synchronizer {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	return &Synchronizer{
		provider: provider,
		store:    store,
		pages:    opts.Pages,
		logger:   opts.Logger.With().Str("component", "synchronizer").Logger(),
	}
}

// Run performs one full sync: every genre, then the configured number of movie pages.
// The run stops at the first error.
func (s *Synchronizer) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With().Str("run_id", runID).Logger()
	ctx = logger.WithContext(ctx)
	start := time.Now()
	logger.Info().Int("pages", s.pages).Msg("sync run started")

	err := s.SyncGenres(ctx)
	if err == nil {
		err = s.SyncMovies(ctx, s.pages)
	}

	elapsed := time.Since(start)
	metrics.SyncDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.SyncRuns.WithLabelValues("failure").Inc()
		logger.Error().Err(err).Dur("duration", elapsed).Msg("sync run aborted")
		return err
	}
	metrics.SyncRuns.WithLabelValues("success").Inc()
	logger.Info().Dur("duration", elapsed).Msg("sync run finished")
	return nil
}

// SyncGenres fetches the full genre list and upserts it by provider id.
func (s *Synchronizer) SyncGenres(ctx context.Context) error {
	genres, err := s.provider.Genres(ctx)
	if err != nil {
		return fmt.Errorf("fetch genres: %w: %w", ErrTransport, err)
	}

	params := make([]repository.GenreUpsertParams, 0, len(genres))
	seen := make(map[int64]struct{}, len(genres))
	for _, g := range genres {
		if _, dup := seen[g.ID]; dup {
			continue
		}
		seen[g.ID] = struct{}{}
		params = append(params, repository.GenreUpsertParams{TMDBID: g.ID, Name: g.Name})
	}

	if err := s.store.UpsertGenres(ctx, params); err != nil {
		return storeErr("upsert genres", err)
	}
	s.log(ctx).Info().Int("genres", len(params)).Msg("genres synced")
	return nil
}

// SyncMovies walks popular-movie pages 1..pageCount. Each page is fetched
// before its transaction opens and committed as a unit; a failed page is
// rolled back and aborts the remaining pages.
func (s *Synchronizer) SyncMovies(ctx context.Context, pageCount int) error {
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return storeErr("load genres", err)
	}
	genreIDs := genreIndex(genres)

	for page := 1; page <= pageCount; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		result, err := s.provider.PopularMovies(ctx, page)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w: %w", page, ErrTransport, err)
		}

		err = s.store.InTx(ctx, func(tx SyncTx) error {
			for _, movie := range result.Results {
				if err := syncMovie(ctx, tx, movie, genreIDs); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return storeErr(fmt.Sprintf("sync page %d", page), err)
		}

		metrics.SyncPages.Inc()
		s.log(ctx).Info().Int("page", page).Int("movies", len(result.Results)).Msg("page synced")
	}
	return nil
}

// log prefers the run-scoped logger carried by ctx.
func (s *Synchronizer) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &s.logger
}

func syncMovie(ctx context.Context, tx SyncTx, movie tmdb.Movie, genreIDs map[int64]int64) error {
	movieID, err := tx.UpsertMovie(ctx, repository.MovieUpsertParams{
		TMDBID:      movie.ID,
		Title:       movie.Title,
		Overview:    movie.Overview,
		PosterPath:  movie.PosterPath,
		ReleaseDate: movie.ReleaseDate,
	})
	if err != nil {
		return err
	}
	return tx.ReplaceMovieGenres(ctx, movieID, resolveGenres(movie.GenreIDs, genreIDs))
}

// genreIndex maps provider genre ids to local ids.
func genreIndex(genres []domain.Genre) map[int64]int64 {
	index := make(map[int64]int64, len(genres))
	for _, g := range genres {
		index[g.TMDBID] = g.ID
	}
	return index
}

// resolveGenres translates provider genre ids, dropping ids with no local genre.
func resolveGenres(providerIDs []int64, index map[int64]int64) []int64 {
	local := make([]int64, 0, len(providerIDs))
	for _, id := range providerIDs {
		if localID, ok := index[id]; ok {
			local = append(local, localID)
		}
	}
	return local
}

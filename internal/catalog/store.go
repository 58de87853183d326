package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

// SyncStore is the catalog store surface used by the Synchronizer.
type SyncStore interface {
	UpsertGenres(ctx context.Context, genres []repository.GenreUpsertParams) error
	ListGenres(ctx context.Context) ([]domain.Genre, error)
	// InTx runs fn inside one transaction, committing on nil.
	InTx(ctx context.Context, fn func(tx SyncTx) error) error
}

// SyncTx is the per-page write surface available inside a sync transaction.
type SyncTx interface {
	UpsertMovie(ctx context.Context, params repository.MovieUpsertParams) (int64, error)
	ReplaceMovieGenres(ctx context.Context, movieID int64, genreIDs []int64) error
}

// QueryStore is the read surface used by the QueryService.
type QueryStore interface {
	ListMovies(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error)
	GetMovie(ctx context.Context, id int64) (domain.Movie, error)
	SearchMovies(ctx context.Context, q string) ([]domain.Movie, error)
}

// RatingStore is the surface used by the RatingAggregator.
type RatingStore interface {
	FindRating(ctx context.Context, userID, movieID int64) (domain.Rating, error)
	CreateRating(ctx context.Context, userID, movieID int64, value float64) (domain.Rating, error)
	UpdateRatingValue(ctx context.Context, ratingID int64, value float64) (domain.Rating, error)
	ListRatings(ctx context.Context, movieID int64) ([]domain.Rating, error)
	ListRatingsWithUser(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error)
	SetMovieAggregate(ctx context.Context, movieID int64, agg domain.RatingAggregate) error
}

// WatchlistStore is the surface used by the WatchlistService.
type WatchlistStore interface {
	GetMovie(ctx context.Context, id int64) (domain.Movie, error)
	AddWatchlistEntry(ctx context.Context, userID, movieID int64) (domain.WatchlistEntry, error)
	RemoveWatchlistEntry(ctx context.Context, userID, movieID int64) error
	ListWatchlist(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error)
}

// RepoStore adapts *repository.Repository to the catalog store interfaces.
type RepoStore struct {
	repo *repository.Repository
}

// NewRepoStore wraps a pool-bound repository.
func NewRepoStore(repo *repository.Repository) *RepoStore {
	return &RepoStore{repo: repo}
}

func (s *RepoStore) UpsertGenres(ctx context.Context, genres []repository.GenreUpsertParams) error {
	return s.repo.Genres.UpsertAll(ctx, genres)
}

func (s *RepoStore) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.repo.Genres.ListAll(ctx)
}

func (s *RepoStore) InTx(ctx context.Context, fn func(tx SyncTx) error) error {
	return s.repo.InTx(ctx, func(tx *repository.Repository) error {
		return fn(repoTx{repo: tx})
	})
}

func (s *RepoStore) ListMovies(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error) {
	return s.repo.Movies.List(ctx, filters)
}

func (s *RepoStore) GetMovie(ctx context.Context, id int64) (domain.Movie, error) {
	return s.repo.Movies.GetByID(ctx, id)
}

func (s *RepoStore) SearchMovies(ctx context.Context, q string) ([]domain.Movie, error) {
	return s.repo.Movies.Search(ctx, q)
}

func (s *RepoStore) FindRating(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	return s.repo.Ratings.FindOne(ctx, userID, movieID)
}

func (s *RepoStore) CreateRating(ctx context.Context, userID, movieID int64, value float64) (domain.Rating, error) {
	return s.repo.Ratings.Create(ctx, userID, movieID, value)
}

func (s *RepoStore) UpdateRatingValue(ctx context.Context, ratingID int64, value float64) (domain.Rating, error) {
	return s.repo.Ratings.UpdateValue(ctx, ratingID, value)
}

func (s *RepoStore) ListRatings(ctx context.Context, movieID int64) ([]domain.Rating, error) {
	return s.repo.Ratings.ListByMovie(ctx, movieID)
}

func (s *RepoStore) ListRatingsWithUser(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error) {
	return s.repo.Ratings.ListWithUser(ctx, movieID)
}

func (s *RepoStore) SetMovieAggregate(ctx context.Context, movieID int64, agg domain.RatingAggregate) error {
	return s.repo.Movies.UpdateRating(ctx, movieID, agg.Average, agg.Count)
}

func (s *RepoStore) AddWatchlistEntry(ctx context.Context, userID, movieID int64) (domain.WatchlistEntry, error) {
	return s.repo.Watchlist.Create(ctx, userID, movieID)
}

func (s *RepoStore) RemoveWatchlistEntry(ctx context.Context, userID, movieID int64) error {
	return s.repo.Watchlist.Delete(ctx, userID, movieID)
}

func (s *RepoStore) ListWatchlist(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error) {
	return s.repo.Watchlist.ListByUser(ctx, userID)
}

type repoTx struct {
	repo *repository.Repository
}

func (t repoTx) UpsertMovie(ctx context.Context, params repository.MovieUpsertParams) (int64, error) {
	return t.repo.Movies.Upsert(ctx, params)
}

func (t repoTx) ReplaceMovieGenres(ctx context.Context, movieID int64, genreIDs []int64) error {
	return t.repo.Movies.ReplaceGenres(ctx, movieID, genreIDs)
}

// storeErr maps repository errors onto the catalog taxonomy.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	case errors.Is(err, repository.ErrInvalidSort):
		return fmt.Errorf("%s: %w: %w", op, ErrValidation, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
	}
}

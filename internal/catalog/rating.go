package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

// RatingAggregator records user ratings and keeps each movie's aggregate current.
//
// The rating write and the aggregate recomputation are separate statements.
// Concurrent ratings on one movie leave the aggregate of whichever
// recomputation finished last.
type RatingAggregator struct {
	store  RatingStore
	logger zerolog.Logger
}

// NewRatingAggregator wires a rating store.
func NewRatingAggregator(store RatingStore, logger zerolog.Logger) *RatingAggregator {
	return &RatingAggregator{
		store:  store,
		logger: logger.With().Str("component", "ratings").Logger(),
	}
}

// RateMovie creates or overwrites the user's rating for a movie, then
// recomputes the movie aggregate.
func (a *RatingAggregator) RateMovie(ctx context.Context, userID, movieID int64, value float64) error {
	if math.IsNaN(value) || value < domain.MinRating || value > domain.MaxRating {
		return fmt.Errorf("%w: rating must be between %g and %g", ErrValidation, domain.MinRating, domain.MaxRating)
	}

	if err := a.writeRating(ctx, userID, movieID, value); err != nil {
		return err
	}
	return a.UpdateMovieRating(ctx, movieID)
}

func (a *RatingAggregator) writeRating(ctx context.Context, userID, movieID int64, value float64) error {
	existing, err := a.store.FindRating(ctx, userID, movieID)
	switch {
	case err == nil:
		_, err = a.store.UpdateRatingValue(ctx, existing.ID, value)
		return storeErr("update rating", err)
	case !errors.Is(err, repository.ErrNotFound):
		return storeErr("find rating", err)
	}

	_, err = a.store.CreateRating(ctx, userID, movieID, value)
	if !errors.Is(err, repository.ErrConflict) {
		return storeErr("create rating", err)
	}

	// A concurrent first rating from the same user won the insert.
	a.logger.Debug().Int64("user_id", userID).Int64("movie_id", movieID).Msg("rating created concurrently, updating")
	existing, err = a.store.FindRating(ctx, userID, movieID)
	if err != nil {
		return storeErr("find rating", err)
	}
	_, err = a.store.UpdateRatingValue(ctx, existing.ID, value)
	return storeErr("update rating", err)
}

// UpdateMovieRating recomputes a movie's mean rating and count from every
// stored rating and persists both.
func (a *RatingAggregator) UpdateMovieRating(ctx context.Context, movieID int64) error {
	ratings, err := a.store.ListRatings(ctx, movieID)
	if err != nil {
		return storeErr("list ratings", err)
	}
	agg := domain.Aggregate(ratings)
	if err := a.store.SetMovieAggregate(ctx, movieID, agg); err != nil {
		return storeErr(fmt.Sprintf("update aggregate for movie %d", movieID), err)
	}
	a.logger.Debug().Int64("movie_id", movieID).Float64("average", agg.Average).Int("count", agg.Count).Msg("aggregate updated")
	return nil
}

// GetMovieRatings lists a movie's ratings with each owner's username.
func (a *RatingAggregator) GetMovieRatings(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error) {
	ratings, err := a.store.ListRatingsWithUser(ctx, movieID)
	if err != nil {
		return nil, storeErr("list ratings", err)
	}
	return ratings, nil
}

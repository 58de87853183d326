package catalog

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// WatchlistService manages the per-user list of movies saved for later.
type WatchlistService struct {
	store  WatchlistStore
	logger zerolog.Logger
}

// NewWatchlistService wires a watchlist store.
func NewWatchlistService(store WatchlistStore, logger zerolog.Logger) *WatchlistService {
	return &WatchlistService{
		store:  store,
		logger: logger.With().Str("component", "watchlist").Logger(),
	}
}

// AddToWatchlist saves a movie for the user. An unknown movie fails with
// ErrNotFound and a movie already on the list with ErrConflict.
func (w *WatchlistService) AddToWatchlist(ctx context.Context, userID, movieID int64) error {
	if userID < 1 || movieID < 1 {
		return fmt.Errorf("%w: user and movie ids must be positive", ErrValidation)
	}
	if _, err := w.store.GetMovie(ctx, movieID); err != nil {
		return storeErr(fmt.Sprintf("get movie %d", movieID), err)
	}
	if _, err := w.store.AddWatchlistEntry(ctx, userID, movieID); err != nil {
		return storeErr("add watchlist entry", err)
	}
	w.logger.Debug().Int64("user_id", userID).Int64("movie_id", movieID).Msg("movie added to watchlist")
	return nil
}

// RemoveFromWatchlist drops a movie from the user's list. ErrNotFound when it
// was not on the list.
func (w *WatchlistService) RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error {
	if userID < 1 || movieID < 1 {
		return fmt.Errorf("%w: user and movie ids must be positive", ErrValidation)
	}
	if err := w.store.RemoveWatchlistEntry(ctx, userID, movieID); err != nil {
		return storeErr("remove watchlist entry", err)
	}
	w.logger.Debug().Int64("user_id", userID).Int64("movie_id", movieID).Msg("movie removed from watchlist")
	return nil
}

// GetWatchlist lists the user's entries, newest first. An empty list is not an error.
func (w *WatchlistService) GetWatchlist(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error) {
	entries, err := w.store.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, storeErr("list watchlist", err)
	}
	return entries, nil
}

package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

// WatchlistRepository stores the movies each user saved for later.
type WatchlistRepository struct {
	db DBTX
}

// FindOne returns the user's entry for a movie, without the movie expanded.
func (r *WatchlistRepository) FindOne(ctx context.Context, userID, movieID int64) (domain.WatchlistEntry, error) {
	defer metrics.ObserveQuery("watchlist_find")()

	var entry domain.WatchlistEntry
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, movie_id, created_at
        FROM watchlist
        WHERE user_id = $1 AND movie_id = $2
    `, userID, movieID).Scan(&entry.ID, &entry.UserID, &entry.MovieID, &entry.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WatchlistEntry{}, ErrNotFound
		}
		return domain.WatchlistEntry{}, err
	}
	return entry, nil
}

// Create adds a movie to a user's watchlist. A duplicate entry yields
// ErrConflict; an unknown user or movie yields ErrNotFound.
func (r *WatchlistRepository) Create(ctx context.Context, userID, movieID int64) (domain.WatchlistEntry, error) {
	defer metrics.ObserveQuery("watchlist_create")()

	entry := domain.WatchlistEntry{UserID: userID, MovieID: movieID}
	err := r.db.QueryRow(ctx, `
        INSERT INTO watchlist (user_id, movie_id)
        VALUES ($1,$2)
        RETURNING id, created_at
    `, userID, movieID).Scan(&entry.ID, &entry.AddedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return domain.WatchlistEntry{}, ErrConflict
		case pgForeignKeyViolation:
			return domain.WatchlistEntry{}, ErrNotFound
		}
		return domain.WatchlistEntry{}, fmt.Errorf("create watchlist entry: %w", err)
	}
	return entry, nil
}

// Delete removes a movie from a user's watchlist, reporting ErrNotFound when
// there was nothing to remove.
func (r *WatchlistRepository) Delete(ctx context.Context, userID, movieID int64) error {
	defer metrics.ObserveQuery("watchlist_delete")()

	tag, err := r.db.Exec(ctx, `DELETE FROM watchlist WHERE user_id = $1 AND movie_id = $2`, userID, movieID)
	if err != nil {
		return fmt.Errorf("delete watchlist entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's entries, newest first, each with its movie and genres.
func (r *WatchlistRepository) ListByUser(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error) {
	defer metrics.ObserveQuery("watchlist_list")()

	query := fmt.Sprintf(`
        SELECT w.id, w.user_id, w.created_at, %s
        FROM watchlist w
        JOIN movies m ON m.id = w.movie_id
        WHERE w.user_id = $1
        ORDER BY w.created_at DESC, w.id DESC
    `, movieColumns)
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.WatchlistEntry, 0)
	movies := make([]domain.Movie, 0)
	for rows.Next() {
		var entry domain.WatchlistEntry
		var movie domain.Movie
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.AddedAt,
			&movie.ID,
			&movie.TMDBID,
			&movie.Title,
			&movie.Overview,
			&movie.PosterPath,
			&movie.ReleaseDate,
			&movie.AverageRating,
			&movie.RatingCount,
			&movie.CreatedAt,
			&movie.UpdatedAt,
		); err != nil {
			return nil, err
		}
		entry.MovieID = movie.ID
		entries = append(entries, entry)
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	movieRepo := MoviesRepository{db: r.db}
	if err := movieRepo.attachGenres(ctx, movies); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Movie = &movies[i]
	}
	return entries, nil
}

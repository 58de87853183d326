package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

// RatingsRepository provides helpers for movie ratings.
type RatingsRepository struct {
	db DBTX
}

const ratingColumns = `r.id, r.user_id, r.movie_id, r.rating, r.created_at, r.updated_at`

// FindOne retrieves the rating a user gave a movie.
func (r *RatingsRepository) FindOne(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	defer metrics.ObserveQuery("ratings_find")()

	query := fmt.Sprintf(`SELECT %s FROM ratings r WHERE r.user_id = $1 AND r.movie_id = $2`, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, userID, movieID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, err
	}
	return rating, nil
}

// Create inserts a rating. A second rating for the same (user, movie) pair
// yields ErrConflict; an unknown user or movie yields ErrNotFound.
func (r *RatingsRepository) Create(ctx context.Context, userID, movieID int64, value float64) (domain.Rating, error) {
	defer metrics.ObserveQuery("ratings_create")()

	query := fmt.Sprintf(`
        INSERT INTO ratings AS r (user_id, movie_id, rating)
        VALUES ($1,$2,$3)
        RETURNING %s
    `, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, userID, movieID, value))
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return domain.Rating{}, ErrConflict
		case pgForeignKeyViolation:
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("create rating: %w", err)
	}
	return rating, nil
}

// UpdateValue overwrites the value of an existing rating.
func (r *RatingsRepository) UpdateValue(ctx context.Context, id int64, value float64) (domain.Rating, error) {
	defer metrics.ObserveQuery("ratings_update")()

	query := fmt.Sprintf(`
        UPDATE ratings AS r
        SET rating = $2, updated_at = now()
        WHERE r.id = $1
        RETURNING %s
    `, ratingColumns)
	rating, err := scanRating(r.db.QueryRow(ctx, query, id, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Rating{}, ErrNotFound
		}
		return domain.Rating{}, fmt.Errorf("update rating %d: %w", id, err)
	}
	return rating, nil
}

// ListByMovie returns every rating for a movie.
func (r *RatingsRepository) ListByMovie(ctx context.Context, movieID int64) ([]domain.Rating, error) {
	defer metrics.ObserveQuery("ratings_list")()

	query := fmt.Sprintf(`SELECT %s FROM ratings r WHERE r.movie_id = $1 ORDER BY r.id`, ratingColumns)
	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.Rating, 0)
	for rows.Next() {
		rating, err := scanRating(rows)
		if err != nil {
			return nil, err
		}
		ratings = append(ratings, rating)
	}
	return ratings, rows.Err()
}

// ListWithUser returns every rating for a movie joined with the owner's username.
func (r *RatingsRepository) ListWithUser(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error) {
	defer metrics.ObserveQuery("ratings_list_with_user")()

	query := fmt.Sprintf(`
        SELECT %s, u.username
        FROM ratings r
        JOIN users u ON u.id = r.user_id
        WHERE r.movie_id = $1
        ORDER BY r.id
    `, ratingColumns)
	rows, err := r.db.Query(ctx, query, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ratings := make([]domain.RatingWithUser, 0)
	for rows.Next() {
		var item domain.RatingWithUser
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.MovieID,
			&item.Value,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.Username,
		); err != nil {
			return nil, err
		}
		ratings = append(ratings, item)
	}
	return ratings, rows.Err()
}

func scanRating(row pgx.Row) (domain.Rating, error) {
	var rating domain.Rating
	err := row.Scan(
		&rating.ID,
		&rating.UserID,
		&rating.MovieID,
		&rating.Value,
		&rating.CreatedAt,
		&rating.UpdatedAt,
	)
	return rating, err
}

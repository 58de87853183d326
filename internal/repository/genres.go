package repository

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

// GenresRepository provides persistence helpers for genres.
type GenresRepository struct {
	db DBTX
}

// GenreUpsertParams carries one provider genre.
type GenreUpsertParams struct {
	TMDBID int64
	Name   string
}

// UpsertAll writes every genre in a single statement, updating only the name
// of genres that already exist.
func (r *GenresRepository) UpsertAll(ctx context.Context, genres []GenreUpsertParams) error {
	defer metrics.ObserveQuery("genres_upsert")()

	if len(genres) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(genres))
	names := make([]string, 0, len(genres))
	for _, g := range genres {
		ids = append(ids, g.TMDBID)
		names = append(names, g.Name)
	}

	const query = `
        INSERT INTO genres (tmdb_id, name)
        SELECT * FROM unnest($1::bigint[], $2::text[])
        ON CONFLICT (tmdb_id) DO UPDATE
        SET name = EXCLUDED.name,
            updated_at = now()
        WHERE genres.name IS DISTINCT FROM EXCLUDED.name
    `
	if _, err := r.db.Exec(ctx, query, ids, names); err != nil {
		return fmt.Errorf("upsert genres: %w", err)
	}
	return nil
}

// ListAll returns every stored genre ordered by name.
func (r *GenresRepository) ListAll(ctx context.Context) ([]domain.Genre, error) {
	defer metrics.ObserveQuery("genres_list")()

	rows, err := r.db.Query(ctx, `SELECT id, tmdb_id, name FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	genres := make([]domain.Genre, 0)
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.TMDBID, &g.Name); err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

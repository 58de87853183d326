package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db DBTX
}

const movieColumns = `
    m.id,
    m.tmdb_id,
    m.title,
    m.overview,
    m.poster_path,
    m.release_date,
    m.average_rating,
    m.rating_count,
    m.created_at,
    m.updated_at
`

// sortColumns whitelists caller-supplied sort fields. Both the JSON name and
// the column name are accepted.
var sortColumns = map[string]string{
	"id":             "m.id",
	"title":          "m.title",
	"releasedate":    "m.release_date",
	"release_date":   "m.release_date",
	"averagerating":  "m.average_rating",
	"average_rating": "m.average_rating",
	"ratingcount":    "m.rating_count",
	"rating_count":   "m.rating_count",
	"createdat":      "m.created_at",
	"created_at":     "m.created_at",
	"updatedat":      "m.updated_at",
	"updated_at":     "m.updated_at",
}

// MovieUpsertParams carries the provider-owned movie metadata.
type MovieUpsertParams struct {
	TMDBID      int64
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate *time.Time
}

// MovieListFilters encapsulates filtering, ordering and offset pagination.
type MovieListFilters struct {
	Title  *string
	Genre  *string
	Sort   string
	Order  string
	Limit  int
	Offset int
}

// MovieListResult returns one page plus the total number of matching rows.
type MovieListResult struct {
	Items []domain.Movie
	Total int
}

// SortColumn resolves a sort field to its column, reporting whether it is allowed.
func SortColumn(field string) (string, bool) {
	col, ok := sortColumns[strings.ToLower(strings.TrimSpace(field))]
	return col, ok
}

// Upsert inserts a movie keyed by its provider id, or updates its metadata.
// Rating aggregate columns are never written here. A row whose metadata is
// unchanged is left untouched, updated_at included.
func (r *MoviesRepository) Upsert(ctx context.Context, params MovieUpsertParams) (int64, error) {
	defer metrics.ObserveQuery("movies_upsert")()

	const query = `
        INSERT INTO movies (tmdb_id, title, overview, poster_path, release_date)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tmdb_id) DO UPDATE
        SET title = EXCLUDED.title,
            overview = EXCLUDED.overview,
            poster_path = EXCLUDED.poster_path,
            release_date = EXCLUDED.release_date,
            updated_at = now()
        WHERE (movies.title, movies.overview, movies.poster_path, movies.release_date)
              IS DISTINCT FROM
              (EXCLUDED.title, EXCLUDED.overview, EXCLUDED.poster_path, EXCLUDED.release_date)
        RETURNING id
    `

	var id int64
	err := r.db.QueryRow(ctx, query, params.TMDBID, params.Title, params.Overview, params.PosterPath, params.ReleaseDate).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict with identical metadata: nothing was written, look the row up.
		err = r.db.QueryRow(ctx, `SELECT id FROM movies WHERE tmdb_id = $1`, params.TMDBID).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("upsert movie tmdb_id=%d: %w", params.TMDBID, err)
	}
	return id, nil
}

// ReplaceGenres rewrites the movie's genre associations to exactly genreIDs.
func (r *MoviesRepository) ReplaceGenres(ctx context.Context, movieID int64, genreIDs []int64) error {
	defer metrics.ObserveQuery("movie_genres_replace")()

	if _, err := r.db.Exec(ctx, `DELETE FROM movie_genres WHERE movie_id = $1`, movieID); err != nil {
		return fmt.Errorf("clear genres for movie %d: %w", movieID, err)
	}
	ids := uniqueIDs(genreIDs)
	if len(ids) == 0 {
		return nil
	}
	const insert = `
        INSERT INTO movie_genres (movie_id, genre_id)
        SELECT $1, g FROM unnest($2::bigint[]) AS g
        ON CONFLICT DO NOTHING
    `
	if _, err := r.db.Exec(ctx, insert, movieID, ids); err != nil {
		return fmt.Errorf("insert genres for movie %d: %w", movieID, err)
	}
	return nil
}

// GetByID fetches a movie with its genres.
func (r *MoviesRepository) GetByID(ctx context.Context, id int64) (domain.Movie, error) {
	defer metrics.ObserveQuery("movies_get")()

	query := fmt.Sprintf(`SELECT %s FROM movies m WHERE m.id = $1`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	movies := []domain.Movie{movie}
	if err := r.attachGenres(ctx, movies); err != nil {
		return domain.Movie{}, err
	}
	return movies[0], nil
}

// GetByTMDBID fetches a movie by its provider identifier.
func (r *MoviesRepository) GetByTMDBID(ctx context.Context, tmdbID int64) (domain.Movie, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM movies WHERE tmdb_id = $1`, tmdbID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Movie{}, ErrNotFound
		}
		return domain.Movie{}, err
	}
	return r.GetByID(ctx, id)
}

// List returns one page of movies that match the provided filters and the total match count.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) (MovieListResult, error) {
	defer metrics.ObserveQuery("movies_list")()

	sortCol, ok := SortColumn(filters.Sort)
	if !ok {
		return MovieListResult{}, fmt.Errorf("%w: unknown field %q", ErrInvalidSort, filters.Sort)
	}
	direction := strings.ToUpper(strings.TrimSpace(filters.Order))
	if direction != "ASC" && direction != "DESC" {
		return MovieListResult{}, fmt.Errorf("%w: order must be ASC or DESC", ErrInvalidSort)
	}
	if filters.Limit <= 0 {
		filters.Limit = 10
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	whereSQL, args := movieFilterClause(filters)

	total, err := r.count(ctx, whereSQL, args)
	if err != nil {
		return MovieListResult{}, err
	}

	queryBuilder := strings.Builder{}
	queryBuilder.WriteString("SELECT ")
	queryBuilder.WriteString(movieColumns)
	queryBuilder.WriteString(" FROM movies m")
	queryBuilder.WriteString(whereSQL)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY %s %s, m.id %s", sortCol, direction, direction))
	queryBuilder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", filters.Limit, filters.Offset))

	items, err := r.queryMovies(ctx, queryBuilder.String(), args...)
	if err != nil {
		return MovieListResult{}, err
	}
	return MovieListResult{Items: items, Total: total}, nil
}

// Search performs a case-insensitive substring match on title or overview.
func (r *MoviesRepository) Search(ctx context.Context, q string) ([]domain.Movie, error) {
	defer metrics.ObserveQuery("movies_search")()

	pattern := "%" + escapeLike(q) + "%"
	query := fmt.Sprintf(`
        SELECT %s FROM movies m
        WHERE m.title ILIKE $1 ESCAPE '\' OR m.overview ILIKE $1 ESCAPE '\'
        ORDER BY m.title ASC, m.id ASC
    `, movieColumns)
	return r.queryMovies(ctx, query, pattern)
}

// UpdateRating persists the rating aggregate on a movie row.
func (r *MoviesRepository) UpdateRating(ctx context.Context, movieID int64, average float64, count int) error {
	defer metrics.ObserveQuery("movies_update_rating")()

	const query = `
        UPDATE movies
        SET average_rating = $2,
            rating_count = $3,
            updated_at = now()
        WHERE id = $1
    `
	tag, err := r.db.Exec(ctx, query, movieID, average, count)
	if err != nil {
		return fmt.Errorf("update rating for movie %d: %w", movieID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MoviesRepository) count(ctx context.Context, whereSQL string, args []interface{}) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM movies m"+whereSQL, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count movies: %w", err)
	}
	return total, nil
}

func movieFilterClause(filters MovieListFilters) (string, []interface{}) {
	where := make([]string, 0)
	args := make([]interface{}, 0)
	arg := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Title != nil {
		where = append(where, fmt.Sprintf("m.title = %s", arg(*filters.Title)))
	}
	if filters.Genre != nil {
		where = append(where, fmt.Sprintf(`EXISTS (
            SELECT 1 FROM movie_genres mg
            JOIN genres g ON g.id = mg.genre_id
            WHERE mg.movie_id = m.id AND g.name = %s)`, arg(*filters.Genre)))
	}

	if len(where) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

func (r *MoviesRepository) queryMovies(ctx context.Context, query string, args ...interface{}) ([]domain.Movie, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Movie, 0)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachGenres(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// attachGenres loads genres for all movies in one round trip.
func (r *MoviesRepository) attachGenres(ctx context.Context, movies []domain.Movie) error {
	if len(movies) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(movies))
	index := make(map[int64]int, len(movies))
	for i := range movies {
		movies[i].Genres = make([]domain.Genre, 0)
		ids = append(ids, movies[i].ID)
		index[movies[i].ID] = i
	}

	const query = `
        SELECT mg.movie_id, g.id, g.tmdb_id, g.name
        FROM movie_genres mg
        JOIN genres g ON g.id = mg.genre_id
        WHERE mg.movie_id = ANY($1)
        ORDER BY g.name
    `
	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load movie genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var movieID int64
		var genre domain.Genre
		if err := rows.Scan(&movieID, &genre.ID, &genre.TMDBID, &genre.Name); err != nil {
			return err
		}
		if i, ok := index[movieID]; ok {
			movies[i].Genres = append(movies[i].Genres, genre)
		}
	}
	return rows.Err()
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
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
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

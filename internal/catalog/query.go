package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/Clark-Hu/movie-catalog/internal/cache"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/metrics"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
)

// Query defaults applied before the cache key is computed.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	DefaultSort  = "title"
	DefaultOrder = "ASC"

	DefaultCacheTTL = 600 * time.Second

	loadTimeout = 30 * time.Second
)

// Cache key prefixes. Operators purge with e.g. "movies_*".
const (
	ListKeyPrefix   = "movies_"
	MovieKeyPrefix  = "movie_"
	SearchKeyPrefix = "search_"
)

// MovieQuery holds list parameters as received. Zero values take the defaults.
type MovieQuery struct {
	Page  int
	Limit int
	Sort  string
	Order string
	Genre *string
	Title *string
}

// MoviePage is the shaped result of a list query.
type MoviePage struct {
	Page          int            `json:"page"`
	PageSize      int            `json:"pageSize"`
	TotalElements int            `json:"totalElements"`
	Movies        []domain.Movie `json:"movies"`
}

// QueryOptions configures a QueryService.
type QueryOptions struct {
	TTL    time.Duration
	Logger zerolog.Logger
}

// QueryService serves catalog reads cache-aside. Cached entries are never
// invalidated by writes; they expire after the TTL.
type QueryService struct {
	store  QueryStore
	cache  cache.Cache
	ttl    time.Duration
	logger zerolog.Logger
	group  singleflight.Group
}

// NewQueryService wires a query store to a cache.
func NewQueryService(store QueryStore, c cache.Cache, opts QueryOptions) *QueryService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultCacheTTL
	}
	return &QueryService{
		store:  store,
		cache:  c,
		ttl:    opts.TTL,
		logger: opts.Logger.With().Str("component", "query").Logger(),
	}
}

// Normalize applies the list defaults and validates sort and order.
func (q MovieQuery) Normalize() (MovieQuery, error) {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	q.Sort = strings.TrimSpace(q.Sort)
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	q.Order = strings.ToUpper(strings.TrimSpace(q.Order))
	if q.Order == "" {
		q.Order = DefaultOrder
	}
	if _, ok := repository.SortColumn(q.Sort); !ok {
		return q, fmt.Errorf("%w: unsupported sort field %q", ErrValidation, q.Sort)
	}
	if q.Order != "ASC" && q.Order != "DESC" {
		return q, fmt.Errorf("%w: order must be ASC or DESC", ErrValidation)
	}
	q.Genre = blankToNil(q.Genre)
	q.Title = blankToNil(q.Title)
	return q, nil
}

// ListCacheKey is the cache key of a normalized list query. Absent filters
// render as empty segments. Free-text segments are escaped so '_' only ever
// separates segments.
func ListCacheKey(q MovieQuery) string {
	return fmt.Sprintf("%s%d_%d_%s_%s_%s_%s", ListKeyPrefix, q.Page, q.Limit,
		keySegment(q.Sort), q.Order, keySegment(deref(q.Genre)), keySegment(deref(q.Title)))
}

func keySegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "_", "%5F")
}

// MovieCacheKey is the cache key of a single movie lookup.
func MovieCacheKey(id int64) string {
	return MovieKeyPrefix + strconv.FormatInt(id, 10)
}

// SearchCacheKey is the cache key of a search.
func SearchCacheKey(q string) string {
	return SearchKeyPrefix + q
}

// ListMovies returns one page of movies matching the query.
func (s *QueryService) ListMovies(ctx context.Context, query MovieQuery) (MoviePage, error) {
	query, err := query.Normalize()
	if err != nil {
		return MoviePage{}, err
	}
	var page MoviePage
	err = s.cached(ctx, ListCacheKey(query), &page, func(ctx context.Context) (interface{}, error) {
		result, err := s.store.ListMovies(ctx, repository.MovieListFilters{
			Title:  query.Title,
			Genre:  query.Genre,
			Sort:   query.Sort,
			Order:  query.Order,
			Limit:  query.Limit,
			Offset: (query.Page - 1) * query.Limit,
		})
		if err != nil {
			return nil, storeErr("list movies", err)
		}
		return MoviePage{
			Page:          query.Page,
			PageSize:      query.Limit,
			TotalElements: result.Total,
			Movies:        result.Items,
		}, nil
	})
	return page, err
}

// GetMovieByID returns a single movie. A missing movie is ErrNotFound and is not cached.
func (s *QueryService) GetMovieByID(ctx context.Context, id int64) (domain.Movie, error) {
	var movie domain.Movie
	err := s.cached(ctx, MovieCacheKey(id), &movie, func(ctx context.Context) (interface{}, error) {
		m, err := s.store.GetMovie(ctx, id)
		if err != nil {
			return nil, storeErr(fmt.Sprintf("get movie %d", id), err)
		}
		return m, nil
	})
	return movie, err
}

// SearchMovies matches q case-insensitively against title or overview.
func (s *QueryService) SearchMovies(ctx context.Context, q string) ([]domain.Movie, error) {
	movies := make([]domain.Movie, 0)
	err := s.cached(ctx, SearchCacheKey(q), &movies, func(ctx context.Context) (interface{}, error) {
		found, err := s.store.SearchMovies(ctx, q)
		if err != nil {
			return nil, storeErr("search movies", err)
		}
		return found, nil
	})
	return movies, err
}

// cached decodes the entry under key into out, or runs load, stores its
// encoded result and decodes that into out. Concurrent misses on one key
// share a single load. The load is detached from any one caller's
// cancellation and bounded by loadTimeout; a cancelled caller stops waiting
// without failing the others. Cache failures are logged and treated as misses.
func (s *QueryService) cached(ctx context.Context, key string, out interface{}, load func(context.Context) (interface{}, error)) error {
	if payload, ok := s.cacheGet(ctx, key); ok {
		if err := json.Unmarshal(payload, out); err == nil {
			return nil
		}
		s.logger.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		s.cacheSet(loadCtx, key, payload)
		return payload, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), out)
	}
}

func (s *QueryService) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	payload, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues("get", "error").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		return nil, false
	case !ok:
		metrics.CacheRequests.WithLabelValues("get", "miss").Inc()
		return nil, false
	default:
		metrics.CacheRequests.WithLabelValues("get", "hit").Inc()
		return payload, true
	}
}

func (s *QueryService) cacheSet(ctx context.Context, key string, payload []byte) {
	if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
		metrics.CacheRequests.WithLabelValues("set", "error").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		return
	}
	metrics.CacheRequests.WithLabelValues("set", "ok").Inc()
}

// PurgePatterns are the globs matching every entry the QueryService writes.
var PurgePatterns = []string{ListKeyPrefix + "*", MovieKeyPrefix + "*", SearchKeyPrefix + "*"}

// Purge removes every cached catalog read.
func Purge(ctx context.Context, c cache.Cache) error {
	for _, pattern := range PurgePatterns {
		if err := c.DeleteByPattern(ctx, pattern); err != nil {
			return fmt.Errorf("purge %s: %w", pattern, err)
		}
	}
	return nil
}

func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Clark-Hu/movie-catalog/internal/cache"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
	"github.com/Clark-Hu/movie-catalog/internal/repository"
	"github.com/Clark-Hu/movie-catalog/internal/tmdb"
)

type fakeProvider struct {
	genres    []tmdb.Genre
	pages     map[int]tmdb.MoviePage
	genresErr error
	pageErr   map[int]error
	requested []int
}

func (p *fakeProvider) Genres(ctx context.Context) ([]tmdb.Genre, error) {
	if p.genresErr != nil {
		return nil, p.genresErr
	}
	return p.genres, nil
}

func (p *fakeProvider) PopularMovies(ctx context.Context, page int) (tmdb.MoviePage, error) {
	p.requested = append(p.requested, page)
	if err := p.pageErr[page]; err != nil {
		return tmdb.MoviePage{}, err
	}
	return p.pages[page], nil
}

// memStore is an in-memory catalog store. InTx stages writes on a copy and
// swaps it in only on success.
type memStore struct {
	mu sync.Mutex

	genres      map[int64]domain.Genre // keyed by provider id
	movies      map[int64]domain.Movie // keyed by local id
	movieGenres map[int64][]int64
	ratings     map[int64]domain.Rating
	users       map[int64]string
	watchlist   []domain.WatchlistEntry
	nextID      int64

	failUpsertTMDB int64
	getCalls       int
	listCalls      int
	searchCalls    int
	txCommits      int
}

func newMemStore() *memStore {
	return &memStore{
		genres:      make(map[int64]domain.Genre),
		movies:      make(map[int64]domain.Movie),
		movieGenres: make(map[int64][]int64),
		ratings:     make(map[int64]domain.Rating),
		users:       make(map[int64]string),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) UpsertGenres(ctx context.Context, genres []repository.GenreUpsertParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range genres {
		existing, ok := s.genres[g.TMDBID]
		if !ok {
			existing = domain.Genre{ID: s.id(), TMDBID: g.TMDBID}
		}
		existing.Name = g.Name
		s.genres[g.TMDBID] = existing
	}
	return nil
}

func (s *memStore) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Genre, 0, len(s.genres))
	for _, g := range s.genres {
		out = append(out, g)
	}
	return out, nil
}

type memTx struct {
	store       *memStore
	movies      map[int64]domain.Movie
	movieGenres map[int64][]int64
}

func (s *memStore) InTx(ctx context.Context, fn func(tx SyncTx) error) error {
	s.mu.Lock()
	tx := &memTx{store: s, movies: make(map[int64]domain.Movie), movieGenres: make(map[int64][]int64)}
	for k, v := range s.movies {
		tx.movies[k] = v
	}
	for k, v := range s.movieGenres {
		tx.movieGenres[k] = append([]int64(nil), v...)
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = tx.movies
	s.movieGenres = tx.movieGenres
	s.txCommits++
	return nil
}

func (t *memTx) UpsertMovie(ctx context.Context, params repository.MovieUpsertParams) (int64, error) {
	if params.TMDBID == t.store.failUpsertTMDB {
		return 0, errors.New("constraint violation")
	}
	for id, m := range t.movies {
		if m.TMDBID == params.TMDBID {
			m.Title = params.Title
			m.Overview = params.Overview
			m.PosterPath = params.PosterPath
			m.ReleaseDate = params.ReleaseDate
			t.movies[id] = m
			return id, nil
		}
	}
	t.store.mu.Lock()
	id := t.store.id()
	t.store.mu.Unlock()
	t.movies[id] = domain.Movie{
		ID:          id,
		TMDBID:      params.TMDBID,
		Title:       params.Title,
		Overview:    params.Overview,
		PosterPath:  params.PosterPath,
		ReleaseDate: params.ReleaseDate,
		CreatedAt:   time.Unix(0, 0).UTC(),
		UpdatedAt:   time.Unix(0, 0).UTC(),
	}
	return id, nil
}

func (t *memTx) ReplaceMovieGenres(ctx context.Context, movieID int64, genreIDs []int64) error {
	seen := make(map[int64]struct{})
	ids := make([]int64, 0, len(genreIDs))
	for _, id := range genreIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	t.movieGenres[movieID] = ids
	return nil
}

func (s *memStore) movieByTMDB(tmdbID int64) (domain.Movie, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movies {
		if m.TMDBID == tmdbID {
			return m, true
		}
	}
	return domain.Movie{}, false
}

func (s *memStore) genreNames(movieID int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0)
	for _, id := range s.movieGenres[movieID] {
		for _, g := range s.genres {
			if g.ID == id {
				names = append(names, g.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (s *memStore) addMovie(title string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.movies[id] = domain.Movie{ID: id, TMDBID: 1000 + id, Title: title, Genres: []domain.Genre{}}
	return id
}

func (s *memStore) ListMovies(ctx context.Context, filters repository.MovieListFilters) (repository.MovieListResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if _, ok := repository.SortColumn(filters.Sort); !ok {
		return repository.MovieListResult{}, repository.ErrInvalidSort
	}
	all := make([]domain.Movie, 0, len(s.movies))
	for _, m := range s.movies {
		if filters.Title != nil && m.Title != *filters.Title {
			continue
		}
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Title < all[j].Title })
	if filters.Order == "DESC" {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	start := filters.Offset
	if start > len(all) {
		start = len(all)
	}
	end := start + filters.Limit
	if end > len(all) {
		end = len(all)
	}
	return repository.MovieListResult{Items: all[start:end], Total: len(all)}, nil
}

func (s *memStore) GetMovie(ctx context.Context, id int64) (domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	m, ok := s.movies[id]
	if !ok {
		return domain.Movie{}, repository.ErrNotFound
	}
	return m, nil
}

func (s *memStore) SearchMovies(ctx context.Context, q string) ([]domain.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchCalls++
	out := make([]domain.Movie, 0)
	for _, m := range s.movies {
		if containsFold(m.Title, q) || containsFold(m.Overview, q) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) FindRating(ctx context.Context, userID, movieID int64) (domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.ratings {
		if r.UserID == userID && r.MovieID == movieID {
			return r, nil
		}
	}
	return domain.Rating{}, repository.ErrNotFound
}

func (s *memStore) CreateRating(ctx context.Context, userID, movieID int64, value float64) (domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[movieID]; !ok {
		return domain.Rating{}, repository.ErrNotFound
	}
	for _, r := range s.ratings {
		if r.UserID == userID && r.MovieID == movieID {
			return domain.Rating{}, repository.ErrConflict
		}
	}
	r := domain.Rating{ID: s.id(), UserID: userID, MovieID: movieID, Value: value}
	s.ratings[r.ID] = r
	return r, nil
}

func (s *memStore) UpdateRatingValue(ctx context.Context, ratingID int64, value float64) (domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.ratings[ratingID]
	if !ok {
		return domain.Rating{}, repository.ErrNotFound
	}
	r.Value = value
	s.ratings[ratingID] = r
	return r, nil
}

func (s *memStore) ListRatings(ctx context.Context, movieID int64) ([]domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Rating, 0)
	for _, r := range s.ratings {
		if r.MovieID == movieID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListRatingsWithUser(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error) {
	ratings, _ := s.ListRatings(ctx, movieID)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RatingWithUser, 0, len(ratings))
	for _, r := range ratings {
		out = append(out, domain.RatingWithUser{Rating: r, Username: s.users[r.UserID]})
	}
	return out, nil
}

func (s *memStore) SetMovieAggregate(ctx context.Context, movieID int64, agg domain.RatingAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.movies[movieID]
	if !ok {
		return repository.ErrNotFound
	}
	m.AverageRating = agg.Average
	m.RatingCount = agg.Count
	s.movies[movieID] = m
	return nil
}

func (s *memStore) AddWatchlistEntry(ctx context.Context, userID, movieID int64) (domain.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.movies[movieID]; !ok {
		return domain.WatchlistEntry{}, repository.ErrNotFound
	}
	for _, e := range s.watchlist {
		if e.UserID == userID && e.MovieID == movieID {
			return domain.WatchlistEntry{}, repository.ErrConflict
		}
	}
	entry := domain.WatchlistEntry{
		ID:      s.id(),
		UserID:  userID,
		MovieID: movieID,
		AddedAt: time.Unix(s.nextID, 0).UTC(),
	}
	s.watchlist = append(s.watchlist, entry)
	return entry, nil
}

func (s *memStore) RemoveWatchlistEntry(ctx context.Context, userID, movieID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.watchlist {
		if e.UserID == userID && e.MovieID == movieID {
			s.watchlist = append(s.watchlist[:i], s.watchlist[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *memStore) ListWatchlist(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WatchlistEntry, 0)
	for i := len(s.watchlist) - 1; i >= 0; i-- {
		e := s.watchlist[i]
		if e.UserID != userID {
			continue
		}
		movie := s.movies[e.MovieID]
		e.Movie = &movie
		out = append(out, e)
	}
	return out, nil
}

func (s *memStore) ratingRows(userID, movieID int64) []domain.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Rating, 0)
	for _, r := range s.ratings {
		if r.UserID == userID && r.MovieID == movieID {
			out = append(out, r)
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// countingCache wraps a cache and records calls.
type countingCache struct {
	inner   cache.Cache
	mu      sync.Mutex
	sets    []string
	lastTTL time.Duration
	getErr  error
	setErr  error
}

func (c *countingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.inner.Get(ctx, key)
}

func (c *countingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	c.sets = append(c.sets, key)
	c.lastTTL = ttl
	c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	return c.inner.Set(ctx, key, value, ttl)
}

func (c *countingCache) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

func (c *countingCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return c.inner.DeleteByPattern(ctx, pattern)
}

func (c *countingCache) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}

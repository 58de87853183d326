package tmdb

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

const releaseDateLayout = "2006-01-02"

// Genre is a provider genre.
type Genre struct {
	ID   int64
	Name string
}

// Movie is one entry of a popular-movies page.
type Movie struct {
	ID          int64
	Title       string
	Overview    string
	PosterPath  string
	ReleaseDate *time.Time
	GenreIDs    []int64
}

// MoviePage is one page of the popular-movies listing.
type MoviePage struct {
	Page       int
	TotalPages int
	Results    []Movie
}

// StatusError reports a non-200 response from the provider.
type StatusError struct {
	StatusCode int
	Path       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb: %s returned %d", e.Path, e.StatusCode)
}

// Client defines the contract for querying the movie provider.
type Client interface {
	Genres(ctx context.Context) ([]Genre, error)
	PopularMovies(ctx context.Context, page int) (MoviePage, error)
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewHTTPClient constructs a new HTTP-backed provider client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger zerolog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse tmdb url: %q is not absolute", baseURL)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger.With().Str("component", "tmdb").Logger(),
	}, nil
}

// Genres fetches the provider's movie genre list.
func (c *HTTPClient) Genres(ctx context.Context) ([]Genre, error) {
	var payload genreListResponse
	if err := c.get(ctx, "/genre/movie/list", nil, &payload); err != nil {
		return nil, err
	}
	genres := make([]Genre, 0, len(payload.Genres))
	for _, g := range payload.Genres {
		genres = append(genres, Genre{ID: g.ID, Name: g.Name})
	}
	return genres, nil
}

// PopularMovies fetches one page of popular movies. Pages start at 1.
func (c *HTTPClient) PopularMovies(ctx context.Context, page int) (MoviePage, error) {
	var payload moviePageResponse
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	if err := c.get(ctx, "/movie/popular", params, &payload); err != nil {
		return MoviePage{}, err
	}
	return convertToPage(payload), nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)

	endpoint := *c.baseURL
	endpoint.Path = c.baseURL.Path + path
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("tmdb: request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("unexpected provider status")
		return &StatusError{StatusCode: resp.StatusCode, Path: path}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb: decode %s: %w", path, err)
	}
	return nil
}

type genreListResponse struct {
	Genres []genrePayload `json:"genres"`
}

type genrePayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type moviePageResponse struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	Results    []moviePayload `json:"results"`
}

type moviePayload struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	PosterPath  *string `json:"poster_path"`
	ReleaseDate string  `json:"release_date"`
	GenreIDs    []int64 `json:"genre_ids"`
}

func convertToPage(payload moviePageResponse) MoviePage {
	page := MoviePage{
		Page:       payload.Page,
		TotalPages: payload.TotalPages,
		Results:    make([]Movie, 0, len(payload.Results)),
	}
	for _, m := range payload.Results {
		page.Results = append(page.Results, convertToMovie(m))
	}
	return page
}

func convertToMovie(m moviePayload) Movie {
	movie := Movie{
		ID:          m.ID,
		Title:       m.Title,
		Overview:    m.Overview,
		ReleaseDate: parseReleaseDate(m.ReleaseDate),
		GenreIDs:    m.GenreIDs,
	}
	if m.PosterPath != nil {
		movie.PosterPath = *m.PosterPath
	}
	if movie.GenreIDs == nil {
		movie.GenreIDs = []int64{}
	}
	return movie
}

// parseReleaseDate returns nil for empty or malformed dates.
func parseReleaseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(releaseDateLayout, value)
	if err != nil {
		return nil
	}
	return &parsed
}

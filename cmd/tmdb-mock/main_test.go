package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/tmdb"
)

const testFixture = `{
  "genres": [{"id": 28, "name": "Action"}, {"id": 18, "name": "Drama"}],
  "pages": [
    [{"id": 603, "title": "The Matrix", "overview": "A hacker.", "poster_path": "/m.jpg", "release_date": "1999-03-31", "genre_ids": [28]}],
    [{"id": 949, "title": "Heat", "overview": "A heist.", "poster_path": null, "release_date": "", "genre_ids": [18, 28]}]
  ]
}`

func TestMockServesProviderWireFormat(t *testing.T) {
	var payload fixture
	if err := json.Unmarshal([]byte(testFixture), &payload); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	srv := httptest.NewServer(newMux(payload, zerolog.Nop()))
	defer srv.Close()

	client, err := tmdb.NewHTTPClient(srv.URL, "key", time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	ctx := context.Background()

	genres, err := client.Genres(ctx)
	if err != nil || len(genres) != 2 || genres[0].Name != "Action" {
		t.Fatalf("genres = %+v, err = %v", genres, err)
	}

	page, err := client.PopularMovies(ctx, 2)
	if err != nil {
		t.Fatalf("PopularMovies: %v", err)
	}
	if page.TotalPages != 2 || len(page.Results) != 1 || page.Results[0].Title != "Heat" {
		t.Fatalf("page = %+v", page)
	}
	if page.Results[0].ReleaseDate != nil || page.Results[0].PosterPath != "" {
		t.Fatalf("empty date and null poster not normalised: %+v", page.Results[0])
	}

	beyond, err := client.PopularMovies(ctx, 5)
	if err != nil || len(beyond.Results) != 0 {
		t.Fatalf("page beyond fixture = %+v, err = %v", beyond, err)
	}
}

func TestMockRequiresAPIKey(t *testing.T) {
	srv := httptest.NewServer(newMux(fixture{}, zerolog.Nop()))
	defer srv.Close()

	client, err := tmdb.NewHTTPClient(srv.URL, "", time.Second, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	_, err = client.Genres(context.Background())
	var statusErr *tmdb.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 401 {
		t.Fatalf("expected 401 StatusError, got %v", err)
	}
}

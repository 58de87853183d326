package httpserver

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

func watchlistRequestFor(method, target, user, body string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	if user != "" {
		req.Header.Set("X-User-Id", user)
	}
	return req
}

func TestWatchlistRoundTrip(t *testing.T) {
	srv, deps := buildTestServer(t)

	rec := doRequest(srv, watchlistRequestFor(http.MethodPost, "/watchlist", "7", `{"movieId":2}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body.String())
	}
	var msg messageResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != "Movie added to watchlist" {
		t.Fatalf("message = %q", msg.Message)
	}
	if !deps.watchlist.entries[watchKey{7, 2}] {
		t.Fatalf("entry not stored: %+v", deps.watchlist.entries)
	}

	rec = doRequest(srv, watchlistRequestFor(http.MethodGet, "/watchlist", "7", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var entries []domain.WatchlistEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].MovieID != 2 || entries[0].UserID != 7 {
		t.Fatalf("entries = %+v", entries)
	}

	rec = doRequest(srv, watchlistRequestFor(http.MethodDelete, "/watchlist/2", "7", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("remove status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Message != "Movie removed from watchlist" {
		t.Fatalf("message = %q", msg.Message)
	}

	rec = doRequest(srv, watchlistRequestFor(http.MethodGet, "/watchlist", "7", ""))
	if rec.Code != http.StatusOK || bytes.TrimSpace(rec.Body.Bytes())[0] != '[' {
		t.Fatalf("empty list status = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestWatchlistRejections(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		user   string
		body   string
		seed   bool
		status int
		code   string
	}{
		{name: "list without user", method: http.MethodGet, target: "/watchlist", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "add without user", method: http.MethodPost, target: "/watchlist", body: `{"movieId":1}`, status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "remove with bad user", method: http.MethodDelete, target: "/watchlist/1", user: "-3", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "missing movie id", method: http.MethodPost, target: "/watchlist", user: "1", body: `{}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "zero movie id", method: http.MethodPost, target: "/watchlist", user: "1", body: `{"movieId":0}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "string movie id", method: http.MethodPost, target: "/watchlist", user: "1", body: `{"movieId":"one"}`, status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "empty body", method: http.MethodPost, target: "/watchlist", user: "1", status: http.StatusUnprocessableEntity, code: "VALIDATION_ERROR"},
		{name: "unknown movie", method: http.MethodPost, target: "/watchlist", user: "1", body: `{"movieId":77}`, status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "duplicate add", method: http.MethodPost, target: "/watchlist", user: "1", body: `{"movieId":1}`, seed: true, status: http.StatusConflict, code: "CONFLICT"},
		{name: "remove absent", method: http.MethodDelete, target: "/watchlist/2", user: "1", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "remove bad id", method: http.MethodDelete, target: "/watchlist/abc", user: "1", status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, deps := buildTestServer(t)
			if tt.seed {
				deps.watchlist.entries[watchKey{1, 1}] = true
			}
			rec := doRequest(srv, watchlistRequestFor(tt.method, tt.target, tt.user, tt.body))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if body := decodeError(t, rec); body.Code != tt.code {
				t.Fatalf("code = %q, want %q", body.Code, tt.code)
			}
		})
	}
}

func TestWatchlistStoreFailure(t *testing.T) {
	srv, deps := buildTestServer(t)
	deps.watchlist.err = errors.New("pool exhausted")

	rec := doRequest(srv, watchlistRequestFor(http.MethodGet, "/watchlist", "1", ""))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decodeError(t, rec); body.Message != "Failed to retrieve watchlist" {
		t.Fatalf("message = %q", body.Message)
	}
}

func TestWatchlistRoutesAbsentWithoutService(t *testing.T) {
	srv := New(config.Config{Port: "0"}, Deps{
		Queries: &fakeQueries{movies: map[int64]domain.Movie{}},
		Ratings: &fakeRatings{},
		Sync:    &fakeSync{},
	}, zerolog.Nop())

	rec := doRequest(srv, watchlistRequestFor(http.MethodGet, "/watchlist", "1", ""))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		raw     string
		want    int64
		wantErr bool
	}{
		{raw: "42", want: 42},
		{raw: " 7 ", want: 7},
		{raw: "", wantErr: true},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "bob", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseUserID(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseUserID(%q) = %d, want error", tt.raw, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseUserID(%q) = %d, %v, want %d", tt.raw, got, err, tt.want)
		}
	}
}

var _ Watchlists = (*catalog.WatchlistService)(nil)

// Command tmdb-mock serves a fixed genre list and popular-movie pages in the
// provider's wire format, for local runs without network access.
package main

import (
	"flag"
	"net/http"
	"os"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/movie-catalog/internal/logging"
)

type fixture struct {
	Genres []json.RawMessage   `json:"genres"`
	Pages  [][]json.RawMessage `json:"pages"`
}

type pageResponse struct {
	Page         int               `json:"page"`
	TotalPages   int               `json:"total_pages"`
	TotalResults int               `json:"total_results"`
	Results      []json.RawMessage `json:"results"`
}

func main() {
	var (
		port    = flag.String("port", "9099", "port to listen on")
		data    = flag.String("data", "mock-tmdb.json", "path to mock data file")
		verbose = flag.Bool("log", false, "enable request logging")
	)
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Format: "console"})

	file, err := os.ReadFile(*data)
	if err != nil {
		logger.Fatal().Err(err).Msg("read mock data")
	}
	var payload fixture
	if err := json.Unmarshal(file, &payload); err != nil {
		logger.Fatal().Err(err).Msg("parse mock data")
	}

	addr := ":" + *port
	logger.Info().Str("addr", addr).Int("genres", len(payload.Genres)).Int("pages", len(payload.Pages)).Msg("mock tmdb listening")
	if err := http.ListenAndServe(addr, newMux(payload, logger)); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newMux(payload fixture, logger zerolog.Logger) *http.ServeMux {
	total := 0
	for _, p := range payload.Pages {
		total += len(p)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/genre/movie/list", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		logger.Debug().Str("path", r.URL.Path).Msg("genres")
		writeJSON(w, map[string][]json.RawMessage{"genres": payload.Genres})
	})
	mux.HandleFunc("/movie/popular", func(w http.ResponseWriter, r *http.Request) {
		if !authorized(w, r) {
			return
		}
		page := 1
		if raw := r.URL.Query().Get("page"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 1 {
				http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
				return
			}
			page = parsed
		}
		results := []json.RawMessage{}
		if page <= len(payload.Pages) {
			results = payload.Pages[page-1]
		}
		logger.Debug().Int("page", page).Int("results", len(results)).Msg("popular")
		writeJSON(w, pageResponse{
			Page:         page,
			TotalPages:   len(payload.Pages),
			TotalResults: total,
			Results:      results,
		})
	})
	return mux
}

func authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("api_key") == "" {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

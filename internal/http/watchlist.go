package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

type watchlistRequest struct {
	MovieID *int64 `json:"movieId"`
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	entries, err := s.watchlist.GetWatchlist(r.Context(), userID)
	if err != nil {
		s.respondServiceError(w, r, err, "Failed to retrieve watchlist")
		return
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req watchlistRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.MovieID == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "movieId is required")
		return
	}
	if *req.MovieID < 1 {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Movie ID must be a positive integer")
		return
	}

	if err := s.watchlist.AddToWatchlist(r.Context(), userID, *req.MovieID); err != nil {
		s.respondServiceError(w, r, err, "Failed to add movie to watchlist")
		return
	}
	s.respondJSON(w, http.StatusCreated, messageResponse{Message: "Movie added to watchlist"})
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	movieID, err := strconv.ParseInt(chi.URLParam(r, "movieId"), 10, 64)
	if err != nil || movieID < 1 {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Movie ID must be a positive integer")
		return
	}

	if err := s.watchlist.RemoveFromWatchlist(r.Context(), userID, movieID); err != nil {
		s.respondServiceError(w, r, err, "Failed to remove movie from watchlist")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Movie removed from watchlist"})
}

// requireUser reads the caller id from X-User-Id and writes a 401 when it is
// missing or malformed.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := parseUserID(r.Header.Get("X-User-Id"))
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return 0, false
	}
	return userID, true
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

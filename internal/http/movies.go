package httpserver

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

const maxRequestBody = 1 << 20 // 1 MiB

type errorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type ratingRequest struct {
	Rating *float64 `json:"rating"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	query, err := parseMovieQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	page, err := s.queries.ListMovies(r.Context(), query)
	if err != nil {
		s.respondServiceError(w, r, err, "Failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

// parseMovieQuery reads list parameters. Defaults and sort validation are
// applied by catalog.MovieQuery.Normalize.
func parseMovieQuery(values url.Values) (catalog.MovieQuery, error) {
	var query catalog.MovieQuery

	if val := strings.TrimSpace(values.Get("page")); val != "" {
		page, err := strconv.Atoi(val)
		if err != nil || page < 1 {
			return query, fmt.Errorf("page must be a positive integer")
		}
		query.Page = page
	}
	if val := strings.TrimSpace(values.Get("limit")); val != "" {
		limit, err := strconv.Atoi(val)
		if err != nil || limit < 1 {
			return query, fmt.Errorf("limit must be a positive integer")
		}
		query.Limit = limit
	}
	query.Sort = strings.TrimSpace(values.Get("sort"))
	if val := strings.ToUpper(strings.TrimSpace(values.Get("order"))); val != "" {
		if val != "ASC" && val != "DESC" {
			return query, fmt.Errorf("order must be either ASC or DESC")
		}
		query.Order = val
	}
	if val := strings.TrimSpace(values.Get("genre")); val != "" {
		query.Genre = &val
	}
	if val := strings.TrimSpace(values.Get("title")); val != "" {
		query.Title = &val
	}
	return query, nil
}

func (s *Server) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "query parameter q is required")
		return
	}

	movies, err := s.queries.SearchMovies(r.Context(), q)
	if err != nil {
		s.respondServiceError(w, r, err, "Failed to search movies")
		return
	}
	s.respondJSON(w, http.StatusOK, movies)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	movie, err := s.queries.GetMovieByID(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "Failed to fetch movie")
		return
	}
	s.respondJSON(w, http.StatusOK, movie)
}

func (s *Server) handleRateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Rating == nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "rating is required")
		return
	}
	if !validRating(*req.Rating) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Rating must be between 0 and 10")
		return
	}

	if err := s.ratings.RateMovie(r.Context(), userID, id, *req.Rating); err != nil {
		s.respondServiceError(w, r, err, "Failed to process rating")
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: "Rating submitted successfully"})
}

func (s *Server) handleGetMovieRatings(w http.ResponseWriter, r *http.Request) {
	id, err := decodeIDParam(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ratings, err := s.ratings.GetMovieRatings(r.Context(), id)
	if err != nil {
		s.respondServiceError(w, r, err, "Failed to fetch ratings")
		return
	}
	s.respondJSON(w, http.StatusOK, ratings)
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	if !s.verifyBearer(r.Header.Get("Authorization")) {
		s.respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid authentication information")
		return
	}

	if err := s.sync.Run(r.Context()); err != nil {
		if errors.Is(err, catalog.ErrTransport) {
			s.respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "Movie provider unavailable")
			return
		}
		s.respondServiceError(w, r, err, "Sync failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validRating(v float64) bool {
	return !math.IsNaN(v) && v >= domain.MinRating && v <= domain.MaxRating
}

func decodeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		return 0, fmt.Errorf("missing id parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("ID must be a positive integer")
	}
	return id, nil
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Error().Err(err).Msg("failed to encode response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondServiceError maps catalog errors onto HTTP statuses.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
	case errors.Is(err, catalog.ErrConflict):
		s.respondError(w, http.StatusConflict, "CONFLICT", "Resource already exists")
	case errors.Is(err, catalog.ErrValidation):
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg(message)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", message)
	}
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxError), errors.Is(err, io.ErrUnexpectedEOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", fmt.Sprintf("Invalid value for field %s", typeError.Field))
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Request body cannot be empty")
	default:
		s.respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unable to parse request body")
	}
}

func (s *Server) verifyBearer(header string) bool {
	if header == "" || s.cfg.AuthToken == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token == s.cfg.AuthToken
}

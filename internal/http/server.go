package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/Clark-Hu/movie-catalog/internal/catalog"
	"github.com/Clark-Hu/movie-catalog/internal/config"
	"github.com/Clark-Hu/movie-catalog/internal/domain"
)

// MovieQueries serves catalog reads.
type MovieQueries interface {
	ListMovies(ctx context.Context, query catalog.MovieQuery) (catalog.MoviePage, error)
	GetMovieByID(ctx context.Context, id int64) (domain.Movie, error)
	SearchMovies(ctx context.Context, q string) ([]domain.Movie, error)
}

// MovieRatings records and lists user ratings.
type MovieRatings interface {
	RateMovie(ctx context.Context, userID, movieID int64, value float64) error
	GetMovieRatings(ctx context.Context, movieID int64) ([]domain.RatingWithUser, error)
}

// Watchlists manages each user's saved movies.
type Watchlists interface {
	AddToWatchlist(ctx context.Context, userID, movieID int64) error
	RemoveFromWatchlist(ctx context.Context, userID, movieID int64) error
	GetWatchlist(ctx context.Context, userID int64) ([]domain.WatchlistEntry, error)
}

// SyncRunner runs one catalog sync.
type SyncRunner interface {
	Run(ctx context.Context) error
}

// HealthChecker reports whether a backing service is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps are the services the HTTP layer routes to.
type Deps struct {
	Queries   MovieQueries
	Ratings   MovieRatings
	Watchlist Watchlists
	Sync      SyncRunner
	Health    HealthChecker
}

// Server wires HTTP routing, middleware, and handlers.
type Server struct {
	cfg       config.Config
	queries   MovieQueries
	ratings   MovieRatings
	watchlist Watchlists
	sync      SyncRunner
	health    HealthChecker
	logger    zerolog.Logger
	router    chi.Router
	httpSrv   *http.Server
}

// New constructs the HTTP server with base middleware and routes.
func New(cfg config.Config, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "http").Logger()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)

	s := &Server{
		cfg:       cfg,
		queries:   deps.Queries,
		ratings:   deps.Ratings,
		watchlist: deps.Watchlist,
		sync:      deps.Sync,
		health:    deps.Health,
		logger:    logger,
		router:    r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router.Route("/movies", func(r chi.Router) {
		r.Get("/", s.handleListMovies)
		r.Get("/search", s.handleSearchMovies)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetMovie)
			r.Post("/rate", s.handleRateMovie)
			r.Get("/ratings", s.handleGetMovieRatings)
		})
	})
	if s.watchlist != nil {
		s.router.Route("/watchlist", func(r chi.Router) {
			r.Get("/", s.handleGetWatchlist)
			r.Post("/", s.handleAddToWatchlist)
			r.Delete("/{movieId}", s.handleRemoveFromWatchlist)
		})
	}
	s.router.Post("/admin/sync", s.handleTriggerSync)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start boots the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.IdleTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if s.health != nil {
		if err := s.health.HealthCheck(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("health check failed")
			s.respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Database unreachable")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

package tmdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Clark-Hu/movie-catalog/internal/metrics"
)

const (
	defaultTripAfter    = 3
	defaultOpenDuration = time.Minute
)

// BreakerOptions tunes the provider circuit breaker. Zero values use the defaults.
type BreakerOptions struct {
	// TripAfter is the number of consecutive failures that opens the circuit.
	TripAfter uint32
	// OpenDuration is how long the circuit stays open before a trial request.
	OpenDuration time.Duration
	Logger       zerolog.Logger
}

// BreakerClient wraps a Client with a circuit breaker. Open-circuit calls fail
// fast without reaching the provider. Nothing is retried.
type BreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	logger zerolog.Logger
}

// NewBreakerClient wraps client with circuit breaker protection.
func NewBreakerClient(client Client, opts BreakerOptions) *BreakerClient {
	if opts.TripAfter == 0 {
		opts.TripAfter = defaultTripAfter
	}
	if opts.OpenDuration <= 0 {
		opts.OpenDuration = defaultOpenDuration
	}
	logger := opts.Logger.With().Str("component", "tmdb_breaker").Logger()
	metrics.BreakerState.Set(0)

	tripAfter := opts.TripAfter
	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        "tmdb",
		MaxRequests: 1,
		Timeout:     opts.OpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= tripAfter
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.BreakerState.Set(stateToFloat(to))
		},
	})

	return &BreakerClient{client: client, cb: cb, logger: logger}
}

// Genres fetches genres with circuit breaker protection.
func (b *BreakerClient) Genres(ctx context.Context) ([]Genre, error) {
	genres, err := castResult[[]Genre](b.execute(func() (interface{}, error) {
		g, err := b.client.Genres(ctx)
		return &g, err
	}))
	if err != nil {
		return nil, err
	}
	return *genres, nil
}

// PopularMovies fetches a page with circuit breaker protection.
func (b *BreakerClient) PopularMovies(ctx context.Context, page int) (MoviePage, error) {
	result, err := castResult[MoviePage](b.execute(func() (interface{}, error) {
		p, err := b.client.PopularMovies(ctx, page)
		return &p, err
	}))
	if err != nil {
		return MoviePage{}, err
	}
	return *result, nil
}

// State reports the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ProviderRequests.WithLabelValues("rejected").Inc()
			b.logger.Warn().Err(err).Msg("provider request rejected")
			return nil, fmt.Errorf("tmdb: %w", err)
		}
		metrics.ProviderRequests.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.ProviderRequests.WithLabelValues("success").Inc()
	return result, nil
}

func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("tmdb: unexpected breaker result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

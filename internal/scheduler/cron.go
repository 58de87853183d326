package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSchedule runs once a day at midnight.
const DefaultSchedule = "0 0 * * *"

const defaultTimeout = 30 * time.Minute

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Options configures the scheduler.
type Options struct {
	// Timeout bounds each run. Zero uses 30 minutes.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Start registers job on schedule and starts the scheduler. Runs are not
// serialized: a run still in flight when the next one fires keeps going.
// Panics inside job are recovered and logged.
//
// The returned *cron.Cron must be stopped on shutdown; Stop returns a context
// that is done once running jobs finish.
func Start(schedule string, job Job, opts Options) (*cron.Cron, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger.With().Str("component", "cron").Logger()

	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(&logger))))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()

		start := time.Now()
		logger.Info().Msg("scheduled job started")
		if err := job(ctx); err != nil {
			logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("scheduled job failed")
			return
		}
		logger.Info().Dur("duration", time.Since(start)).Msg("scheduled job done")
	})
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", schedule, err)
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("cron scheduler started")
	return c, nil
}

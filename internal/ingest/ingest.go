// Package ingest runs the daily and backfill jobs: fetch from the provider, gate each
// record into its collection, and report the outcome.
package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/logging"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/store"
)

// Provider is the part of the Garmin client the jobs use.
type Provider interface {
	DailyStats(ctx context.Context, day time.Time) (domain.DailyStats, error)
	Activities(ctx context.Context, start, limit int) ([]domain.Activity, error)
	LastActivity(ctx context.Context) (*domain.Activity, error)
}

// Login opens a provider session. Jobs call it once, first.
type Login func(ctx context.Context) (Provider, error)

// Notifier receives status codes from the daily jobs.
type Notifier interface {
	Stats(ctx context.Context, code domain.StatusCode)
	Activity(ctx context.Context, code domain.StatusCode)
	Raw(ctx context.Context, payload []byte)
}

// Collections are the two destinations of the jobs.
type Collections struct {
	Stats      store.Collection
	Activities store.Collection
}

// Option configures optional behaviour shared by the jobs.
type Option func(*options)

type options struct {
	logger   zerolog.Logger
	now      func() time.Time
	location *time.Location
}

func defaultOptions() options {
	return options{
		logger:   logging.Logger().With().Str("component", "ingest").Logger(),
		now:      time.Now,
		location: time.Local,
	}
}

// WithLogger overrides the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLocation sets the time zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func record(collection string, result domain.Result, stage string) {
	observability.RecordOutcome(collection, result.Outcome.String())
	if result.Outcome == domain.OutcomeFailed {
		observability.RecordFailure(stage, string(result.Kind()))
	}
}

func logResult(logger zerolog.Logger, collection string, result domain.Result) {
	switch result.Outcome {
	case domain.OutcomeFailed:
		event := logger.Error()
		if domain.IsProviderError(result.Err) {
			event = logger.Warn()
		}
		event.Err(result.Err).
			Str("collection", collection).
			Str("kind", string(result.Kind())).
			Msg("record failed")
	case domain.OutcomeNoData:
		logger.Info().Str("collection", collection).Msg("no data for period")
	default:
		logger.Info().Str("collection", collection).Str("outcome", result.Outcome.String()).Msg("record processed")
	}
}

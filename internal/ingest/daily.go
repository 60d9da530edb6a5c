package ingest

import (
	"context"
	"fmt"
	"slices"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/store"
)

// Variant picks which day and how many activities a daily run covers.
type Variant int

const (
	// Today ingests the current day and the single latest activity.
	Today Variant = iota
	// Yesterday ingests the previous day and the most recent activities, oldest first.
	Yesterday
)

func (v Variant) String() string {
	if v == Yesterday {
		return "yesterday"
	}
	return "today"
}

// DailyReport lists the result of each record a daily run handled.
type DailyReport struct {
	Stats      domain.Result
	Activities []domain.Result
}

// Daily is one daily ingest run. Every record attempt or failure publishes exactly
// one status code.
type Daily struct {
	login    Login
	colls    Collections
	notifier Notifier
	variant  Variant
	recent   int
	gate     store.Gate
	opts     options
}

// NewDaily constructs a Daily. recent bounds the activity fetch for Yesterday and is
// ignored for Today.
func NewDaily(login Login, colls Collections, notifier Notifier, variant Variant, recent int, opts ...Option) *Daily {
	if recent <= 0 {
		recent = 2
	}
	return &Daily{
		login:    login,
		colls:    colls,
		notifier: notifier,
		variant:  variant,
		recent:   recent,
		opts:     applyOptions(opts),
	}
}

// Run logs in, ingests the day's statistics and then the activities. Only a failed
// login is returned as an error; it publishes a failure on both topics first.
func (d *Daily) Run(ctx context.Context) (DailyReport, error) {
	logger := d.opts.logger.With().Str("variant", d.variant.String()).Logger()

	provider, err := d.login(ctx)
	if err != nil {
		logger.Error().Err(err).Str("kind", string(domain.KindOf(err))).Msg("provider login failed")
		observability.RecordFailure("login", string(domain.KindOf(err)))
		d.notifier.Stats(ctx, domain.StatusFailed)
		d.notifier.Activity(ctx, domain.StatusFailed)
		return DailyReport{}, fmt.Errorf("login: %w", err)
	}

	day := startOfDay(d.opts.now(), d.opts.location)
	if d.variant == Yesterday {
		day = day.AddDate(0, 0, -1)
	}

	report := DailyReport{Stats: d.ingestStats(ctx, provider, day)}
	report.Activities = d.ingestActivities(ctx, provider)
	return report, nil
}

func (d *Daily) ingestStats(ctx context.Context, provider Provider, day time.Time) domain.Result {
	date := day.Format("2006-01-02")
	logger := d.opts.logger.With().Str("date", date).Logger()

	result := func() domain.Result {
		stats, err := provider.DailyStats(ctx, day)
		if err != nil {
			return domain.Failed(err)
		}
		if !stats.HasData() {
			return domain.Ok(domain.OutcomeNoData)
		}
		outcome, err := d.gate.Insert(ctx, d.colls.Stats, stats.Document())
		if err != nil {
			return domain.Failed(err)
		}
		if outcome == domain.OutcomeInserted {
			d.notifier.Raw(ctx, stats.Payload)
		}
		return domain.Ok(outcome)
	}()

	logResult(logger, domain.CollectionHealthStats, result)
	record(domain.CollectionHealthStats, result, "stats")
	d.notifier.Stats(ctx, result.Outcome.Status())
	return result
}

func (d *Daily) ingestActivities(ctx context.Context, provider Provider) []domain.Result {
	activities, err := d.fetchActivities(ctx, provider)
	if err != nil || len(activities) == 0 {
		result := domain.Ok(domain.OutcomeNoData)
		if err != nil {
			result = domain.Failed(err)
		}
		logResult(d.opts.logger, domain.CollectionActivities, result)
		record(domain.CollectionActivities, result, "activities")
		d.notifier.Activity(ctx, result.Outcome.Status())
		return []domain.Result{result}
	}

	results := make([]domain.Result, 0, len(activities))
	for _, activity := range activities {
		result := d.ingestActivity(ctx, activity)
		logResult(d.opts.logger.With().Int64("activity_id", activity.ID).Logger(), domain.CollectionActivities, result)
		record(domain.CollectionActivities, result, "activities")
		d.notifier.Activity(ctx, result.Outcome.Status())
		results = append(results, result)
	}
	return results
}

// fetchActivities returns the activities to process in processing order.
func (d *Daily) fetchActivities(ctx context.Context, provider Provider) ([]domain.Activity, error) {
	if d.variant == Today {
		latest, err := provider.LastActivity(ctx)
		if err != nil || latest == nil {
			return nil, err
		}
		return []domain.Activity{*latest}, nil
	}

	activities, err := provider.Activities(ctx, 0, d.recent)
	if err != nil {
		return nil, err
	}
	slices.Reverse(activities)
	return activities, nil
}

func (d *Daily) ingestActivity(ctx context.Context, activity domain.Activity) domain.Result {
	if activity.Err != nil {
		return domain.Failed(activity.Err)
	}
	if !activity.HasKey() {
		return domain.Failed(fmt.Errorf("activity without activityId: %w", domain.ErrDecode))
	}
	outcome, err := d.gate.Insert(ctx, d.colls.Activities, activity.Document())
	if err != nil {
		return domain.Failed(err)
	}
	if outcome == domain.OutcomeInserted {
		d.notifier.Raw(ctx, activity.Payload)
	}
	return domain.Ok(outcome)
}

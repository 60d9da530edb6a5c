package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/observability"
	"example.com/healthsync/internal/store"
)

// BackfillReport counts what a backfill run did. Failures are counted per record;
// the run itself only stops on login failure, a failed monthly activity fetch or
// cancellation.
type BackfillReport struct {
	Year         int
	Months       int
	StatsFetched int
	Stats        map[domain.Outcome]int
	Activities   map[domain.Outcome]int
	FailedDays   []time.Time
}

func newBackfillReport(year int) BackfillReport {
	return BackfillReport{
		Year:       year,
		Stats:      make(map[domain.Outcome]int),
		Activities: make(map[domain.Outcome]int),
	}
}

// Backfill loads every day and activity of one calendar year. It publishes nothing.
type Backfill struct {
	login  Login
	colls  Collections
	window int
	gate   store.Gate
	opts   options
}

// NewBackfill constructs a Backfill. window is the number of recent activities
// fetched once per month before filtering by start date.
func NewBackfill(login Login, colls Collections, window int, opts ...Option) *Backfill {
	if window <= 0 {
		window = 366
	}
	return &Backfill{
		login:  login,
		colls:  colls,
		window: window,
		opts:   applyOptions(opts),
	}
}

// Run backfills year month by month. The partial report is returned alongside any
// error that aborted the run.
func (b *Backfill) Run(ctx context.Context, year int) (BackfillReport, error) {
	report := newBackfillReport(year)
	logger := b.opts.logger.With().Int("year", year).Logger()

	provider, err := b.login(ctx)
	if err != nil {
		observability.RecordFailure("login", string(domain.KindOf(err)))
		return report, fmt.Errorf("login: %w", err)
	}

	// The activity window is refetched every month; entries that cannot be placed in a
	// month are reported the first time they are seen only.
	unplaceable := make(map[string]struct{})
	for month := time.January; month <= time.December; month++ {
		monthLogger := logger.With().Str("month", month.String()).Logger()
		if err := b.statsForMonth(ctx, provider, year, month, &report, monthLogger); err != nil {
			return report, err
		}
		if err := b.activitiesForMonth(ctx, provider, year, month, &report, unplaceable, monthLogger); err != nil {
			return report, err
		}
		report.Months++
		monthLogger.Info().
			Int("stats_fetched", report.StatsFetched).
			Int("failed_days", len(report.FailedDays)).
			Msg("month backfilled")
	}
	return report, nil
}

func (b *Backfill) statsForMonth(ctx context.Context, provider Provider, year int, month time.Month, report *BackfillReport, logger zerolog.Logger) error {
	days := domain.DaysIn(year, month)
	for d := 1; d <= days; d++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("backfill %d-%02d: %w", year, month, err)
		}
		day := time.Date(year, month, d, 0, 0, 0, 0, b.opts.location)

		report.StatsFetched++
		result := b.ingestDay(ctx, provider, day)
		if result.Outcome == domain.OutcomeFailed && ctx.Err() != nil {
			return fmt.Errorf("backfill %s: %w", day.Format("2006-01-02"), ctx.Err())
		}
		report.Stats[result.Outcome]++
		if result.Outcome == domain.OutcomeFailed {
			report.FailedDays = append(report.FailedDays, day)
		}
		logResult(logger.With().Str("date", day.Format("2006-01-02")).Logger(), domain.CollectionHealthStats, result)
		record(domain.CollectionHealthStats, result, "stats")
	}
	return nil
}

func (b *Backfill) ingestDay(ctx context.Context, provider Provider, day time.Time) domain.Result {
	stats, err := provider.DailyStats(ctx, day)
	if err != nil {
		return domain.Failed(err)
	}
	if !stats.HasData() {
		return domain.Ok(domain.OutcomeNoData)
	}
	outcome, err := b.gate.Insert(ctx, b.colls.Stats, stats.Document())
	if err != nil {
		return domain.Failed(err)
	}
	return domain.Ok(outcome)
}

func (b *Backfill) activitiesForMonth(ctx context.Context, provider Provider, year int, month time.Month, report *BackfillReport, unplaceable map[string]struct{}, logger zerolog.Logger) error {
	activities, err := provider.Activities(ctx, 0, b.window)
	if err != nil {
		observability.RecordFailure("activities", string(domain.KindOf(err)))
		return fmt.Errorf("backfill activities %d-%02d: %w", year, month, err)
	}

	matched := 0
	for _, activity := range activities {
		err := activity.Err
		in := false
		if err == nil {
			in, err = activity.InMonth(year, month)
		}
		if err != nil {
			if _, seen := unplaceable[string(activity.Payload)]; seen {
				continue
			}
			unplaceable[string(activity.Payload)] = struct{}{}
			result := domain.Failed(err)
			report.Activities[result.Outcome]++
			logResult(logger.With().Int64("activity_id", activity.ID).Logger(), domain.CollectionActivities, result)
			record(domain.CollectionActivities, result, "activities")
			continue
		}
		if !in {
			continue
		}
		matched++

		var result domain.Result
		if !activity.HasKey() {
			result = domain.Failed(fmt.Errorf("activity without activityId: %w", domain.ErrDecode))
		} else if outcome, err := b.gate.Insert(ctx, b.colls.Activities, activity.Document()); err != nil {
			result = domain.Failed(err)
		} else {
			result = domain.Ok(outcome)
		}
		if result.Outcome == domain.OutcomeFailed && ctx.Err() != nil {
			return fmt.Errorf("backfill activity %d: %w", activity.ID, ctx.Err())
		}
		report.Activities[result.Outcome]++
		logResult(logger.With().Int64("activity_id", activity.ID).Logger(), domain.CollectionActivities, result)
		record(domain.CollectionActivities, result, "activities")
	}
	logger.Debug().Int("fetched", len(activities)).Int("matched", matched).Msg("activities filtered")
	return nil
}

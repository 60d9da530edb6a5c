package app

import (
	"context"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/ingest"
)

// RunDaily runs one daily ingest and returns an error only when the run aborted.
func RunDaily(ctx context.Context, flags Flags, job string, variant ingest.Variant) (err error) {
	cfg, logger, err := Setup(flags, job)
	if err != nil {
		return err
	}
	started := time.Now()
	defer func() { Finish(ctx, cfg, logger, job, started, err == nil) }()

	res, err := Open(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn().Err(cerr).Msg("release resources")
		}
	}()

	daily := ingest.NewDaily(res.Login, res.Collections, res.Notifier, variant, cfg.Ingest.RecentActivities,
		ingest.WithLogger(logger),
		ingest.WithLocation(cfg.Location()),
	)
	report, err := daily.Run(ctx)
	if err != nil {
		return err
	}

	inserted := 0
	for _, r := range report.Activities {
		if r.Outcome == domain.OutcomeInserted {
			inserted++
		}
	}
	logger.Info().
		Str("stats", report.Stats.Outcome.String()).
		Int("activities", len(report.Activities)).
		Int("activities_inserted", inserted).
		Dur("elapsed", time.Since(started)).
		Msg("daily ingest finished")
	return nil
}

// RunBackfill runs a backfill of year. It opens no broker.
func RunBackfill(ctx context.Context, flags Flags, job string, year int) (err error) {
	cfg, logger, err := Setup(flags, job)
	if err != nil {
		return err
	}
	started := time.Now()
	defer func() { Finish(ctx, cfg, logger, job, started, err == nil) }()

	res, err := Open(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := res.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn().Err(cerr).Msg("release resources")
		}
	}()

	backfill := ingest.NewBackfill(res.Login, res.Collections, cfg.Ingest.BackfillActivityWindow,
		ingest.WithLogger(logger),
		ingest.WithLocation(cfg.Location()),
	)
	report, err := backfill.Run(ctx, year)
	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.
		Int("year", year).
		Int("months", report.Months).
		Int("stats_fetched", report.StatsFetched).
		Int("stats_inserted", report.Stats[domain.OutcomeInserted]).
		Int("stats_skipped", report.Stats[domain.OutcomeSkipped]).
		Int("stats_no_data", report.Stats[domain.OutcomeNoData]).
		Int("stats_failed", report.Stats[domain.OutcomeFailed]).
		Int("activities_inserted", report.Activities[domain.OutcomeInserted]).
		Int("activities_skipped", report.Activities[domain.OutcomeSkipped]).
		Int("activities_failed", report.Activities[domain.OutcomeFailed]).
		Dur("elapsed", time.Since(started)).
		Msg("backfill finished")
	return err
}

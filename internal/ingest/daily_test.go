package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/store"
)

var march1 = time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)

func TestDailyTodayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := store.NewMemoryDatabase()
	provider := newStubProvider().
		withStats("2024-03-01").
		withActivity(9001, "2024-03-01 07:15:00")

	first := &recordingNotifier{}
	_, err := NewDaily(loginWith(provider), memoryCollections(db), first, Today, 0, testOptions(t, march1)...).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted}, first.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted}, first.activity)
	require.Len(t, first.raw, 2)

	second := &recordingNotifier{}
	report, err := NewDaily(loginWith(provider), memoryCollections(db), second, Today, 0, testOptions(t, march1)...).Run(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeSkipped, report.Stats.Outcome)
	require.Equal(t, []domain.StatusCode{domain.StatusSkipped}, second.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusSkipped}, second.activity)
	require.Empty(t, second.raw)

	require.Equal(t, 1, db.Memory(domain.CollectionHealthStats).Count(domain.NaturalKey{Field: domain.KeyFieldUUID, Value: "u-2024-03-01"}))
	require.Equal(t, 1, db.Memory(domain.CollectionActivities).Count(domain.NaturalKey{Field: domain.KeyFieldActivityID, Value: int64(9001)}))
}

func TestDailyStatsWithoutUUIDAreNeverStored(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider()
	provider.stats["2024-03-01"] = domain.DailyStats{Payload: []byte(`{"totalSteps":null}`)}
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Today, 0, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeNoData, report.Stats.Outcome)
	require.Equal(t, []domain.StatusCode{domain.StatusNoData}, notifier.stats)
	require.Empty(t, db.Memory(domain.CollectionHealthStats).Documents())
}

func TestDailyTodayWithoutActivityPublishesNoData(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().withStats("2024-03-01")
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Today, 0, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Activities, 1)
	require.Equal(t, domain.OutcomeNoData, report.Activities[0].Outcome)
	require.Equal(t, []domain.StatusCode{domain.StatusNoData}, notifier.activity)
	require.Equal(t, 1, provider.lastActivityHit)
}

func TestDailyYesterdayProcessesOldestFirst(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().
		withStats("2024-02-29").
		withActivity(303, "2024-02-29 18:00:00").
		withActivity(202, "2024-02-29 06:30:00").
		withActivity(101, "2024-02-27 12:00:00")
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Yesterday, 2, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, provider.statsCalls, 1)
	require.Equal(t, "2024-02-29", provider.statsCalls[0].Format("2006-01-02"))
	require.Equal(t, []int{2}, provider.activityLimits)

	require.Len(t, report.Activities, 2)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted, domain.StatusInserted}, notifier.activity)

	docs := db.Memory(domain.CollectionActivities).Documents()
	require.Len(t, docs, 2)
	require.Equal(t, int64(202), docs[0].Key.Value)
	require.Equal(t, int64(303), docs[1].Key.Value)
}

func TestDailyLoginFailurePublishesFailureOnBothTopics(t *testing.T) {
	db := store.NewMemoryDatabase()
	notifier := &recordingNotifier{}
	loginErr := errors.Join(domain.ErrAuthentication, errors.New("status 401"))

	_, err := NewDaily(failingLogin(loginErr), memoryCollections(db), notifier, Yesterday, 2, testOptions(t, march1)...).Run(context.Background())
	require.ErrorIs(t, err, domain.ErrAuthentication)
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.activity)
	require.Empty(t, db.Memory(domain.CollectionHealthStats).Documents())
}

func TestDailyProviderFailureIsReportedPerTopic(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().withActivity(9001, "2024-03-01 07:15:00")
	provider.statsErr["2024-03-01"] = errors.Join(domain.ErrTooManyRequests, errors.New("status 429"))
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Today, 0, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.KindRateLimited, report.Stats.Kind())
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted}, notifier.activity)
}

func TestDailyActivityFetchFailurePublishesFailure(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().withStats("2024-02-29")
	provider.activitiesErr = errors.Join(domain.ErrConnection, errors.New("connection reset"))
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Yesterday, 2, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted}, notifier.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.activity)
	require.Equal(t, domain.KindConnection, report.Activities[0].Kind())
}

func TestDailyStoreFailurePublishesFailure(t *testing.T) {
	provider := newStubProvider().
		withStats("2024-03-01").
		withActivity(9001, "2024-03-01 07:15:00")
	colls := Collections{
		Stats:      brokenCollection{name: domain.CollectionHealthStats, err: domain.ErrStorage},
		Activities: brokenCollection{name: domain.CollectionActivities, err: domain.ErrStorage},
	}
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), colls, notifier, Today, 0, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.KindStorage, report.Stats.Kind())
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.stats)
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.activity)
	require.Empty(t, notifier.raw)
}

func TestDailyActivityWithoutIDFails(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().withStats("2024-03-01").withActivity(0, "2024-03-01 07:15:00")
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Today, 0, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.KindDecode, report.Activities[0].Kind())
	require.Equal(t, []domain.StatusCode{domain.StatusFailed}, notifier.activity)
	require.Empty(t, db.Memory(domain.CollectionActivities).Documents())
}

func TestDailyYesterdayReportsUndecodableActivityAlone(t *testing.T) {
	db := store.NewMemoryDatabase()
	provider := newStubProvider().
		withStats("2024-02-29").
		withUndecodableActivity(`{"activityId":"x"}`).
		withActivity(202, "2024-02-29 06:30:00")
	notifier := &recordingNotifier{}

	report, err := NewDaily(loginWith(provider), memoryCollections(db), notifier, Yesterday, 2, testOptions(t, march1)...).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Activities, 2)
	require.Equal(t, []domain.StatusCode{domain.StatusInserted, domain.StatusFailed}, notifier.activity)
	require.Equal(t, domain.KindDecode, report.Activities[1].Kind())
	require.Len(t, db.Memory(domain.CollectionActivities).Documents(), 1)
}

func TestVariantString(t *testing.T) {
	require.Equal(t, "today", Today.String())
	require.Equal(t, "yesterday", Yesterday.String())
}

package ingest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/store"
)

type stubProvider struct {
	mu sync.Mutex

	stats         map[string]domain.DailyStats
	statsErr      map[string]error
	activities    []domain.Activity
	activitiesErr error
	onStats       func(day time.Time)

	statsCalls      []time.Time
	activityLimits  []int
	lastActivityHit int
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		stats:    make(map[string]domain.DailyStats),
		statsErr: make(map[string]error),
	}
}

func (p *stubProvider) withStats(date string) *stubProvider {
	uuid := "u-" + date
	p.stats[date] = domain.DailyStats{
		UUID:    uuid,
		Payload: []byte(fmt.Sprintf(`{"uuid":%q,"calendarDate":%q,"totalSteps":7421}`, uuid, date)),
	}
	return p
}

func (p *stubProvider) withActivity(id int64, start string) *stubProvider {
	p.activities = append(p.activities, domain.Activity{
		ID:             id,
		StartTimeLocal: start,
		Payload:        []byte(fmt.Sprintf(`{"activityId":%d,"startTimeLocal":%q}`, id, start)),
	})
	return p
}

func (p *stubProvider) withUndecodableActivity(raw string) *stubProvider {
	p.activities = append(p.activities, domain.Activity{
		Payload: []byte(raw),
		Err:     fmt.Errorf("decode activity: %w", domain.ErrDecode),
	})
	return p
}

func (p *stubProvider) DailyStats(_ context.Context, day time.Time) (domain.DailyStats, error) {
	p.mu.Lock()
	p.statsCalls = append(p.statsCalls, day)
	hook := p.onStats
	p.mu.Unlock()
	if hook != nil {
		hook(day)
	}

	date := day.Format("2006-01-02")
	if err := p.statsErr[date]; err != nil {
		return domain.DailyStats{}, err
	}
	stats := p.stats[date]
	stats.Date = day
	return stats, nil
}

func (p *stubProvider) Activities(_ context.Context, start, limit int) ([]domain.Activity, error) {
	p.mu.Lock()
	p.activityLimits = append(p.activityLimits, limit)
	p.mu.Unlock()
	if p.activitiesErr != nil {
		return nil, p.activitiesErr
	}
	end := min(start+limit, len(p.activities))
	if start >= end {
		return nil, nil
	}
	return append([]domain.Activity(nil), p.activities[start:end]...), nil
}

func (p *stubProvider) LastActivity(ctx context.Context) (*domain.Activity, error) {
	p.mu.Lock()
	p.lastActivityHit++
	p.mu.Unlock()
	if p.activitiesErr != nil {
		return nil, p.activitiesErr
	}
	if len(p.activities) == 0 {
		return nil, nil
	}
	latest := p.activities[0]
	return &latest, nil
}

func (p *stubProvider) statsCallsIn(month time.Month) int {
	n := 0
	for _, day := range p.statsCalls {
		if day.Month() == month {
			n++
		}
	}
	return n
}

func loginWith(p Provider) Login {
	return func(context.Context) (Provider, error) { return p, nil }
}

func failingLogin(err error) Login {
	return func(context.Context) (Provider, error) { return nil, err }
}

type recordingNotifier struct {
	stats    []domain.StatusCode
	activity []domain.StatusCode
	raw      []string
}

func (n *recordingNotifier) Stats(_ context.Context, code domain.StatusCode) {
	n.stats = append(n.stats, code)
}

func (n *recordingNotifier) Activity(_ context.Context, code domain.StatusCode) {
	n.activity = append(n.activity, code)
}

func (n *recordingNotifier) Raw(_ context.Context, payload []byte) {
	n.raw = append(n.raw, string(payload))
}

type brokenCollection struct {
	name string
	err  error
}

func (c brokenCollection) Name() string { return c.name }

func (c brokenCollection) Exists(context.Context, domain.NaturalKey) (bool, error) {
	return false, nil
}

func (c brokenCollection) Insert(context.Context, domain.Document) error { return c.err }

func memoryCollections(db *store.MemoryDatabase) Collections {
	return Collections{
		Stats:      db.Collection(domain.CollectionHealthStats),
		Activities: db.Collection(domain.CollectionActivities),
	}
}

func testOptions(t *testing.T, now time.Time) []Option {
	return []Option{
		WithLogger(zerolog.New(zerolog.NewTestWriter(t))),
		WithClock(func() time.Time { return now }),
		WithLocation(time.UTC),
	}
}

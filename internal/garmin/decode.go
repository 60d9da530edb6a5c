package garmin

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"example.com/healthsync/internal/domain"
)

func decodeDailyStats(day time.Time, body []byte) (domain.DailyStats, error) {
	stats := domain.DailyStats{Date: day}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return stats, nil
	}

	var head struct {
		UUID *string `json:"uuid"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return stats, fmt.Errorf("decode stats for %s: %w", day.Format(dateLayout), errors.Join(domain.ErrDecode, err))
	}

	stats.Payload = trimmed
	if head.UUID != nil {
		stats.UUID = *head.UUID
	}
	return stats, nil
}

// decodeActivities fails only when the list itself is malformed. A bad entry is kept
// in place with Err set so the caller can report it on its own.
func decodeActivities(body []byte) ([]domain.Activity, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("decode activities: %w", errors.Join(domain.ErrDecode, err))
	}

	activities := make([]domain.Activity, 0, len(raws))
	for i, raw := range raws {
		var head struct {
			ActivityID     int64  `json:"activityId"`
			StartTimeLocal string `json:"startTimeLocal"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			activities = append(activities, domain.Activity{
				Payload: []byte(raw),
				Err:     fmt.Errorf("decode activity %d: %w", i, errors.Join(domain.ErrDecode, err)),
			})
			continue
		}
		activities = append(activities, domain.Activity{
			ID:             head.ActivityID,
			StartTimeLocal: head.StartTimeLocal,
			Payload:        []byte(raw),
		})
	}
	return activities, nil
}

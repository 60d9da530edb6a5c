// Package domain defines the records moved by the ingest jobs and the outcome of each attempt.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Collection names inside the health database.
const (
	CollectionHealthStats = "health_stats"
	CollectionActivities  = "activities"
)

// Natural key fields used for existence checks.
const (
	KeyFieldUUID       = "uuid"
	KeyFieldActivityID = "activityId"
)

// StartTimeLayout is the provider's layout for startTimeLocal.
const StartTimeLayout = "2006-01-02 15:04:05"

// NaturalKey identifies a record by a single field equality.
type NaturalKey struct {
	Field string
	Value any
}

// Document is a record as handed to a store: a key plus the untouched provider payload.
type Document struct {
	Key     NaturalKey
	Payload json.RawMessage
}

// DailyStats is the provider summary for one calendar date.
type DailyStats struct {
	Date    time.Time
	UUID    string
	Payload json.RawMessage
}

// HasData reports whether the summary carries a usable natural key.
func (s DailyStats) HasData() bool {
	return s.UUID != "" && len(s.Payload) > 0
}

// Document converts the summary for storage.
func (s DailyStats) Document() Document {
	return Document{
		Key:     NaturalKey{Field: KeyFieldUUID, Value: s.UUID},
		Payload: s.Payload,
	}
}

// Activity is one recorded exercise session. Err is set when the provider's entry
// could not be decoded; such an activity is reported as failed and never stored.
type Activity struct {
	ID             int64
	StartTimeLocal string
	Payload        json.RawMessage
	Err            error
}

// HasKey reports whether the provider sent an activityId.
func (a Activity) HasKey() bool {
	return a.ID != 0
}

// Document converts the activity for storage.
func (a Activity) Document() Document {
	return Document{
		Key:     NaturalKey{Field: KeyFieldActivityID, Value: a.ID},
		Payload: a.Payload,
	}
}

// StartTime parses startTimeLocal as provider-local wall time.
func (a Activity) StartTime() (time.Time, error) {
	ts, err := time.Parse(StartTimeLayout, a.StartTimeLocal)
	if err != nil {
		return time.Time{}, fmt.Errorf("activity %d: start time %q: %w", a.ID, a.StartTimeLocal, ErrDecode)
	}
	return ts, nil
}

// InMonth reports whether the local start time falls in the given year and month.
func (a Activity) InMonth(year int, month time.Month) (bool, error) {
	ts, err := a.StartTime()
	if err != nil {
		return false, err
	}
	return ts.Year() == year && ts.Month() == month, nil
}

// DaysIn returns the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

package models

import (
	"fmt"
	"time"
)

// MinValidEpoch is the earliest timestamp we consider plausible for a
// reading. The device clock starts at the Unix epoch after a cold boot
// without NTP, so anything before 2024-01-01 UTC is garbage.
var MinValidEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MaxFutureSkew is how far ahead of the current clock a reading's
// timestamp may sit before it is rejected as implausible.
const MaxFutureSkew = time.Hour

// Reading is a single timestamped illuminance sample. Immutable once
// created.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Lux       float64   `json:"lux"`
}

// NewReading creates a reading with the given sample time.
func NewReading(ts time.Time, lux float64) Reading {
	return Reading{Timestamp: ts, Lux: lux}
}

// PlausibleAt reports whether the reading's timestamp is believable
// relative to now: at or after MinValidEpoch and no more than
// MaxFutureSkew in the future.
func (r Reading) PlausibleAt(now time.Time) bool {
	if r.Timestamp.Before(MinValidEpoch) {
		return false
	}
	if r.Timestamp.After(now.Add(MaxFutureSkew)) {
		return false
	}
	return true
}

func (r Reading) String() string {
	return fmt.Sprintf("Timestamp: %s, Lux: %.2f",
		r.Timestamp.UTC().Format(time.RFC3339), r.Lux)
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DayLayout is the calendar-day key used for partitions and dedup history.
const DayLayout = "2006-01-02"

// Item is an immutable paper record produced by the feed fetcher.
// Field names match the JSON lines written to the raw snapshot.
type Item struct {
	ID          string    `json:"paper_id"`
	Title       string    `json:"title"`
	Body        string    `json:"summary"`
	Authors     []string  `json:"authors"`
	Link        string    `json:"link"`
	Category    string    `json:"category"`
	PublishedAt Timestamp `json:"published"`
	UpdatedAt   Timestamp `json:"updated"`
}

// DayKey formats t as a partition key in its own location.
func DayKey(t time.Time) string {
	return t.Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD key into midnight UTC.
func ParseDay(value string) (time.Time, error) {
	day, err := time.Parse(DayLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day %q: %w", value, err)
	}
	return day, nil
}

// CategoryCounts tallies items per category.
func CategoryCounts(items []Item) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Category]++
	}
	return counts
}

// Timestamp is a time.Time that also decodes the naive ISO form
// (no zone, interpreted as UTC) found in older snapshots.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// MarshalJSON writes RFC3339 (UTC) or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// UnmarshalJSON accepts RFC3339, naive ISO timestamps and null.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unsupported format %q", raw)
}

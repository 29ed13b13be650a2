// Package dedup tracks which item ids have already been processed per day.
package dedup

import (
	"fmt"
	"time"

	"ArxivDigest/internal/domain"
)

// StateStore persists the run state record.
type StateStore interface {
	LoadState() (domain.RunState, bool, error)
	SaveState(state domain.RunState) error
}

// Tracker loads, projects and persists the dedup history.
type Tracker struct {
	store StateStore
	now   func() time.Time
}

// NewTracker builds a tracker; now defaults to time.Now.
func NewTracker(store StateStore, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, now: now}
}

// Load returns the persisted state or an empty one when nothing has been
// written yet. An unreadable state is fatal: defaulting would resend
// already-notified items.
func (t *Tracker) Load() (domain.RunState, error) {
	state, ok, err := t.store.LoadState()
	if err != nil {
		return domain.RunState{}, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return domain.NewRunState(), nil
	}
	for day := range state.SeenByDay {
		if _, err := domain.ParseDay(day); err != nil {
			return domain.RunState{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
		}
	}
	return state, nil
}

// Save persists state.
func (t *Tracker) Save(state domain.RunState) error {
	if err := t.store.SaveState(state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// SeenSet projects the ids recorded within the retention window ending at
// the tracker's current day.
func (t *Tracker) SeenSet(state domain.RunState, retentionDays int) map[string]struct{} {
	return SeenSet(state, retentionDays, t.now())
}

// Record appends the ids of items under day and stamps the run time.
func (t *Tracker) Record(state domain.RunState, day string, items []domain.Item) domain.RunState {
	return Record(state, day, items, t.now())
}

// SeenSet unions seen ids for every day d with today - d <= retentionDays.
// Days outside the window are skipped but never removed from state.
func SeenSet(state domain.RunState, retentionDays int, today time.Time) map[string]struct{} {
	todayKey := domain.DayKey(today)
	cutoff, err := domain.ParseDay(todayKey)
	if err != nil {
		return map[string]struct{}{}
	}
	cutoff = cutoff.AddDate(0, 0, -retentionDays)

	seen := make(map[string]struct{})
	for day, ids := range state.SeenByDay {
		d, err := domain.ParseDay(day)
		if err != nil || d.Before(cutoff) {
			continue
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	return seen
}

// Record returns a copy of state with every item id added to day. Ids
// already present for that day are not repeated; existing ids are never
// dropped.
func Record(state domain.RunState, day string, items []domain.Item, now time.Time) domain.RunState {
	next := state.Clone()
	existing := make(map[string]struct{}, len(next.SeenByDay[day])+len(items))
	for _, id := range next.SeenByDay[day] {
		existing[id] = struct{}{}
	}

	ids := next.SeenByDay[day]
	if ids == nil {
		ids = []string{}
	}
	for _, item := range items {
		if _, ok := existing[item.ID]; ok {
			continue
		}
		existing[item.ID] = struct{}{}
		ids = append(ids, item.ID)
	}
	next.SeenByDay[day] = ids

	stamp := domain.NewTimestamp(now.UTC())
	next.LastRunAt = &stamp
	return next
}

// Delta returns the items whose id is not in seen, preserving order.
func Delta(items []domain.Item, seen map[string]struct{}) []domain.Item {
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ID]; ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

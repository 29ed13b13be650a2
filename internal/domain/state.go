package domain

import (
	"sort"
	"time"
)

// RunState is the process-wide dedup history. SeenByDay only ever grows;
// retention is applied at read time.
type RunState struct {
	SeenByDay map[string][]string `json:"seen_by_date"`
	LastRunAt *Timestamp          `json:"last_run_date"`
}

// NewRunState returns the state used when nothing has been persisted yet.
func NewRunState() RunState {
	return RunState{SeenByDay: map[string][]string{}}
}

// Clone deep-copies the state so callers never share slices.
func (s RunState) Clone() RunState {
	out := RunState{SeenByDay: make(map[string][]string, len(s.SeenByDay))}
	for day, ids := range s.SeenByDay {
		out.SeenByDay[day] = append([]string(nil), ids...)
	}
	if s.LastRunAt != nil {
		ts := *s.LastRunAt
		out.LastRunAt = &ts
	}
	return out
}

// Days returns the recorded day keys in ascending order.
func (s RunState) Days() []string {
	days := make([]string, 0, len(s.SeenByDay))
	for day := range s.SeenByDay {
		days = append(days, day)
	}
	sort.Strings(days)
	return days
}

// LastRun returns the last run time or the zero time.
func (s RunState) LastRun() time.Time {
	if s.LastRunAt == nil {
		return time.Time{}
	}
	return s.LastRunAt.Time
}

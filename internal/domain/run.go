package domain

import "time"

// RunStatus enumerates the milestones of a single day's run.
type RunStatus string

const (
	StatusInit          RunStatus = "init"
	StatusSnapshotReady RunStatus = "snapshot_ready"
	StatusDeltaComputed RunStatus = "delta_computed"
	StatusChunksReady   RunStatus = "chunks_ready"
	StatusOverallReady  RunStatus = "overall_ready"
	StatusDelivered     RunStatus = "delivered"
	StatusSkipped       RunStatus = "skipped"
	StatusFailed        RunStatus = "failed"
)

// Report describes how far a run got and what it reused.
type Report struct {
	Day            string
	Status         RunStatus
	SnapshotReused bool
	Items          int
	NewItems       int
	ExpectedChunks int
	Chunks         []ChunkSummary
	CachedChunks   int
	Overall        *DigestContent
	OverallReused  bool
	Notified       bool
	Degraded       []string
}

// Contents returns the chunk payloads in index order.
func (r Report) Contents() []DigestContent {
	out := make([]DigestContent, 0, len(r.Chunks))
	for _, chunk := range r.Chunks {
		out = append(out, chunk.Content)
	}
	return out
}

// RunRecord is one row of the run ledger.
type RunRecord struct {
	ID           string
	Day          string
	Status       RunStatus
	Items        int
	NewItems     int
	Chunks       int
	CachedChunks int
	Overall      bool
	Notified     bool
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

package ports

import (
	"context"
	"time"

	"ArxivDigest/internal/domain"
)

// FeedFetcher pulls the items published on day for the given categories.
// A call either returns the whole result or an error.
type FeedFetcher interface {
	Fetch(ctx context.Context, categories []string, day time.Time) ([]domain.Item, error)
}

// Completion is the outcome of one text-generation call. Content is nil
// when Raw could not be decoded directly; callers fall back to extraction.
type Completion struct {
	Raw     string
	Content *domain.DigestContent
}

// ChunkSummarizer summarizes one batch of items.
type ChunkSummarizer interface {
	Summarize(ctx context.Context, day string, items []domain.Item) (Completion, error)
}

// OverallSummarizer condenses the ordered chunk payloads of a day.
type OverallSummarizer interface {
	SummarizeOverall(ctx context.Context, day string, chunks []domain.DigestContent) (Completion, error)
}

// Notifier delivers a finished digest.
type Notifier interface {
	Notify(ctx context.Context, digest domain.Digest) error
}

// RunLedger keeps an audit trail of pipeline runs.
type RunLedger interface {
	Record(ctx context.Context, record domain.RunRecord) error
	Recent(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/store"
)

const testDay = "2024-01-05"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDigests(t *testing.T) *store.Digests {
	t.Helper()
	fs, err := store.NewFS(t.TempDir())
	require.NoError(t, err)
	return store.NewDigests(fs)
}

func makeItems(n int) []domain.Item {
	categories := []string{"cs.AI", "cs.LG", "cs.SE"}
	out := make([]domain.Item, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Item{
			ID:       fmt.Sprintf("2401.%05d", i),
			Title:    fmt.Sprintf("Paper %d", i),
			Body:     "abstract",
			Authors:  []string{"A. Author"},
			Link:     fmt.Sprintf("https://arxiv.org/abs/2401.%05d", i),
			Category: categories[i%len(categories)],
		})
	}
	return out
}

func testClock() func() time.Time {
	return func() time.Time { return time.Date(2024, time.January, 6, 9, 0, 0, 0, time.UTC) }
}

func testDate() time.Time {
	return time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC)
}

type fakeFetcher struct {
	items []domain.Item
	err   error
	block bool
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context, _ []string, _ time.Time) ([]domain.Item, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.items, f.err
}

// fakeSummarizer answers with a payload naming the first item of each batch.
// failAt makes the n-th call (1-based) fail; raw replaces the parsed answer.
type fakeSummarizer struct {
	calls   int
	batches [][]domain.Item
	failAt  int
	raw     string
}

func (f *fakeSummarizer) Summarize(_ context.Context, day string, items []domain.Item) (ports.Completion, error) {
	f.calls++
	f.batches = append(f.batches, items)
	if f.failAt == f.calls {
		return ports.Completion{}, fmt.Errorf("upstream returned 502")
	}
	if f.raw != "" {
		return ports.Completion{Raw: f.raw}, nil
	}
	content := domain.DigestContent{
		Summary:  fmt.Sprintf("%s batch from %s (%d items)", day, items[0].ID, len(items)),
		Keywords: []string{items[0].Category},
		Themes:   []domain.Theme{},
	}
	return completionOf(content), nil
}

type fakeOverall struct {
	calls  int
	inputs [][]domain.DigestContent
	raw    string
	err    error
}

func (f *fakeOverall) SummarizeOverall(_ context.Context, day string, chunks []domain.DigestContent) (ports.Completion, error) {
	f.calls++
	f.inputs = append(f.inputs, chunks)
	if f.err != nil {
		return ports.Completion{}, f.err
	}
	if f.raw != "" {
		return ports.Completion{Raw: f.raw}, nil
	}
	return completionOf(domain.DigestContent{
		Summary:  fmt.Sprintf("%s overall of %d chunks", day, len(chunks)),
		Keywords: []string{"overall"},
		Themes:   []domain.Theme{},
	}), nil
}

func completionOf(content domain.DigestContent) ports.Completion {
	raw, _ := json.Marshal(content)
	return ports.Completion{Raw: string(raw), Content: &content}
}

type fakeNotifier struct {
	digests []domain.Digest
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, digest domain.Digest) error {
	f.digests = append(f.digests, digest)
	return f.err
}

type fakeLedger struct {
	records []domain.RunRecord
	err     error
}

func (f *fakeLedger) Record(_ context.Context, record domain.RunRecord) error {
	f.records = append(f.records, record)
	return f.err
}

func (f *fakeLedger) Recent(_ context.Context, limit int) ([]domain.RunRecord, error) {
	if limit > len(f.records) {
		limit = len(f.records)
	}
	return f.records[:limit], nil
}

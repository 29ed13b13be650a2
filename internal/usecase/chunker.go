package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// DefaultChunkSize is the number of items per summarizer call.
const DefaultChunkSize = 20

var errNoSummarizer = errors.New("chunk summarizer is not configured")

// ChunkStore persists the per-chunk artifacts.
type ChunkStore interface {
	SaveResponse(day string, index int, raw string) error
	SaveChunk(chunk domain.ChunkSummary) error
}

// ChunkRunnerDeps wires the chunk runner.
type ChunkRunnerDeps struct {
	Summarizer ports.ChunkSummarizer
	Store      ChunkStore
	Size       int
	Timeout    time.Duration
	Logger     *slog.Logger
}

// ChunkRunner splits a day's items into fixed-size batches and summarizes
// the batches that have no cached result, persisting each one as soon as
// it is produced.
type ChunkRunner struct {
	summarizer ports.ChunkSummarizer
	store      ChunkStore
	size       int
	timeout    time.Duration
	logger     *slog.Logger
}

// NewChunkRunner builds a runner; Size defaults to DefaultChunkSize.
func NewChunkRunner(deps ChunkRunnerDeps) *ChunkRunner {
	size := deps.Size
	if size <= 0 {
		size = DefaultChunkSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkRunner{
		summarizer: deps.Summarizer,
		store:      deps.Store,
		size:       size,
		timeout:    deps.Timeout,
		logger:     logger,
	}
}

// Size returns the batch size.
func (r *ChunkRunner) Size() int {
	return r.size
}

// Batches partitions items into contiguous slices of at most size items;
// batch i (1-based) covers items[(i-1)*size : i*size].
func Batches(items []domain.Item, size int) [][]domain.Item {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	batches := make([][]domain.Item, 0, ExpectedChunks(len(items), size))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}

// ExpectedChunks is ceil(count / size).
func ExpectedChunks(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

// Run returns one summary per batch in index order. Cached batches are
// reused without calling the summarizer. A batch whose output cannot be
// turned into a payload aborts the run; batches persisted before it stay
// on disk for the next attempt.
func (r *ChunkRunner) Run(ctx context.Context, day string, items []domain.Item, cached map[int]domain.DigestContent) ([]domain.ChunkSummary, error) {
	batches := Batches(items, r.size)
	if len(batches) == 0 {
		return nil, nil
	}

	results := make([]domain.ChunkSummary, 0, len(batches))
	for i, batch := range batches {
		index := i + 1
		if content, ok := cached[index]; ok {
			r.logger.Info("using cached chunk summary", "day", day, "chunk", index, "total", len(batches))
			results = append(results, domain.ChunkSummary{Day: day, ChunkIndex: index, Content: content})
			continue
		}

		r.logger.Info("summarizing chunk", "day", day, "chunk", index, "total", len(batches), "items", len(batch))
		content, err := r.summarize(ctx, day, index, batch)
		if err != nil {
			return results, &domain.StepError{Step: domain.StepSummarize, Chunk: index, Err: err}
		}

		chunk := domain.ChunkSummary{Day: day, ChunkIndex: index, Content: content}
		if err := r.store.SaveChunk(chunk); err != nil {
			return results, fmt.Errorf("persist chunk %d: %w", index, err)
		}
		results = append(results, chunk)
	}
	return results, nil
}

func (r *ChunkRunner) summarize(ctx context.Context, day string, index int, batch []domain.Item) (domain.DigestContent, error) {
	if r.summarizer == nil {
		return domain.DigestContent{}, errNoSummarizer
	}

	callCtx, cancel := withTimeout(ctx, r.timeout)
	defer cancel()

	completion, err := r.summarizer.Summarize(callCtx, day, batch)
	if err != nil {
		return domain.DigestContent{}, err
	}
	if err := r.store.SaveResponse(day, index, completion.Raw); err != nil {
		return domain.DigestContent{}, fmt.Errorf("persist response: %w", err)
	}
	return resolveContent(r.logger, completion, "chunk", index)
}

// resolveContent prefers the adapter's direct parse and falls back to
// best-effort extraction from the raw text.
func resolveContent(logger *slog.Logger, completion ports.Completion, kind string, index int) (domain.DigestContent, error) {
	if completion.Content != nil && !completion.Content.IsEmpty() {
		return completion.Content.Normalize(), nil
	}
	logger.Warn("direct JSON parse failed, extracting payload", "kind", kind, "chunk", index)
	content, err := domain.ExtractContent(completion.Raw)
	if err != nil {
		return domain.DigestContent{}, fmt.Errorf("extract payload: %w", err)
	}
	return content, nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

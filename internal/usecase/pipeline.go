package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"ArxivDigest/internal/dedup"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

var errNoFetcher = errors.New("feed fetcher is not configured")

// DigestStore is the subset of the digest repository the pipeline needs.
type DigestStore interface {
	ChunkStore
	dedup.StateStore
	LoadSnapshot(day string) ([]domain.Item, bool, error)
	SaveSnapshot(day string, items []domain.Item) error
	LoadChunks(day string) (map[int]domain.DigestContent, error)
	LoadOverall(day string) (*domain.DigestContent, error)
	SaveOverall(day string, content domain.DigestContent) error
	SaveOverallResponse(day, raw string) error
}

// Timeouts bound the externally blocking steps. Zero disables the bound.
type Timeouts struct {
	Fetch     time.Duration
	Summarize time.Duration
	Notify    time.Duration
}

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Summarizers and Notifier may be nil; the matching stage is then skipped.
// Tracker defaults to one backed by Store.
type PipelineDeps struct {
	Fetcher           ports.FeedFetcher
	Store             DigestStore
	Tracker           *dedup.Tracker
	ChunkSummarizer   ports.ChunkSummarizer
	OverallSummarizer ports.OverallSummarizer
	Notifier          ports.Notifier
	Ledger            ports.RunLedger
	Categories        []string
	ChunkSize         int
	RetentionDays     int
	Timeouts          Timeouts
	Logger            *slog.Logger
	Now               func() time.Time
	NewID             func() string
}

// Pipeline drives a single day from raw snapshot to delivered digest.
// Every step re-derives its progress from disk so an interrupted run can
// be re-triggered safely.
type Pipeline struct {
	fetcher           ports.FeedFetcher
	store             DigestStore
	tracker           *dedup.Tracker
	chunks            *ChunkRunner
	chunkSummarizer   ports.ChunkSummarizer
	overallSummarizer ports.OverallSummarizer
	notifier          ports.Notifier
	ledger            ports.RunLedger
	categories        []string
	retentionDays     int
	timeouts          Timeouts
	logger            *slog.Logger
	now               func() time.Time
	newID             func() string
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pipeline")

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	tracker := deps.Tracker
	if tracker == nil {
		tracker = dedup.NewTracker(deps.Store, now)
	}

	return &Pipeline{
		fetcher: deps.Fetcher,
		store:   deps.Store,
		tracker: tracker,
		chunks: NewChunkRunner(ChunkRunnerDeps{
			Summarizer: deps.ChunkSummarizer,
			Store:      deps.Store,
			Size:       deps.ChunkSize,
			Timeout:    deps.Timeouts.Summarize,
			Logger:     logger,
		}),
		chunkSummarizer:   deps.ChunkSummarizer,
		overallSummarizer: deps.OverallSummarizer,
		notifier:          deps.Notifier,
		ledger:            deps.Ledger,
		categories:        deps.Categories,
		retentionDays:     deps.RetentionDays,
		timeouts:          deps.Timeouts,
		logger:            logger,
		now:               now,
		newID:             newID,
	}
}

// ProcessDay runs the day containing t (in t's location) as far as the
// configured collaborators allow. The report is filled in even on error
// and describes the last milestone reached.
func (p *Pipeline) ProcessDay(ctx context.Context, t time.Time) (domain.Report, error) {
	started := p.now()
	report, err := p.run(ctx, domain.DayKey(t))
	p.recordRun(ctx, report, err, started)
	if err != nil {
		return report, fmt.Errorf("process day %s: %w", report.Day, err)
	}
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, day string) (domain.Report, error) {
	report := domain.Report{Day: day, Status: domain.StatusInit}

	state, err := p.tracker.Load()
	if err != nil {
		return report, err
	}

	items, reused, err := p.snapshot(ctx, day)
	if err != nil {
		return report, err
	}
	report.Items = len(items)
	report.SnapshotReused = reused
	report.Status = domain.StatusSnapshotReady

	cached, err := p.store.LoadChunks(day)
	if err != nil {
		return report, fmt.Errorf("load chunk summaries: %w", err)
	}
	report.ExpectedChunks = ExpectedChunks(len(items), p.chunks.Size())

	var delta []domain.Item
	if reused && len(cached) < report.ExpectedChunks {
		p.logger.Info("summary chunks incomplete, reprocessing snapshot",
			"day", day, "cached", len(cached), "expected", report.ExpectedChunks)
		delta = items
	} else {
		delta = dedup.Delta(items, p.tracker.SeenSet(state, p.retentionDays))
	}
	report.NewItems = len(delta)
	report.Status = domain.StatusDeltaComputed
	p.logger.Info("delta computed", "day", day, "items", len(items), "new", len(delta))

	if err := p.tracker.Save(p.tracker.Record(state, day, delta)); err != nil {
		return report, err
	}

	if len(delta) == 0 {
		if len(cached) == 0 {
			p.logger.Info("nothing new and nothing cached, skipping", "day", day)
			report.Status = domain.StatusSkipped
			return report, nil
		}
		p.logger.Info("no new items, reusing existing summaries", "day", day, "chunks", len(cached))
		report.Chunks = orderedChunks(day, cached)
		report.CachedChunks = len(report.Chunks)
	} else {
		if p.chunkSummarizer == nil {
			p.logger.Warn("chunk summarizer not configured, skipping summarization", "day", day)
			report.Degraded = append(report.Degraded, domain.StepSummarize)
			return report, nil
		}
		chunks, err := p.chunks.Run(ctx, day, delta, cached)
		report.Chunks = chunks
		report.CachedChunks = countCached(chunks, cached)
		if err != nil {
			return report, err
		}
	}
	report.Status = domain.StatusChunksReady

	overall, reusedOverall, err := p.overall(ctx, day, report.Contents())
	if err != nil {
		return report, err
	}
	if overall != nil {
		report.Overall = overall
		report.OverallReused = reusedOverall
		report.Status = domain.StatusOverallReady
	} else {
		report.Degraded = append(report.Degraded, domain.StepOverall)
	}

	if p.notifier == nil {
		p.logger.Warn("notifier not configured, skipping delivery", "day", day)
		report.Degraded = append(report.Degraded, domain.StepNotify)
		return report, nil
	}

	digest := domain.Digest{
		Day:            day,
		Chunks:         report.Contents(),
		Overall:        report.Overall,
		CategoryCounts: domain.CategoryCounts(items),
	}
	notifyCtx, cancel := withTimeout(ctx, p.timeouts.Notify)
	defer cancel()
	if err := p.notifier.Notify(notifyCtx, digest); err != nil {
		return report, &domain.StepError{Step: domain.StepNotify, Err: err}
	}
	report.Notified = true
	report.Status = domain.StatusDelivered
	p.logger.Info("digest delivered", "day", day, "chunks", len(report.Chunks), "overall", report.Overall != nil)
	return report, nil
}

// snapshot returns the day's items, fetching and persisting them only when
// no snapshot exists yet.
func (p *Pipeline) snapshot(ctx context.Context, day string) ([]domain.Item, bool, error) {
	items, ok, err := p.store.LoadSnapshot(day)
	if err != nil {
		return nil, false, fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		p.logger.Info("loaded snapshot from storage", "day", day, "items", len(items))
		return items, true, nil
	}

	if p.fetcher == nil {
		return nil, false, &domain.StepError{Step: domain.StepFetch, Err: errNoFetcher}
	}
	date, err := domain.ParseDay(day)
	if err != nil {
		return nil, false, err
	}

	fetchCtx, cancel := withTimeout(ctx, p.timeouts.Fetch)
	defer cancel()
	items, err = p.fetcher.Fetch(fetchCtx, p.categories, date)
	if err != nil {
		return nil, false, &domain.StepError{Step: domain.StepFetch, Err: err}
	}
	if err := p.store.SaveSnapshot(day, items); err != nil {
		return nil, false, fmt.Errorf("save snapshot: %w", err)
	}
	p.logger.Info("fetched snapshot", "day", day, "items", len(items))
	return items, false, nil
}

// overall returns the stored overall summary or computes one. A nil result
// without error means the summarizer is not configured.
func (p *Pipeline) overall(ctx context.Context, day string, chunks []domain.DigestContent) (*domain.DigestContent, bool, error) {
	existing, err := p.store.LoadOverall(day)
	if err != nil {
		return nil, false, fmt.Errorf("load overall summary: %w", err)
	}
	if existing != nil {
		p.logger.Info("using cached overall summary", "day", day)
		return existing, true, nil
	}
	if p.overallSummarizer == nil {
		p.logger.Warn("overall summarizer not configured, skipping overall summary", "day", day)
		return nil, false, nil
	}

	callCtx, cancel := withTimeout(ctx, p.timeouts.Summarize)
	defer cancel()

	p.logger.Info("summarizing overall", "day", day, "chunks", len(chunks))
	completion, err := p.overallSummarizer.SummarizeOverall(callCtx, day, chunks)
	if err != nil {
		return nil, false, &domain.StepError{Step: domain.StepOverall, Err: err}
	}
	if err := p.store.SaveOverallResponse(day, completion.Raw); err != nil {
		return nil, false, fmt.Errorf("persist overall response: %w", err)
	}
	content, err := resolveContent(p.logger, completion, "overall", 0)
	if err != nil {
		return nil, false, &domain.StepError{Step: domain.StepOverall, Err: err}
	}
	if err := p.store.SaveOverall(day, content); err != nil {
		return nil, false, fmt.Errorf("persist overall summary: %w", err)
	}
	return &content, false, nil
}

func (p *Pipeline) recordRun(ctx context.Context, report domain.Report, runErr error, started time.Time) {
	if p.ledger == nil {
		return
	}
	record := domain.RunRecord{
		ID:           p.newID(),
		Day:          report.Day,
		Status:       report.Status,
		Items:        report.Items,
		NewItems:     report.NewItems,
		Chunks:       len(report.Chunks),
		CachedChunks: report.CachedChunks,
		Overall:      report.Overall != nil,
		Notified:     report.Notified,
		StartedAt:    started.UTC(),
		FinishedAt:   p.now().UTC(),
	}
	if runErr != nil {
		record.Status = domain.StatusFailed
		record.Error = runErr.Error()
	}
	if err := p.ledger.Record(context.WithoutCancel(ctx), record); err != nil {
		p.logger.Warn("record run in ledger", "day", report.Day, "error", err)
	}
}

func orderedChunks(day string, cached map[int]domain.DigestContent) []domain.ChunkSummary {
	indexes := make([]int, 0, len(cached))
	for idx := range cached {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]domain.ChunkSummary, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, domain.ChunkSummary{Day: day, ChunkIndex: idx, Content: cached[idx]})
	}
	return out
}

func countCached(chunks []domain.ChunkSummary, cached map[int]domain.DigestContent) int {
	n := 0
	for _, chunk := range chunks {
		if _, ok := cached[chunk.ChunkIndex]; ok {
			n++
		}
	}
	return n
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/infrastructure/email"
	"ArxivDigest/internal/infrastructure/httpapi"
	"ArxivDigest/internal/infrastructure/llm"
	"ArxivDigest/internal/infrastructure/parser"
	"ArxivDigest/internal/infrastructure/scheduler"
	"ArxivDigest/internal/infrastructure/storage"
	"ArxivDigest/internal/infrastructure/telegram"
	"ArxivDigest/internal/logging"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/scanner"
	"ArxivDigest/internal/store"
	"ArxivDigest/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// ErrLedgerDisabled is returned by History when no ledger path is configured.
var ErrLedgerDisabled = errors.New("run ledger is not configured")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	fs       *store.FS
	digests  *store.Digests
	ledger   *storage.SQLiteLedger
	pipeline *usecase.Pipeline
	closers  []func() error
}

// New builds the application from configuration. Stages whose credentials
// are missing are left unwired and run in degraded mode.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	fs, err := store.NewFS(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.fs = fs
	a.digests = store.NewDigests(fs)

	deps := usecase.PipelineDeps{
		Fetcher:       a.newFetcher(),
		Store:         a.digests,
		Categories:    cfg.Categories,
		ChunkSize:     cfg.Pipeline.ChunkSize,
		RetentionDays: cfg.Storage.RetentionDays,
		Timeouts: usecase.Timeouts{
			Fetch:     cfg.Fetch.Timeout,
			Summarize: cfg.Pipeline.SummarizeTimeout,
			Notify:    cfg.Pipeline.NotifyTimeout,
		},
		Logger: baseLogger,
	}

	summarizer, err := a.newSummarizer(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if summarizer != nil {
		deps.ChunkSummarizer = summarizer
		deps.OverallSummarizer = summarizer
	} else {
		baseLogger.Warn("summarizer credentials missing, runs stop after delta computation", "provider", cfg.Summarizer.Provider)
	}

	if notifier := a.newNotifier(); notifier != nil {
		deps.Notifier = notifier
	} else {
		baseLogger.Warn("no notification channel configured, digests are stored only")
	}

	if cfg.Storage.LedgerPath != "" {
		ledger, err := storage.OpenSQLiteLedger(cfg.Storage.LedgerPath)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("init run ledger: %w", err)
		}
		a.ledger = ledger
		a.closers = append(a.closers, ledger.Close)
		deps.Ledger = ledger
	}

	a.pipeline = usecase.NewPipeline(deps)
	return a, nil
}

func (a *Application) newFetcher() ports.FeedFetcher {
	registry := scanner.NewRegistry(
		parser.NewArxivAPIScanner(nil, a.cfg.Fetch.APIURL),
		parser.NewArxivListingScanner(nil),
	)
	return parser.NewStrategySource(registry, a.cfg.Fetch.Strategy, a.cfg.Fetch.Endpoints, a.logger.With("component", "source"))
}

func (a *Application) newSummarizer(ctx context.Context) (*llm.Summarizer, error) {
	cfg := a.cfg.Summarizer
	if !cfg.Enabled() {
		return nil, nil
	}

	var completer llm.Completer
	switch cfg.Provider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.Gemini.APIKey)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		completer = client
	default:
		completer = llm.NewOpenAIClient(cfg.OpenAI, a.cfg.Pipeline.SummarizeTimeout)
	}

	chunkModel, overallModel := cfg.Models()
	return llm.NewSummarizer(completer, chunkModel, overallModel, cfg.Language, a.logger), nil
}

func (a *Application) newNotifier() *usecase.MultiNotifier {
	var targets []usecase.NamedNotifier
	if cfg := a.cfg.Notifications.Email; cfg.Enabled() {
		targets = append(targets, usecase.NamedNotifier{Name: "email", Notifier: email.NewNotifier(cfg)})
	}
	if cfg := a.cfg.Notifications.Telegram; cfg.Enabled() {
		targets = append(targets, usecase.NamedNotifier{Name: "telegram", Notifier: telegram.NewNotifier(cfg.BotToken, cfg.ChatID)})
	}
	return usecase.NewMultiNotifier(a.logger, targets...)
}

// DefaultDay is the day a manual run processes when none is given:
// yesterday in the configured timezone.
func (a *Application) DefaultDay() time.Time {
	return usecase.TargetDay(time.Now(), a.cfg.Scheduler.Location())
}

// RunOnce processes a single day.
func (a *Application) RunOnce(ctx context.Context, day time.Time) (domain.Report, error) {
	return a.pipeline.ProcessDay(ctx, day)
}

// Migrate moves files from the legacy flat layout into partitions.
func (a *Application) Migrate() ([]store.Move, error) {
	return a.fs.MigrateLegacy()
}

// History lists the most recent ledger entries.
func (a *Application) History(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if a.ledger == nil {
		return nil, ErrLedgerDisabled
	}
	return a.ledger.Recent(ctx, limit)
}

// Serve runs the cron trigger and, when an address is configured, the
// status API until ctx is cancelled or one of them fails.
func (a *Application) Serve(ctx context.Context) error {
	location := a.cfg.Scheduler.Location()
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, location, a.logger)
	jobs := usecase.NewScheduler(driver, a.pipeline, location, a.logger)

	g, gCtx := errgroup.WithContext(ctx)

	if err := jobs.Start(gCtx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	g.Go(func() error {
		<-gCtx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			return fmt.Errorf("stop scheduler: %w", err)
		}
		a.logger.Info("scheduler stopped")
		return nil
	})

	if addr := a.cfg.Status.Addr; addr != "" {
		var ledger ports.RunLedger
		if a.ledger != nil {
			ledger = a.ledger
		}
		server := &http.Server{
			Addr:              addr,
			Handler:           httpapi.NewRouter(a.digests, ledger, a.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			a.logger.Info("status server listening", "addr", addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("status server shutdown", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Close releases the ledger and provider clients.
func (a *Application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

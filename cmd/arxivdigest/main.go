package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"ArxivDigest/internal/app"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:   "arxivdigest",
		Usage:  "Daily arXiv digest: fetch, summarize in chunks, notify",
		Action: schedule,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				Sources: cli.EnvVars("ARXIV_DIGEST_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file (default: ./.env when present)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "log-path",
				Usage: "Also append logs to this file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Process a single day and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "date",
						Usage: "Day to process (YYYY-MM-DD), default yesterday in the configured timezone",
					},
				},
				Action: runOnce,
			},
			{
				Name:   "schedule",
				Usage:  "Run on the configured cron schedule until interrupted",
				Action: schedule,
			},
			{
				Name:   "migrate",
				Usage:  "Move files of the legacy flat layout into day partitions",
				Action: migrate,
			},
			{
				Name:  "history",
				Usage: "Print recent pipeline runs from the ledger",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of runs to show",
						Value: 20,
					},
				},
				Action: history,
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// bootstrap loads configuration, builds the logger and wires the application.
func bootstrap(ctx context.Context, cmd *cli.Command) (*app.Application, *slog.Logger, func(), error) {
	root := cmd.Root()
	if err := config.LoadEnvFile(root.String("env-file")); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := config.Load(root.String("config"))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if level := root.String("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if path := root.String("log-path"); path != "" {
		cfg.Logging.Path = path
	}

	logger, closeLog, err := logging.Setup(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := application.Close(); err != nil {
			logger.Warn("close application", "error", err)
		}
		_ = closeLog()
	}
	return application, logger, cleanup, nil
}

func runOnce(ctx context.Context, cmd *cli.Command) error {
	application, logger, cleanup, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	day := application.DefaultDay()
	if raw := cmd.String("date"); raw != "" {
		if day, err = domain.ParseDay(raw); err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
	}

	report, err := application.RunOnce(ctx, day)
	logger.Info("run finished",
		"day", report.Day,
		"status", report.Status,
		"items", report.Items,
		"new_items", report.NewItems,
		"chunks", len(report.Chunks),
		"cached_chunks", report.CachedChunks,
		"notified", report.Notified,
		"degraded", report.Degraded,
	)
	return err
}

func schedule(ctx context.Context, cmd *cli.Command) error {
	application, logger, cleanup, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	logger.Info("scheduler mode, waiting for triggers")
	return application.Serve(ctx)
}

func migrate(ctx context.Context, cmd *cli.Command) error {
	application, logger, cleanup, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	moves, err := application.Migrate()
	for _, move := range moves {
		logger.Info("migrated", "from", move.From, "to", move.To.String())
	}
	fmt.Printf("migrated %d file(s)\n", len(moves))
	return err
}

func history(ctx context.Context, cmd *cli.Command) error {
	application, _, cleanup, err := bootstrap(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := application.History(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tDAY\tSTATUS\tITEMS\tNEW\tCHUNKS\tCACHED\tOVERALL\tNOTIFIED\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%t\t%t\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Day, r.Status, r.Items, r.NewItems,
			r.Chunks, r.CachedChunks, r.Overall, r.Notified, r.Error)
	}
	return w.Flush()
}

package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// NamedNotifier labels a notifier for logs and errors.
type NamedNotifier struct {
	Name     string
	Notifier ports.Notifier
}

// MultiNotifier delivers to every configured channel.
type MultiNotifier struct {
	targets []NamedNotifier
	logger  *slog.Logger
}

var _ ports.Notifier = (*MultiNotifier)(nil)

// NewMultiNotifier returns nil when no target is given so callers can treat
// "no channel configured" as a missing notifier.
func NewMultiNotifier(logger *slog.Logger, targets ...NamedNotifier) *MultiNotifier {
	if len(targets) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiNotifier{targets: targets, logger: logger.With("component", "notifier")}
}

// Notify tries every target and returns the first failure.
func (m *MultiNotifier) Notify(ctx context.Context, digest domain.Digest) error {
	var firstErr error
	for _, target := range m.targets {
		if err := target.Notifier.Notify(ctx, digest); err != nil {
			m.logger.Error("notification failed", "channel", target.Name, "day", digest.Day, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", target.Name, err)
			}
			continue
		}
		m.logger.Info("notification sent", "channel", target.Name, "day", digest.Day)
	}
	return firstErr
}

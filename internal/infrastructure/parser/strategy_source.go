package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/scanner"
)

// StrategySource implements FeedFetcher via a registered scanner strategy.
type StrategySource struct {
	registry  *scanner.Registry
	strategy  string
	endpoints map[string]string
	logger    *slog.Logger
}

var _ ports.FeedFetcher = (*StrategySource)(nil)

// NewStrategySource binds the registry to the configured strategy name.
// endpoints optionally maps a category to a custom URL.
func NewStrategySource(reg *scanner.Registry, strategy string, endpoints map[string]string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:  reg,
		strategy:  strategy,
		endpoints: endpoints,
		logger:    log,
	}
}

// Fetch runs the strategy for every category. The result is all or nothing.
func (s *StrategySource) Fetch(ctx context.Context, categories []string, day time.Time) ([]domain.Item, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(s.strategy)
	if err != nil {
		return nil, err
	}

	s.debug("fetch day", "strategy", s.strategy, "categories", len(categories), "day", domain.DayKey(day))

	req := scanner.Request{
		Day:        day,
		Categories: toScannerCategories(categories, s.endpoints),
	}
	items, err := strategy.Scan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.strategy, err)
	}

	s.debug("strategy source done", "total_items", len(items))
	return items, nil
}

func toScannerCategories(names []string, endpoints map[string]string) []scanner.Category {
	categories := make([]scanner.Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, scanner.Category{
			Name: name,
			URL:  endpoints[name],
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

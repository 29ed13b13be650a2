// Package llm adapts text-generation providers to the summarizer ports.
package llm

import (
	"context"
	"log/slog"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// Completer sends one prompt to a model and returns the raw text answer.
type Completer interface {
	Complete(ctx context.Context, model, prompt string) (string, error)
}

// Summarizer implements both summarizer ports on top of a Completer.
type Summarizer struct {
	completer    Completer
	chunkModel   string
	overallModel string
	language     string
	logger       *slog.Logger
}

var (
	_ ports.ChunkSummarizer   = (*Summarizer)(nil)
	_ ports.OverallSummarizer = (*Summarizer)(nil)
)

// NewSummarizer binds a completer to the chunk and overall models.
func NewSummarizer(completer Completer, chunkModel, overallModel, language string, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		completer:    completer,
		chunkModel:   chunkModel,
		overallModel: overallModel,
		language:     language,
		logger:       logger.With("component", "summarizer"),
	}
}

// Summarize digests one batch of items.
func (s *Summarizer) Summarize(ctx context.Context, day string, items []domain.Item) (ports.Completion, error) {
	prompt := BuildChunkPrompt(day, items, s.language)
	s.logger.Debug("chunk prompt built", "day", day, "items", len(items), "model", s.chunkModel, "bytes", len(prompt))
	return s.complete(ctx, s.chunkModel, prompt)
}

// SummarizeOverall condenses the ordered chunk payloads of a day.
func (s *Summarizer) SummarizeOverall(ctx context.Context, day string, chunks []domain.DigestContent) (ports.Completion, error) {
	prompt, err := BuildOverallPrompt(day, chunks, s.language)
	if err != nil {
		return ports.Completion{}, err
	}
	s.logger.Debug("overall prompt built", "day", day, "chunks", len(chunks), "model", s.overallModel, "bytes", len(prompt))
	return s.complete(ctx, s.overallModel, prompt)
}

// complete returns the raw answer with Content set only when the answer is
// a clean JSON object.
func (s *Summarizer) complete(ctx context.Context, model, prompt string) (ports.Completion, error) {
	raw, err := s.completer.Complete(ctx, model, prompt)
	if err != nil {
		return ports.Completion{}, err
	}
	completion := ports.Completion{Raw: raw}
	if content, err := domain.ParseContent(raw); err == nil {
		completion.Content = &content
	}
	return completion, nil
}

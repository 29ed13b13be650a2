package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// DigestContent is the structured payload produced by the text-generation
// service for a chunk or for the whole day.
type DigestContent struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Themes   []Theme  `json:"themes"`
}

// Theme groups related papers under a named topic.
type Theme struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Papers      []PaperRef `json:"papers"`
}

// PaperRef points back at a paper mentioned in a theme.
type PaperRef struct {
	Title string `json:"title"`
	Link  string `json:"link"`
}

// ChunkSummary is the persisted result for batch ChunkIndex (1-based) of a day.
type ChunkSummary struct {
	Day        string        `json:"date"`
	ChunkIndex int           `json:"chunk_index"`
	Content    DigestContent `json:"content"`
}

// OverallSummary is the single cross-chunk summary of a day.
type OverallSummary struct {
	Day     string        `json:"date"`
	Type    string        `json:"type"`
	Content DigestContent `json:"content"`
}

// OverallType is the discriminator stored in overall summary records.
const OverallType = "overall"

// Digest is what the notifier receives.
type Digest struct {
	Day            string
	Chunks         []DigestContent
	Overall        *DigestContent
	CategoryCounts map[string]int
}

// IsEmpty reports whether the payload carries nothing usable.
func (c DigestContent) IsEmpty() bool {
	return strings.TrimSpace(c.Summary) == "" && len(c.Keywords) == 0 && len(c.Themes) == 0
}

// Normalize replaces missing lists with empty ones and trims text so that
// cached and freshly parsed payloads serialize identically.
func (c DigestContent) Normalize() DigestContent {
	out := DigestContent{
		Summary:  strings.TrimSpace(c.Summary),
		Keywords: make([]string, 0, len(c.Keywords)),
		Themes:   make([]Theme, 0, len(c.Themes)),
	}
	for _, kw := range c.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out.Keywords = append(out.Keywords, kw)
		}
	}
	for _, theme := range c.Themes {
		papers := make([]PaperRef, 0, len(theme.Papers))
		for _, p := range theme.Papers {
			title := strings.TrimSpace(p.Title)
			if title == "" {
				title = "Untitled"
			}
			papers = append(papers, PaperRef{Title: title, Link: strings.TrimSpace(p.Link)})
		}
		out.Themes = append(out.Themes, Theme{
			Name:        strings.TrimSpace(theme.Name),
			Description: strings.TrimSpace(theme.Description),
			Papers:      papers,
		})
	}
	return out
}

// ParseContent strictly decodes raw as a single JSON object.
func ParseContent(raw string) (DigestContent, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return DigestContent{}, fmt.Errorf("%w: response is not a JSON object", ErrNoPayload)
	}
	return decodeContent([]byte(trimmed))
}

var (
	fencePattern  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	objectPattern = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractContent recovers a payload from free-form model output: fenced
// code blocks first, then the outermost brace-delimited span.
func ExtractContent(raw string) (DigestContent, error) {
	var candidates []string
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		candidates = append(candidates, m[1])
	}
	if span := objectPattern.FindString(raw); span != "" {
		candidates = append(candidates, span)
	}
	if len(candidates) == 0 {
		return DigestContent{}, ErrNoPayload
	}

	var lastErr error
	for _, candidate := range candidates {
		content, err := ParseContent(candidate)
		if err == nil {
			return content, nil
		}
		lastErr = err
	}
	return DigestContent{}, lastErr
}

func decodeContent(data []byte) (DigestContent, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var content DigestContent
	if err := dec.Decode(&content); err != nil {
		return DigestContent{}, fmt.Errorf("%w: %v", ErrNoPayload, err)
	}
	content = content.Normalize()
	if content.IsEmpty() {
		return DigestContent{}, ErrEmptyPayload
	}
	return content, nil
}

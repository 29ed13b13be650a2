package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"ArxivDigest/internal/domain"
)

const jsonShape = `{"summary": "...", "keywords": ["..."], "themes": [{"name": "...", "description": "...", "papers": [{"title": "...", "link": "..."}]}]}`

// BuildChunkPrompt asks for a structured digest of one batch of papers.
func BuildChunkPrompt(day string, items []domain.Item, language string) string {
	lines := []string{
		"You are a research intelligence analyst. Produce a structured digest of the arXiv papers below.",
		"Requirements:",
		fmt.Sprintf("1) Write in %s.", languageOrDefault(language)),
		"2) Group the papers into 3-8 themes; give each theme a short description and representative papers.",
		"3) Extract 10-20 overall keywords.",
		"4) Write a brief overall summary of at most 8 sentences.",
		"5) Return a single JSON object and nothing else.",
		"",
		"Date: " + day,
		"",
		"Papers:",
	}
	for idx, item := range items {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s\n   Authors: %s\n   Abstract: %s\n   Link: %s\n",
			idx+1, item.Category, item.Title, strings.Join(item.Authors, ", "), item.Body, item.Link))
	}
	lines = append(lines, "JSON shape: "+jsonShape)
	return strings.Join(lines, "\n")
}

// BuildOverallPrompt asks for a tighter digest across the chunk payloads.
func BuildOverallPrompt(day string, chunks []domain.DigestContent, language string) (string, error) {
	payload, err := marshalNoEscape(chunks)
	if err != nil {
		return "", fmt.Errorf("encode chunk summaries: %w", err)
	}

	lines := []string{
		"You are a research intelligence analyst. Condense the chunk digests below into one overall digest.",
		"Requirements:",
		fmt.Sprintf("1) Write in %s.", languageOrDefault(language)),
		"2) Give 3-6 themes, each with a one-sentence description and representative papers.",
		"3) Extract 8-15 overall keywords.",
		"4) Write a brief overall summary of at most 5 sentences.",
		"5) Return a single JSON object and nothing else.",
		"",
		"Date: " + day,
		"",
		"Chunk digests JSON:",
		payload,
		"",
		"JSON shape: " + jsonShape,
	}
	return strings.Join(lines, "\n"), nil
}

func languageOrDefault(language string) string {
	if strings.TrimSpace(language) == "" {
		return "Chinese"
	}
	return language
}

func marshalNoEscape(v any) (string, error) {
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}

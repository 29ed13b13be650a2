package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	// maxMessageLen stays below the 4096 character limit of sendMessage.
	maxMessageLen = 4000
)

// Notifier sends digests to a Telegram chat via bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Notify renders the digest as Markdown and posts it, split into as many
// messages as needed.
func (n *Notifier) Notify(ctx context.Context, digest domain.Digest) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	for i, part := range SplitMessage(FormatDigest(digest), maxMessageLen) {
		if err := n.send(ctx, part); err != nil {
			return fmt.Errorf("send part %d: %w", i+1, err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// FormatDigest renders the overall summary first, then every chunk.
func FormatDigest(digest domain.Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*arXiv digest %s*\n", digest.Day)
	if counts := formatCounts(digest.CategoryCounts); counts != "" {
		fmt.Fprintf(&sb, "Papers: %s\n", counts)
	}

	if digest.Overall != nil {
		sb.WriteString("\n*Overall*\n")
		writeContent(&sb, *digest.Overall)
	}
	for i, chunk := range digest.Chunks {
		fmt.Fprintf(&sb, "\n*Part %d*\n", i+1)
		writeContent(&sb, chunk)
	}
	return strings.TrimSpace(sb.String())
}

func writeContent(sb *strings.Builder, content domain.DigestContent) {
	if content.Summary != "" {
		sb.WriteString(escape(content.Summary))
		sb.WriteString("\n")
	}
	if len(content.Keywords) > 0 {
		fmt.Fprintf(sb, "_Keywords:_ %s\n", escape(strings.Join(content.Keywords, ", ")))
	}
	for _, theme := range content.Themes {
		fmt.Fprintf(sb, "• *%s*", escape(theme.Name))
		if theme.Description != "" {
			fmt.Fprintf(sb, ": %s", escape(theme.Description))
		}
		sb.WriteString("\n")
		for _, paper := range theme.Papers {
			if paper.Link != "" {
				fmt.Fprintf(sb, "  - [%s](%s)\n", escape(paper.Title), paper.Link)
			} else {
				fmt.Fprintf(sb, "  - %s\n", escape(paper.Title))
			}
		}
	}
}

func formatCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s %d", escape(name), counts[name]))
	}
	return strings.Join(parts, ", ")
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escape(text string) string {
	return markdownEscaper.Replace(text)
}

// SplitMessage cuts text on line boundaries into parts of at most limit
// runes. A single line longer than limit is cut mid-line.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || len([]rune(text)) <= limit {
		return []string{text}
	}

	var (
		parts   []string
		current []rune
	)
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.TrimRight(string(current), "\n"))
			current = current[:0]
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		runes := []rune(line)
		for len(runes) > limit {
			flush()
			parts = append(parts, string(runes[:limit]))
			runes = runes[limit:]
		}
		if len(current)+len(runes) > limit {
			flush()
		}
		current = append(current, runes...)
	}
	flush()
	return parts
}

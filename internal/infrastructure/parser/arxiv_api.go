package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/scanner"
)

const (
	arxivAPIURL       = "https://export.arxiv.org/api/query"
	defaultMaxResults = 200
	userAgent         = "arxiv-digest/0.1 (+https://arxiv.org)"
)

// ArxivAPIScanner queries the arXiv Atom API for papers submitted on a day.
type ArxivAPIScanner struct {
	client     *http.Client
	baseURL    string
	maxResults int
}

// NewArxivAPIScanner wires an HTTP client; baseURL defaults to the public
// export endpoint.
func NewArxivAPIScanner(client *http.Client, baseURL string) *ArxivAPIScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = arxivAPIURL
	}
	return &ArxivAPIScanner{client: client, baseURL: baseURL, maxResults: defaultMaxResults}
}

// Name identifies the strategy inside the registry.
func (a *ArxivAPIScanner) Name() string {
	return "arxiv-api"
}

// Scan issues one query per category. Items listed under several
// categories keep the first category they were seen in.
func (a *ArxivAPIScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided")
	}

	results := make([]domain.Item, 0)
	seen := map[string]struct{}{}
	for _, cat := range req.Categories {
		base := a.baseURL
		if cat.URL != "" {
			base = cat.URL
		}
		queryURL, err := buildQueryURL(base, cat.Name, req.Day, a.maxResults)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		feed, err := a.fetchFeed(ctx, queryURL)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", cat.Name, err)
		}

		for _, entry := range feed.Items {
			item := itemFromEntry(entry, cat.Name)
			if item.ID == "" {
				continue
			}
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			results = append(results, item)
		}
	}
	return results, nil
}

func (a *ArxivAPIScanner) fetchFeed(ctx context.Context, queryURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func buildQueryURL(base, category string, day time.Time, maxResults int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid api url %s: %w", base, err)
	}

	stamp := day.Format("20060102")
	query := parsed.Query()
	query.Set("search_query", fmt.Sprintf("cat:%s AND submittedDate:[%s0000 TO %s2359]", category, stamp, stamp))
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func itemFromEntry(entry *gofeed.Item, category string) domain.Item {
	authors := make([]string, 0, len(entry.Authors))
	for _, author := range entry.Authors {
		if author == nil {
			continue
		}
		if name := strings.TrimSpace(author.Name); name != "" {
			authors = append(authors, name)
		}
	}

	id := strings.TrimSpace(entry.GUID)
	link := strings.TrimSpace(entry.Link)
	if link == "" {
		link = id
	}

	return domain.Item{
		ID:          id,
		Title:       collapseSpaces(entry.Title),
		Body:        collapseSpaces(entry.Description),
		Authors:     authors,
		Link:        link,
		Category:    category,
		PublishedAt: timestampOf(entry.PublishedParsed),
		UpdatedAt:   timestampOf(entry.UpdatedParsed),
	}
}

func collapseSpaces(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func timestampOf(t *time.Time) domain.Timestamp {
	if t == nil {
		return domain.Timestamp{}
	}
	return domain.NewTimestamp(t.UTC())
}

package parser

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/scanner"
)

const (
	arxivBaseURL = "https://arxiv.org"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// ArxivListingScanner crawls category listing pages and extracts the papers
// announced on the requested day.
type ArxivListingScanner struct {
	client   *http.Client
	pageSize int
}

// NewArxivListingScanner wires an HTTP client; pageSize defaults to 200.
func NewArxivListingScanner(client *http.Client) *ArxivListingScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &ArxivListingScanner{client: client, pageSize: 200}
}

// Name identifies the strategy inside the registry.
func (a *ArxivListingScanner) Name() string {
	return "arxiv-listing"
}

// Scan walks through each category listing and returns the entries dated day.
func (a *ArxivListingScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Item, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided")
	}

	targetDay := req.Day.UTC().Truncate(24 * time.Hour)
	results := make([]domain.Item, 0)
	seen := map[string]struct{}{}

	for _, cat := range req.Categories {
		base := cat.URL
		if base == "" {
			base = fmt.Sprintf("%s/list/%s/pastweek", arxivBaseURL, cat.Name)
		}
		skip := 0
		for {
			pageURL, err := buildPageURL(base, skip, a.pageSize)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			doc, err := a.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", cat.Name, err)
			}

			page, more := a.extractItems(doc, targetDay, cat.Name)
			for _, item := range page {
				if _, ok := seen[item.ID]; ok {
					continue
				}
				seen[item.ID] = struct{}{}
				results = append(results, item)
			}

			if !more {
				break
			}
			skip += a.pageSize
		}
	}

	return results, nil
}

func (a *ArxivListingScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

// extractItems collects the entries dated targetDay. Listings are newest
// first, so the scan stops at the first older entry or a short page.
func (a *ArxivListingScanner) extractItems(doc *goquery.Document, targetDay time.Time, category string) ([]domain.Item, bool) {
	var (
		collected []domain.Item
		more      = true
		processed int
	)

	doc.Find("dl > dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		dd := dt.Next()
		processed++

		item, publishedAt, ok := parseEntry(dt, dd, category)
		if !ok {
			return true
		}

		itemDay := publishedAt.UTC().Truncate(24 * time.Hour)
		if itemDay.Equal(targetDay) {
			collected = append(collected, item)
		}
		if itemDay.Before(targetDay) {
			more = false
			return false
		}

		return true
	})

	if processed < a.pageSize {
		more = false
	}

	return collected, more
}

func parseEntry(dt, dd *goquery.Selection, category string) (domain.Item, time.Time, bool) {
	anchor := dt.Find("a[href*=\"/abs/\"]").First()
	href, _ := anchor.Attr("href")

	id := strings.TrimSpace(anchor.Text())
	id = strings.TrimSpace(strings.TrimPrefix(id, "arXiv:"))
	if id == "" {
		id = strings.TrimPrefix(href, "/abs/")
	}
	if id == "" {
		return domain.Item{}, time.Time{}, false
	}

	if href != "" && !strings.HasPrefix(href, "http") {
		href = strings.TrimSuffix(arxivBaseURL, "/") + href
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = collapseSpaces(strings.TrimPrefix(title, "Title:"))

	summary := dd.Find("p.mathjax").First().Text()
	summary = collapseSpaces(strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:"))

	var authors []string
	dd.Find(".list-authors a").Each(func(_ int, s *goquery.Selection) {
		if name := strings.TrimSpace(s.Text()); name != "" {
			authors = append(authors, name)
		}
	})

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	match := dateExpr.FindString(dateText)
	if match == "" {
		return domain.Item{}, time.Time{}, false
	}
	publishedAt, err := time.Parse("2 Jan 2006", match)
	if err != nil {
		return domain.Item{}, time.Time{}, false
	}

	stamp := domain.NewTimestamp(publishedAt)
	return domain.Item{
		ID:          id,
		Title:       title,
		Body:        summary,
		Authors:     authors,
		Link:        href,
		Category:    category,
		PublishedAt: stamp,
		UpdatedAt:   stamp,
	}, publishedAt, true
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

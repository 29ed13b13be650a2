package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
)

func sampleDigest() domain.Digest {
	overall := domain.DigestContent{
		Summary:  "Agents <everywhere>.",
		Keywords: []string{"agents", "planning"},
		Themes: []domain.Theme{{
			Name:   "Agents",
			Papers: []domain.PaperRef{{Title: "Paper A", Link: "https://arxiv.org/abs/1"}, {Title: "Paper B"}},
		}},
	}
	return domain.Digest{
		Day:            "2024-01-05",
		Chunks:         []domain.DigestContent{{Summary: "first"}, {Summary: "second"}},
		Overall:        &overall,
		CategoryCounts: map[string]int{"cs.LG": 2, "cs.AI": 3},
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML(sampleDigest())
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "arXiv digest 2024-01-05", doc.Find("h1").Text())
	assert.Equal(t, "Agents <everywhere>.", doc.Find(".overall .summary").Text())
	assert.Equal(t, 2, doc.Find(".keyword").Length())
	assert.Equal(t, 2, doc.Find(".chunk").Length())
	assert.Equal(t, "Part 2", doc.Find(".chunk h2").Last().Text())
	assert.Equal(t, "cs.AI", doc.Find(".category").First().Text())
	assert.Equal(t, "5", doc.Find(".total").Text())

	href, ok := doc.Find(".overall a").Attr("href")
	require.True(t, ok)
	assert.Equal(t, "https://arxiv.org/abs/1", href)
}

func TestRenderHTMLWithoutOverall(t *testing.T) {
	digest := sampleDigest()
	digest.Overall = nil
	digest.CategoryCounts = nil

	html, err := RenderHTML(digest)
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	assert.Zero(t, doc.Find(".overall").Length())
	assert.Zero(t, doc.Find("table.counts").Length())
}

func TestRenderText(t *testing.T) {
	text, err := RenderText(domain.Digest{Day: "2024-01-05"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2024-01-05","overall":null,"chunks":[],"category_counts":{}}`, text)
}

func TestBuildMessage(t *testing.T) {
	date := time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC)
	raw, err := BuildMessage("bot@example.com", []string{"a@example.com", "b@example.com"}, sampleDigest(), date)
	require.NoError(t, err)

	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	dec := new(mime.WordDecoder)
	subject, err := dec.DecodeHeader(msg.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, "arXiv digest 2024-01-05", subject)
	assert.Equal(t, "a@example.com, b@example.com", msg.Header.Get("To"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "multipart/alternative", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])
	var types []string
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		types = append(types, part.Header.Get("Content-Type"))
		body, err := io.ReadAll(part)
		require.NoError(t, err)
		if strings.HasPrefix(part.Header.Get("Content-Type"), "text/plain") {
			assert.Contains(t, string(body), `"category_counts"`)
		}
	}
	assert.Equal(t, []string{"text/plain; charset=utf-8", "text/html; charset=utf-8"}, types)
}

func TestNotifierDelivers(t *testing.T) {
	n := NewNotifier(config.EmailConfig{Host: "smtp.example.com", Port: 465, User: "bot@example.com", Password: "pw", To: []string{"a@example.com"}})
	n.now = func() time.Time { return time.Date(2024, 1, 6, 9, 0, 0, 0, time.UTC) }

	var gotFrom string
	var gotTo []string
	n.deliver = func(_ context.Context, from string, to []string, msg []byte) error {
		gotFrom, gotTo = from, to
		assert.Contains(t, string(msg), "multipart/alternative")
		return nil
	}

	require.NoError(t, n.Notify(context.Background(), sampleDigest()))
	assert.Equal(t, "bot@example.com", gotFrom)
	assert.Equal(t, []string{"a@example.com"}, gotTo)

	n.deliver = func(context.Context, string, []string, []byte) error { return errors.New("421 try later") }
	assert.ErrorContains(t, n.Notify(context.Background(), sampleDigest()), "421")
}

func TestNotifierMisconfigured(t *testing.T) {
	err := NewNotifier(config.EmailConfig{Host: "smtp.example.com"}).Notify(context.Background(), sampleDigest())
	assert.ErrorContains(t, err, "misconfigured")
}

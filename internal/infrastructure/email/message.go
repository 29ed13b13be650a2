package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"mime"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
	"time"

	"ArxivDigest/internal/domain"
)

// Subject is the mail subject line for a day.
func Subject(day string) string {
	return "arXiv digest " + day
}

type categoryCount struct {
	Name  string
	Count int
}

type pageData struct {
	Day     string
	Counts  []categoryCount
	Total   int
	Overall *domain.DigestContent
	Chunks  []domain.DigestContent
}

var pageTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>arXiv digest {{.Day}}</title></head>
<body style="font-family: sans-serif; max-width: 760px; margin: auto;">
<h1>arXiv digest {{.Day}}</h1>
{{if .Counts}}<table class="counts">
{{range .Counts}}<tr><td class="category">{{.Name}}</td><td class="count">{{.Count}}</td></tr>
{{end}}<tr><td>Total</td><td class="total">{{.Total}}</td></tr>
</table>{{end}}
{{with .Overall}}<div class="card overall">
<h2>Overall</h2>
{{template "content" .}}
</div>{{end}}
{{range $i, $c := .Chunks}}<div class="card chunk">
<h2>Part {{inc $i}}</h2>
{{template "content" $c}}
</div>
{{end}}
</body>
</html>
{{define "content"}}{{if .Summary}}<p class="summary">{{.Summary}}</p>{{end}}
{{if .Keywords}}<p class="keywords">{{range $i, $k := .Keywords}}{{if $i}}, {{end}}<span class="keyword">{{$k}}</span>{{end}}</p>{{end}}
{{range .Themes}}<div class="theme">
<h3>{{.Name}}</h3>
{{if .Description}}<p>{{.Description}}</p>{{end}}
<ul>{{range .Papers}}<li>{{if .Link}}<a href="{{.Link}}">{{.Title}}</a>{{else}}{{.Title}}{{end}}</li>{{end}}</ul>
</div>
{{end}}{{end}}`))

// RenderHTML renders the digest as a standalone HTML page.
func RenderHTML(digest domain.Digest) (string, error) {
	data := pageData{
		Day:     digest.Day,
		Overall: digest.Overall,
		Chunks:  digest.Chunks,
	}
	for name, count := range digest.CategoryCounts {
		data.Counts = append(data.Counts, categoryCount{Name: name, Count: count})
		data.Total += count
	}
	sort.Slice(data.Counts, func(i, j int) bool { return data.Counts[i].Name < data.Counts[j].Name })

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

type textPayload struct {
	Date           string                 `json:"date"`
	Overall        *domain.DigestContent  `json:"overall"`
	Chunks         []domain.DigestContent `json:"chunks"`
	CategoryCounts map[string]int         `json:"category_counts"`
}

// RenderText renders the plain-text alternative as indented JSON.
func RenderText(digest domain.Digest) (string, error) {
	payload := textPayload{
		Date:           digest.Day,
		Overall:        digest.Overall,
		Chunks:         digest.Chunks,
		CategoryCounts: digest.CategoryCounts,
	}
	if payload.Chunks == nil {
		payload.Chunks = []domain.DigestContent{}
	}
	if payload.CategoryCounts == nil {
		payload.CategoryCounts = map[string]int{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("render text: %w", err)
	}
	return buf.String(), nil
}

// BuildMessage assembles a multipart/alternative RFC 5322 message.
func BuildMessage(from string, to []string, digest domain.Digest, date time.Time) ([]byte, error) {
	text, err := RenderText(digest)
	if err != nil {
		return nil, err
	}
	html, err := RenderHTML(digest)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", text},
		{"text/html; charset=utf-8", html},
	} {
		header := textproto.MIMEHeader{}
		header.Set("Content-Type", part.contentType)
		header.Set("Content-Transfer-Encoding", "8bit")
		w, err := mw.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("create part: %w", err)
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, fmt.Errorf("write part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", Subject(digest.Day)))
	fmt.Fprintf(&msg, "Date: %s\r\n", date.Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mw.Boundary())
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

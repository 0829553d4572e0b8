// Package scrape summarizes a vendor's public homepage so the
// classifier has more than a bare email address to judge.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout = 15 * time.Second
	userAgent      = "Mozilla/5.0 (compatible; VendorBook/1.0)"
	maxBodyBytes   = 512 << 10
	maxHeadings    = 8
	maxTextRunes   = 600
)

// Summary is the distilled homepage content.
type Summary struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Text        string   `json:"text,omitempty"`
}

// String flattens the summary into the single line the classifier
// prompt carries.
func (s *Summary) String() string {
	var parts []string
	if s.Title != "" {
		parts = append(parts, s.Title)
	}
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if len(s.Headings) > 0 {
		parts = append(parts, "Headings: "+strings.Join(s.Headings, "; "))
	}
	if s.Text != "" {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, " | ")
}

// Summarizer fetches and distills homepages. Zero value is not usable;
// call NewSummarizer.
type Summarizer struct {
	client *http.Client
}

func NewSummarizer(timeout time.Duration) *Summarizer {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Summarizer{
		client: &http.Client{Timeout: timeout},
	}
}

// Summarize fetches the homepage of a mail domain, trying https first
// and falling back to plain http.
func (s *Summarizer) Summarize(ctx context.Context, domain string) (*Summary, error) {
	domain = strings.TrimSpace(strings.ToLower(domain))
	if domain == "" {
		return nil, fmt.Errorf("empty domain")
	}

	summary, err := s.SummarizeURL(ctx, "https://"+domain)
	if err != nil {
		summary, err = s.SummarizeURL(ctx, "http://"+domain)
	}
	return summary, err
}

// SummarizeURL fetches one page and extracts title, meta description,
// headings and a text snippet.
func (s *Summarizer) SummarizeURL(ctx context.Context, pageURL string) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", pageURL, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP status %d", pageURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("fetch %s: unsupported content type %q", pageURL, ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	return summarizeDocument(doc), nil
}

func summarizeDocument(doc *goquery.Document) *Summary {
	summary := &Summary{
		Title:       cleanWhitespace(doc.Find("title").First().Text()),
		Description: cleanWhitespace(doc.Find(`meta[name="description"]`).AttrOr("content", "")),
	}

	doc.Find("h1, h2").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if heading := cleanWhitespace(sel.Text()); heading != "" {
			summary.Headings = append(summary.Headings, heading)
		}
		return len(summary.Headings) < maxHeadings
	})

	// Strip navigation chrome before grabbing body text.
	doc.Find("nav, footer, header, script, style, noscript").Remove()
	summary.Text = truncateRunes(cleanWhitespace(doc.Find("body").Text()), maxTextRunes)

	return summary
}

func cleanWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

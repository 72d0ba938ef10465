// Package scraper fetches full article text from a source URL.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/veridia/newstrust/internal/tracing"
)

// DefaultTimeout bounds a single fetch.
const DefaultTimeout = 15 * time.Second

// userAgent identifies the fetcher to origin servers.
const userAgent = "newstrust-bot/1.0 (+https://newstrust.example)"

// FetchError is a failed content fetch. Callers decide recovery; the
// content resolver swallows these and degrades to fallback text.
type FetchError struct {
	URL        string
	StatusCode int // 0 for transport errors
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("scraper: fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("scraper: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher is the content-fetch contract the pipeline consumes.
type Fetcher interface {
	ScrapeURL(ctx context.Context, url string) (string, error)
}

// HTTPFetcher fetches and extracts article text with goquery.
type HTTPFetcher struct {
	httpClient *http.Client
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher creates a fetcher with the default timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// ScrapeURL fetches the page and extracts readable article text: the
// <article> element when present, then <main>, then all paragraphs.
func (f *HTTPFetcher) ScrapeURL(ctx context.Context, url string) (string, error) {
	ctx, endSpan := tracing.StartExternalSpan(ctx, "content-fetcher", "scrape_url")
	text, err := f.scrape(ctx, url)
	endSpan(err)
	return text, err
}

func (f *HTTPFetcher) scrape(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	text := ExtractText(doc)
	if text == "" {
		return "", &FetchError{URL: url, Err: fmt.Errorf("no readable text")}
	}
	return text, nil
}

// ExtractText pulls readable text out of a parsed document, stripping
// navigation and script noise.
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, nav, header, footer, aside, form, iframe").Remove()

	for _, selector := range []string{"article", "main"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			if text := collapseWhitespace(sel.First().Text()); len(text) > 0 {
				return text
			}
		}
	}

	var parts []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return collapseWhitespace(strings.Join(parts, "\n\n"))
}

// collapseWhitespace trims lines and drops empty runs so extracted text
// lengths are comparable across sources.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, strings.Join(strings.Fields(trimmed), " "))
		}
	}
	return strings.Join(out, "\n")
}

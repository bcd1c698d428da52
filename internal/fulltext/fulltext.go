// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fulltext fetches best-effort paper text for a DOI or URL. Three
// strategies run in order: a direct HTTP GET with HTML main-content
// extraction, a headless-browser render, and PDF byte extraction. The
// first candidate meeting the minimum word count wins; otherwise the
// longest candidate overall is returned. Fetch never fails: total failure
// yields an empty string.
package fulltext

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Fetcher is the external full-text capability the adapters consume.
type Fetcher interface {
	Fetch(ctx context.Context, target string) string
}

// Scraper implements Fetcher over HTTP, an optional headless browser, and
// in-memory PDF extraction.
type Scraper struct {
	cfg     types.FullTextConfig
	client  *http.Client
	browser *browserRenderer
	log     *zap.Logger
}

// NewScraper builds a Scraper. The browser strategy is only attempted when
// cfg.EnableBrowser is set; the browser itself is launched lazily on first
// use.
func NewScraper(cfg types.FullTextConfig, client *http.Client, log *zap.Logger) *Scraper {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scraper{cfg: cfg, client: client, log: log}
	if cfg.EnableBrowser {
		s.browser = newBrowserRenderer(log)
	}
	return s
}

// Close releases the headless browser, if one was launched.
func (s *Scraper) Close() {
	if s.browser != nil {
		s.browser.close()
	}
}

// Fetch resolves target (a DOI-like identifier or URL) and returns the
// best extracted text. It never returns an error; callers treat an empty
// string as "no full text".
func (s *Scraper) Fetch(ctx context.Context, target string) string {
	u := NormalizeTarget(target)
	if u == "" {
		return ""
	}

	minWords := s.cfg.MinWords
	if minWords <= 0 {
		minWords = 700
	}

	type strategy func(ctx context.Context, url string) string
	strategies := []strategy{s.fetchHTML}
	if s.browser != nil {
		strategies = append(strategies, s.fetchBrowser)
	}
	strategies = append(strategies, s.fetchPDF)

	longest := ""
	for _, fetch := range strategies {
		if ctx.Err() != nil {
			break
		}
		content := fetch(ctx, u)
		if wordCount(content) >= minWords {
			return content
		}
		if len(content) > len(longest) {
			longest = content
		}
	}
	if longest == "" {
		s.log.Debug("full text unavailable", zap.String("target", target))
	}
	return longest
}

// fetchHTML performs a direct GET and extracts the main textual content
// from the returned HTML.
func (s *Scraper) fetchHTML(ctx context.Context, u string) string {
	body := s.get(ctx, u, "text/html,application/xhtml+xml")
	if body == nil {
		return ""
	}
	return extractHTMLText(body)
}

// fetchBrowser renders the page in a headless browser and extracts the
// DOM text.
func (s *Scraper) fetchBrowser(ctx context.Context, u string) string {
	text, err := s.browser.render(ctx, u)
	if err != nil {
		s.log.Debug("browser render failed", zap.String("url", u), zap.Error(err))
		return ""
	}
	return text
}

// fetchPDF treats the response bytes as a PDF and extracts per-page text.
func (s *Scraper) fetchPDF(ctx context.Context, u string) string {
	body := s.get(ctx, u, "application/pdf")
	if body == nil {
		return ""
	}
	text, err := ExtractPDFText(body)
	if err != nil {
		s.log.Debug("pdf extraction failed", zap.String("url", u), zap.Error(err))
		return ""
	}
	return text
}

// get fetches u with the strategy retry budget and returns the body bytes,
// or nil on failure.
func (s *Scraper) get(ctx context.Context, u, accept string) []byte {
	maxRetries := s.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil
		}
		req.Header.Set("User-Agent", s.cfg.UserAgent)
		req.Header.Set("Accept", accept)

		resp, err := s.client.Do(req)
		if err != nil {
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil || resp.StatusCode != http.StatusOK {
			continue
		}
		return body
	}
	return nil
}

// NormalizeTarget converts a DOI-like identifier to a doi.org URL and adds
// a scheme to bare hosts. An empty target stays empty.
func NormalizeTarget(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if strings.HasPrefix(target, "10.") {
		return "https://doi.org/" + target
	}
	if strings.HasPrefix(target, "doi:") {
		return "https://doi.org/" + strings.TrimPrefix(target, "doi:")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return ""
	}
	if parsed.Scheme == "" {
		return "http://" + target
	}
	return target
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/httputil"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// arxivAPIBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var arxivAPIBase = "https://export.arxiv.org/api/query"

// ArxivBackend queries the arXiv Atom API with natural-language queries
// and extracts full text from each paper's PDF in memory. arXiv asks for
// no more than one request every three seconds, so the adapter holds a
// single permit and gates every network call (feed or PDF) on the
// configured interval.
type ArxivBackend struct {
	cfg     types.SearchConfig
	client  *http.Client
	limiter *limiter
	log     *zap.Logger
}

// NewArxivBackend builds the arXiv adapter.
func NewArxivBackend(cfg types.SearchConfig, client *http.Client, log *zap.Logger) *ArxivBackend {
	return &ArxivBackend{
		cfg:     cfg,
		client:  client,
		limiter: newLimiter(cfg.Rate.ArxivConcurrency, cfg.Rate.ArxivRequestInterval),
		log:     log.Named("arxiv"),
	}
}

// Name returns the backend identifier.
func (b *ArxivBackend) Name() string { return types.PlatformArxiv }

// Search queries arXiv sorted by submission date descending and returns
// up to limit papers.
func (b *ArxivBackend) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	if err := b.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.limiter.release()

	reqURL := fmt.Sprintf("%s?search_query=all:%s&start=0&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, escapeArxivQuery(query), limit)

	feedBytes, err := b.get(ctx, reqURL)
	if err != nil {
		return nil, fmt.Errorf("arXiv feed: %w", err)
	}

	var feed arxivFeed
	if err := xml.Unmarshal(feedBytes, &feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv feed: %w", err)
	}

	entries := feed.Entries
	if len(entries) > limit {
		entries = entries[:limit]
	}

	papers := make([]types.Paper, 0, len(entries))
	for _, entry := range entries {
		papers = append(papers, b.toPaper(ctx, entry))
	}
	return finalize(papers, limit, nil), nil
}

// get issues one interval-gated GET with the shared retry policy and
// returns the body bytes.
func (b *ArxivBackend) get(ctx context.Context, url string) ([]byte, error) {
	if err := b.limiter.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.cfg.Retry)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (b *ArxivBackend) toPaper(ctx context.Context, entry arxivEntry) types.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name != "" {
			authors = append(authors, name)
		}
	}

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			pdfURL = link.Href
			break
		}
	}

	p := types.Paper{
		DOI:      entry.DOI,
		Title:    html.UnescapeString(strings.TrimSpace(entry.Title)),
		Authors:  authors,
		Year:     types.ParseYear(entry.Published),
		Abstract: html.UnescapeString(strings.TrimSpace(entry.Summary)),
		Source:   "arXiv",
		PDFLink:  pdfURL,
		Metadata: map[string]any{
			"arxiv_id":       extractArxivID(entry.ID),
			"published_date": entry.Published,
			"updated_date":   entry.Updated,
		},
	}

	if pdfURL != "" {
		if text, err := b.fetchPDFText(ctx, pdfURL); err != nil {
			b.log.Warn("pdf fetch failed", zap.String("url", pdfURL), zap.Error(err))
		} else {
			p.FullText = text
		}
	}
	return p
}

// fetchPDFText downloads the PDF bytes in memory and extracts text page
// by page.
func (b *ArxivBackend) fetchPDFText(ctx context.Context, url string) (string, error) {
	body, err := b.get(ctx, url)
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", fmt.Errorf("empty PDF body")
	}
	return extractPDFText(body)
}

// escapeArxivQuery prepares a natural-language query for the all: field:
// spaces become +, and colons (which delimit arXiv fields) are dropped.
func escapeArxivQuery(query string) string {
	query = strings.ReplaceAll(query, ":", "")
	return strings.ReplaceAll(strings.TrimSpace(query), " ", "+")
}

// arXiv Atom feed XML structures, namespace-aware.
type arxivFeed struct {
	XMLName xml.Name     `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Summary   string        `xml:"summary"`
	Published string        `xml:"published"`
	Updated   string        `xml:"updated"`
	DOI       string        `xml:"http://arxiv.org/schemas/atom doi"`
	Authors   []arxivAuthor `xml:"author"`
	Links     []arxivLink   `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// extractArxivID pulls the arXiv ID from an entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/claim-analyzer/internal/httputil"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// semanticAPIBase is the Semantic Scholar paper search endpoint. Declared
// as a var so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1/paper/search"

// semanticFields is the field list requested from the Graph API.
const semanticFields = "title,abstract,authors,externalIds,year,publicationDate,citationCount,openAccessPdf"

// SemanticScholarBackend queries the Semantic Scholar Graph API with
// relevance-ranked pagination and enriches open-access papers by
// downloading their PDFs concurrently.
type SemanticScholarBackend struct {
	cfg     types.SearchConfig
	apiKey  string
	client  *http.Client
	limiter *limiter
	pdfSem  *semaphore.Weighted
	log     *zap.Logger
}

// NewSemanticScholarBackend builds the Semantic Scholar adapter. Without
// an API key the public pool allows roughly one request every two
// seconds; with a key, one per second.
func NewSemanticScholarBackend(cfg types.SearchConfig, apiKey string, client *http.Client, log *zap.Logger) *SemanticScholarBackend {
	interval := 2 * time.Second
	if apiKey != "" {
		interval = time.Second
	}
	pdfPermits := cfg.Rate.SemanticScholarPDFConcurrency
	if pdfPermits <= 0 {
		pdfPermits = 8
	}
	return &SemanticScholarBackend{
		cfg:     cfg,
		apiKey:  apiKey,
		client:  client,
		limiter: newLimiter(cfg.Rate.SemanticScholarConcurrency, interval),
		pdfSem:  semaphore.NewWeighted(pdfPermits),
		log:     log.Named("semantic_scholar"),
	}
}

// Name returns the backend identifier.
func (b *SemanticScholarBackend) Name() string { return types.PlatformSemanticScholar }

// Search pages through the Graph API following the next cursor until it
// has gathered 2*limit candidates or exhausted the result window, enriches
// open-access papers with PDF text, then trims to limit in the API's
// relevance order.
func (b *SemanticScholarBackend) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	if err := b.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.limiter.release()

	want := 2 * limit
	var entries []semanticPaper
	offset := 0

	for len(entries) < want && offset < 1000 {
		pageSize := want - len(entries)
		if pageSize > 100 {
			pageSize = 100
		}

		page, err := b.fetchPage(ctx, query, offset, pageSize)
		if err != nil {
			if len(entries) == 0 {
				return nil, err
			}
			b.log.Warn("page fetch failed, keeping partial results",
				zap.Int("offset", offset), zap.Error(err))
			break
		}

		entries = append(entries, page.Data...)
		if page.Next == nil || *page.Next <= offset {
			break
		}
		offset = *page.Next
	}

	papers := make([]types.Paper, 0, len(entries))
	for _, entry := range entries {
		papers = append(papers, toSemanticPaper(entry))
	}

	// Enrichment runs before the retention filter: a paper with a null
	// abstract still qualifies once its open-access PDF text is in.
	b.fetchPDFs(ctx, papers)
	return finalize(papers, limit, nil), nil
}

// fetchPage issues one interval-gated page request.
func (b *SemanticScholarBackend) fetchPage(ctx context.Context, query string, offset, pageSize int) (*semanticResponse, error) {
	if err := b.limiter.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"query":  {query},
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(pageSize)},
		"fields": {semanticFields},
	}
	reqURL := semanticAPIBase + "?" + params.Encode()

	var page semanticResponse
	err := fetchJSON(ctx, b.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		if b.apiKey != "" {
			req.Header.Set("x-api-key", b.apiKey)
		}
		req.Header.Set("User-Agent", b.cfg.UserAgent)
		return req, nil
	}, b.cfg.Retry, &page)
	if err != nil {
		return nil, fmt.Errorf("Semantic Scholar search: %w", err)
	}
	return &page, nil
}

// fetchPDFs downloads open-access PDFs for the kept papers, bounded by
// the configured concurrency cap. Failures leave the paper on its
// abstract.
func (b *SemanticScholarBackend) fetchPDFs(ctx context.Context, papers []types.Paper) {
	g, gctx := errgroup.WithContext(ctx)
	for i := range papers {
		pdfURL, _ := papers[i].Metadata["open_access_pdf"].(string)
		if pdfURL == "" {
			continue
		}
		i := i
		g.Go(func() error {
			if err := b.pdfSem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer b.pdfSem.Release(1)

			text, err := b.fetchPDFText(gctx, pdfURL)
			if err != nil {
				b.log.Warn("pdf fetch failed", zap.String("url", pdfURL), zap.Error(err))
				return nil
			}
			papers[i].FullText = text
			return nil
		})
	}
	_ = g.Wait()
}

func (b *SemanticScholarBackend) fetchPDFText(ctx context.Context, pdfURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pdfURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", b.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.client, req, b.cfg.Retry)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return extractPDFText(body)
}

func toSemanticPaper(entry semanticPaper) types.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name != "" {
			authors = append(authors, name)
		}
	}

	year := entry.Year
	if year == 0 {
		year = types.ParseYear(entry.PublicationDate)
	}

	return types.Paper{
		DOI:           entry.ExternalIDs.DOI,
		Title:         entry.Title,
		Authors:       authors,
		Year:          year,
		Abstract:      entry.Abstract,
		Source:        "Semantic Scholar",
		PDFLink:       entry.OpenAccessPDF.URL,
		CitationCount: citationsOrUnknown(entry.CitationCount),
		Metadata: map[string]any{
			"paper_id":         entry.PaperID,
			"publication_date": entry.PublicationDate,
			"open_access_pdf":  entry.OpenAccessPDF.URL,
		},
	}
}

// Semantic Scholar Graph API JSON structures.
type semanticResponse struct {
	Total  int             `json:"total"`
	Offset int             `json:"offset"`
	Next   *int            `json:"next"`
	Data   []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string              `json:"paperId"`
	Title           string              `json:"title"`
	Abstract        string              `json:"abstract"`
	Year            int                 `json:"year"`
	PublicationDate string              `json:"publicationDate"`
	CitationCount   int                 `json:"citationCount"`
	ExternalIDs     semanticExternalIDs `json:"externalIds"`
	OpenAccessPDF   semanticOpenAccess  `json:"openAccessPdf"`
	Authors         []semanticAuthor    `json:"authors"`
}

type semanticExternalIDs struct {
	DOI   string `json:"DOI"`
	ArXiv string `json:"ArXiv"`
}

type semanticOpenAccess struct {
	URL string `json:"url"`
}

type semanticAuthor struct {
	Name string `json:"name"`
}

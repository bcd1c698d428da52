// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/fulltext"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// coreAPIBase is the CORE v3 API base. Declared as a var so tests can
// substitute an httptest server.
var coreAPIBase = "https://api.core.ac.uk/v3"

// COREBackend queries the CORE works API with a JSON POST body.
type COREBackend struct {
	cfg     types.SearchConfig
	apiKey  string
	fetcher fulltext.Fetcher
	client  *http.Client
	limiter *limiter
	log     *zap.Logger
}

// NewCOREBackend builds the CORE adapter.
func NewCOREBackend(cfg types.SearchConfig, apiKey string, fetcher fulltext.Fetcher, client *http.Client, log *zap.Logger) *COREBackend {
	return &COREBackend{
		cfg:     cfg,
		apiKey:  apiKey,
		fetcher: fetcher,
		client:  client,
		limiter: newLimiter(cfg.Rate.COREConcurrency, 0),
		log:     log.Named("core"),
	}
}

// Name returns the backend identifier.
func (b *COREBackend) Name() string { return types.PlatformCORE }

// coreRequest is the JSON POST body for the works search.
type coreRequest struct {
	Q      string `json:"q"`
	Limit  int    `json:"limit"`
	Scroll bool   `json:"scroll"`
	Sort   string `json:"sort"`
}

// Search queries CORE and returns up to limit papers sorted by citation
// count descending.
func (b *COREBackend) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	if err := b.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.limiter.release()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+b.apiKey)
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "application/json")
	header.Set("User-Agent", b.cfg.UserAgent)

	newReq, err := postJSON(ctx, coreAPIBase+"/search/works", coreRequest{
		Q:      query,
		Limit:  2 * limit,
		Scroll: true,
		Sort:   "relevance",
	}, header)
	if err != nil {
		return nil, err
	}

	var cr coreResponse
	if err := fetchJSON(ctx, b.client, newReq, b.cfg.Retry, &cr); err != nil {
		return nil, fmt.Errorf("CORE search: %w", err)
	}

	papers := make([]types.Paper, 0, len(cr.Results))
	for _, entry := range cr.Results {
		papers = append(papers, b.toPaper(ctx, entry))
	}
	return finalize(papers, limit, byCitationsDesc), nil
}

func (b *COREBackend) toPaper(ctx context.Context, entry coreWork) types.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.Name)
		if name != "" {
			authors = append(authors, name)
		}
	}

	year := entry.YearPublished
	if year == 0 {
		year = types.ParseYear(entry.PublishedDate)
		if year == -1 {
			year = types.ParseYear(entry.CreatedDate)
		}
	}

	p := types.Paper{
		DOI:           entry.DOI,
		Title:         entry.Title,
		Authors:       authors,
		Year:          year,
		Abstract:      entry.Abstract,
		FullText:      entry.FullText,
		Source:        entry.Publisher,
		PDFLink:       entry.DownloadURL,
		CitationCount: citationsOrUnknown(entry.CitationCount),
		Metadata: map[string]any{
			"core_id":      fmt.Sprintf("%v", entry.ID),
			"language":     entry.Language.Code,
			"repositories": len(entry.Repositories),
		},
	}

	// CORE often ships full text inline; only enrich when it did not.
	if b.fetcher != nil && p.FullText == "" {
		if p.DOI != "" {
			p.FullText = b.fetcher.Fetch(ctx, p.DOI)
		} else if p.PDFLink != "" {
			p.FullText = b.fetcher.Fetch(ctx, p.PDFLink)
		}
	}
	return p
}

// CORE API JSON structures.
type coreResponse struct {
	TotalHits int        `json:"totalHits"`
	Results   []coreWork `json:"results"`
}

type coreWork struct {
	ID            any          `json:"id"`
	Title         string       `json:"title"`
	Abstract      string       `json:"abstract"`
	FullText      string       `json:"fullText"`
	DOI           string       `json:"doi"`
	Publisher     string       `json:"publisher"`
	DownloadURL   string       `json:"downloadUrl"`
	YearPublished int          `json:"yearPublished"`
	PublishedDate string       `json:"publishedDate"`
	CreatedDate   string       `json:"createdDate"`
	CitationCount int          `json:"citationCount"`
	Language      coreLanguage `json:"language"`
	Repositories  []coreRepo   `json:"repositories"`
	Authors       []coreAuthor `json:"authors"`
}

type coreAuthor struct {
	Name string `json:"name"`
}

type coreLanguage struct {
	Code string `json:"code"`
}

type coreRepo struct {
	ID any `json:"id"`
}

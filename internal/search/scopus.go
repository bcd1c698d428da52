// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/fulltext"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// scopusAPIBase is the Scopus search endpoint. Declared as a var so tests
// can substitute an httptest server.
var scopusAPIBase = "https://api.elsevier.com/content/search/scopus"

// invalidScopusPatterns are query fragments the Scopus API rejects:
// adjacent proximity operators, misplaced AND NOT, and bare wildcards.
var invalidScopusPatterns = []string{
	"W/n W/",
	"PRE/n PRE/",
	"AND NOT AND",
	"{*}",
	"(*)",
}

// ScopusBackend queries the Scopus API using its advanced field-code
// syntax (TITLE-ABS-KEY, W/n, PRE/n, braces, wildcards).
type ScopusBackend struct {
	cfg     types.SearchConfig
	apiKey  string
	fetcher fulltext.Fetcher
	client  *http.Client
	limiter *limiter
	log     *zap.Logger
}

// NewScopusBackend builds the Scopus adapter.
func NewScopusBackend(cfg types.SearchConfig, apiKey string, fetcher fulltext.Fetcher, client *http.Client, log *zap.Logger) *ScopusBackend {
	return &ScopusBackend{
		cfg:     cfg,
		apiKey:  apiKey,
		fetcher: fetcher,
		client:  client,
		limiter: newLimiter(cfg.Rate.ScopusConcurrency, 0),
		log:     log.Named("scopus"),
	}
}

// Name returns the backend identifier.
func (b *ScopusBackend) Name() string { return types.PlatformScopus }

// ValidateQuery rejects query fragments known to break the Scopus parser.
func ValidateQuery(query string) error {
	for _, pattern := range invalidScopusPatterns {
		if strings.Contains(query, pattern) {
			return fmt.Errorf("invalid Scopus syntax: contains %q", pattern)
		}
	}
	return nil
}

// Search queries Scopus sorted by citation count and returns up to limit
// papers.
func (b *ScopusBackend) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	if err := ValidateQuery(query); err != nil {
		b.log.Warn("rejected query", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	if err := b.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.limiter.release()

	params := url.Values{
		"query": {query},
		"count": {strconv.Itoa(2 * limit)},
		"view":  {"COMPLETE"},
		"sort":  {"-citedby-count"},
	}
	reqURL := scopusAPIBase + "?" + params.Encode()

	var sr scopusResponse
	err := fetchJSON(ctx, b.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-ELS-APIKey", b.apiKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", b.cfg.UserAgent)
		return req, nil
	}, b.cfg.Retry, &sr)
	if err != nil {
		return nil, fmt.Errorf("Scopus search: %w", err)
	}

	papers := make([]types.Paper, 0, len(sr.SearchResults.Entries))
	for _, entry := range sr.SearchResults.Entries {
		papers = append(papers, b.toPaper(ctx, entry))
	}
	return finalize(papers, limit, byCitationsDesc), nil
}

func (b *ScopusBackend) toPaper(ctx context.Context, entry scopusEntry) types.Paper {
	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		name := strings.TrimSpace(a.AuthName)
		if name != "" {
			authors = append(authors, name)
		}
	}

	citations := -1
	if n, err := strconv.Atoi(entry.CitedByCount); err == nil {
		citations = n
	}

	p := types.Paper{
		DOI:           entry.DOI,
		Title:         entry.Title,
		Authors:       authors,
		Year:          types.ParseYear(entry.CoverDate),
		Abstract:      entry.Description,
		Source:        entry.PublicationName,
		CitationCount: citations,
		Metadata: map[string]any{
			"scopus_id":   entry.Identifier,
			"eid":         entry.EID,
			"source_type": entry.AggregationType,
			"subtype":     entry.SubtypeDescription,
		},
	}

	if b.fetcher != nil && p.DOI != "" {
		p.FullText = b.fetcher.Fetch(ctx, p.DOI)
	}
	return p
}

// Scopus API JSON structures.
type scopusResponse struct {
	SearchResults scopusSearchResults `json:"search-results"`
}

type scopusSearchResults struct {
	TotalResults string        `json:"opensearch:totalResults"`
	Entries      []scopusEntry `json:"entry"`
}

type scopusEntry struct {
	Identifier         string         `json:"dc:identifier"`
	EID                string         `json:"eid"`
	Title              string         `json:"dc:title"`
	Description        string         `json:"dc:description"`
	DOI                string         `json:"prism:doi"`
	CoverDate          string         `json:"prism:coverDate"`
	PublicationName    string         `json:"prism:publicationName"`
	AggregationType    string         `json:"prism:aggregationType"`
	SubtypeDescription string         `json:"subtypeDescription"`
	CitedByCount       string         `json:"citedby-count"`
	Authors            []scopusAuthor `json:"author"`
}

type scopusAuthor struct {
	AuthName string `json:"authname"`
}

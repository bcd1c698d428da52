// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/fulltext"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// openAlexHost is the OpenAlex API host. Declared as a var so tests can
// substitute an httptest server.
var openAlexHost = "https://api.openalex.org"

// OpenAlexBackend queries the OpenAlex Works API. Unlike the other
// backends it receives fully formed works URLs from the query formulator
// rather than bare query strings.
type OpenAlexBackend struct {
	cfg     types.SearchConfig
	fetcher fulltext.Fetcher
	client  *http.Client
	limiter *limiter
	log     *zap.Logger
}

// NewOpenAlexBackend builds the OpenAlex adapter.
func NewOpenAlexBackend(cfg types.SearchConfig, fetcher fulltext.Fetcher, client *http.Client, log *zap.Logger) *OpenAlexBackend {
	return &OpenAlexBackend{
		cfg:     cfg,
		fetcher: fetcher,
		client:  client,
		limiter: newLimiter(cfg.Rate.OpenAlexConcurrency, 0),
		log:     log.Named("openalex"),
	}
}

// Name returns the backend identifier.
func (b *OpenAlexBackend) Name() string { return types.PlatformOpenAlex }

// Search fetches the given works URL and returns up to limit papers
// sorted by OpenAlex relevance score.
func (b *OpenAlexBackend) Search(ctx context.Context, query string, limit int) ([]types.Paper, error) {
	reqURL, err := b.rewriteURL(query, limit)
	if err != nil {
		b.log.Warn("invalid works URL", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	if err := b.limiter.acquire(ctx); err != nil {
		return nil, err
	}
	defer b.limiter.release()

	var oar openAlexResponse
	err = fetchJSON(ctx, b.client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", b.cfg.UserAgent)
		return req, nil
	}, b.cfg.Retry, &oar)
	if err != nil {
		return nil, fmt.Errorf("OpenAlex search: %w", err)
	}

	papers := make([]types.Paper, 0, len(oar.Results))
	for _, work := range oar.Results {
		papers = append(papers, b.toPaper(ctx, work))
	}

	// OpenAlex's preferred signal is its own relevance score.
	sort.SliceStable(papers, func(i, j int) bool {
		ri, _ := papers[i].Metadata["relevance_score"].(float64)
		rj, _ := papers[j].Metadata["relevance_score"].(float64)
		return ri > rj
	})
	return finalize(papers, limit, nil), nil
}

// rewriteURL validates the formulator-produced works URL, pins it to the
// configured host, and sets the over-fetch page size.
func (b *OpenAlexBackend) rewriteURL(query string, limit int) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(query))
	if err != nil {
		return "", fmt.Errorf("parsing works URL: %w", err)
	}
	if !strings.HasPrefix(parsed.Path, "/works") {
		return "", fmt.Errorf("works URL path must start with /works, got %q", parsed.Path)
	}

	host, err := url.Parse(openAlexHost)
	if err != nil {
		return "", err
	}
	parsed.Scheme = host.Scheme
	parsed.Host = host.Host

	params := parsed.Query()
	params.Set("per-page", strconv.Itoa(2*limit))
	if b.cfg.OpenAlexEmail != "" {
		params.Set("mailto", b.cfg.OpenAlexEmail)
	}
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}

func (b *OpenAlexBackend) toPaper(ctx context.Context, work openAlexWork) types.Paper {
	concepts := make([]string, 0, 5)
	for _, c := range work.Concepts {
		if len(concepts) == 5 {
			break
		}
		if c.DisplayName != "" {
			concepts = append(concepts, c.DisplayName)
		}
	}

	authors := make([]string, 0, len(work.Authorships))
	for _, a := range work.Authorships {
		if a.Author.DisplayName != "" {
			authors = append(authors, a.Author.DisplayName)
		}
	}

	p := types.Paper{
		DOI:           types.NormalizeDOI(work.DOI),
		Title:         work.Title,
		Authors:       authors,
		Year:          yearOrUnknown(work.PublicationYear),
		Abstract:      reconstructAbstract(work.AbstractInvertedIndex),
		Source:        work.PrimaryLocation.Source.DisplayName,
		PDFLink:       work.PrimaryLocation.PDFURL,
		CitationCount: citationsOrUnknown(work.CitedByCount),
		Metadata: map[string]any{
			"openalex_id":     work.ID,
			"type":            work.Type,
			"is_oa":           work.OpenAccess.IsOA,
			"cited_by_count":  work.CitedByCount,
			"relevance_score": work.RelevanceScore,
			"concepts":        concepts,
		},
	}

	// Enrichment failure is non-fatal: the paper may still be retained on
	// its abstract.
	if b.fetcher != nil {
		if p.DOI != "" {
			p.FullText = b.fetcher.Fetch(ctx, p.DOI)
		} else if p.PDFLink != "" {
			p.FullText = b.fetcher.Fetch(ctx, p.PDFLink)
		}
	}
	return p
}

func yearOrUnknown(year int) int {
	if year <= 0 {
		return -1
	}
	return year
}

func citationsOrUnknown(count int) int {
	if count < 0 {
		return -1
	}
	return count
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to the positions where it
// appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexResponse struct {
	Meta    openAlexMeta   `json:"meta"`
	Results []openAlexWork `json:"results"`
}

type openAlexMeta struct {
	Count int `json:"count"`
}

type openAlexWork struct {
	ID                    string             `json:"id"`
	Title                 string             `json:"title"`
	DOI                   string             `json:"doi"`
	Type                  string             `json:"type"`
	PublicationYear       int                `json:"publication_year"`
	RelevanceScore        float64            `json:"relevance_score"`
	CitedByCount          int                `json:"cited_by_count"`
	Authorships           []openAlexAuthorship `json:"authorships"`
	AbstractInvertedIndex map[string][]int   `json:"abstract_inverted_index"`
	Concepts              []openAlexConcept  `json:"concepts"`
	OpenAccess            openAlexOpenAccess `json:"open_access"`
	PrimaryLocation       openAlexLocation   `json:"primary_location"`
}

type openAlexAuthorship struct {
	Author openAlexAuthor `json:"author"`
}

type openAlexAuthor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type openAlexConcept struct {
	DisplayName string `json:"display_name"`
}

type openAlexOpenAccess struct {
	IsOA     bool   `json:"is_oa"`
	OAStatus string `json:"oa_status"`
}

type openAlexLocation struct {
	PDFURL string         `json:"pdf_url"`
	Source openAlexSource `json:"source"`
}

type openAlexSource struct {
	DisplayName string `json:"display_name"`
}

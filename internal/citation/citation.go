// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package citation resolves BibTeX entries for ranked papers, first by
// DOI content negotiation against doi.org, then by CrossRef title search
// when no DOI is known.
package citation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/httputil"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// API bases, declared as vars so tests can substitute httptest servers.
var (
	doiOrgBase      = "https://doi.org"
	crossRefAPIBase = "https://api.crossref.org"
)

// Resolver turns paper identity into a BibTeX entry.
type Resolver interface {
	ByDOI(ctx context.Context, doi string) (string, error)
	ByTitle(ctx context.Context, title string, authors []string, year int) (string, error)
}

// HTTPResolver resolves citations over doi.org and CrossRef.
type HTTPResolver struct {
	client *http.Client
	retry  types.RetryConfig
	ua     string
	log    *zap.Logger
}

// NewHTTPResolver builds an HTTPResolver.
func NewHTTPResolver(client *http.Client, retry types.RetryConfig, userAgent string, log *zap.Logger) *HTTPResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPResolver{client: client, retry: retry, ua: userAgent, log: log.Named("citation")}
}

// ByDOI negotiates a BibTeX rendering of the DOI from doi.org.
func (r *HTTPResolver) ByDOI(ctx context.Context, doi string) (string, error) {
	doi = types.NormalizeDOI(doi)
	if doi == "" {
		return "", fmt.Errorf("empty DOI")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, doiOrgBase+"/"+doi, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/x-bibtex")
	req.Header.Set("User-Agent", r.ua)

	resp, err := httputil.DoWithRetry(ctx, r.client, req, r.retry)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d resolving DOI %s", resp.StatusCode, doi)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	bib := strings.TrimSpace(string(body))
	if !strings.HasPrefix(bib, "@") {
		return "", fmt.Errorf("doi.org returned non-BibTeX content for %s", doi)
	}
	return bib, nil
}

// ByTitle searches CrossRef for the closest title match and resolves its
// DOI to BibTeX. The first known author and the publication year narrow
// the query when available.
func (r *HTTPResolver) ByTitle(ctx context.Context, title string, authors []string, year int) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("empty title")
	}

	params := url.Values{
		"query.title": {title},
		"rows":        {"1"},
	}
	if author := firstKnownAuthor(authors); author != "" {
		params.Set("query.author", author)
	}
	if year > 0 {
		params.Set("filter", fmt.Sprintf("from-pub-date:%d-01-01,until-pub-date:%d-12-31", year, year))
	}
	reqURL := crossRefAPIBase + "/works?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.ua)

	resp, err := httputil.DoWithRetry(ctx, r.client, req, r.retry)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d from CrossRef", resp.StatusCode)
	}

	var cr crossRefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("parsing CrossRef response: %w", err)
	}
	if len(cr.Message.Items) == 0 || cr.Message.Items[0].DOI == "" {
		return "", fmt.Errorf("no CrossRef match for title %q", title)
	}
	return r.ByDOI(ctx, cr.Message.Items[0].DOI)
}

// Resolve fills the paper's BibTeX, preferring the DOI path and falling
// back to title search. Failure leaves the field empty.
func Resolve(ctx context.Context, r Resolver, paper *types.Paper, log *zap.Logger) {
	if r == nil || paper.BibTeX != "" {
		return
	}
	if log == nil {
		log = zap.NewNop()
	}

	if paper.DOI != "" {
		bib, err := r.ByDOI(ctx, paper.DOI)
		if err == nil {
			paper.BibTeX = bib
			return
		}
		log.Debug("DOI resolution failed", zap.String("doi", paper.DOI), zap.Error(err))
	}

	bib, err := r.ByTitle(ctx, paper.Title, paper.Authors, paper.Year)
	if err != nil {
		log.Debug("title resolution failed", zap.String("title", paper.Title), zap.Error(err))
		return
	}
	paper.BibTeX = bib
}

// firstKnownAuthor returns the first real author name, skipping the
// unknown-author placeholder.
func firstKnownAuthor(authors []string) string {
	for _, a := range authors {
		a = strings.TrimSpace(a)
		if a != "" && a != types.UnknownAuthor {
			return a
		}
	}
	return ""
}

// CrossRef API JSON structures.
type crossRefResponse struct {
	Message crossRefMessage `json:"message"`
}

type crossRefMessage struct {
	Items []crossRefItem `json:"items"`
}

type crossRefItem struct {
	DOI string `json:"DOI"`
}

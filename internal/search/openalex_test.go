// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestReconstructAbstract(t *testing.T) {
	inverted := map[string][]int{
		"learning": {1},
		"deep":     {0},
		"works":    {2, 4},
		"it":       {3},
	}
	got := reconstructAbstract(inverted)
	if got != "deep learning works it works" {
		t.Errorf("reconstructAbstract = %q", got)
	}

	if reconstructAbstract(nil) != "" {
		t.Error("nil index should reconstruct to empty")
	}
}

func TestOpenAlexRewriteURL(t *testing.T) {
	cfg := testSearchConfig()
	cfg.OpenAlexEmail = "dev@example.com"
	b := NewOpenAlexBackend(cfg, nil, nil, zap.NewNop())

	got, err := b.rewriteURL("https://api.openalex.org/works?search=%22precision+irrigation%22", 10)
	if err != nil {
		t.Fatalf("rewriteURL: %v", err)
	}
	parsed, _ := url.Parse(got)
	if parsed.Query().Get("per-page") != "20" {
		t.Errorf("per-page = %q, want over-fetch of 2x limit", parsed.Query().Get("per-page"))
	}
	if parsed.Query().Get("mailto") != "dev@example.com" {
		t.Errorf("mailto missing: %q", got)
	}

	if _, err := b.rewriteURL("https://api.openalex.org/authors?search=x", 10); err == nil {
		t.Error("non-works path should be rejected")
	}
}

func TestOpenAlexSearch(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(map[string]any{
			"meta": map[string]any{"count": 2},
			"results": []map[string]any{
				{
					"id":               "https://openalex.org/W1",
					"title":            "Low Relevance Paper",
					"doi":              "https://doi.org/10.1/low",
					"publication_year": 2020,
					"relevance_score":  1.5,
					"cited_by_count":   3,
					"abstract_inverted_index": map[string][]int{
						"low": {0}, "relevance": {1},
					},
				},
				{
					"id":               "https://openalex.org/W2",
					"title":            "High Relevance Paper",
					"doi":              "https://doi.org/10.1/high",
					"publication_year": 2022,
					"relevance_score":  9.9,
					"cited_by_count":   10,
					"abstract_inverted_index": map[string][]int{
						"high": {0}, "relevance": {1},
					},
					"authorships": []map[string]any{
						{"author": map[string]any{"display_name": "Ada Lovelace"}},
					},
					"primary_location": map[string]any{
						"pdf_url": "https://example.org/high.pdf",
						"source":  map[string]any{"display_name": "Journal of Tests"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	orig := openAlexHost
	openAlexHost = srv.URL
	defer func() { openAlexHost = orig }()

	b := NewOpenAlexBackend(testSearchConfig(), staticFetcher{text: "full text"}, srv.Client(), zap.NewNop())
	papers, err := b.Search(context.Background(), "https://api.openalex.org/works?search=test", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotQuery.Get("per-page") != "10" {
		t.Errorf("per-page = %q", gotQuery.Get("per-page"))
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}
	// Relevance order, not wire order.
	if papers[0].Title != "High Relevance Paper" {
		t.Errorf("first paper = %q, want relevance sort", papers[0].Title)
	}
	if papers[0].DOI != "10.1/high" {
		t.Errorf("DOI not normalized: %q", papers[0].DOI)
	}
	if papers[0].Year != 2022 || papers[0].CitationCount != 10 {
		t.Errorf("metadata wrong: year=%d citations=%d", papers[0].Year, papers[0].CitationCount)
	}
	if papers[0].Source != "Journal of Tests" {
		t.Errorf("source = %q", papers[0].Source)
	}
	if papers[0].FullText != "full text" {
		t.Errorf("fetcher enrichment missing: %q", papers[0].FullText)
	}
	if !strings.Contains(papers[1].Abstract, "low relevance") &&
		papers[1].Abstract != "low relevance" {
		t.Errorf("abstract not reconstructed: %q", papers[1].Abstract)
	}
}

func TestOpenAlexRejectsInvalidURL(t *testing.T) {
	b := NewOpenAlexBackend(testSearchConfig(), nil, nil, zap.NewNop())
	if _, err := b.Search(context.Background(), "not a works url", 5); err == nil {
		t.Error("invalid works URL should error")
	}
}

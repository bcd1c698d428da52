// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestCORESearch(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody coreRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"totalHits": 2,
			"results": []map[string]any{
				{
					"id":            123,
					"title":         "Inline Text Paper",
					"abstract":      "Abstract one.",
					"fullText":      "Already shipped full text.",
					"doi":           "10.1/inline",
					"publisher":     "CORE Press",
					"yearPublished": 2018,
					"citationCount": 4,
					"language":      map[string]any{"code": "en"},
					"authors": []map[string]any{
						{"name": "Alan Turing"},
					},
				},
				{
					"title":         "Needs Enrichment",
					"abstract":      "Abstract two.",
					"doi":           "10.1/enrich",
					"publishedDate": "2020-03-02",
					"citationCount": 11,
				},
			},
		})
	}))
	defer srv.Close()

	orig := coreAPIBase
	coreAPIBase = srv.URL
	defer func() { coreAPIBase = orig }()

	b := NewCOREBackend(testSearchConfig(), "core-key", staticFetcher{text: "fetched text"}, srv.Client(), zap.NewNop())
	papers, err := b.Search(context.Background(), "title:(test)", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Bearer core-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/search/works" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.Q != "title:(test)" || gotBody.Limit != 10 || !gotBody.Scroll || gotBody.Sort != "relevance" {
		t.Errorf("request body = %+v", gotBody)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}
	// Citation sort: 11 before 4.
	if papers[0].Title != "Needs Enrichment" {
		t.Errorf("first paper = %q", papers[0].Title)
	}
	if papers[0].Year != 2020 {
		t.Errorf("publishedDate year = %d", papers[0].Year)
	}
	if papers[0].FullText != "fetched text" {
		t.Errorf("paper without inline text should be enriched: %q", papers[0].FullText)
	}
	if papers[1].FullText != "Already shipped full text." {
		t.Errorf("inline full text should be kept: %q", papers[1].FullText)
	}
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

func semanticPage(offset, count int, next *int) map[string]any {
	data := make([]map[string]any, 0, count)
	for i := 0; i < count; i++ {
		n := offset + i
		data = append(data, map[string]any{
			"paperId":       "p" + strconv.Itoa(n),
			"title":         "Paper " + strconv.Itoa(n),
			"abstract":      "Abstract.",
			"year":          2020,
			"citationCount": n,
		})
	}
	page := map[string]any{
		"total":  1000,
		"offset": offset,
		"data":   data,
	}
	if next != nil {
		page["next"] = *next
	}
	return page
}

func TestSemanticScholarPagination(t *testing.T) {
	cfg := testSearchConfig()
	var offsets []string
	var gotKey, gotFields string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotFields = r.URL.Query().Get("fields")
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		offsets = append(offsets, r.URL.Query().Get("offset"))

		// Serve pages of 100 with a next cursor; the backend wants 2*150=300.
		next := offset + 100
		json.NewEncoder(w).Encode(semanticPage(offset, 100, &next))
	}))
	defer srv.Close()

	orig := semanticAPIBase
	semanticAPIBase = srv.URL
	defer func() { semanticAPIBase = orig }()

	b := NewSemanticScholarBackend(cfg, "s2-key", srv.Client(), zap.NewNop())
	b.limiter = newLimiter(1, 0) // no interval sleeps under test

	papers, err := b.Search(context.Background(), "test query", 150)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotKey != "s2-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotFields != semanticFields {
		t.Errorf("fields = %q", gotFields)
	}
	if len(offsets) != 3 {
		t.Fatalf("expected 3 page fetches, got %v", offsets)
	}
	if offsets[0] != "0" || offsets[1] != "100" || offsets[2] != "200" {
		t.Errorf("offsets = %v", offsets)
	}
	if len(papers) != 150 {
		t.Errorf("expected trim to limit 150, got %d", len(papers))
	}
	// Trim keeps the API's relevance order: the first-returned paper stays first.
	if papers[0].Title != "Paper 0" || papers[149].Title != "Paper 149" {
		t.Errorf("trim should preserve arrival order, got %q .. %q",
			papers[0].Title, papers[149].Title)
	}
}

func TestSemanticScholarEnrichesBeforeFiltering(t *testing.T) {
	var pdfFetches int
	pdfSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pdfFetches++
		w.Write([]byte("%PDF-bytes"))
	}))
	defer pdfSrv.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total":  1,
			"offset": 0,
			"data": []map[string]any{{
				"paperId": "oa1",
				"title":   "Open Access Without Abstract",
				"year":    2022,
				"openAccessPdf": map[string]any{
					"url": pdfSrv.URL + "/oa1.pdf",
				},
			}},
		})
	}))
	defer srv.Close()

	origAPI := semanticAPIBase
	semanticAPIBase = srv.URL
	origExtract := extractPDFText
	extractPDFText = func(data []byte) (string, error) { return "Recovered full text.", nil }
	defer func() {
		semanticAPIBase = origAPI
		extractPDFText = origExtract
	}()

	b := NewSemanticScholarBackend(testSearchConfig(), "k", srv.Client(), zap.NewNop())
	b.limiter = newLimiter(1, 0)

	papers, err := b.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if pdfFetches != 1 {
		t.Fatalf("expected 1 PDF fetch before filtering, got %d", pdfFetches)
	}
	if len(papers) != 1 {
		t.Fatalf("abstract-less open-access paper should survive, got %d papers", len(papers))
	}
	if papers[0].FullText != "Recovered full text." {
		t.Errorf("full text = %q", papers[0].FullText)
	}
}

func TestSemanticScholarStopsAtWindow(t *testing.T) {
	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		next := offset + 100
		json.NewEncoder(w).Encode(semanticPage(offset, 100, &next))
	}))
	defer srv.Close()

	orig := semanticAPIBase
	semanticAPIBase = srv.URL
	defer func() { semanticAPIBase = orig }()

	b := NewSemanticScholarBackend(testSearchConfig(), "k", srv.Client(), zap.NewNop())
	b.limiter = newLimiter(1, 0)

	// 2*600 = 1200 wanted, but the window stops pagination at offset 1000.
	if _, err := b.Search(context.Background(), "q", 600); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if fetches != 10 {
		t.Errorf("expected 10 fetches (window cap), got %d", fetches)
	}
}

func TestSemanticScholarPartialPageFailure(t *testing.T) {
	var fetches int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		if fetches > 1 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		next := 100
		json.NewEncoder(w).Encode(semanticPage(0, 100, &next))
	}))
	defer srv.Close()

	orig := semanticAPIBase
	semanticAPIBase = srv.URL
	defer func() { semanticAPIBase = orig }()

	b := NewSemanticScholarBackend(testSearchConfig(), "k", srv.Client(), zap.NewNop())
	b.limiter = newLimiter(1, 0)

	papers, err := b.Search(context.Background(), "q", 100)
	if err != nil {
		t.Fatalf("partial results should not error: %v", err)
	}
	if len(papers) != 100 {
		t.Errorf("expected the first page's papers, got %d", len(papers))
	}
}

func TestSemanticScholarIntervalByKey(t *testing.T) {
	cfg := testSearchConfig()
	with := NewSemanticScholarBackend(cfg, "key", nil, zap.NewNop())
	without := NewSemanticScholarBackend(cfg, "", nil, zap.NewNop())
	if with.limiter.interval >= without.limiter.interval {
		t.Errorf("keyed interval (%v) should be shorter than keyless (%v)",
			with.limiter.interval, without.limiter.interval)
	}
}

func TestToSemanticPaper(t *testing.T) {
	var p types.Paper = toSemanticPaper(semanticPaper{
		PaperID:         "abc",
		Title:           "T",
		Abstract:        "A",
		PublicationDate: "2019-06-01",
		CitationCount:   3,
		ExternalIDs:     semanticExternalIDs{DOI: "10.1/x"},
		OpenAccessPDF:   semanticOpenAccess{URL: "https://example.org/x.pdf"},
		Authors:         []semanticAuthor{{Name: "A. Author"}},
	})
	if p.Year != 2019 {
		t.Errorf("year fallback from publicationDate = %d", p.Year)
	}
	if p.Metadata["open_access_pdf"] != "https://example.org/x.pdf" {
		t.Errorf("open_access_pdf metadata missing")
	}
	if p.DOI != "10.1/x" || p.CitationCount != 3 {
		t.Errorf("paper = %+v", p)
	}
}

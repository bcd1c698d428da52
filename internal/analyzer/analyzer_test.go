// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package analyzer

import (
	"context"
	"fmt"
	"testing"

	"github.com/pdiddy/claim-analyzer/internal/schema"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// fakeSearcher adds canned papers for every user query it receives.
type fakeSearcher struct {
	papers     []types.Paper
	err        error
	queries    []string
	numQueries int
	perQuery   int
}

func (s *fakeSearcher) Run(ctx context.Context, analysis *types.RequestAnalysis, userQuery string, numQueries, perQuery int) error {
	s.queries = append(s.queries, userQuery)
	s.numQueries = numQueries
	s.perQuery = perQuery
	if s.err != nil {
		return s.err
	}
	for _, p := range s.papers {
		analysis.AddSearchResult(p)
	}
	return nil
}

// fakeAdjudicator passes through the current results, optionally failing.
type fakeAdjudicator struct {
	err    error
	called bool
}

func (a *fakeAdjudicator) Apply(ctx context.Context, analysis *types.RequestAnalysis) ([]types.RankedPaper, error) {
	a.called = true
	if a.err != nil {
		return nil, a.err
	}
	out := make([]types.RankedPaper, 0, len(analysis.Results()))
	for _, p := range analysis.Results() {
		out = append(out, types.RankedPaper{
			Paper:                   p,
			ExclusionCriteriaResult: map[string]bool{},
			ExtractionResult:        map[string]any{},
		})
	}
	return out, nil
}

// fakeRanker returns the first topN candidates and records the claim.
type fakeRanker struct {
	claim      string
	guidance   string
	candidates int
	err        error
}

func (r *fakeRanker) Rank(ctx context.Context, candidates []types.RankedPaper, claim, guidance string, topN int) ([]types.RankedPaper, error) {
	r.claim = claim
	r.guidance = guidance
	r.candidates = len(candidates)
	if r.err != nil {
		return nil, r.err
	}
	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

func testPipeline(s *fakeSearcher, a *fakeAdjudicator, r *fakeRanker) *Pipeline {
	return NewPipeline(s, a, r, []string{"openalex"}, nil)
}

func TestAnalyzeRequest(t *testing.T) {
	s := &fakeSearcher{papers: []types.Paper{
		{Title: "Paper A", Abstract: "x"},
		{Title: "Paper B", Abstract: "y"},
		{Title: "Paper C", Abstract: "z"},
	}}
	a := &fakeAdjudicator{}
	r := &fakeRanker{}

	p := testPipeline(s, a, r)
	analysis := p.AnalyzeRequest(context.Background(), Options{
		Queries:           []string{"does coffee improve memory"},
		RankingGuidance:   "prefer RCTs",
		NumPapersToReturn: 2,
	})

	if analysis.Query != "does coffee improve memory" {
		t.Errorf("query = %q", analysis.Query)
	}
	if _, failed := analysis.Metadata["error"]; failed {
		t.Fatalf("unexpected error: %v", analysis.Metadata["error"])
	}
	// Defaults fill the counts the caller left zero.
	if s.numQueries != DefaultNumQueries || s.perQuery != DefaultPapersPerQuery {
		t.Errorf("defaults not applied: numQueries=%d perQuery=%d", s.numQueries, s.perQuery)
	}
	if r.claim != "does coffee improve memory" || r.guidance != "prefer RCTs" {
		t.Errorf("ranker got claim=%q guidance=%q", r.claim, r.guidance)
	}
	if len(analysis.RankedPapers) != 2 {
		t.Errorf("ranked papers = %d", len(analysis.RankedPapers))
	}
}

func TestAnalyzeRequestMultiQuery(t *testing.T) {
	s := &fakeSearcher{papers: []types.Paper{{Title: "Shared", Abstract: "x"}}}
	r := &fakeRanker{}
	p := testPipeline(s, &fakeAdjudicator{}, r)

	analysis := p.AnalyzeRequest(context.Background(), Options{
		Queries: []string{"first question", "second question"},
	})

	if analysis.Query != "(multiple user queries)" {
		t.Errorf("label = %q", analysis.Query)
	}
	if len(analysis.UserQueries) != 2 {
		t.Errorf("user queries = %v", analysis.UserQueries)
	}
	if len(s.queries) != 2 {
		t.Errorf("searcher should run per query, got %v", s.queries)
	}
	if r.claim != "first question; second question" {
		t.Errorf("claim = %q", r.claim)
	}
	// Both searches harvested the same paper; dedup keeps one.
	if len(analysis.SearchResults) != 1 {
		t.Errorf("search results = %d", len(analysis.SearchResults))
	}
}

func TestAnalyzeRequestNoQuery(t *testing.T) {
	p := testPipeline(&fakeSearcher{}, &fakeAdjudicator{}, &fakeRanker{})
	analysis := p.AnalyzeRequest(context.Background(), Options{})
	if analysis.Metadata["error"] != "no research query provided" {
		t.Errorf("metadata = %v", analysis.Metadata)
	}
}

func TestAnalyzeRequestCompilesSchemas(t *testing.T) {
	s := &fakeSearcher{}
	p := testPipeline(s, &fakeAdjudicator{}, &fakeRanker{})

	analysis := p.AnalyzeRequest(context.Background(), Options{
		Queries:           []string{"q"},
		ExclusionCriteria: []schema.FieldSpec{{Name: "is_review", Type: "string"}},
		ExtractionSchema:  []schema.FieldSpec{{Name: "sample_size", Type: "integer"}},
	})

	if analysis.ExclusionSchema == nil || !analysis.ExclusionSchema.Fields[0].Exclusion {
		t.Error("exclusion schema should compile with exclusion fields forced boolean")
	}
	if analysis.ExclusionSchema.Fields[0].Kind != types.KindBoolean {
		t.Errorf("exclusion kind = %v", analysis.ExclusionSchema.Fields[0].Kind)
	}
	if analysis.ExtractionSchema == nil || analysis.ExtractionSchema.Fields[0].Kind != types.KindInteger {
		t.Error("extraction schema should compile")
	}
}

func TestAnalyzeRequestInvalidSchema(t *testing.T) {
	p := testPipeline(&fakeSearcher{}, &fakeAdjudicator{}, &fakeRanker{})
	analysis := p.AnalyzeRequest(context.Background(), Options{
		Queries:           []string{"q"},
		ExclusionCriteria: []schema.FieldSpec{{Name: "  "}},
	})
	if _, failed := analysis.Metadata["error"]; !failed {
		t.Error("invalid schema should record an error")
	}
}

func TestAnalyzeRequestSearchFailure(t *testing.T) {
	s := &fakeSearcher{err: fmt.Errorf("context canceled")}
	p := testPipeline(s, &fakeAdjudicator{}, &fakeRanker{})
	analysis := p.AnalyzeRequest(context.Background(), Options{Queries: []string{"q"}})
	if _, failed := analysis.Metadata["error"]; !failed {
		t.Error("search failure should record an error")
	}
}

func TestAnalyzeRequestAdjudicatorFailureRanksUnfiltered(t *testing.T) {
	s := &fakeSearcher{papers: []types.Paper{{Title: "Survivor", Abstract: "x"}}}
	r := &fakeRanker{}
	p := testPipeline(s, &fakeAdjudicator{err: fmt.Errorf("model down")}, r)

	analysis := p.AnalyzeRequest(context.Background(), Options{Queries: []string{"q"}})

	if _, failed := analysis.Metadata["error"]; failed {
		t.Fatalf("adjudicator failure should degrade, got error: %v", analysis.Metadata["error"])
	}
	warnings, _ := analysis.Metadata["pipeline"].([]string)
	if len(warnings) == 0 {
		t.Error("degraded exclusion should record a warning")
	}
	if r.candidates != 1 {
		t.Errorf("ranker should receive the unfiltered papers, got %d", r.candidates)
	}
	if len(analysis.RankedPapers) != 1 {
		t.Errorf("ranked papers = %d", len(analysis.RankedPapers))
	}
}

func TestAnalyzeRequestNoCandidates(t *testing.T) {
	r := &fakeRanker{}
	p := testPipeline(&fakeSearcher{}, &fakeAdjudicator{}, r)
	analysis := p.AnalyzeRequest(context.Background(), Options{Queries: []string{"q"}})
	if r.candidates != 0 {
		t.Error("ranker should not run with no candidates")
	}
	if len(analysis.RankedPapers) != 0 {
		t.Errorf("ranked papers = %d", len(analysis.RankedPapers))
	}
}

func TestAnalyzeRequestRankerFailure(t *testing.T) {
	s := &fakeSearcher{papers: []types.Paper{{Title: "P", Abstract: "x"}}}
	p := testPipeline(s, &fakeAdjudicator{}, &fakeRanker{err: fmt.Errorf("context canceled")})
	analysis := p.AnalyzeRequest(context.Background(), Options{Queries: []string{"q"}})
	if _, failed := analysis.Metadata["error"]; !failed {
		t.Error("ranker failure should record an error")
	}
}

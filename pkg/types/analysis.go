// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sync"
	"time"
)

// SearchQuery records one backend-tagged query produced by the formulator.
type SearchQuery struct {
	// Query is the backend-syntax query string.
	Query string `json:"query" yaml:"query"`

	// Source is the backend tag (e.g. "openalex", "scopus").
	Source string `json:"source" yaml:"source"`

	// Timestamp is when the query was recorded.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Parameters holds the tunable counts and platform selection for a request.
type Parameters struct {
	// NumQueries is the number of queries generated per backend.
	NumQueries int `json:"num_queries" yaml:"num_queries"`

	// PapersPerQuery is the maximum number of papers each adapter returns
	// per query.
	PapersPerQuery int `json:"papers_per_query" yaml:"papers_per_query"`

	// NumPapersToReturn is the number of top-ranked survivors to return.
	NumPapersToReturn int `json:"num_papers_to_return" yaml:"num_papers_to_return"`

	// Platforms is the subset of enabled backends.
	Platforms []string `json:"platforms" yaml:"platforms"`
}

// RequestAnalysis is the aggregate carrying all state of a single request.
// It is created at pipeline entry, mutated by the orchestrator and its
// components, and serialized to the caller at exit. All mutating methods
// serialize access, so components may call them from concurrent tasks.
type RequestAnalysis struct {
	mu          sync.Mutex
	seenResults map[string]bool
	seenRanked  map[string]bool

	// Query is the user's research query. In multi-query mode it holds the
	// query currently being processed; UserQueries lists all of them.
	Query string `json:"query" yaml:"query"`

	// UserQueries lists the original queries in multi-query mode.
	UserQueries []string `json:"user_queries,omitempty" yaml:"user_queries,omitempty"`

	// RankingGuidance is free-text guidance passed to the ranker.
	RankingGuidance string `json:"ranking_guidance" yaml:"ranking_guidance"`

	// Parameters holds the request counts and platform selection.
	Parameters Parameters `json:"parameters" yaml:"parameters"`

	// ExclusionSchema is the compiled exclusion criteria, or nil.
	ExclusionSchema *CompiledSchema `json:"exclusion_schema,omitempty" yaml:"exclusion_schema,omitempty"`

	// ExtractionSchema is the compiled data extraction schema, or nil.
	ExtractionSchema *CompiledSchema `json:"data_extraction_schema,omitempty" yaml:"data_extraction_schema,omitempty"`

	// Queries lists the generated backend queries in insertion order.
	Queries []SearchQuery `json:"queries" yaml:"queries"`

	// SearchResults holds harvested papers, deduplicated by normalized
	// title, in arrival order.
	SearchResults []Paper `json:"search_results" yaml:"search_results"`

	// RankedPapers holds the final ranked output, deduplicated by
	// normalized title.
	RankedPapers []RankedPaper `json:"ranked_papers" yaml:"ranked_papers"`

	// Metadata carries free-form request metadata, including warning and
	// error records.
	Metadata map[string]any `json:"metadata" yaml:"metadata"`

	// Timestamp is when the analysis was created.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewRequestAnalysis creates an analysis aggregate for a single request.
func NewRequestAnalysis(query, rankingGuidance string, params Parameters) *RequestAnalysis {
	return &RequestAnalysis{
		seenResults:     make(map[string]bool),
		seenRanked:      make(map[string]bool),
		Query:           query,
		RankingGuidance: rankingGuidance,
		Parameters:      params,
		Metadata:        make(map[string]any),
		Timestamp:       time.Now().UTC(),
	}
}

// AddQuery appends a backend-tagged query to the analysis.
func (a *RequestAnalysis) AddQuery(query, source string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Queries = append(a.Queries, SearchQuery{
		Query:     query,
		Source:    source,
		Timestamp: time.Now().UTC(),
	})
}

// AddSearchResult inserts a paper into the search results unless a paper
// with the same normalized title is already present. Insertion after the
// first duplicate is a no-op. It reports whether the paper was inserted.
func (a *RequestAnalysis) AddSearchResult(p Paper) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := p.DedupKey()
	if a.seenResults[key] {
		return false
	}
	a.seenResults[key] = true
	a.SearchResults = append(a.SearchResults, p)
	return true
}

// AddRankedPaper appends a ranked paper, applying the same title dedup
// rule as AddSearchResult.
func (a *RequestAnalysis) AddRankedPaper(p RankedPaper) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := p.DedupKey()
	if a.seenRanked[key] {
		return false
	}
	a.seenRanked[key] = true
	a.RankedPapers = append(a.RankedPapers, p)
	return true
}

// Results returns a copy of the current search results.
func (a *RequestAnalysis) Results() []Paper {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Paper, len(a.SearchResults))
	copy(out, a.SearchResults)
	return out
}

// ReplaceResults swaps the search results for a filtered subset, rebuilding
// the dedup index. The adjudicator uses this after applying exclusions.
func (a *RequestAnalysis) ReplaceResults(papers []Paper) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SearchResults = papers
	a.seenResults = make(map[string]bool, len(papers))
	for _, p := range papers {
		a.seenResults[p.DedupKey()] = true
	}
}

// RecordWarning appends a warning message under the given metadata key.
func (a *RequestAnalysis) RecordWarning(key, msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	existing, _ := a.Metadata[key].([]string)
	a.Metadata[key] = append(existing, msg)
}

// SetMetadata records a metadata entry.
func (a *RequestAnalysis) SetMetadata(key string, value any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Metadata[key] = value
}

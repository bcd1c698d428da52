// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the claim-analyzer
// pipeline: the Paper record produced by search backends, the RankedPaper
// produced by the tournament ranker, compiled field schemas, and the
// per-request analysis aggregate.
package types

import (
	"strconv"
	"strings"
)

// UnknownAuthor replaces an empty author list so every Paper carries at
// least one author entry.
const UnknownAuthor = "Unknown Author"

// Paper holds the metadata and text of a single candidate paper returned
// by an academic API backend.
type Paper struct {
	// ID is assigned by the ranker as "paper_<k>"; empty before ranking.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// DOI is the bare DOI without the https://doi.org/ prefix. May be empty.
	DOI string `json:"doi" yaml:"doi"`

	// Title is the paper title. Required, non-empty after trimming.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order. Never empty after
	// Sanitize; an unknown author list becomes [UnknownAuthor].
	Authors []string `json:"authors" yaml:"authors"`

	// Year is the publication year in [1900, 2100], or -1 when unknown.
	Year int `json:"year" yaml:"year"`

	// Abstract is the paper abstract, possibly empty.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// FullText is the extracted full text, possibly empty and possibly
	// very large.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// PDFLink is a direct PDF URL when the backend provides one.
	PDFLink string `json:"pdf_link,omitempty" yaml:"pdf_link,omitempty"`

	// Source is the human-readable publisher or venue name.
	Source string `json:"source" yaml:"source"`

	// BibTeX is the formatted citation, filled in by citation enrichment.
	BibTeX string `json:"bibtex" yaml:"bibtex"`

	// CitationCount is the backend-reported citation count, or -1.
	CitationCount int `json:"citation_count" yaml:"citation_count"`

	// Metadata carries backend-specific scalars (backend id, OA status,
	// concepts, and so on).
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Sanitize normalizes a Paper in place: the title is trimmed, the DOI is
// stripped of any doi.org prefix, an empty author list is replaced with
// [UnknownAuthor], and an out-of-range year becomes -1.
func (p *Paper) Sanitize() {
	p.Title = strings.TrimSpace(p.Title)
	p.DOI = NormalizeDOI(p.DOI)
	if len(p.Authors) == 0 {
		p.Authors = []string{UnknownAuthor}
	}
	if p.Year != -1 && (p.Year < 1900 || p.Year > 2100) {
		p.Year = -1
	}
}

// Retainable reports whether the Paper satisfies the retention invariant:
// a non-empty title and at least one of abstract or full text.
func (p *Paper) Retainable() bool {
	if strings.TrimSpace(p.Title) == "" {
		return false
	}
	return strings.TrimSpace(p.Abstract) != "" || strings.TrimSpace(p.FullText) != ""
}

// DedupKey returns the deduplication key for the Paper: its title
// lowercased and whitespace-trimmed. Two papers with equal keys are
// duplicates.
func (p *Paper) DedupKey() string {
	return NormalizeTitle(p.Title)
}

// NormalizeDOI strips a leading https://doi.org/ or http://doi.org/ prefix
// and trailing whitespace from a DOI-like identifier.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, "https://doi.org/")
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	return doi
}

// NormalizeTitle lowercases and whitespace-trims a title for use as a
// dedup key.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// ParseYear parses a year string (possibly a full date such as
// "2023-02-13") and returns the year, or -1 when the value is missing,
// malformed, or outside [1900, 2100].
func ParseYear(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return -1
	}
	if idx := strings.IndexAny(s, "-T"); idx > 0 {
		s = s[:idx]
	}
	year, err := strconv.Atoi(s)
	if err != nil || year < 1900 || year > 2100 {
		return -1
	}
	return year
}

// RankedPaper extends Paper with the outputs of adjudication and ranking.
type RankedPaper struct {
	Paper `yaml:",inline"`

	// RelevanceScore is the mean normalized tournament score in [0, 1].
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Analysis is the free-text relevance analysis from the deep-analysis
	// pass.
	Analysis string `json:"analysis" yaml:"analysis"`

	// RelevantQuotes holds verbatim excerpts supporting the analysis.
	RelevantQuotes []string `json:"relevant_quotes" yaml:"relevant_quotes"`

	// ExclusionCriteriaResult maps each exclusion field to the boolean the
	// adjudicator returned for it.
	ExclusionCriteriaResult map[string]bool `json:"exclusion_criteria_result,omitempty" yaml:"exclusion_criteria_result,omitempty"`

	// ExtractionResult maps each extraction field to its adjudicated value.
	ExtractionResult map[string]any `json:"extraction_result,omitempty" yaml:"extraction_result,omitempty"`
}

// ClampScore bounds a relevance score to [0.0, 1.0].
func ClampScore(s float64) float64 {
	if s < 0.0 {
		return 0.0
	}
	if s > 1.0 {
		return 1.0
	}
	return s
}

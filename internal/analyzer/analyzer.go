// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package analyzer orchestrates the full request pipeline: query
// formulation, concurrent multi-backend search, exclusion and data
// extraction, and tournament ranking. The pipeline never fails a
// request outright; partial failures degrade to warnings on the
// returned analysis.
package analyzer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/citation"
	"github.com/pdiddy/claim-analyzer/internal/exclude"
	"github.com/pdiddy/claim-analyzer/internal/fulltext"
	"github.com/pdiddy/claim-analyzer/internal/llm"
	"github.com/pdiddy/claim-analyzer/internal/query"
	"github.com/pdiddy/claim-analyzer/internal/rank"
	"github.com/pdiddy/claim-analyzer/internal/schema"
	"github.com/pdiddy/claim-analyzer/internal/search"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Default request parameters, applied when Options leaves them zero.
const (
	DefaultNumQueries        = 2
	DefaultPapersPerQuery    = 2
	DefaultNumPapersToReturn = 2
)

// Options describes one research request.
type Options struct {
	// Queries holds one or more research questions. Multiple questions
	// share a single aggregate: searches accumulate, then exclusion and
	// ranking run once over the union.
	Queries []string

	// RankingGuidance is optional free-text guidance for the ranker.
	RankingGuidance string

	// ExclusionCriteria lists boolean criteria; a paper is dropped when
	// any evaluates true.
	ExclusionCriteria []schema.FieldSpec

	// ExtractionSchema lists fields to extract from each paper.
	ExtractionSchema []schema.FieldSpec

	NumQueries        int
	PapersPerQuery    int
	NumPapersToReturn int
}

// searcher, adjudicator and ranker are the pipeline stage seams; the
// concrete implementations live in the search, exclude and rank packages.
type searcher interface {
	Run(ctx context.Context, analysis *types.RequestAnalysis, userQuery string, numQueries, perQuery int) error
}

type adjudicator interface {
	Apply(ctx context.Context, analysis *types.RequestAnalysis) ([]types.RankedPaper, error)
}

type ranker interface {
	Rank(ctx context.Context, candidates []types.RankedPaper, claim, guidance string, topN int) ([]types.RankedPaper, error)
}

// Pipeline runs research requests end to end.
type Pipeline struct {
	searcher    searcher
	adjudicator adjudicator
	ranker      ranker
	platforms   []string
	log         *zap.Logger
}

// NewPipeline assembles a Pipeline from pre-built stages. Most callers
// want New instead.
func NewPipeline(s searcher, a adjudicator, r ranker, platforms []string, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{
		searcher:    s,
		adjudicator: a,
		ranker:      r,
		platforms:   platforms,
		log:         log.Named("analyzer"),
	}
}

// New wires the production pipeline from configuration and secrets.
func New(cfg types.PipelineConfig, secrets search.Secrets, log *zap.Logger) (*Pipeline, error) {
	if log == nil {
		log = zap.NewNop()
	}

	client, err := llm.NewAnthropicClient(cfg.LLM, nil)
	if err != nil {
		return nil, fmt.Errorf("building model client: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Search.Timeout}
	fetcher := fulltext.NewScraper(cfg.FullText, nil, log)
	backends := search.NewBackends(cfg.Search, secrets, fetcher, httpClient, log)
	if len(backends) == 0 {
		return nil, fmt.Errorf("no search backends available")
	}

	formulator := query.NewFormulator(client, log)
	coordinator := search.NewCoordinator(backends, formulator, cfg.Search, log)
	processor := exclude.NewProcessor(client, cfg.LLM.MaxConcurrent, log)
	resolver := citation.NewHTTPResolver(httpClient, cfg.Search.Retry, cfg.Search.UserAgent, log)
	tournament := rank.NewRanker(client, resolver, cfg.LLM.MaxConcurrent, log)

	platforms := make([]string, 0, len(backends))
	for name := range backends {
		platforms = append(platforms, name)
	}
	return NewPipeline(coordinator, processor, tournament, platforms, log), nil
}

// AnalyzeRequest runs the full pipeline for the request and returns the
// populated analysis. It does not fail: fatal stage errors are recorded
// under the analysis metadata "error" key and the partial state is
// returned.
func (p *Pipeline) AnalyzeRequest(ctx context.Context, opts Options) *types.RequestAnalysis {
	opts = withDefaults(opts)

	label := "(no query)"
	switch {
	case len(opts.Queries) == 1:
		label = opts.Queries[0]
	case len(opts.Queries) > 1:
		label = "(multiple user queries)"
	}

	analysis := types.NewRequestAnalysis(label, opts.RankingGuidance, types.Parameters{
		NumQueries:        opts.NumQueries,
		PapersPerQuery:    opts.PapersPerQuery,
		NumPapersToReturn: opts.NumPapersToReturn,
		Platforms:         p.platforms,
	})
	if len(opts.Queries) > 1 {
		analysis.UserQueries = opts.Queries
	}
	if len(opts.Queries) == 0 {
		analysis.SetMetadata("error", "no research query provided")
		return analysis
	}

	if len(opts.ExclusionCriteria) > 0 {
		compiled, err := schema.CompileExclusion(opts.ExclusionCriteria)
		if err != nil {
			analysis.SetMetadata("error", fmt.Sprintf("invalid exclusion criteria: %v", err))
			return analysis
		}
		analysis.ExclusionSchema = compiled
	}
	if len(opts.ExtractionSchema) > 0 {
		compiled, err := schema.Compile(opts.ExtractionSchema)
		if err != nil {
			analysis.SetMetadata("error", fmt.Sprintf("invalid extraction schema: %v", err))
			return analysis
		}
		analysis.ExtractionSchema = compiled
	}

	for _, q := range opts.Queries {
		if err := p.searcher.Run(ctx, analysis, q, opts.NumQueries, opts.PapersPerQuery); err != nil {
			analysis.SetMetadata("error", fmt.Sprintf("search failed: %v", err))
			return analysis
		}
	}
	p.log.Info("search complete", zap.Int("papers", len(analysis.Results())))

	candidates, err := p.adjudicator.Apply(ctx, analysis)
	if err != nil {
		analysis.RecordWarning("pipeline", fmt.Sprintf("exclusion stage failed: %v", err))
		p.log.Warn("exclusion stage failed, ranking unfiltered results", zap.Error(err))
		candidates = unfiltered(analysis.Results())
	}

	if len(candidates) == 0 {
		p.log.Warn("no papers to rank")
		return analysis
	}

	claim := strings.Join(opts.Queries, "; ")
	ranked, err := p.ranker.Rank(ctx, candidates, claim, opts.RankingGuidance, opts.NumPapersToReturn)
	if err != nil {
		analysis.SetMetadata("error", fmt.Sprintf("ranking failed: %v", err))
		return analysis
	}
	for _, rp := range ranked {
		analysis.AddRankedPaper(rp)
	}

	p.log.Info("analysis complete",
		zap.Int("ranked", len(analysis.RankedPapers)),
		zap.Int("candidates", len(candidates)))
	return analysis
}

func withDefaults(opts Options) Options {
	if opts.NumQueries <= 0 {
		opts.NumQueries = DefaultNumQueries
	}
	if opts.PapersPerQuery <= 0 {
		opts.PapersPerQuery = DefaultPapersPerQuery
	}
	if opts.NumPapersToReturn <= 0 {
		opts.NumPapersToReturn = DefaultNumPapersToReturn
	}
	return opts
}

func unfiltered(papers []types.Paper) []types.RankedPaper {
	out := make([]types.RankedPaper, len(papers))
	for i, p := range papers {
		out[i] = types.RankedPaper{
			Paper:                   p,
			ExclusionCriteriaResult: map[string]bool{},
			ExtractionResult:        map[string]any{},
		}
	}
	return out
}

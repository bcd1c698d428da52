// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// QueryFormulator turns a research question into num platform-specific
// query strings for the named platform.
type QueryFormulator interface {
	Formulate(ctx context.Context, userQuery string, num int, platform string) ([]string, error)
}

// Coordinator formulates queries for every enabled backend and fans them
// out concurrently, accumulating deduplicated papers on the analysis.
type Coordinator struct {
	backends   map[string]Backend
	formulator QueryFormulator
	cfg        types.SearchConfig
	log        *zap.Logger
}

// NewCoordinator builds a Coordinator over the given backends.
func NewCoordinator(backends map[string]Backend, formulator QueryFormulator, cfg types.SearchConfig, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		backends:   backends,
		formulator: formulator,
		cfg:        cfg,
		log:        log.Named("coordinator"),
	}
}

// Run formulates numQueries queries per backend for userQuery and
// searches all of them concurrently, adding up to perQuery papers per
// query to the analysis. Failures of individual formulations or searches
// degrade to warnings on the analysis; Run itself fails only when the
// context is canceled.
func (c *Coordinator) Run(ctx context.Context, analysis *types.RequestAnalysis, userQuery string, numQueries, perQuery int) error {
	type job struct {
		platform string
		query    string
	}

	var (
		jobs []job
		fg   errgroup.Group
	)

	// Formulate per platform concurrently; order of jobs is not
	// significant because results are deduplicated on ingest.
	platforms := make([]string, 0, len(c.backends))
	for platform := range c.backends {
		platforms = append(platforms, platform)
	}
	out := make([][]string, len(platforms))
	for i, platform := range platforms {
		i, platform := i, platform
		fg.Go(func() error {
			queries, err := c.formulator.Formulate(ctx, userQuery, numQueries, platform)
			if err != nil {
				analysis.RecordWarning(platform, fmt.Sprintf("query formulation failed: %v", err))
				c.log.Warn("formulation failed", zap.String("platform", platform), zap.Error(err))
				return nil
			}
			out[i] = queries
			return nil
		})
	}
	if err := fg.Wait(); err != nil {
		return err
	}

	for i, platform := range platforms {
		for _, query := range out[i] {
			analysis.AddQuery(query, platform)
			jobs = append(jobs, job{platform: platform, query: query})
		}
	}

	var sg errgroup.Group
	for _, j := range jobs {
		j := j
		backend := c.backends[j.platform]
		sg.Go(func() error {
			papers, err := backend.Search(ctx, j.query, perQuery)
			if err != nil {
				analysis.RecordWarning(j.platform, fmt.Sprintf("search failed for %q: %v", j.query, err))
				c.log.Warn("search failed",
					zap.String("platform", j.platform),
					zap.String("query", j.query),
					zap.Error(err))
			}
			added := 0
			for _, p := range papers {
				if !c.inYearRange(p.Year) {
					continue
				}
				if analysis.AddSearchResult(p) {
					added++
				}
			}
			c.log.Info("search complete",
				zap.String("platform", j.platform),
				zap.Int("returned", len(papers)),
				zap.Int("added", added))
			return nil
		})
	}
	return sg.Wait()
}

// inYearRange applies the optional publication-year filter. Papers with
// unknown year pass.
func (c *Coordinator) inYearRange(year int) bool {
	if year == -1 {
		return true
	}
	if c.cfg.MinYear > 0 && year < c.cfg.MinYear {
		return false
	}
	if c.cfg.MaxYear > 0 && year > c.cfg.MaxYear {
		return false
	}
	return true
}

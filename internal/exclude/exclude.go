// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package exclude adjudicates harvested papers against user-supplied
// exclusion criteria and extracts structured data, both in a single
// model call per paper.
package exclude

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/llm"
	"github.com/pdiddy/claim-analyzer/internal/schema"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Processor applies exclusion criteria and data extraction to the papers
// accumulated on an analysis.
type Processor struct {
	client        llm.Client
	maxConcurrent int64
	log           *zap.Logger
}

// NewProcessor builds a Processor on the given model client.
func NewProcessor(client llm.Client, maxConcurrent int64, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{client: client, maxConcurrent: maxConcurrent, log: log.Named("exclude")}
}

// Apply evaluates every search result against the analysis's exclusion
// and extraction schemas and replaces the result set with the papers
// that survive. A paper is excluded when any exclusion field comes back
// true. Papers whose evaluation fails are retained with empty results;
// filtering errs on the side of keeping. The returned RankedPapers carry
// per-field results for the surviving papers.
func (p *Processor) Apply(ctx context.Context, analysis *types.RequestAnalysis) ([]types.RankedPaper, error) {
	papers := analysis.Results()
	merged := schema.Merge(analysis.ExclusionSchema, analysis.ExtractionSchema)
	if merged.Empty() {
		p.log.Info("no exclusion or extraction schema, skipping")
		return wrapAll(papers), nil
	}

	schemaJSON, err := schema.JSONSchema(merged)
	if err != nil {
		return nil, fmt.Errorf("rendering schema: %w", err)
	}

	prompts := make([]string, len(papers))
	for i, paper := range papers {
		prompts[i] = buildPrompt(paper, schemaJSON)
	}

	results := llm.Process(ctx, p.client, prompts, p.maxConcurrent)

	retained := make([]types.RankedPaper, 0, len(papers))
	for i, res := range results {
		rp := types.RankedPaper{
			Paper:                   papers[i],
			ExclusionCriteriaResult: map[string]bool{},
			ExtractionResult:        map[string]any{},
		}

		if res.Err != nil {
			analysis.RecordWarning("exclusion",
				fmt.Sprintf("evaluation failed for %q: %v", papers[i].Title, res.Err))
			p.log.Warn("evaluation failed, keeping paper",
				zap.String("title", papers[i].Title), zap.Error(res.Err))
			retained = append(retained, rp)
			continue
		}

		raw, err := llm.DecodeMap(res.Raw)
		if err != nil {
			analysis.RecordWarning("exclusion",
				fmt.Sprintf("unparseable evaluation for %q: %v", papers[i].Title, err))
			retained = append(retained, rp)
			continue
		}

		coerced := schema.Coerce(merged, raw)
		exclude := false
		for _, field := range merged.Fields {
			val := coerced[field.Name]
			if field.Exclusion {
				b, _ := val.(bool)
				rp.ExclusionCriteriaResult[field.Name] = b
				if b {
					exclude = true
				}
			} else {
				rp.ExtractionResult[field.Name] = val
			}
		}

		if exclude {
			p.log.Info("paper excluded", zap.String("title", papers[i].Title))
			continue
		}
		retained = append(retained, rp)
	}

	kept := make([]types.Paper, len(retained))
	for i, rp := range retained {
		kept[i] = rp.Paper
	}
	analysis.ReplaceResults(kept)

	p.log.Info("exclusion complete",
		zap.Int("evaluated", len(papers)),
		zap.Int("retained", len(retained)))
	return retained, nil
}

func wrapAll(papers []types.Paper) []types.RankedPaper {
	ranked := make([]types.RankedPaper, len(papers))
	for i, paper := range papers {
		ranked[i] = types.RankedPaper{
			Paper:                   paper,
			ExclusionCriteriaResult: map[string]bool{},
			ExtractionResult:        map[string]any{},
		}
	}
	return ranked
}

func buildPrompt(paper types.Paper, schemaJSON string) string {
	text := paper.FullText
	if strings.TrimSpace(text) == "" {
		text = paper.Abstract
	}
	return fmt.Sprintf(`
Assess the following academic paper against the specified exclusion criteria and data extraction requirements.

Title: %s
Full Text: %s

Return a JSON object that exactly matches these fields:
Exclusion criteria fields (boolean) => exclude if any is true.
Extraction fields => fill with appropriate data.

If the text does not mention an exclusion condition, set that field to false.
If the text does not mention an extraction field, use the schema default for it.
Respond with the JSON object only.

Here is the schema: %s
`, paper.Title, text, schemaJSON)
}

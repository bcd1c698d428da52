// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank orders papers by relevance to the research question with
// a multi-round group tournament. Each round shuffles the papers into
// balanced groups, asks the model to rank each group, and converts ranks
// to normalized scores; papers are aggregated by mean score and the top
// N receive a deep analysis with supporting quotes.
package rank

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/claim-analyzer/internal/citation"
	"github.com/pdiddy/claim-analyzer/internal/llm"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

const (
	// minRankWords is the full-text word count below which a paper cannot
	// be ranked meaningfully.
	minRankWords = 200

	minGroupSize = 2
	maxGroupSize = 5

	minRounds = 3
	maxRounds = 8
)

// shuffleFn is swapped out in tests for deterministic grouping.
var shuffleFn = rand.Shuffle

// Ranker runs the tournament.
type Ranker struct {
	client        llm.Client
	resolver      citation.Resolver
	maxConcurrent int64
	log           *zap.Logger
}

// NewRanker builds a Ranker. The resolver may be nil, which skips BibTeX
// enrichment.
func NewRanker(client llm.Client, resolver citation.Resolver, maxConcurrent int64, log *zap.Logger) *Ranker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ranker{client: client, resolver: resolver, maxConcurrent: maxConcurrent, log: log.Named("rank")}
}

// rankingResponse is the JSON shape of a group-ranking reply.
type rankingResponse struct {
	Rankings []rankingEntry `json:"rankings"`
}

type rankingEntry struct {
	PaperID     string `json:"paper_id"`
	Rank        int    `json:"rank"`
	Explanation string `json:"explanation"`
}

// analysisResponse is the JSON shape of a deep-analysis reply.
type analysisResponse struct {
	Analysis       string   `json:"analysis"`
	RelevantQuotes []string `json:"relevant_quotes"`
}

// Rank scores the candidates against the claim and returns the topN
// papers, most relevant first, each carrying its mean relevance score,
// analysis, quotes, and BibTeX.
func (r *Ranker) Rank(ctx context.Context, candidates []types.RankedPaper, claim, guidance string, topN int) ([]types.RankedPaper, error) {
	valid := make([]types.RankedPaper, 0, len(candidates))
	for _, c := range candidates {
		if len(strings.Fields(c.FullText)) >= minRankWords {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		r.log.Warn("no papers with enough full text to rank",
			zap.Int("candidates", len(candidates)))
		return nil, nil
	}

	ids := make([]string, len(valid))
	for i := range valid {
		ids[i] = fmt.Sprintf("paper_%d", i+1)
		valid[i].ID = ids[i]
	}

	var scores map[string][]float64
	if len(valid) == 1 {
		// A field of one needs no tournament.
		scores = map[string][]float64{ids[0]: {1.0}}
	} else {
		rounds := numRounds(len(valid))
		r.log.Info("starting tournament",
			zap.Int("papers", len(valid)),
			zap.Int("rounds", rounds))
		scores = r.runTournament(ctx, valid, claim, guidance, rounds)
	}

	// Mean score per paper; papers the model never ranked score zero.
	averages := make(map[string]float64, len(valid))
	for _, id := range ids {
		s := scores[id]
		if len(s) == 0 {
			r.log.Warn("no scores recorded", zap.String("paper_id", id))
			averages[id] = 0
			continue
		}
		var sum float64
		for _, v := range s {
			sum += v
		}
		averages[id] = sum / float64(len(s))
	}

	sorted := make([]types.RankedPaper, len(valid))
	copy(sorted, valid)
	sort.SliceStable(sorted, func(i, j int) bool {
		return averages[sorted[i].ID] > averages[sorted[j].ID]
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	top := r.analyzeTop(ctx, sorted, claim, guidance, averages)
	r.enrichCitations(ctx, top)
	return top, nil
}

// runTournament executes all rounds concurrently and returns the
// accumulated per-paper scores.
func (r *Ranker) runTournament(ctx context.Context, papers []types.RankedPaper, claim, guidance string, rounds int) map[string][]float64 {
	type groupJob struct {
		ids    map[string]bool
		prompt string
		size   int
	}

	var jobs []groupJob
	for round := 0; round < rounds; round++ {
		shuffled := make([]types.RankedPaper, len(papers))
		copy(shuffled, papers)
		shuffleFn(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		for _, group := range balancedGroups(shuffled) {
			idSet := make(map[string]bool, len(group))
			for _, p := range group {
				idSet[p.ID] = true
			}
			jobs = append(jobs, groupJob{
				ids:    idSet,
				prompt: rankingPrompt(claim, guidance, group),
				size:   len(group),
			})
		}
	}

	prompts := make([]string, len(jobs))
	for i, j := range jobs {
		prompts[i] = j.prompt
	}
	results := llm.Process(ctx, r.client, prompts, r.maxConcurrent)

	var (
		mu     sync.Mutex
		scores = make(map[string][]float64, len(papers))
	)
	for i, res := range results {
		job := jobs[i]
		if res.Err != nil {
			r.log.Warn("group ranking failed", zap.Error(res.Err))
			continue
		}
		var resp rankingResponse
		if err := llm.Decode(res.Raw, &resp); err != nil {
			r.log.Warn("unparseable group ranking", zap.Error(err))
			continue
		}
		if err := validateRankings(resp.Rankings, job.ids); err != nil {
			r.log.Warn("discarding invalid group ranking", zap.Error(err))
			continue
		}

		mu.Lock()
		for _, entry := range resp.Rankings {
			score := float64(job.size-entry.Rank+1) / float64(job.size)
			scores[entry.PaperID] = append(scores[entry.PaperID], score)
		}
		mu.Unlock()
	}
	return scores
}

// analyzeTop runs the deep-analysis prompt over the top papers
// concurrently. Papers whose analysis fails are dropped from the final
// output.
func (r *Ranker) analyzeTop(ctx context.Context, top []types.RankedPaper, claim, guidance string, averages map[string]float64) []types.RankedPaper {
	prompts := make([]string, len(top))
	for i, p := range top {
		prompts[i] = analysisPrompt(claim, guidance, p)
	}
	results := llm.Process(ctx, r.client, prompts, r.maxConcurrent)

	out := make([]types.RankedPaper, 0, len(top))
	for i, res := range results {
		paper := top[i]
		if res.Err != nil {
			r.log.Warn("analysis failed, dropping paper",
				zap.String("title", paper.Title), zap.Error(res.Err))
			continue
		}
		var resp analysisResponse
		if err := llm.Decode(res.Raw, &resp); err != nil {
			r.log.Warn("unparseable analysis, dropping paper",
				zap.String("title", paper.Title), zap.Error(err))
			continue
		}

		paper.RelevanceScore = types.ClampScore(averages[paper.ID])
		paper.Analysis = resp.Analysis
		paper.RelevantQuotes = resp.RelevantQuotes
		out = append(out, paper)
	}
	return out
}

// enrichCitations resolves BibTeX for each final paper concurrently.
func (r *Ranker) enrichCitations(ctx context.Context, papers []types.RankedPaper) {
	if r.resolver == nil {
		return
	}
	var g errgroup.Group
	for i := range papers {
		i := i
		g.Go(func() error {
			citation.Resolve(ctx, r.resolver, &papers[i].Paper, r.log)
			return nil
		})
	}
	_ = g.Wait()
}

// numRounds scales the round count with the field size: small fields get
// three rounds, larger fields grow logarithmically up to eight.
func numRounds(n int) int {
	if n <= 8 {
		return minRounds
	}
	rounds := int(math.Floor(math.Log(float64(n))/math.Log(1.4))) + 2
	if rounds < minRounds {
		return minRounds
	}
	if rounds > maxRounds {
		return maxRounds
	}
	return rounds
}

// balancedGroups splits papers into contiguous groups of between two and
// five, redistributing a too-small tail round-robin over the others.
func balancedGroups(papers []types.RankedPaper) [][]types.RankedPaper {
	n := len(papers)
	if n < maxGroupSize {
		return [][]types.RankedPaper{papers}
	}

	size := n / max(1, n/maxGroupSize)
	if size < minGroupSize {
		size = minGroupSize
	}
	if size > maxGroupSize {
		size = maxGroupSize
	}

	var groups [][]types.RankedPaper
	for i := 0; i < n; i += size {
		end := i + size
		if end > n {
			end = n
		}
		groups = append(groups, papers[i:end:end])
	}

	last := groups[len(groups)-1]
	if len(last) < minGroupSize && len(groups) > 1 {
		groups = groups[:len(groups)-1]
		for i, p := range last {
			gi := i % len(groups)
			groups[gi] = append(groups[gi], p)
		}
	}
	return groups
}

// validateRankings checks that the reply ranks exactly the papers it was
// given: every paper_id belongs to the group, no duplicates, and the
// ranks form a permutation of 1..len(group).
func validateRankings(rankings []rankingEntry, ids map[string]bool) error {
	if len(rankings) != len(ids) {
		return fmt.Errorf("expected %d rankings, got %d", len(ids), len(rankings))
	}
	seenID := make(map[string]bool, len(rankings))
	seenRank := make(map[int]bool, len(rankings))
	for _, entry := range rankings {
		if !ids[entry.PaperID] {
			return fmt.Errorf("unknown paper_id %q", entry.PaperID)
		}
		if seenID[entry.PaperID] {
			return fmt.Errorf("duplicate paper_id %q", entry.PaperID)
		}
		seenID[entry.PaperID] = true
		if entry.Rank < 1 || entry.Rank > len(rankings) {
			return fmt.Errorf("rank %d out of range", entry.Rank)
		}
		if seenRank[entry.Rank] {
			return fmt.Errorf("duplicate rank %d", entry.Rank)
		}
		seenRank[entry.Rank] = true
	}
	return nil
}

func rankingPrompt(claim, guidance string, group []types.RankedPaper) string {
	var summaries strings.Builder
	for _, p := range group {
		fmt.Fprintf(&summaries, "Paper ID: %s\nTitle: %s\nFull Text:\n%s\n\n", p.ID, p.Title, p.FullText)
	}

	return fmt.Sprintf(`
Analyze the relevance of the following papers to the claim: %q
%s
Papers:
%s
Rank these papers from most to least relevant based on the following criteria:
1. Direct relevance to the claim (either supporting or refuting it)
2. Quality and reliability of the research
3. Recency and impact of the findings

Your response should be in the following JSON format:
{
  "rankings": [
    {
      "paper_id": "string",
      "rank": integer,
      "explanation": "string"
    },
    ...
  ]
}

Ensure that each paper is assigned a unique rank from 1 to %d, where 1 is the most relevant. Provide a concise, technical explanation for each ranking, focusing on how the paper's content directly addresses the claim.

Return only the valid JSON response. Do not add any extra text or artifacts such as `+"```json or ```"+` tags.
`, claim, guidanceSection(guidance), summaries.String(), len(group))
}

// guidanceSection renders the optional user-supplied ranking guidance
// block embedded in prompts.
func guidanceSection(guidance string) string {
	guidance = strings.TrimSpace(guidance)
	if guidance == "" {
		return ""
	}
	return "\nRanking Guidance:\n" + guidance + "\n"
}

func analysisPrompt(claim, guidance string, p types.RankedPaper) string {
	return fmt.Sprintf(`
Provide a detailed, technical analysis of the following paper's relevance to the claim: %q
%s
Paper Title: %s
Authors: %s
Publication Year: %d
DOI: %s
Abstract: %s
Full Text: %s

Your response should be in the following JSON format:
{
  "analysis": "string",
  "relevant_quotes": [
    "string",
    "string",
    "string"
  ]
}

In the analysis:
1. Evaluate how directly the paper addresses the claim, either supporting or refuting it.
2. Assess the methodology, sample size, and statistical significance of the findings.
3. Consider any limitations or potential biases in the study.
4. Discuss how the paper's findings contribute to the broader understanding of the claim.

Extract exactly three relevant quotes from the paper that best support your analysis. These should be verbatim excerpts that directly relate to the claim.

Ensure your analysis is highly precise, technical, and grounded in the paper's content. Avoid general statements and focus on specific details from the study.

Return only the valid JSON response. Do not add any extra text or artifacts such as `+"```json or ```"+` tags.
`, claim, guidanceSection(guidance), p.Title, strings.Join(p.Authors, ", "), p.Year, p.DOI, p.Abstract, p.FullText)
}

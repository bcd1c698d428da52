// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/claim-analyzer/internal/analyzer"
	"github.com/pdiddy/claim-analyzer/internal/schema"
	"github.com/pdiddy/claim-analyzer/internal/search"
	"github.com/pdiddy/claim-analyzer/internal/secrets"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Request is the YAML shape of one research request.
type Request struct {
	// Query and Queries are alternatives; Queries wins when both are set.
	Query   string   `yaml:"query"`
	Queries []string `yaml:"queries"`

	RankingGuidance   string             `yaml:"ranking_guidance"`
	ExclusionCriteria []schema.FieldSpec `yaml:"exclusion_criteria"`
	DataExtraction    []schema.FieldSpec `yaml:"data_extraction"`

	NumQueries        int `yaml:"num_queries"`
	PapersPerQuery    int `yaml:"papers_per_query"`
	NumPapersToReturn int `yaml:"num_papers_to_return"`
}

// RequestFile is the YAML shape of a batch request file.
type RequestFile struct {
	Requests []Request `yaml:"requests"`
}

// Options converts the YAML request into analyzer options.
func (r Request) Options() analyzer.Options {
	queries := r.Queries
	if len(queries) == 0 && r.Query != "" {
		queries = []string{r.Query}
	}
	return analyzer.Options{
		Queries:           queries,
		RankingGuidance:   r.RankingGuidance,
		ExclusionCriteria: r.ExclusionCriteria,
		ExtractionSchema:  r.DataExtraction,
		NumQueries:        r.NumQueries,
		PapersPerQuery:    r.PapersPerQuery,
		NumPapersToReturn: r.NumPapersToReturn,
	}
}

// loadRequestFile parses a YAML request file. A file holding a single
// request (no requests list) is treated as a one-element batch.
func loadRequestFile(path string) ([]Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading request file: %w", err)
	}

	var file RequestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	if len(file.Requests) > 0 {
		return file.Requests, nil
	}

	var single Request
	if err := yaml.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("parsing request file %s: %w", path, err)
	}
	if single.Query == "" && len(single.Queries) == 0 {
		return nil, fmt.Errorf("request file %s contains no queries", path)
	}
	return []Request{single}, nil
}

// pipelineConfig assembles the runtime configuration from defaults,
// the viper config file, and loaded secrets.
func pipelineConfig() types.PipelineConfig {
	cfg := types.DefaultPipelineConfig()

	if v := viper.GetStringSlice("search.platforms"); len(v) > 0 {
		cfg.Search.Platforms = v
	}
	if v := viper.GetInt("search.min_year"); v > 0 {
		cfg.Search.MinYear = v
	}
	if v := viper.GetInt("search.max_year"); v > 0 {
		cfg.Search.MaxYear = v
	}
	if v := viper.GetDuration("search.timeout"); v > 0 {
		cfg.Search.Timeout = v
	}
	if v := viper.GetString("llm.model"); v != "" {
		cfg.LLM.Model = v
	}
	if v := viper.GetInt("llm.max_tokens"); v > 0 {
		cfg.LLM.MaxTokens = v
	}
	if viper.IsSet("full_text.enable_browser") {
		cfg.FullText.EnableBrowser = viper.GetBool("full_text.enable_browser")
	}
	if v := viper.GetInt("full_text.min_words"); v > 0 {
		cfg.FullText.MinWords = v
	}

	cfg.Search.OpenAlexEmail = secrets.Value(loadedSecrets, secrets.EnvOpenAlexEmail)
	cfg.LLM.APIKey = secrets.Value(loadedSecrets, secrets.EnvAnthropicAPIKey)
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = secrets.Value(loadedSecrets, secrets.EnvDefaultLLMModel)
	}
	return cfg
}

// buildPipeline wires the production pipeline from config and secrets.
func buildPipeline(log *zap.Logger) (*analyzer.Pipeline, error) {
	cfg := pipelineConfig()
	creds := search.Secrets{
		ScopusAPIKey:       secrets.Value(loadedSecrets, secrets.EnvScopusAPIKey),
		COREAPIKey:         secrets.Value(loadedSecrets, secrets.EnvCOREAPIKey),
		SemanticScholarKey: secrets.Value(loadedSecrets, secrets.EnvSemanticScholarKey),
	}
	return analyzer.New(cfg, creds, log)
}

// newLogger builds the CLI logger.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.TimeKey = ""
	return cfg.Build()
}

// reportTimestamp formats the clock for report filenames.
func reportTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Platform names accepted in SearchConfig.Platforms.
const (
	PlatformOpenAlex        = "openalex"
	PlatformScopus          = "scopus"
	PlatformCORE            = "core"
	PlatformArxiv           = "arxiv"
	PlatformSemanticScholar = "semantic_scholar"
)

// AllPlatforms lists every supported backend in default order.
func AllPlatforms() []string {
	return []string{
		PlatformOpenAlex,
		PlatformScopus,
		PlatformCORE,
		PlatformArxiv,
		PlatformSemanticScholar,
	}
}

// HTTPConfig holds shared HTTP settings used by components that make
// network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig controls the shared retry and backoff behavior for
// transient failures (network errors, HTTP 5xx, HTTP 429).
type RetryConfig struct {
	// MaxRetries is the total retry attempts for transient errors.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseBackoff is the base for exponential backoff: base * 2^attempt.
	BaseBackoff time.Duration `json:"base_backoff" yaml:"base_backoff"`

	// MaxBackoff clamps the computed backoff.
	MaxBackoff time.Duration `json:"max_backoff" yaml:"max_backoff"`

	// JitterRatio adds uniform random jitter up to backoff*ratio.
	JitterRatio float64 `json:"jitter_ratio" yaml:"jitter_ratio"`
}

// RateConfig sets per-backend concurrency permits and minimum
// inter-request intervals.
type RateConfig struct {
	ScopusConcurrency          int64 `json:"scopus_concurrency" yaml:"scopus_concurrency"`
	COREConcurrency            int64 `json:"core_concurrency" yaml:"core_concurrency"`
	OpenAlexConcurrency        int64 `json:"openalex_concurrency" yaml:"openalex_concurrency"`
	ArxivConcurrency           int64 `json:"arxiv_concurrency" yaml:"arxiv_concurrency"`
	SemanticScholarConcurrency int64 `json:"semantic_scholar_concurrency" yaml:"semantic_scholar_concurrency"`

	// ArxivRequestInterval is the minimum gap between consecutive arXiv
	// network calls (feed or PDF).
	ArxivRequestInterval time.Duration `json:"arxiv_request_interval" yaml:"arxiv_request_interval"`

	// SemanticScholarPDFConcurrency caps concurrent open-access PDF
	// downloads after a Semantic Scholar page fetch.
	SemanticScholarPDFConcurrency int64 `json:"semantic_scholar_pdf_concurrency" yaml:"semantic_scholar_pdf_concurrency"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// Platforms is the subset of enabled backends. Empty means all.
	Platforms []string `json:"platforms" yaml:"platforms"`

	// MinYear and MaxYear filter harvested papers post-ingest. Zero means
	// no bound. Papers with unknown year (-1) are kept.
	MinYear int `json:"min_year" yaml:"min_year"`
	MaxYear int `json:"max_year" yaml:"max_year"`

	// OpenAlexEmail is sent as the mailto parameter for polite pool access.
	OpenAlexEmail string `json:"openalex_email,omitempty" yaml:"openalex_email,omitempty"`

	Rate  RateConfig  `json:"rate" yaml:"rate"`
	Retry RetryConfig `json:"retry" yaml:"retry"`
}

// FullTextConfig holds settings for the full-text fetcher.
type FullTextConfig struct {
	HTTPConfig `yaml:",inline"`

	// MinWords is the word count at which an extracted text is accepted
	// without trying further strategies.
	MinWords int `json:"min_words" yaml:"min_words"`

	// MaxRetries is the per-strategy retry budget.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// EnableBrowser turns on the headless-browser render strategy.
	EnableBrowser bool `json:"enable_browser" yaml:"enable_browser"`
}

// LLMConfig holds settings for the structured language-model client.
type LLMConfig struct {
	// Model is the model identifier. Empty falls back to the
	// DEFAULT_LLM_MODEL environment value or a built-in default.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the model API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxTokens bounds each response.
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// MaxRetries is the retry budget for failed model calls.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxConcurrent caps in-flight model calls in a batched Process.
	MaxConcurrent int64 `json:"max_concurrent" yaml:"max_concurrent"`
}

// PipelineConfig groups all component configurations for one pipeline.
type PipelineConfig struct {
	Search   SearchConfig   `json:"search" yaml:"search"`
	FullText FullTextConfig `json:"full_text" yaml:"full_text"`
	LLM      LLMConfig      `json:"llm" yaml:"llm"`
}

// DefaultPipelineConfig returns the standard settings: per-backend permits
// (scopus 3, core 2, openalex 2, arxiv 1, semantic_scholar 1), a 3 second
// arXiv interval, five retries with 2s..45s backoff and 50% jitter.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Search: SearchConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "claim-analyzer/0.1",
			},
			Platforms: AllPlatforms(),
			Rate: RateConfig{
				ScopusConcurrency:             3,
				COREConcurrency:               2,
				OpenAlexConcurrency:           2,
				ArxivConcurrency:              1,
				SemanticScholarConcurrency:    1,
				ArxivRequestInterval:          3 * time.Second,
				SemanticScholarPDFConcurrency: 8,
			},
			Retry: RetryConfig{
				MaxRetries:  5,
				BaseBackoff: 2 * time.Second,
				MaxBackoff:  45 * time.Second,
				JitterRatio: 0.5,
			},
		},
		FullText: FullTextConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "claim-analyzer/0.1",
			},
			MinWords:   700,
			MaxRetries: 3,
		},
		LLM: LLMConfig{
			MaxTokens:     4096,
			MaxRetries:    3,
			MaxConcurrent: 8,
		},
	}
}

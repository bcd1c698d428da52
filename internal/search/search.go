// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search queries academic APIs and harvests unified Paper records.
// Each backend (OpenAlex, Scopus, CORE, arXiv, Semantic Scholar) implements
// the Backend interface per the Strategy pattern; the Coordinator fans
// queries out across them and accumulates deduplicated results.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/claim-analyzer/internal/fulltext"
	"github.com/pdiddy/claim-analyzer/internal/httputil"
	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Backend searches a single academic API. Search returns at most limit
// papers satisfying the Paper retention invariant. Partial failure is
// preferred over total failure: backends degrade to fewer (or zero)
// results and report the cause through the error, which the coordinator
// records as a warning. The returned papers are valid even when the error
// is non-nil.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]types.Paper, error)
}

// Secrets carries the API credentials the backends read from the
// environment at startup.
type Secrets struct {
	ScopusAPIKey       string
	COREAPIKey         string
	SemanticScholarKey string
}

// NewBackends constructs the adapters for every platform enabled in cfg.
// Backends whose required key is missing are skipped with a warning; the
// caller decides whether that is fatal.
func NewBackends(cfg types.SearchConfig, secrets Secrets, fetcher fulltext.Fetcher, client *http.Client, log *zap.Logger) map[string]Backend {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if log == nil {
		log = zap.NewNop()
	}

	platforms := cfg.Platforms
	if len(platforms) == 0 {
		platforms = types.AllPlatforms()
	}

	backends := make(map[string]Backend)
	for _, platform := range platforms {
		switch platform {
		case types.PlatformOpenAlex:
			backends[platform] = NewOpenAlexBackend(cfg, fetcher, client, log)
		case types.PlatformScopus:
			if secrets.ScopusAPIKey == "" {
				log.Warn("scopus disabled: SCOPUS_API_KEY not set")
				continue
			}
			backends[platform] = NewScopusBackend(cfg, secrets.ScopusAPIKey, fetcher, client, log)
		case types.PlatformCORE:
			if secrets.COREAPIKey == "" {
				log.Warn("core disabled: CORE_API_KEY not set")
				continue
			}
			backends[platform] = NewCOREBackend(cfg, secrets.COREAPIKey, fetcher, client, log)
		case types.PlatformArxiv:
			backends[platform] = NewArxivBackend(cfg, client, log)
		case types.PlatformSemanticScholar:
			backends[platform] = NewSemanticScholarBackend(cfg, secrets.SemanticScholarKey, client, log)
		default:
			log.Warn("unknown platform", zap.String("platform", platform))
		}
	}
	return backends
}

// fetchJSON executes the request with the shared retry policy and decodes
// the body into v. A JSON parse failure is retried once with a fresh
// request before giving up. A non-429 4xx status is fatal and reported
// without retry.
func fetchJSON(ctx context.Context, client *http.Client, newReq func() (*http.Request, error), retry types.RetryConfig, v any) error {
	for parseAttempt := 0; ; parseAttempt++ {
		req, err := newReq()
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		resp, err := httputil.DoWithRetry(ctx, client, req, retry)
		if err != nil {
			return err
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
		}
		if readErr != nil {
			return fmt.Errorf("reading response: %w", readErr)
		}

		if err := json.Unmarshal(body, v); err != nil {
			if parseAttempt == 0 {
				continue
			}
			return fmt.Errorf("parsing response JSON: %w", err)
		}
		return nil
	}
}

// postJSON builds a reusable POST request factory with a JSON body.
func postJSON(ctx context.Context, url string, payload any, header http.Header) (func() (*http.Request, error), error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}
	return func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	}, nil
}

// extractPDFText converts downloaded PDF bytes to text. Declared as a var
// so tests can substitute it without crafting real PDF documents.
var extractPDFText = fulltext.ExtractPDFText

// finalize applies the common tail of every adapter call: sanitize each
// record, drop those failing the retention invariant, sort by the
// backend's preferred signal (nil keeps the wire order), and trim to
// limit.
func finalize(papers []types.Paper, limit int, less func(a, b types.Paper) bool) []types.Paper {
	kept := papers[:0]
	for i := range papers {
		papers[i].Sanitize()
		if papers[i].Retainable() {
			kept = append(kept, papers[i])
		}
	}
	if less != nil {
		sort.SliceStable(kept, func(i, j int) bool { return less(kept[i], kept[j]) })
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// byCitationsDesc orders papers by citation count, most cited first.
func byCitationsDesc(a, b types.Paper) bool {
	return a.CitationCount > b.CitationCount
}

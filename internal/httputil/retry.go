// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the backend adapters,
// the language-model client, and the citation resolver.
package httputil

import (
	"context"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// Backoff computes the sleep before retry attempt (0-based): the base
// duration doubled per attempt, clamped to the maximum, plus uniform
// random jitter up to backoff*jitter.
func Backoff(cfg types.RetryConfig, attempt int) time.Duration {
	base := cfg.BaseBackoff.Seconds() * math.Pow(2, float64(attempt))
	base = math.Min(base, cfg.MaxBackoff.Seconds())
	jitter := rand.Float64() * base * cfg.JitterRatio
	return time.Duration((base + jitter) * float64(time.Second))
}

// Transient reports whether an HTTP status warrants a retry: 429 or any
// 5xx. Other 4xx statuses are fatal for the request.
func Transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// DoWithRetry executes an HTTP request, retrying network errors, HTTP 5xx
// and HTTP 429 with exponential backoff per cfg. Each attempt clones the
// request; bodies are rewound via GetBody. On a transient response the
// body is drained and closed before sleeping. If the context is cancelled
// during a backoff wait the context error is returned. After exhausting
// retries the last response (or last network error) is returned so the
// caller can inspect it.
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, cfg types.RetryConfig) (*http.Response, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		r := req.Clone(ctx)
		if req.GetBody != nil {
			if body, err := req.GetBody(); err == nil {
				r.Body = body
			}
		}

		resp, err := client.Do(r)
		if err == nil && !Transient(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			if err != nil {
				return nil, err
			}
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		case <-time.After(Backoff(cfg, attempt)):
		}
	}
}

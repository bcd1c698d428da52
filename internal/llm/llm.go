// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm defines the structured language-model boundary for the
// pipeline. Components submit prompts and decode the JSON object the
// model returns; the concrete backend is injected, never referenced
// globally.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Client is the structured language-model capability. Complete submits a
// prompt and returns the raw model text, which callers decode into their
// expected response shape.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of one prompt in a batched Process call.
type Result struct {
	Raw string
	Err error
}

// Process submits prompts concurrently, bounded by maxConcurrent, and
// returns one Result per prompt in prompt order. Individual failures are
// recorded in the corresponding Result; Process itself fails only on
// context cancellation.
func Process(ctx context.Context, c Client, prompts []string, maxConcurrent int64) []Result {
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	results := make([]Result, len(prompts))
	sem := semaphore.NewWeighted(maxConcurrent)
	g, ctx := errgroup.WithContext(ctx)

	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = Result{Err: err}
				return nil
			}
			defer sem.Release(1)
			raw, err := c.Complete(ctx, prompt)
			results[i] = Result{Raw: raw, Err: err}
			return nil
		})
	}

	g.Wait()
	return results
}

// StripFences removes a surrounding ```json ... ``` code fence, which some
// models emit despite instructions not to.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode parses the model's raw text as a JSON object into v, tolerating
// code fences.
func Decode(raw string, v any) error {
	if err := json.Unmarshal([]byte(StripFences(raw)), v); err != nil {
		return fmt.Errorf("parsing model response JSON: %w", err)
	}
	return nil
}

// DecodeMap parses the model's raw text as a generic JSON object.
func DecodeMap(raw string) (map[string]any, error) {
	var m map[string]any
	if err := Decode(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
)

// scriptedClient returns canned responses keyed by prompt substring.
type scriptedClient struct {
	respond func(prompt string) (string, error)
	calls   atomic.Int32
}

func (c *scriptedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.calls.Add(1)
	return c.respond(prompt)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  \n{\"a\":1}\n  ", `{"a":1}`},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecode(t *testing.T) {
	var out struct {
		Queries []string `json:"queries"`
	}
	raw := "```json\n{\"queries\": [\"a\", \"b\"]}\n```"
	if err := Decode(raw, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out.Queries) != 2 {
		t.Errorf("queries = %v", out.Queries)
	}

	if err := Decode("not json at all", &out); err == nil {
		t.Error("Decode should fail on non-JSON")
	}
}

func TestDecodeMap(t *testing.T) {
	m, err := DecodeMap(`{"is_review": true, "sample_size": 40}`)
	if err != nil {
		t.Fatalf("DecodeMap: %v", err)
	}
	if m["is_review"] != true {
		t.Errorf("is_review = %v", m["is_review"])
	}
}

func TestProcessPreservesOrderAndErrors(t *testing.T) {
	client := &scriptedClient{
		respond: func(prompt string) (string, error) {
			if strings.Contains(prompt, "fail") {
				return "", fmt.Errorf("model unavailable")
			}
			return "echo:" + prompt, nil
		},
	}

	prompts := []string{"p0", "fail-1", "p2", "fail-3", "p4"}
	results := Process(context.Background(), client, prompts, 2)

	if len(results) != len(prompts) {
		t.Fatalf("expected %d results, got %d", len(prompts), len(results))
	}
	for i, res := range results {
		wantErr := strings.Contains(prompts[i], "fail")
		if wantErr && res.Err == nil {
			t.Errorf("result %d: expected error", i)
		}
		if !wantErr {
			if res.Err != nil {
				t.Errorf("result %d: unexpected error %v", i, res.Err)
			}
			if res.Raw != "echo:"+prompts[i] {
				t.Errorf("result %d out of order: %q", i, res.Raw)
			}
		}
	}
	if client.calls.Load() != int32(len(prompts)) {
		t.Errorf("expected %d calls, got %d", len(prompts), client.calls.Load())
	}
}

func TestProcessEmptyPrompts(t *testing.T) {
	client := &scriptedClient{respond: func(string) (string, error) { return "", nil }}
	results := Process(context.Background(), client, nil, 4)
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

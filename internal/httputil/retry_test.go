// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// fastRetry keeps test sleeps in the microsecond range.
var fastRetry = types.RetryConfig{
	MaxRetries:  3,
	BaseBackoff: time.Microsecond,
	MaxBackoff:  time.Millisecond,
	JitterRatio: 0.5,
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(http.StatusTooManyRequests))
	assert.True(t, Transient(http.StatusInternalServerError))
	assert.True(t, Transient(http.StatusBadGateway))
	assert.False(t, Transient(http.StatusOK))
	assert.False(t, Transient(http.StatusBadRequest))
	assert.False(t, Transient(http.StatusNotFound))
}

func TestBackoffClampsToMax(t *testing.T) {
	cfg := types.RetryConfig{
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  45 * time.Second,
		JitterRatio: 0.5,
	}
	for attempt := 0; attempt < 12; attempt++ {
		d := Backoff(cfg, attempt)
		// max backoff plus full jitter
		assert.LessOrEqual(t, d, 45*time.Second+45*time.Second/2,
			"attempt %d exceeded clamp", attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestBackoffGrows(t *testing.T) {
	cfg := types.RetryConfig{
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  45 * time.Second,
	}
	// No jitter: 2s*2^0=2s, 2s*2^1=4s, 2s*2^3=16s.
	assert.Equal(t, 2*time.Second, Backoff(cfg, 0))
	assert.Equal(t, 4*time.Second, Backoff(cfg, 1))
	assert.Equal(t, 16*time.Second, Backoff(cfg, 3))
}

func TestDoWithRetryRecoversFromTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, fastRetry)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetryFatalStatusNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, fastRetry)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load(), "4xx should not be retried")
}

func TestDoWithRetryExhaustionReturnsLastResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, fastRetry)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestDoWithRetryRewindsPostBody(t *testing.T) {
	var calls atomic.Int32
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL, bytes.NewReader([]byte(`{"q":"test"}`)))
	require.NoError(t, err)

	resp, err := DoWithRetry(context.Background(), srv.Client(), req, fastRetry)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, `{"q":"test"}`, bodies[0])
	assert.Equal(t, `{"q":"test"}`, bodies[1], "retried request should resend the full body")
}

func TestDoWithRetryContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = DoWithRetry(ctx, srv.Client(), req, types.RetryConfig{
		MaxRetries:  5,
		BaseBackoff: time.Hour,
		MaxBackoff:  time.Hour,
	})
	assert.Error(t, err)
}

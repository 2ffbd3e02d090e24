// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, "test-key", 5*time.Second, fastRetry(), nil)
	require.NoError(t, err)
	client.minInterval = 0 // no throttling in tests
	return client
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient("", "key", time.Second, DefaultRetryPolicy(), nil)
	require.Error(t, err)

	_, err = NewClient("https://example.com", "", time.Second, DefaultRetryPolicy(), nil)
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestLookupMPN(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parts/search", r.URL.Path)
		assert.Equal(t, "LM358DR", r.URL.Query().Get("mpn"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "parts-mcp/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": "cat-1", "mpn": "LM358DR", "manufacturer": "TI"}]}`))
	})

	parts, err := client.LookupMPN(context.Background(), "LM358DR")
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "cat-1", parts[0].ID)
	assert.Equal(t, "TI", parts[0].Manufacturer)
}

func TestLookupValueFootprintParams(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10k", r.URL.Query().Get("value"))
		assert.Equal(t, "0603", r.URL.Query().Get("footprint"))
		w.Write([]byte(`{"results": []}`))
	})

	parts, err := client.LookupValueFootprint(context.Background(), "10k", "0603")
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestSearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"results": [{"id": "cat-1"}]}`))
	})

	parts, err := client.LookupMPN(context.Background(), "LM358DR")
	require.NoError(t, err)
	assert.Len(t, parts, 1)
	assert.Equal(t, int64(3), calls.Load())
}

func TestSearchGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.LookupMPN(context.Background(), "LM358DR")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(3), calls.Load())
}

func TestSearchDoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := client.LookupMPN(context.Background(), "LM358DR")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "authentication rejected")
	assert.Equal(t, int64(1), calls.Load())
}

func TestSearchMalformedResponse(t *testing.T) {
	var calls atomic.Int64
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("not json"))
	})

	_, err := client.LookupMPN(context.Background(), "LM358DR")
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(1), calls.Load(), "malformed payloads are not retried")
}

func TestSearchRespectsCancelledContext(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.LookupMPN(ctx, "LM358DR")
	require.Error(t, err)
}

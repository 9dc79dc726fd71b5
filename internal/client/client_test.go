package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fscrawl/fscrawl/internal/bulk"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(Config{URL: "not a url"})
	require.Error(t, err)

	_, err = New(Config{URL: ""})
	require.Error(t, err)
}

func TestBulkRoundTrip(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/_bulk", r.URL.Path)
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"took": 3, "errors": false,
			"items": []map[string]any{
				{"index": map[string]any{"_id": "abc", "status": 201}},
			},
		})
	})

	raw, err := c.Bulk(context.Background(), []byte("{\"index\":{}}\n{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "application/x-ndjson", gotContentType)
	assert.Equal(t, "{\"index\":{}}\n{}\n", string(gotBody))
	require.Len(t, raw.Items, 1)
	assert.Equal(t, "abc", raw.Items[0].Index.ID)
	assert.False(t, raw.Errors)
}

func TestBulkSendsBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "elastic", user)
		assert.Equal(t, "changeme", pass)
		_, _ = w.Write([]byte(`{"items":[{"index":{"status":201}}]}`))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, Username: "elastic", Password: "changeme"})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	_, err = c.Bulk(context.Background(), []byte("x\n"))
	require.NoError(t, err)
}

func TestBulkErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bulk.TransportFailure
	}{
		{"unauthorized", http.StatusUnauthorized, bulk.TransportAuth},
		{"forbidden", http.StatusForbidden, bulk.TransportAuth},
		{"service unavailable", http.StatusServiceUnavailable, bulk.TransportConnection},
		{"too many requests", http.StatusTooManyRequests, bulk.TransportConnection},
		{"bad request", http.StatusBadRequest, bulk.TransportProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})

			_, err := c.Bulk(context.Background(), []byte("x\n"))
			var terr *Error
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.want, terr.Kind)
		})
	}
}

func TestBulkConnectionRefused(t *testing.T) {
	// A closed server port classifies as a connection failure
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Config{URL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.Bulk(context.Background(), []byte("x\n"))
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, bulk.TransportConnection, terr.Kind)
}

func TestBulkTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	c.timeout = 50 * time.Millisecond

	_, err := c.Bulk(context.Background(), []byte("x\n"))
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, bulk.TransportTimeout, terr.Kind)
}

func TestBulkMalformedResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := c.Bulk(context.Background(), []byte("x\n"))
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, bulk.TransportProtocol, terr.Kind)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		_, _ = w.Write([]byte(`{"version":{"number":"8.0.0"}}`))
	})
	require.NoError(t, c.Ping(context.Background()))
}

func TestPingAuthFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := c.Ping(context.Background())
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, bulk.TransportAuth, terr.Kind)
}

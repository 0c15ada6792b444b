package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v8/finance/chart/TCS.NS", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithHeaders(YahooFinanceHeaders()), WithHeader("X-Test", "yes"))
	resp, err := c.Get(context.Background(), "/v8/finance/chart/TCS.NS", map[string]string{"interval": "1d"})
	require.NoError(t, err)

	var out struct{ OK bool }
	require.NoError(t, resp.ParseJSON(&out))
	assert.True(t, out.OK)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetRetriesThrottled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("done"))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithRetry(3, 5*time.Millisecond, 20*time.Millisecond))
	resp, err := c.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "done", resp.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such symbol", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(WithBaseURL(srv.URL)).Get(context.Background(), "/missing", nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, se.Error(), "no such symbol")
}

func TestParseJSONError(t *testing.T) {
	r := &Response{Body: []byte("not json")}
	var v map[string]any
	assert.Error(t, r.ParseJSON(&v))
}

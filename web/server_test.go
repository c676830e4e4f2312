package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/logstore"
	"github.com/tomasmach/fishie/metrics"
	"github.com/tomasmach/fishie/web"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeLogs struct {
	got     logstore.Filter
	entries []logstore.Entry
	err     error
}

func (l *fakeLogs) List(_ context.Context, f logstore.Filter) ([]logstore.Entry, int, error) {
	l.got = f
	return l.entries, len(l.entries), l.err
}

func newTestServer(t *testing.T, opts web.Options) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(web.New(":0", opts).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   string
	}{
		{"ok", nil, http.StatusOK, "ok"},
		{"database down", errors.New("connection refused"), http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, web.Options{Store: fakePinger{err: tt.err}})
			resp, err := http.Get(ts.URL + "/healthz")
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.want, body["status"])
		})
	}
}

func TestListLogsPassesFilter(t *testing.T) {
	logs := &fakeLogs{entries: []logstore.Entry{{ID: 2, Level: "ERROR", Msg: "boom", GuildID: "42"}}}
	ts := newTestServer(t, web.Options{Logs: logs})

	resp, err := http.Get(ts.URL + "/api/logs?guild_id=42&level=warn&limit=10&offset=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, logstore.Filter{GuildID: "42", Level: "warn", Limit: 10, Offset: 5}, logs.got)

	var body struct {
		Logs  []logstore.Entry `json:"logs"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Logs, 1)
	assert.Equal(t, "boom", body.Logs[0].Msg)
}

func TestListLogsClampsLimit(t *testing.T) {
	logs := &fakeLogs{}
	ts := newTestServer(t, web.Options{Logs: logs})

	resp, err := http.Get(ts.URL + "/api/logs?limit=100000")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 500, logs.got.Limit)

	var body map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.JSONEq(t, "[]", string(body["logs"]))
}

func TestListLogsRejectsBadParams(t *testing.T) {
	ts := newTestServer(t, web.Options{Logs: &fakeLogs{}})
	for _, q := range []string{"limit=abc", "offset=-1"} {
		resp, err := http.Get(ts.URL + "/api/logs?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestListLogsError(t *testing.T) {
	ts := newTestServer(t, web.Options{Logs: &fakeLogs{err: errors.New("disk I/O error")}})
	resp, err := http.Get(ts.URL + "/api/logs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCacheSnapshot(t *testing.T) {
	c := cache.New()
	c.AddPrefix("42", "?")
	c.AddPinboard("42", "43")
	ts := newTestServer(t, web.Options{Cache: c})

	resp, err := http.Get(ts.URL + "/api/cache")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap cache.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, []string{"?"}, snap.Prefixes["42"])
	assert.Equal(t, "43", snap.Pinboard["42"])
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, web.Options{})
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
}

func TestUnknownMethod(t *testing.T) {
	ts := newTestServer(t, web.Options{Cache: cache.New()})
	resp, err := http.Post(ts.URL+"/api/cache", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestMetricsReportLiveCacheSize(t *testing.T) {
	c := cache.New()
	metrics.TrackCacheEntries(c.Len)
	ts := newTestServer(t, web.Options{Cache: c})
	c.AddPrefix("42", "?")
	c.AddPinboard("42", "43")

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "fishie_settings_cache_entries 2")
}

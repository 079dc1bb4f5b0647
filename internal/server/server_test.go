package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/codevisor/internal/analyzer"
	"github.com/dotcommander/codevisor/internal/domain"
)

// countingAnalyzer wraps the engine and counts Analyze calls.
type countingAnalyzer struct {
	*analyzer.Engine
	calls atomic.Int32
}

func (c *countingAnalyzer) Analyze(ctx context.Context, lang domain.Language, code string) (*domain.AnalysisResponse, error) {
	c.calls.Add(1)
	return c.Engine.Analyze(ctx, lang, code)
}

func newTestServer(t *testing.T, options ...Option) (*httptest.Server, *countingAnalyzer) {
	t.Helper()
	engine := &countingAnalyzer{Engine: analyzer.New()}
	srv := httptest.NewServer(New(engine, Options{MaxCodeSize: 4 << 10}, options...).Handler())
	t.Cleanup(srv.Close)
	return srv, engine
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestGenerateFlowchart(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("returns the full envelope", func(t *testing.T) {
		resp, body := post(t, srv.URL+"/generate-flowchart", `{"code":"x = 1\nprint(x)","language":"python","advanced":true}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

		assert.Contains(t, body["flowchart"], "<svg")
		steps, ok := body["execution_steps"].([]any)
		require.True(t, ok)
		assert.Len(t, steps, 2)
		for _, key := range []string{"complexity_analysis", "optimization_suggestions", "memory_analysis"} {
			assert.NotNil(t, body[key], key)
		}
	})

	t.Run("language is case-insensitive", func(t *testing.T) {
		resp, _ := post(t, srv.URL+"/generate-flowchart", `{"code":"int main() { return 0; }","language":"CPP"}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	tests := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{"blank code", `{"code":"   ","language":"python"}`, http.StatusBadRequest, "No code provided"},
		{"missing code", `{"language":"python"}`, http.StatusBadRequest, "No code provided"},
		{"unsupported language", `{"code":"fn main() {}","language":"rust"}`, http.StatusBadRequest, "Unsupported language"},
		{"malformed body", `{"code":`, http.StatusBadRequest, "No data received"},
		{"oversized body", `{"code":"` + strings.Repeat("x", 8<<10) + `","language":"python"}`, http.StatusRequestEntityTooLarge, "Request body exceeds 4096 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/generate-flowchart", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.want, body["error"])
		})
	}

	t.Run("rejects other methods", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/generate-flowchart")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, http.MethodPost, resp.Header.Get("Allow"))
	})
}

func TestParsePythonEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/parse-python", `{"code":"for i in range(3):\n    print(i)"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	steps := body["execution_steps"].([]any)
	require.Len(t, steps, 2)
	assert.Equal(t, "node_1", steps[0].(map[string]any)["node_id"])
	assert.Equal(t, "O(n)", body["complexity_analysis"].(map[string]any)["time_complexity"])

	resp, body = post(t, srv.URL+"/parse-python", `{"code":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No code provided", body["error"])
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var health healthBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Timestamp.IsZero())

	post(t, srv.URL+"/generate-flowchart", `{"code":"print(1)","language":"python"}`)
	post(t, srv.URL+"/generate-flowchart", `{"code":"","language":"python"}`)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	text := string(raw)
	assert.Contains(t, text, `codevisor_requests_total{endpoint="generate_flowchart",language="python",status="200"} 1`)
	assert.Contains(t, text, `codevisor_requests_total{endpoint="generate_flowchart",language="python",status="400"} 1`)
	assert.Contains(t, text, "codevisor_analysis_duration_seconds")
	assert.Contains(t, text, "codevisor_cache_misses_total 1")
}

func TestCORS(t *testing.T) {
	engine := analyzer.New()
	srv := httptest.NewServer(New(engine, Options{AllowedOrigin: "http://localhost:3000"}).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/generate-flowchart", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "POST")
}

func TestCachedAnalysis(t *testing.T) {
	cache, err := OpenPebbleCache(t.TempDir())
	require.NoError(t, err)

	srv, engine := newTestServer(t, WithCache(cache))
	t.Cleanup(func() { _ = cache.Close() })
	body := `{"code":"total = 0\nfor i in range(n):\n    total += i","language":"python"}`

	_, first := post(t, srv.URL+"/generate-flowchart", body)
	_, second := post(t, srv.URL+"/generate-flowchart", body)

	assert.Equal(t, int32(1), engine.calls.Load())
	assert.Equal(t, first, second)

	_, _ = post(t, srv.URL+"/generate-flowchart", `{"code":"total = 1","language":"python"}`)
	assert.Equal(t, int32(2), engine.calls.Load())
}

func TestPebbleCache(t *testing.T) {
	cache, err := OpenPebbleCache(t.TempDir())
	require.NoError(t, err)
	defer cache.Close()

	key := cacheKey(domain.LanguageJava, "class A {}")
	_, ok := cache.Get(key)
	assert.False(t, ok)

	want := &domain.AnalysisResponse{
		Flowchart:      "<svg/>",
		ExecutionSteps: []domain.ExecutionStep{{NodeID: "Method_f_1", Description: "Method: f"}},
	}
	require.NoError(t, cache.Put(key, want))

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, want, got)

	assert.NotEqual(t, key, cacheKey(domain.LanguagePython, "class A {}"))
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(analyzer.New(), Options{ShutdownGrace: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

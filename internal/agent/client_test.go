package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/codevisor/internal/analyzer"
	"github.com/dotcommander/codevisor/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithRateLimit(0, 0))
}

func TestClientAnalyze(t *testing.T) {
	t.Run("posts the request as JSON", func(t *testing.T) {
		var got domain.AnalysisRequest
		var requestID, contentType string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, generateFlowchartPath, r.URL.Path)
			requestID = r.Header.Get("X-Request-ID")
			contentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"flowchart":"<svg/>","execution_steps":[{"node_id":"Expr_1","description":"Expression: print(1)","line":1}]}`))
		})

		resp, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "print(1)", Language: domain.LanguagePython, Advanced: true})
		require.NoError(t, err)

		assert.Equal(t, domain.AnalysisRequest{Code: "print(1)", Language: domain.LanguagePython, Advanced: true}, got)
		assert.NotEmpty(t, requestID)
		assert.Equal(t, "application/json", contentType)

		assert.Equal(t, "<svg/>", resp.Flowchart)
		require.Len(t, resp.ExecutionSteps, 1)
		assert.Equal(t, "Expr_1", resp.ExecutionSteps[0].NodeID)
		assert.Equal(t, 1, *resp.ExecutionSteps[0].Line)
		assert.Nil(t, resp.ComplexityAnalysis)
	})

	t.Run("non-2xx becomes a transport error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"analysis exploded"}`))
		})

		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: domain.LanguagePython})
		require.Error(t, err)

		var te *domain.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
		assert.Equal(t, "analysis exploded", te.Body)
		assert.True(t, domain.IsRetryable(err))
	})

	t.Run("plain-text error bodies are kept", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "bad input", http.StatusBadRequest)
		})

		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: domain.LanguagePython})
		assert.Equal(t, http.StatusBadRequest, domain.StatusCode(err))
		assert.Contains(t, err.Error(), "bad input")
		assert.False(t, domain.IsRetryable(err))
	})

	t.Run("deadline becomes ErrTimedOut", func(t *testing.T) {
		release := make(chan struct{})
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := c.Analyze(ctx, domain.AnalysisRequest{Code: "x", Language: domain.LanguagePython})
		require.Error(t, err)
		assert.True(t, domain.IsTimeout(err))
	})

	t.Run("undecodable body is a transport error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		})

		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: domain.LanguagePython})
		var te *domain.TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusOK, te.StatusCode)
		assert.True(t, te.Undecodable())
		assert.Equal(t, "The analysis service sent a response that could not be read.", domain.UserMessage(err))
	})

	t.Run("unreachable service has no status", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		c := NewClient(url, WithRateLimit(0, 0))
		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: domain.LanguagePython})

		var te *domain.TransportError
		require.True(t, errors.As(err, &te))
		assert.Zero(t, te.StatusCode)
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestClientParsePython(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, parsePythonPath, r.URL.Path)
		var req domain.ParseRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "x = 1", req.Code)

		_, _ = w.Write([]byte(`{"execution_steps":[{"node_id":"node_1","description":"Assignment: x = 1"}],"complexity_analysis":{"time_complexity":"O(1)","space_complexity":"O(1)","details":[]}}`))
	})

	resp, err := c.ParsePython(context.Background(), "x = 1")
	require.NoError(t, err)
	require.Len(t, resp.ExecutionSteps, 1)
	assert.Equal(t, "node_1", resp.ExecutionSteps[0].NodeID)
	assert.Equal(t, "O(1)", resp.ComplexityAnalysis.TimeComplexity)
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	assert.Equal(t, DefaultBaseURL, c.baseURL)

	c = NewClient("http://example.test/", WithTimeout(3*time.Second))
	assert.Equal(t, "http://example.test", c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}

func TestLocalClient(t *testing.T) {
	c := NewLocalClient(analyzer.New())

	t.Run("rejects blank code", func(t *testing.T) {
		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "  ", Language: domain.LanguagePython})
		assert.True(t, domain.IsValidation(err))

		_, err = c.ParsePython(context.Background(), "")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("analyzes in process", func(t *testing.T) {
		resp, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "print(1)", Language: domain.LanguagePython})
		require.NoError(t, err)
		assert.Contains(t, resp.Flowchart, `<g id="Expr_1" class="node">`)
		assert.NotNil(t, resp.MemoryAnalysis)
	})

	t.Run("unsupported language is a validation error", func(t *testing.T) {
		_, err := c.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: "go"})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestMockClient(t *testing.T) {
	m := NewMockClient()

	resp, err := m.Analyze(context.Background(), domain.AnalysisRequest{Code: "print(1)", Language: domain.LanguagePython})
	require.NoError(t, err)
	assert.Equal(t, "Expr_1", resp.ExecutionSteps[0].NodeID)
	assert.Len(t, m.Requests(), 1)

	boom := &domain.TransportError{StatusCode: http.StatusBadGateway}
	m.SetError(boom)
	_, err = m.Analyze(context.Background(), domain.AnalysisRequest{Code: "x", Language: domain.LanguageJava})
	assert.ErrorIs(t, err, boom)

	m.SetError(nil)
	m.SetDelay(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.ParsePython(ctx, "x = 1")
	assert.True(t, domain.IsTimeout(err))
}

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/dotcommander/codevisor/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:5000"

	generateFlowchartPath = "/generate-flowchart"
	parsePythonPath       = "/parse-python"

	// maxErrorBody caps how much of a failed response is kept for the error.
	maxErrorBody = 4 << 10
)

// Client talks to the analysis service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

type Option func(*Client)

// WithTimeout sets the transport-level timeout. Session deadlines are applied
// through the request context and normally fire first.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		transport := c.httpClient.Transport
		c.httpClient = &http.Client{
			Timeout:   timeout,
			Transport: transport,
		}
	}
}

func WithRateLimit(requestsPerMinute int, burst int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithHTTPClient replaces the pooled default client, mostly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		logger:  slog.Default().With("component", "analysis_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger.Debug("analysis client initialized",
		"base_url", c.baseURL,
		"http_timeout", c.httpClient.Timeout,
		"rate_limit", fmt.Sprintf("%v req/s", c.limiter.Limit()))

	return c
}

// Analyze posts req to the generate-flowchart endpoint. It never retries.
func (c *Client) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	var resp domain.AnalysisResponse
	if err := c.post(ctx, generateFlowchartPath, req, &resp, "language", req.Language, "code_length", len(req.Code)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ParsePython posts code to the parse-python endpoint.
func (c *Client) ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error) {
	var resp domain.ParseResponse
	if err := c.post(ctx, parsePythonPath, domain.ParseRequest{Code: code}, &resp, "code_length", len(code)); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any, attrs ...any) error {
	requestID := uuid.NewString()
	startTime := time.Now()
	logger := c.logger.With("request_id", requestID, "endpoint", path)

	if err := c.limiter.Wait(ctx); err != nil {
		logger.Warn("rate limit wait failed", "error", err)
		return classifyTransport(ctx, err)
	}

	logger.Debug("rate limit passed",
		"wait_duration_ms", time.Since(startTime).Milliseconds(),
		"limit_per_second", c.limiter.Limit(),
		"burst_capacity", c.limiter.Burst())

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	logger.Debug("sending analysis request", append([]any{"body_size_bytes", len(body)}, attrs...)...)

	httpStart := time.Now()
	resp, err := c.httpClient.Do(req)
	httpDuration := time.Since(httpStart)
	if err != nil {
		logger.Warn("analysis request failed",
			"duration_ms", httpDuration.Milliseconds(),
			"error", err)
		return classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	logger.Debug("analysis response received",
		"status_code", resp.StatusCode,
		"duration_ms", httpDuration.Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Warn("analysis service error",
			"status_code", resp.StatusCode,
			"response_body", string(errBody))
		return &domain.TransportError{
			StatusCode: resp.StatusCode,
			Body:       extractErrorMessage(errBody),
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn("failed to read response body", "error", err)
		return classifyTransport(ctx, err)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		logger.Error("failed to parse analysis response",
			"error", err,
			"body_size", len(respBody))
		return &domain.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("parsing response: %w", err),
		}
	}

	logger.Info("analysis request successful",
		"status_code", resp.StatusCode,
		"response_size", len(respBody),
		"total_duration_ms", time.Since(startTime).Milliseconds())

	return nil
}

// classifyTransport maps a failed exchange onto the domain taxonomy: deadline
// and network timeouts become ErrTimedOut, everything else a status-less
// TransportError.
func classifyTransport(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimedOut, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimedOut, err)
	}
	return &domain.TransportError{Err: err}
}

// extractErrorMessage pulls "error" out of a JSON error body and falls back
// to the raw text.
func extractErrorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

package agent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dotcommander/codevisor/internal/analyzer"
	"github.com/dotcommander/codevisor/internal/domain"
)

// LocalClient runs the analysis engine in-process instead of calling the
// HTTP service.
type LocalClient struct {
	engine *analyzer.Engine
	logger *slog.Logger
}

func NewLocalClient(engine *analyzer.Engine) *LocalClient {
	if engine == nil {
		engine = analyzer.New()
	}
	return &LocalClient{
		engine: engine,
		logger: slog.Default().With("component", "local_client"),
	}
}

func (c *LocalClient) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, &domain.ValidationError{Field: "code", Message: "code is required"}
	}

	start := time.Now()
	resp, err := c.engine.Analyze(ctx, req.Language, req.Code)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransport(ctx, err)
		}
		return nil, err
	}

	c.logger.Debug("local analysis complete",
		"language", req.Language,
		"steps", len(resp.ExecutionSteps),
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (c *LocalClient) ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &domain.ValidationError{Field: "code", Message: "code is required"}
	}
	resp, err := c.engine.ParsePython(ctx, code)
	if err != nil && ctx.Err() != nil {
		return nil, classifyTransport(ctx, err)
	}
	return resp, err
}

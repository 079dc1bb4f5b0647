package agent

import (
	"context"

	"github.com/dotcommander/codevisor/internal/domain"
)

// Service is the full analysis surface: the HTTP client, the in-process
// engine and the mock all satisfy it.
type Service interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)
	ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error)
}

var (
	_ Service = (*Client)(nil)
	_ Service = (*MockClient)(nil)
	_ Service = (*LocalClient)(nil)
)

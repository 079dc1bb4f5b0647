package agent

import (
	"context"
	"sync"
	"time"

	"github.com/dotcommander/codevisor/internal/domain"
)

// MockClient returns canned analysis responses for tests and demos.
type MockClient struct {
	mu        sync.Mutex
	responses map[domain.Language]*domain.AnalysisResponse
	err       error
	delay     time.Duration
	requests  []domain.AnalysisRequest
}

// NewMockClient creates a mock with a one-step response per language.
func NewMockClient() *MockClient {
	return &MockClient{
		responses: map[domain.Language]*domain.AnalysisResponse{
			domain.LanguagePython: {
				Flowchart: `<svg xmlns="http://www.w3.org/2000/svg"><g id="Start" class="node"/><g id="Expr_1" class="node"/><g id="End" class="node"/></svg>`,
				ExecutionSteps: []domain.ExecutionStep{
					{NodeID: "Expr_1", Description: "Evaluate expression: print(1)"},
				},
			},
			domain.LanguageCPP: {
				Flowchart: `<svg xmlns="http://www.w3.org/2000/svg"><g id="start" class="node"/><g id="main" class="node"/><g id="end" class="node"/></svg>`,
				ExecutionSteps: []domain.ExecutionStep{
					{NodeID: "main", Description: "Enter function main"},
				},
			},
			domain.LanguageJava: {
				Flowchart: `<svg xmlns="http://www.w3.org/2000/svg"><g id="start" class="node"/><g id="main" class="node"/><g id="end" class="node"/></svg>`,
				ExecutionSteps: []domain.ExecutionStep{
					{NodeID: "main", Description: "Enter method main"},
				},
			},
		},
	}
}

// SetResponse replaces the canned response for lang.
func (m *MockClient) SetResponse(lang domain.Language, resp *domain.AnalysisResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[lang] = resp
}

// SetError makes every call fail with err until cleared with nil.
func (m *MockClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay holds every call for d or until the context ends.
func (m *MockClient) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns every request seen so far.
func (m *MockClient) Requests() []domain.AnalysisRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.AnalysisRequest(nil), m.requests...)
}

func (m *MockClient) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	resp, err, delay := m.responses[req.Language], m.err, m.delay
	m.mu.Unlock()

	if err := m.wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &domain.AnalysisResponse{}, nil
	}
	copied := *resp
	return &copied, nil
}

func (m *MockClient) ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error) {
	m.mu.Lock()
	resp, err, delay := m.responses[domain.LanguagePython], m.err, m.delay
	m.mu.Unlock()

	if err := m.wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	out := &domain.ParseResponse{ExecutionSteps: []domain.ExecutionStep{}}
	if resp != nil {
		out.ExecutionSteps = append(out.ExecutionSteps, resp.ExecutionSteps...)
		out.ComplexityAnalysis = resp.ComplexityAnalysis
		out.OptimizationSuggestions = resp.OptimizationSuggestions
	}
	return out, nil
}

func (m *MockClient) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return classifyTransport(ctx, ctx.Err())
	}
}

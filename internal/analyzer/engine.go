// Package analyzer turns Python, C++ and Java source into a flowchart, an
// execution trace and static complexity, optimization and memory estimates.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/codevisor/internal/domain"
)

// program is one parsed source file. Every method is read-only so the
// analyses can run concurrently.
type program interface {
	flow() (*Graph, []domain.ExecutionStep)
	complexity() *domain.ComplexityInfo
	optimization() *domain.OptimizationInfo
	memory() *domain.MemoryInfo
}

type frontEnd struct {
	name  string
	parse func(code string) (program, error)
}

var frontEnds = map[domain.Language]frontEnd{
	domain.LanguagePython: {name: "Python", parse: parsePythonProgram},
	domain.LanguageCPP:    {name: "C++", parse: parseCPPProgram},
	domain.LanguageJava:   {name: "Java", parse: parseJavaProgram},
}

// Engine runs the per-language front-ends.
type Engine struct {
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default().With("component", "analyzer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze builds the full analysis envelope for code. Empty or unparsable
// code is not an error: the response carries a minimal flowchart naming the
// problem and a single error step, with the analysis slots left empty.
func (e *Engine) Analyze(ctx context.Context, lang domain.Language, code string) (*domain.AnalysisResponse, error) {
	fe, ok := frontEnds[lang]
	if !ok {
		return nil, &domain.ValidationError{Field: "language", Message: "unsupported language", Value: string(lang)}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := e.logger.With("language", lang)

	if strings.TrimSpace(code) == "" {
		logger.Debug("empty source")
		return &domain.AnalysisResponse{
			Flowchart:      RenderSVG(minimalGraph(fmt.Sprintf("Error: Empty %s Code", fe.name))),
			ExecutionSteps: []domain.ExecutionStep{errorStep(fmt.Sprintf("Empty %s Code", fe.name))},
		}, nil
	}

	prog, err := fe.parse(code)
	if err != nil {
		msg := fmt.Sprintf("%s Flowchart Error: %v", fe.name, err)
		logger.Info("source did not parse", "error", err)
		return &domain.AnalysisResponse{
			Flowchart:      RenderSVG(minimalGraph(msg)),
			ExecutionSteps: []domain.ExecutionStep{errorStep(msg)},
		}, nil
	}

	resp := &domain.AnalysisResponse{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		graph, steps := prog.flow()
		if err := ctx.Err(); err != nil {
			return err
		}
		resp.Flowchart = RenderSVG(graph)
		resp.ExecutionSteps = steps
		return nil
	})
	g.Go(func() error {
		resp.ComplexityAnalysis = prog.complexity()
		return ctx.Err()
	})
	g.Go(func() error {
		resp.OptimizationSuggestions = prog.optimization()
		return ctx.Err()
	})
	g.Go(func() error {
		resp.MemoryAnalysis = prog.memory()
		return ctx.Err()
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", lang, err)
	}

	logger.Debug("analysis complete",
		"steps", len(resp.ExecutionSteps),
		"time_complexity", resp.ComplexityAnalysis.TimeComplexity,
		"duration", time.Since(start))
	return resp, nil
}

// ParsePython returns the flat statement listing for code along with its
// complexity and optimization analyses. A parse error is reported inside
// each part of the response.
func (e *Engine) ParsePython(ctx context.Context, code string) (*domain.ParseResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prog, err := parsePythonProgram(code)
	if err != nil {
		e.logger.Info("python source did not parse", "error", err)
		step := errorStep(fmt.Sprintf("Error parsing Python code: %v", err))
		step.Line = nil
		return &domain.ParseResponse{
			ExecutionSteps: []domain.ExecutionStep{step},
			ComplexityAnalysis: &domain.ComplexityInfo{
				TimeComplexity:  "N/A",
				SpaceComplexity: "N/A",
				Details:         []string{fmt.Sprintf("Error analyzing complexity: %v", err)},
			},
			OptimizationSuggestions: &domain.OptimizationInfo{
				Suggestions:   []string{fmt.Sprintf("Error suggesting optimizations: %v", err)},
				OptimizedCode: code,
			},
		}, nil
	}

	py := prog.(*pyProgram)
	resp := &domain.ParseResponse{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp.ExecutionSteps = py.parseSteps()
		return ctx.Err()
	})
	g.Go(func() error {
		resp.ComplexityAnalysis = py.complexity()
		return ctx.Err()
	})
	g.Go(func() error {
		resp.OptimizationSuggestions = py.optimization()
		return ctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse python: %w", err)
	}
	return resp, nil
}

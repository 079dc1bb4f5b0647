// Package mcptools exposes the analysis service as MCP tools over stdio.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dotcommander/codevisor/internal/agent"
	"github.com/dotcommander/codevisor/internal/domain"
)

const (
	ToolGenerateFlowchart = "generate_flowchart"
	ToolParsePython       = "parse_python"
)

// Handlers holds the tool handlers so they can be called without a transport.
type Handlers struct {
	service agent.Service
	logger  *slog.Logger
}

func NewHandlers(service agent.Service, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{service: service, logger: logger.With("component", "mcp")}
}

// NewServer registers both tools on a fresh MCP server.
func NewServer(service agent.Service, version string, logger *slog.Logger) *server.MCPServer {
	h := NewHandlers(service, logger)
	s := server.NewMCPServer(
		"CodeVisor",
		version,
		server.WithLogging(),
		server.WithRecovery(),
	)

	languages := make([]string, 0, len(domain.SupportedLanguages))
	for _, l := range domain.SupportedLanguages {
		languages = append(languages, l.String())
	}

	flowchartTool := mcp.NewTool(ToolGenerateFlowchart,
		mcp.WithDescription("Analyze a code snippet and return its SVG flowchart, simulated execution steps, complexity, optimization and memory analysis as JSON."),
		mcp.WithString("code",
			mcp.Description("Source code to analyze."),
			mcp.Required(),
		),
		mcp.WithString("language",
			mcp.Description("Language of the snippet."),
			mcp.Required(),
			mcp.Enum(languages...),
		),
	)
	parseTool := mcp.NewTool(ToolParsePython,
		mcp.WithDescription("Parse a Python snippet into a flat list of execution steps plus complexity and optimization hints, as JSON."),
		mcp.WithString("code",
			mcp.Description("Python source code."),
			mcp.Required(),
		),
	)

	s.AddTool(flowchartTool, h.GenerateFlowchart)
	s.AddTool(parseTool, h.ParsePython)
	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (h *Handlers) GenerateFlowchart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments

	code, _ := args["code"].(string)
	if strings.TrimSpace(code) == "" {
		return toolError("missing required argument: code"), nil
	}
	raw, _ := args["language"].(string)
	lang, ok := domain.ParseLanguage(raw)
	if !ok {
		return toolError(fmt.Sprintf("unsupported language %q", raw)), nil
	}

	h.logger.Debug("generate_flowchart", "language", lang, "bytes", len(code))
	resp, err := h.service.Analyze(ctx, domain.AnalysisRequest{Code: code, Language: lang, Advanced: true})
	if err != nil {
		return h.failure(ToolGenerateFlowchart, err)
	}
	result, err := domain.Merge(resp)
	if err != nil {
		return h.failure(ToolGenerateFlowchart, err)
	}
	return jsonResult(domain.AnalysisResponse{
		Flowchart:               result.Flowchart,
		ExecutionSteps:          result.ExecutionSteps,
		ComplexityAnalysis:      result.ComplexityAnalysis,
		OptimizationSuggestions: result.OptimizationSuggestions,
		MemoryAnalysis:          result.MemoryAnalysis,
	})
}

func (h *Handlers) ParsePython(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, _ := request.Params.Arguments["code"].(string)
	if strings.TrimSpace(code) == "" {
		return toolError("missing required argument: code"), nil
	}

	h.logger.Debug("parse_python", "bytes", len(code))
	resp, err := h.service.ParsePython(ctx, code)
	if err != nil {
		return h.failure(ToolParsePython, err)
	}
	return jsonResult(resp)
}

// failure reports analysis errors to the model as tool errors. Cancellation
// is returned as a protocol error since nobody is waiting for the result.
func (h *Handlers) failure(tool string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.Canceled) {
		return nil, err
	}
	h.logger.Warn("tool failed", "tool", tool, "error", err)
	return toolError(domain.UserMessage(err)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

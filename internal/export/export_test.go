package export

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/dotcommander/codevisor/internal/storage"
)

func intRef(i int) *int       { return &i }
func strRef(s string) *string { return &s }

func sampleResult() *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Flowchart: `<svg><g id="Start" class="node"></g><g id="Expr_1" class="node"></g></svg>`,
		ExecutionSteps: []domain.ExecutionStep{
			{NodeID: "Expr_1", Description: "Expression: print(1)", Output: strRef("1"), Line: intRef(1)},
			{NodeID: "Assign_2", Description: "Assignment: x = 2", Line: intRef(-1)},
		},
		ComplexityAnalysis:      &domain.ComplexityInfo{TimeComplexity: "O(1)", SpaceComplexity: "O(1)"},
		OptimizationSuggestions: &domain.OptimizationInfo{},
		MemoryAnalysis:          &domain.MemoryInfo{EstimatedMemoryUsage: "0.02 KB"},
	}
}

func TestFormatMemorySuggestions(t *testing.T) {
	mem := &domain.MemoryInfo{Suggestions: []domain.MemorySuggestion{
		{Line: 7, Suggestion: "Use a generator"},
		{Line: 2, Suggestion: "Avoid copying lists"},
	}}
	assert.Equal(t, "Line 7: Use a generator\nLine 2: Avoid copying lists", FormatMemorySuggestions(mem))
	assert.Empty(t, FormatMemorySuggestions(&domain.MemoryInfo{}))
	assert.Empty(t, FormatMemorySuggestions(nil))
}

func TestFormatSteps(t *testing.T) {
	got := FormatSteps(sampleResult().ExecutionSteps)
	assert.Equal(t, "1. [Expr_1] Expression: print(1) (line 1) -> 1\n2. [Assign_2] Assignment: x = 2\n", got)
}

func TestStorageExporter(t *testing.T) {
	fs := storage.NewFileSystem(t.TempDir())
	at := time.Date(2025, 7, 16, 15, 30, 0, 0, time.UTC)
	exp := NewStorageExporter(fs, WithClock(func() time.Time { return at }, func() string { return "82f06b15-aaaa" }))
	ctx := context.Background()

	dir, err := exp.Export(ctx, domain.LanguagePython, sampleResult())
	require.NoError(t, err)
	assert.Equal(t, "exports/2025-07-16_1530_82f06b15", dir)

	svg, err := fs.Load(ctx, dir+"/"+FlowchartFile)
	require.NoError(t, err)
	assert.Equal(t, sampleResult().Flowchart, string(svg))

	steps, err := fs.Load(ctx, dir+"/"+StepsFile)
	require.NoError(t, err)
	assert.Contains(t, string(steps), "[Expr_1]")

	raw, err := fs.Load(ctx, dir+"/"+ManifestFile)
	require.NoError(t, err)
	var manifest storage.Manifest
	require.NoError(t, yaml.Unmarshal(raw, &manifest))
	assert.Equal(t, "82f06b15-aaaa", manifest.ID)
	assert.Equal(t, "python", manifest.Language)
	assert.Equal(t, 2, manifest.Steps)
	assert.Equal(t, "O(1)", manifest.Complexity)
	assert.Equal(t, []string{FlowchartFile, StepsFile}, manifest.Files)

	t.Run("refuses a result without a flowchart", func(t *testing.T) {
		_, err := exp.Export(ctx, domain.LanguagePython, &domain.AnalysisResult{})
		assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	})
}

func TestStorageExporterCollisions(t *testing.T) {
	fs := storage.NewFileSystem(t.TempDir())
	at := time.Date(2025, 7, 16, 15, 30, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("draws a new id when the directory is taken", func(t *testing.T) {
		ids := []string{"aaaaaaaa-1", "aaaaaaaa-2", "bbbbbbbb-3"}
		next := func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}
		exp := NewStorageExporter(fs, WithClock(func() time.Time { return at }, next))

		first, err := exp.Export(ctx, domain.LanguageJava, sampleResult())
		require.NoError(t, err)
		second, err := exp.Export(ctx, domain.LanguageJava, sampleResult())
		require.NoError(t, err)

		assert.Equal(t, "exports/2025-07-16_1530_aaaaaaaa", first)
		assert.Equal(t, "exports/2025-07-16_1530_bbbbbbbb", second)

		dirs, err := exp.Exports(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{first, second}, dirs)
	})

	t.Run("gives up when every id collides", func(t *testing.T) {
		exp := NewStorageExporter(fs, WithClock(func() time.Time { return at }, func() string { return "bbbbbbbb-9" }))

		_, err := exp.Export(ctx, domain.LanguageJava, sampleResult())
		assert.ErrorIs(t, err, ErrExportExists)
	})

	t.Run("unfinished exports are not listed", func(t *testing.T) {
		require.NoError(t, fs.Save(ctx, "exports/partial/"+FlowchartFile, []byte("<svg/>")))

		dirs, err := NewStorageExporter(fs).Exports(ctx)
		require.NoError(t, err)
		assert.NotContains(t, dirs, "exports/partial")
		assert.Len(t, dirs, 2)
	})
}

func TestWriterClipboard(t *testing.T) {
	var buf bytes.Buffer
	c := NewWriterClipboard(&buf)

	require.NoError(t, c.Copy(context.Background(), "Line 1: x"))
	require.NoError(t, c.Copy(context.Background(), "Line 2: y\n"))
	assert.Equal(t, "Line 1: x\nLine 2: y\n", buf.String())
}

func TestSystemClipboard(t *testing.T) {
	c := &SystemClipboard{lookPath: func(string) (string, error) { return "", errors.New("not found") }}
	assert.ErrorIs(t, c.Copy(context.Background(), "x"), ErrNoClipboard)

	c.lookPath = func(name string) (string, error) {
		if name == "xclip" {
			return "/usr/bin/xclip", nil
		}
		return "", errors.New("not found")
	}
	args, err := c.command()
	require.NoError(t, err)
	assert.Equal(t, []string{"/usr/bin/xclip", "-selection", "clipboard"}, args)
}

func TestNarrators(t *testing.T) {
	var buf bytes.Buffer
	NewWriterNarrator(&buf, "> ").Narrate("If: x >= 2 && y != 3")
	assert.Equal(t, "> If: x is at least 2 and y is not equal to 3\n", buf.String())

	var logs bytes.Buffer
	NewLogNarrator(slog.New(slog.NewTextHandler(&logs, nil))).Narrate("Assignment: x = 1")
	assert.Contains(t, logs.String(), `text="Assignment: x = 1"`)
	assert.Contains(t, logs.String(), "component=narrator")
}

func TestDOMHighlighter(t *testing.T) {
	var moves []string
	h := NewDOMHighlighter(func(id string) { moves = append(moves, id) })
	flowchart := sampleResult().Flowchart

	assert.True(t, h.Highlight(flowchart, "Expr_1"))
	assert.Equal(t, "Expr_1", h.Current())

	assert.False(t, h.Highlight(flowchart, "Missing_9"))
	assert.Equal(t, "Expr_1", h.Current(), "a missing node leaves the highlight alone")

	assert.False(t, h.Highlight(flowchart, "Expr"), "ids match exactly")

	h.ClearHighlight()
	assert.Empty(t, h.Current())
	assert.Equal(t, []string{"Expr_1", ""}, moves)
	assert.False(t, HasNode(strings.Repeat(" ", 10), ""))
}

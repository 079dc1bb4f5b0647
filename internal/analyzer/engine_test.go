package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeIDs(steps []domain.ExecutionStep) []string {
	ids := make([]string, len(steps))
	for i, s := range steps {
		ids[i] = s.NodeID
	}
	return ids
}

func TestEngineAnalyze(t *testing.T) {
	ctx := context.Background()
	e := New()

	t.Run("rejects an unsupported language", func(t *testing.T) {
		_, err := e.Analyze(ctx, domain.Language("rust"), "fn main() {}")
		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("empty code yields the minimal flowchart", func(t *testing.T) {
		resp, err := e.Analyze(ctx, domain.LanguagePython, "   \n")
		require.NoError(t, err)

		assert.Contains(t, resp.Flowchart, "Error: Empty Python Code")
		require.Len(t, resp.ExecutionSteps, 1)
		assert.Equal(t, "error", resp.ExecutionSteps[0].NodeID)
		assert.Equal(t, "Empty Python Code", resp.ExecutionSteps[0].Description)
		assert.Nil(t, resp.ComplexityAnalysis)
		assert.Nil(t, resp.OptimizationSuggestions)
		assert.Nil(t, resp.MemoryAnalysis)
	})

	t.Run("empty code names the language", func(t *testing.T) {
		resp, err := e.Analyze(ctx, domain.LanguageCPP, "")
		require.NoError(t, err)
		assert.Equal(t, "Empty C++ Code", resp.ExecutionSteps[0].Description)
	})

	t.Run("parse errors are reported in the response", func(t *testing.T) {
		resp, err := e.Analyze(ctx, domain.LanguagePython, "if x:\nprint(1)\n")
		require.NoError(t, err)

		require.Len(t, resp.ExecutionSteps, 1)
		step := resp.ExecutionSteps[0]
		assert.Equal(t, "error", step.NodeID)
		assert.Contains(t, step.Description, "Python Flowchart Error: expected an indented block")
		require.NotNil(t, step.Line)
		assert.Equal(t, -1, *step.Line)
		assert.Contains(t, resp.Flowchart, `<g id="Error" class="node">`)
		assert.Nil(t, resp.ComplexityAnalysis)
	})

	t.Run("statement-free code gets the default step", func(t *testing.T) {
		resp, err := e.Analyze(ctx, domain.LanguagePython, "pass\n")
		require.NoError(t, err)

		require.Len(t, resp.ExecutionSteps, 1)
		assert.Equal(t, "default", resp.ExecutionSteps[0].NodeID)
		assert.Equal(t, "No significant statements found", resp.ExecutionSteps[0].Description)
	})

	t.Run("honours a cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := e.Analyze(cancelled, domain.LanguagePython, "print(1)")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("every step names a node in the flowchart", func(t *testing.T) {
		sources := map[domain.Language]string{
			domain.LanguagePython: pythonLoops,
			domain.LanguageCPP:    cppSample,
			domain.LanguageJava:   javaSample,
		}
		for lang, code := range sources {
			resp, err := e.Analyze(ctx, lang, code)
			require.NoError(t, err, lang)
			require.NotEmpty(t, resp.ExecutionSteps, lang)
			for _, s := range resp.ExecutionSteps {
				assert.Contains(t, resp.Flowchart, `<g id="`+s.NodeID+`" class="node">`, "%s step %s", lang, s.NodeID)
			}
			assert.NotNil(t, resp.ComplexityAnalysis, lang)
			assert.NotNil(t, resp.OptimizationSuggestions, lang)
			assert.NotNil(t, resp.MemoryAnalysis, lang)
		}
	})
}

func TestEngineParsePython(t *testing.T) {
	ctx := context.Background()
	e := New()

	t.Run("lists statements breadth first", func(t *testing.T) {
		resp, err := e.ParsePython(ctx, "x = 1\nfor i in range(3):\n    print(i)\n")
		require.NoError(t, err)

		require.Len(t, resp.ExecutionSteps, 3)
		assert.Equal(t, []string{"node_1", "node_2", "node_3"}, nodeIDs(resp.ExecutionSteps))
		assert.Equal(t, "Assignment: x = 1", resp.ExecutionSteps[0].Description)
		assert.Equal(t, map[string]any{"x": "1"}, resp.ExecutionSteps[0].Variables)
		assert.Equal(t, "For Loop: iterating over range(3)", resp.ExecutionSteps[1].Description)
		assert.Equal(t, "Expression: print(i)", resp.ExecutionSteps[2].Description)

		assert.Equal(t, "O(n)", resp.ComplexityAnalysis.TimeComplexity)
		assert.Empty(t, resp.OptimizationSuggestions.Suggestions)
	})

	t.Run("reports parse errors in every part", func(t *testing.T) {
		resp, err := e.ParsePython(ctx, "def f(:\n")
		require.NoError(t, err)

		require.Len(t, resp.ExecutionSteps, 1)
		assert.Equal(t, "error", resp.ExecutionSteps[0].NodeID)
		assert.Contains(t, resp.ExecutionSteps[0].Description, "Error parsing Python code:")
		assert.Equal(t, "N/A", resp.ComplexityAnalysis.TimeComplexity)
		assert.Contains(t, resp.ComplexityAnalysis.Details[0], "Error analyzing complexity:")
		assert.Contains(t, resp.OptimizationSuggestions.Suggestions[0], "Error suggesting optimizations:")
		assert.Equal(t, "def f(:\n", resp.OptimizationSuggestions.OptimizedCode)
	})
}

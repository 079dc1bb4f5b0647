package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	t.Run("fills every missing slot with its default", func(t *testing.T) {
		var resp AnalysisResponse
		require.NoError(t, json.Unmarshal([]byte(`{"flowchart":"<svg/>","execution_steps":[{"node_id":"n1","description":"print"}]}`), &resp))

		result, err := Merge(&resp)
		require.NoError(t, err)

		assert.Equal(t, "<svg/>", result.Flowchart)
		assert.Len(t, result.ExecutionSteps, 1)
		assert.Equal(t, DefaultComplexity(), result.ComplexityAnalysis)
		assert.Equal(t, DefaultOptimization(), result.OptimizationSuggestions)
		assert.Equal(t, DefaultMemory(), result.MemoryAnalysis)
	})

	t.Run("missing complexity does not suppress optimization", func(t *testing.T) {
		resp := &AnalysisResponse{
			Flowchart: "<svg/>",
			OptimizationSuggestions: &OptimizationInfo{
				Suggestions:   []string{"use a set"},
				OptimizedCode: "x = {1, 2}",
			},
		}

		result, err := Merge(resp)
		require.NoError(t, err)

		assert.Equal(t, DefaultComplexity(), result.ComplexityAnalysis)
		assert.Equal(t, []string{"use a set"}, result.OptimizationSuggestions.Suggestions)
		assert.Equal(t, "x = {1, 2}", result.OptimizationSuggestions.OptimizedCode)
	})

	t.Run("missing steps become an empty sequence", func(t *testing.T) {
		result, err := Merge(&AnalysisResponse{Flowchart: "<svg/>"})
		require.NoError(t, err)

		assert.NotNil(t, result.ExecutionSteps)
		assert.Empty(t, result.ExecutionSteps)
	})

	t.Run("empty flowchart is a generation failure", func(t *testing.T) {
		resp := &AnalysisResponse{
			Flowchart:          "",
			ExecutionSteps:     []ExecutionStep{{NodeID: "n1"}},
			ComplexityAnalysis: &ComplexityInfo{TimeComplexity: "O(n)"},
		}

		_, err := Merge(resp)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("nil response is a generation failure", func(t *testing.T) {
		_, err := Merge(nil)
		assert.ErrorIs(t, err, ErrGenerationFailed)
	})

	t.Run("defaults are independent copies", func(t *testing.T) {
		first := DefaultComplexity()
		first.Details[0] = "mutated"

		assert.Equal(t, "Complexity analysis unavailable.", DefaultComplexity().Details[0])
	})
}

func TestResultStep(t *testing.T) {
	result := &AnalysisResult{ExecutionSteps: []ExecutionStep{{NodeID: "a"}, {NodeID: "b"}}}

	step, ok := result.Step(1)
	assert.True(t, ok)
	assert.Equal(t, "b", step.NodeID)

	_, ok = result.Step(-1)
	assert.False(t, ok)
	_, ok = result.Step(2)
	assert.False(t, ok)

	var empty *AnalysisResult
	assert.Equal(t, 0, empty.StepCount())
}

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want Language
		ok   bool
	}{
		{"python", LanguagePython, true},
		{" CPP ", LanguageCPP, true},
		{"Java", LanguageJava, true},
		{"rust", Language("rust"), false},
		{"", Language(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLanguage(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	t.Run("transport error exposes status", func(t *testing.T) {
		err := fmt.Errorf("submit: %w", &TransportError{StatusCode: http.StatusBadGateway})

		assert.Equal(t, http.StatusBadGateway, StatusCode(err))
		assert.True(t, IsRetryable(err))
		assert.Contains(t, UserMessage(err), "502")
	})

	t.Run("client errors are not retryable", func(t *testing.T) {
		err := &TransportError{StatusCode: http.StatusBadRequest, Body: "bad"}

		assert.False(t, IsRetryable(err))
		assert.Contains(t, err.Error(), "status 400")
	})

	t.Run("unreachable service unwraps the cause", func(t *testing.T) {
		cause := errors.New("dial tcp: no such host")
		err := &TransportError{Err: cause}

		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "Could not reach the analysis service.", UserMessage(err))
	})

	t.Run("undecodable success body", func(t *testing.T) {
		err := fmt.Errorf("analyze: %w", &TransportError{
			StatusCode: http.StatusOK,
			Err:        errors.New("parsing response: unexpected end of JSON input"),
		})

		assert.Equal(t, "The analysis service sent a response that could not be read.", UserMessage(err))
		assert.NotContains(t, UserMessage(err), "HTTP 200")
		assert.Contains(t, err.Error(), "unreadable analysis response (status 200)")
		assert.False(t, IsRetryable(err))
	})

	t.Run("timeouts", func(t *testing.T) {
		err := fmt.Errorf("analyze: %w", ErrTimedOut)

		assert.True(t, IsTimeout(err))
		assert.True(t, IsRetryable(err))
	})

	t.Run("validation", func(t *testing.T) {
		err := &ValidationError{Field: "code", Message: "must not be blank"}

		assert.True(t, IsValidation(err))
		assert.False(t, IsRetryable(err))
		assert.Equal(t, "Please enter some code to analyze.", UserMessage(err))
	})

	t.Run("generation failure", func(t *testing.T) {
		assert.Equal(t, "Failed to generate a flowchart for this code.", UserMessage(ErrGenerationFailed))
		assert.Empty(t, UserMessage(nil))
	})
}

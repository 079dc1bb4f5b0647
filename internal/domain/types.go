// Package domain holds the analysis request/response model shared by the
// session, the service client and the analysis server.
package domain

import "strings"

// Language is a source language the analysis service understands.
type Language string

const (
	LanguagePython Language = "python"
	LanguageCPP    Language = "cpp"
	LanguageJava   Language = "java"
)

// SupportedLanguages lists every Language in display order.
var SupportedLanguages = []Language{LanguagePython, LanguageCPP, LanguageJava}

// ParseLanguage normalizes s and reports whether it names a supported language.
func ParseLanguage(s string) (Language, bool) {
	lang := Language(strings.ToLower(strings.TrimSpace(s)))
	return lang, lang.Valid()
}

func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageCPP, LanguageJava:
		return true
	}
	return false
}

func (l Language) String() string {
	return string(l)
}

// AnalysisRequest is the body sent to the generate-flowchart endpoint.
type AnalysisRequest struct {
	Code     string   `json:"code" validate:"required"`
	Language Language `json:"language" validate:"required,oneof=python cpp java"`
	Advanced bool     `json:"advanced"`
}

// AnalysisResponse is the wire envelope returned by the service. Every field
// may be absent; Merge fills the gaps with local defaults.
type AnalysisResponse struct {
	Flowchart               string            `json:"flowchart"`
	ExecutionSteps          []ExecutionStep   `json:"execution_steps"`
	ComplexityAnalysis      *ComplexityInfo   `json:"complexity_analysis,omitempty"`
	OptimizationSuggestions *OptimizationInfo `json:"optimization_suggestions,omitempty"`
	MemoryAnalysis          *MemoryInfo       `json:"memory_analysis,omitempty"`
}

// ParseRequest is the body sent to the parse-python endpoint.
type ParseRequest struct {
	Code string `json:"code" validate:"required"`
}

// ParseResponse is the parse-python reply: a flat step list plus the cheap
// Python-only analyses.
type ParseResponse struct {
	ExecutionSteps          []ExecutionStep   `json:"execution_steps"`
	ComplexityAnalysis      *ComplexityInfo   `json:"complexity_analysis,omitempty"`
	OptimizationSuggestions *OptimizationInfo `json:"optimization_suggestions,omitempty"`
}

// AnalysisResult is the merged, render-ready outcome of one analysis run.
// After Merge every pointer is non-nil.
type AnalysisResult struct {
	Flowchart               string
	ExecutionSteps          []ExecutionStep
	ComplexityAnalysis      *ComplexityInfo
	OptimizationSuggestions *OptimizationInfo
	MemoryAnalysis          *MemoryInfo
}

// ExecutionStep is one point of the simulated trace, tied to a flowchart node.
type ExecutionStep struct {
	NodeID      string         `json:"node_id"`
	Description string         `json:"description"`
	Variables   map[string]any `json:"variables,omitempty"`
	Output      *string        `json:"output,omitempty"`
	Line        *int           `json:"line,omitempty"`
}

type ComplexityInfo struct {
	TimeComplexity  string   `json:"time_complexity"`
	SpaceComplexity string   `json:"space_complexity"`
	Details         []string `json:"details"`
}

type OptimizationInfo struct {
	Suggestions   []string `json:"suggestions"`
	OptimizedCode string   `json:"optimized_code"`
}

type MemoryInfo struct {
	EstimatedMemoryUsage string             `json:"estimated_memory_usage"`
	MemoryBreakdown      []MemoryAllocation `json:"memory_breakdown,omitempty"`
	Bottlenecks          []MemoryBottleneck `json:"bottlenecks"`
	Suggestions          []MemorySuggestion `json:"suggestions"`
}

// MemoryAllocation is one estimated allocation in the memory breakdown.
type MemoryAllocation struct {
	Variable string `json:"variable"`
	Type     string `json:"type"`
	Size     string `json:"size"`
	Line     int    `json:"line"`
}

type MemoryBottleneck struct {
	Line        int    `json:"line"`
	Description string `json:"description"`
}

type MemorySuggestion struct {
	Line       int    `json:"line"`
	Suggestion string `json:"suggestion"`
}

// PlaybackCursor is the position of the step player. CurrentStep is -1 until
// the first step is shown.
type PlaybackCursor struct {
	CurrentStep int  `json:"current_step"`
	IsPlaying   bool `json:"is_playing"`
}

// IdleCursor is the cursor of a session with nothing played yet.
func IdleCursor() PlaybackCursor {
	return PlaybackCursor{CurrentStep: -1}
}

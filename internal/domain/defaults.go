package domain

import "strings"

// Placeholders shown when the service omits an analysis slot. They are fixed
// and never derived from the submitted code.
var (
	defaultComplexity = ComplexityInfo{
		TimeComplexity:  "N/A",
		SpaceComplexity: "N/A",
		Details:         []string{"Complexity analysis unavailable."},
	}

	defaultOptimization = OptimizationInfo{
		Suggestions:   []string{"No optimization suggestions available."},
		OptimizedCode: "",
	}

	defaultMemory = MemoryInfo{
		EstimatedMemoryUsage: "N/A",
		Bottlenecks:          []MemoryBottleneck{},
		Suggestions:          []MemorySuggestion{},
	}
)

// DefaultComplexity returns a fresh copy of the complexity placeholder.
func DefaultComplexity() *ComplexityInfo {
	c := defaultComplexity
	c.Details = append([]string(nil), defaultComplexity.Details...)
	return &c
}

// DefaultOptimization returns a fresh copy of the optimization placeholder.
func DefaultOptimization() *OptimizationInfo {
	o := defaultOptimization
	o.Suggestions = append([]string(nil), defaultOptimization.Suggestions...)
	return &o
}

// DefaultMemory returns a fresh copy of the memory placeholder.
func DefaultMemory() *MemoryInfo {
	return &MemoryInfo{
		EstimatedMemoryUsage: defaultMemory.EstimatedMemoryUsage,
		Bottlenecks:          []MemoryBottleneck{},
		Suggestions:          []MemorySuggestion{},
	}
}

// Merge turns a service envelope into a render-ready result. Each analysis
// slot falls back to its placeholder independently of the others; a blank
// flowchart is a generation failure even when the transport succeeded.
func Merge(resp *AnalysisResponse) (*AnalysisResult, error) {
	if resp == nil || strings.TrimSpace(resp.Flowchart) == "" {
		return nil, ErrGenerationFailed
	}

	result := &AnalysisResult{
		Flowchart:               resp.Flowchart,
		ExecutionSteps:          resp.ExecutionSteps,
		ComplexityAnalysis:      resp.ComplexityAnalysis,
		OptimizationSuggestions: resp.OptimizationSuggestions,
		MemoryAnalysis:          resp.MemoryAnalysis,
	}

	if result.ExecutionSteps == nil {
		result.ExecutionSteps = []ExecutionStep{}
	}
	if result.ComplexityAnalysis == nil {
		result.ComplexityAnalysis = DefaultComplexity()
	}
	if result.OptimizationSuggestions == nil {
		result.OptimizationSuggestions = DefaultOptimization()
	}
	if result.MemoryAnalysis == nil {
		result.MemoryAnalysis = DefaultMemory()
	}

	return result, nil
}

// Step returns the step at index i and whether it exists.
func (r *AnalysisResult) Step(i int) (ExecutionStep, bool) {
	if r == nil || i < 0 || i >= len(r.ExecutionSteps) {
		return ExecutionStep{}, false
	}
	return r.ExecutionSteps[i], true
}

// StepCount is the number of execution steps, zero for a nil result.
func (r *AnalysisResult) StepCount() int {
	if r == nil {
		return 0
	}
	return len(r.ExecutionSteps)
}

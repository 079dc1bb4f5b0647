package analyzer

import (
	"fmt"

	"github.com/dotcommander/codevisor/internal/domain"
)

// memoryReport accumulates size estimates for one program.
type memoryReport struct {
	total       int
	breakdown   []domain.MemoryAllocation
	bottlenecks []domain.MemoryBottleneck
	suggestions []domain.MemorySuggestion
}

func newMemoryReport() *memoryReport {
	return &memoryReport{
		breakdown:   []domain.MemoryAllocation{},
		bottlenecks: []domain.MemoryBottleneck{},
		suggestions: []domain.MemorySuggestion{},
	}
}

// allocate records size bytes for variable. sizeText is what the user sees.
func (m *memoryReport) allocate(variable, kind, sizeText string, size, line int) {
	m.total += size
	m.breakdown = append(m.breakdown, domain.MemoryAllocation{
		Variable: variable,
		Type:     kind,
		Size:     sizeText,
		Line:     line,
	})
}

// flag records a bottleneck together with the suggestion that fixes it.
func (m *memoryReport) flag(line int, description, suggestion string) {
	m.bottlenecks = append(m.bottlenecks, domain.MemoryBottleneck{Line: line, Description: description})
	m.suggestions = append(m.suggestions, domain.MemorySuggestion{Line: line, Suggestion: suggestion})
}

func (m *memoryReport) has(variable string) bool {
	for _, a := range m.breakdown {
		if a.Variable == variable {
			return true
		}
	}
	return false
}

func (m *memoryReport) info() *domain.MemoryInfo {
	return &domain.MemoryInfo{
		EstimatedMemoryUsage: formatKB(m.total),
		MemoryBreakdown:      m.breakdown,
		Bottlenecks:          m.bottlenecks,
		Suggestions:          m.suggestions,
	}
}

func formatKB(bytes int) string {
	return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
}

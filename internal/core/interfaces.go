package core

import (
	"context"
	"time"

	"github.com/dotcommander/codevisor/internal/domain"
)

// AnalysisService is the remote engine that turns code into a flowchart,
// an execution trace and the analysis slots.
type AnalysisService interface {
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResponse, error)
}

// Highlighter marks the flowchart node of the current execution step.
// Highlight reports false when the flowchart has no node with that id.
type Highlighter interface {
	Highlight(flowchart, nodeID string) bool
	ClearHighlight()
}

// Narrator reads step descriptions aloud (or anywhere else). The session
// never depends on it for correctness.
type Narrator interface {
	Narrate(text string)
}

// Ticker drives autoplay. It mirrors the subset of time.Ticker the session
// uses so tests can tick by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory starts a Ticker firing every d.
type TickerFactory func(d time.Duration) Ticker

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker is the production TickerFactory.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Package core holds the analysis session: one request/response round-trip
// to the analysis service and the step player over the returned trace.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/dotcommander/codevisor/internal/events"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultTickInterval = time.Second
)

// Status is the coarse state of a session.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ClearPolicy decides what a submit does to the previous result.
type ClearPolicy int

const (
	// ClearBeforeCall empties every slot as soon as a submit starts, so a
	// failure is never shown next to stale data.
	ClearBeforeCall ClearPolicy = iota
	// PreserveOnFailure keeps the last good result until a new one arrives.
	PreserveOnFailure
)

// State is a point-in-time copy of a session. Result is shared and must be
// treated as read-only; the session replaces it wholesale and never mutates it.
type State struct {
	Generation uint64
	Status     Status
	Err        error
	Result     *domain.AnalysisResult
	Cursor     domain.PlaybackCursor
}

// Session owns one analysis run at a time.
type Session struct {
	service       AnalysisService
	timeout       time.Duration
	tickInterval  time.Duration
	policy        ClearPolicy
	tickerFactory TickerFactory
	bus           *events.Bus
	highlighter   Highlighter
	narrator      Narrator
	logger        *slog.Logger

	mu         sync.Mutex
	generation uint64
	status     Status
	lastErr    error
	result     *domain.AnalysisResult
	cursor     domain.PlaybackCursor
	cancel     context.CancelFunc

	// epoch numbers ticker instances; ticks carrying an older epoch are dropped.
	epoch        uint64
	stopPlayback chan struct{}

	// moves counts cursor changes; a report for an older move is not shown.
	moves uint64

	// reportMu serializes highlight and narration so a clear is never
	// overtaken by a report computed before it. Taken before mu, never after.
	reportMu sync.Mutex
}

type SessionOption func(*Session)

// WithTimeout bounds every analysis request.
func WithTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithTickInterval sets the autoplay period.
func WithTickInterval(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

func WithClearPolicy(p ClearPolicy) SessionOption {
	return func(s *Session) {
		s.policy = p
	}
}

func WithTickerFactory(f TickerFactory) SessionOption {
	return func(s *Session) {
		if f != nil {
			s.tickerFactory = f
		}
	}
}

func WithEventBus(bus *events.Bus) SessionOption {
	return func(s *Session) {
		s.bus = bus
	}
}

func WithHighlighter(h Highlighter) SessionOption {
	return func(s *Session) {
		s.highlighter = h
	}
}

func WithNarrator(n Narrator) SessionOption {
	return func(s *Session) {
		s.narrator = n
	}
}

func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSession creates an idle session bound to service.
func NewSession(service AnalysisService, opts ...SessionOption) *Session {
	s := &Session{
		service:       service,
		timeout:       DefaultTimeout,
		tickInterval:  DefaultTickInterval,
		policy:        ClearBeforeCall,
		tickerFactory: NewTimeTicker,
		logger:        slog.Default().With("component", "analysis_session"),
		cursor:        domain.IdleCursor(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Submit runs one analysis of code. Blank code fails with a ValidationError
// before anything else happens. Otherwise the previous request (if any) is
// cancelled, playback is reset and exactly one request is sent. A response
// that arrives after a newer Submit or a Reset is discarded and Submit
// returns domain.ErrSuperseded.
func (s *Session) Submit(ctx context.Context, code string, language domain.Language) (*domain.AnalysisResult, error) {
	if strings.TrimSpace(code) == "" {
		return nil, &domain.ValidationError{Field: "code", Message: "must not be blank"}
	}
	if !language.Valid() {
		return nil, &domain.ValidationError{Field: "language", Message: "unsupported language", Value: string(language)}
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	s.cancel = cancel
	s.stopPlaybackLocked()
	s.cursor = domain.IdleCursor()
	s.moves++
	if s.policy == ClearBeforeCall {
		s.result = nil
	}
	s.status = StatusLoading
	s.lastErr = nil
	s.mu.Unlock()

	s.clearHighlight()
	s.publish(events.Event{Type: events.AnalysisSubmitted, Generation: gen, Data: map[string]any{
		"language":    string(language),
		"code_length": len(code),
	}})

	start := time.Now()
	s.logger.Debug("submitting analysis",
		"generation", gen,
		"language", language,
		"code_length", len(code),
		"timeout", s.timeout)

	resp, err := s.service.Analyze(reqCtx, domain.AnalysisRequest{
		Code:     code,
		Language: language,
		Advanced: true,
	})

	var result *domain.AnalysisResult
	if err == nil {
		result, err = domain.Merge(resp)
	} else {
		err = classify(reqCtx, err)
	}

	return s.apply(gen, result, err, time.Since(start))
}

// classify maps a service error onto the session taxonomy. reqCtx is the
// request context carrying the deadline.
func classify(reqCtx context.Context, err error) error {
	if errors.Is(err, domain.ErrTimedOut) {
		return err
	}
	if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimedOut, err)
	}

	var v *domain.ValidationError
	var t *domain.TransportError
	if errors.As(err, &t) || errors.As(err, &v) || errors.Is(err, domain.ErrGenerationFailed) {
		return err
	}
	return &domain.TransportError{Err: err}
}

func (s *Session) apply(gen uint64, result *domain.AnalysisResult, err error, elapsed time.Duration) (*domain.AnalysisResult, error) {
	s.mu.Lock()
	if gen != s.generation {
		current := s.generation
		s.mu.Unlock()

		s.logger.Debug("discarding stale analysis response",
			"generation", gen,
			"current_generation", current,
			"error", err)
		s.publish(events.Event{Type: events.AnalysisDiscarded, Generation: gen})
		return nil, domain.ErrSuperseded
	}

	s.cancel = nil
	if err != nil {
		s.status = StatusFailed
		s.lastErr = err
		s.mu.Unlock()

		s.logger.Warn("analysis failed",
			"generation", gen,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		s.publish(events.Event{Type: events.AnalysisFailed, Generation: gen, Data: err})
		return nil, err
	}

	s.result = result
	s.cursor = domain.IdleCursor()
	s.moves++
	s.status = StatusReady
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("analysis completed",
		"generation", gen,
		"duration_ms", elapsed.Milliseconds(),
		"steps", len(result.ExecutionSteps),
		"flowchart_bytes", len(result.Flowchart))
	s.publish(events.Event{Type: events.AnalysisCompleted, Generation: gen, Data: result})
	return result, nil
}

// Reset cancels any in-flight request, stops playback and clears every slot.
func (s *Session) Reset() {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stopPlaybackLocked()
	s.cursor = domain.IdleCursor()
	s.moves++
	s.result = nil
	s.status = StatusIdle
	s.lastErr = nil
	s.mu.Unlock()

	s.clearHighlight()
	s.logger.Debug("session reset", "generation", gen)
	s.publish(events.Event{Type: events.SessionReset, Generation: gen})
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Generation: s.generation,
		Status:     s.status,
		Err:        s.lastErr,
		Result:     s.result,
		Cursor:     s.cursor,
	}
}

// Result returns the current result, nil while loading or after a failure
// under ClearBeforeCall.
func (s *Session) Result() *domain.AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Cursor returns the playback position.
func (s *Session) Cursor() domain.PlaybackCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// CurrentStep returns the step under the cursor, false when idle.
func (s *Session) CurrentStep() (domain.ExecutionStep, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result.Step(s.cursor.CurrentStep)
}

func (s *Session) publish(event events.Event) {
	if s.bus == nil {
		return
	}
	event.Source = "analysis_session"
	s.bus.Publish(context.Background(), event)
}

func (s *Session) clearHighlight() {
	s.reportMu.Lock()
	defer s.reportMu.Unlock()
	if s.highlighter != nil {
		s.highlighter.ClearHighlight()
	}
}

package core

import (
	"errors"

	"github.com/dotcommander/codevisor/internal/domain"
	"github.com/dotcommander/codevisor/internal/events"
)

// ErrNothingToPlay is returned by Play when the cursor is already on the last
// step or there are no steps.
var ErrNothingToPlay = errors.New("no execution steps left to play")

// stepChange is a cursor move to report once the session lock is released.
type stepChange struct {
	generation uint64
	index      int
	step       domain.ExecutionStep
	flowchart  string
	finished   bool
	move       uint64
}

// Play starts autoplay: the cursor advances by one step per tick until it
// reaches the last step, where playback stops by itself.
func (s *Session) Play() error {
	s.mu.Lock()
	n := s.result.StepCount()
	if n == 0 || s.cursor.CurrentStep >= n-1 {
		s.mu.Unlock()
		return ErrNothingToPlay
	}
	if s.cursor.IsPlaying {
		s.mu.Unlock()
		return nil
	}

	s.cursor.IsPlaying = true
	s.epoch++
	epoch := s.epoch
	gen := s.generation
	stop := make(chan struct{})
	s.stopPlayback = stop
	ticker := s.tickerFactory(s.tickInterval)
	s.mu.Unlock()

	go s.runTicker(epoch, ticker, stop)

	s.logger.Debug("playback started", "generation", gen, "steps", n, "interval", s.tickInterval)
	s.publish(events.Event{Type: events.PlaybackStarted, Generation: gen})
	return nil
}

// Pause stops autoplay and keeps the position.
func (s *Session) Pause() {
	s.mu.Lock()
	wasPlaying := s.cursor.IsPlaying
	s.stopPlaybackLocked()
	gen := s.generation
	s.mu.Unlock()

	if wasPlaying {
		s.publish(events.Event{Type: events.PlaybackPaused, Generation: gen})
	}
}

// StepForward moves one step ahead and pauses autoplay. On the last step it
// is a no-op.
func (s *Session) StepForward() {
	s.manualStep(1)
}

// StepBack moves one step back and pauses autoplay. Before the first step it
// is a no-op.
func (s *Session) StepBack() {
	s.manualStep(-1)
}

func (s *Session) manualStep(delta int) {
	s.mu.Lock()
	wasPlaying := s.cursor.IsPlaying
	s.stopPlaybackLocked()

	n := s.result.StepCount()
	next := s.cursor.CurrentStep + delta
	if next < -1 || next > n-1 {
		gen := s.generation
		s.mu.Unlock()
		if wasPlaying {
			s.publish(events.Event{Type: events.PlaybackPaused, Generation: gen})
		}
		return
	}

	s.cursor.CurrentStep = next
	change := s.changeLocked()
	s.mu.Unlock()

	if wasPlaying {
		s.publish(events.Event{Type: events.PlaybackPaused, Generation: change.generation})
	}
	s.report(change)
}

// runTicker advances the cursor on every tick until the ticker is stopped,
// superseded, or playback reaches the last step.
func (s *Session) runTicker(epoch uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if done := s.advance(epoch); done {
				return
			}
		}
	}
}

func (s *Session) advance(epoch uint64) bool {
	s.mu.Lock()
	if epoch != s.epoch || !s.cursor.IsPlaying {
		s.mu.Unlock()
		return true
	}

	n := s.result.StepCount()
	if s.cursor.CurrentStep < n-1 {
		s.cursor.CurrentStep++
	}
	change := s.changeLocked()
	if s.cursor.CurrentStep >= n-1 {
		s.cursor.IsPlaying = false
		s.stopPlayback = nil
		change.finished = true
	}
	s.mu.Unlock()

	s.report(change)
	return change.finished
}

// stopPlaybackLocked cancels the running ticker, if any. Callers hold s.mu.
func (s *Session) stopPlaybackLocked() {
	if s.stopPlayback != nil {
		close(s.stopPlayback)
		s.stopPlayback = nil
	}
	s.epoch++
	s.cursor.IsPlaying = false
}

func (s *Session) changeLocked() stepChange {
	s.moves++
	change := stepChange{
		generation: s.generation,
		index:      s.cursor.CurrentStep,
		move:       s.moves,
	}
	if s.result != nil {
		change.flowchart = s.result.Flowchart
		change.step, _ = s.result.Step(s.cursor.CurrentStep)
	}
	return change
}

// report runs the observable side effects of a cursor move: highlight,
// narration and events. A move overtaken by a later one, a Submit or a Reset
// is not highlighted or narrated. Missing flowchart nodes are logged, never
// fatal.
func (s *Session) report(change stepChange) {
	s.reportMu.Lock()
	s.mu.Lock()
	current := change.move == s.moves
	s.mu.Unlock()

	switch {
	case !current:
		s.logger.Debug("skipping superseded step report",
			"generation", change.generation,
			"step", change.index)
	case change.index < 0:
		if s.highlighter != nil {
			s.highlighter.ClearHighlight()
		}
	default:
		if s.highlighter != nil && !s.highlighter.Highlight(change.flowchart, change.step.NodeID) {
			s.logger.Debug("flowchart has no node for step",
				"generation", change.generation,
				"step", change.index,
				"node_id", change.step.NodeID)
		}
		if s.narrator != nil && change.step.Description != "" {
			s.narrator.Narrate(change.step.Description)
		}
	}
	s.reportMu.Unlock()

	s.publish(events.Event{Type: events.PlaybackStep, Generation: change.generation, Data: events.StepData{
		Index:       change.index,
		NodeID:      change.step.NodeID,
		Description: change.step.Description,
	}})

	if change.finished {
		s.logger.Debug("playback finished", "generation", change.generation, "step", change.index)
		s.publish(events.Event{Type: events.PlaybackFinished, Generation: change.generation})
	}
}

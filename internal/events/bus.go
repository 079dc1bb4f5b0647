// Package events provides the in-process bus the analysis session uses to
// announce lifecycle and playback changes to presentation collaborators.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the analysis session.
const (
	AnalysisSubmitted = "analysis.submitted"
	AnalysisCompleted = "analysis.completed"
	AnalysisFailed    = "analysis.failed"
	AnalysisDiscarded = "analysis.discarded"
	SessionReset      = "session.reset"
	PlaybackStep      = "playback.step"
	PlaybackStarted   = "playback.started"
	PlaybackPaused    = "playback.paused"
	PlaybackFinished  = "playback.finished"
)

// Event is a single notification.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Source     string         `json:"source"`
	Generation uint64         `json:"generation"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       any            `json:"data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// StepData is the payload of PlaybackStep events.
type StepData struct {
	Index       int    `json:"index"`
	NodeID      string `json:"node_id"`
	Description string `json:"description"`
}

// Handler processes one event. A returned error is logged and counted but
// never propagated to the publisher.
type Handler func(ctx context.Context, event Event) error

// SubscriptionOptions configure delivery for one subscriber.
type SubscriptionOptions struct {
	// Async delivers on a separate goroutine.
	Async bool
	// Priority orders synchronous delivery, higher first.
	Priority int
	// Filter narrows matching beyond the type pattern.
	Filter func(Event) bool
}

type subscription struct {
	id       string
	pattern  *regexp.Regexp
	handler  Handler
	opts     SubscriptionOptions
	sequence int
}

// Metrics counts bus activity.
type Metrics struct {
	Published int64
	Delivered int64
	Failed    int64
}

// Bus fans events out to subscribers whose pattern matches the event type.
type Bus struct {
	mu       sync.RWMutex
	subs     map[string]*subscription
	sequence int
	logger   *slog.Logger
	wg       sync.WaitGroup

	metricsMu sync.Mutex
	metrics   Metrics
}

// NewBus creates an empty bus. A nil logger uses slog.Default.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[string]*subscription),
		logger: logger.With("component", "event_bus"),
	}
}

// Subscribe registers handler for event types matching the regular
// expression pattern and returns the subscription id.
func (b *Bus) Subscribe(pattern string, handler Handler, opts ...SubscriptionOptions) (string, error) {
	if handler == nil {
		return "", fmt.Errorf("handler cannot be nil")
	}
	if pattern == "" {
		return "", fmt.Errorf("pattern cannot be empty")
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	var o SubscriptionOptions
	if len(opts) > 0 {
		o = opts[0]
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.sequence++
	id := "sub_" + uuid.NewString()[:8]
	b.subs[id] = &subscription{
		id:       id,
		pattern:  compiled,
		handler:  handler,
		opts:     o,
		sequence: b.sequence,
	}

	b.logger.Debug("event subscription created",
		"subscription_id", id,
		"pattern", pattern,
		"async", o.Async)

	return id, nil
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return fmt.Errorf("subscription %q not found", id)
	}
	delete(b.subs, id)
	return nil
}

// Publish delivers event to every matching subscriber. Synchronous handlers
// run in priority order before Publish returns.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.count(func(m *Metrics) { m.Published++ })

	for _, sub := range b.matching(event) {
		if sub.opts.Async {
			b.wg.Add(1)
			go func(s *subscription) {
				defer b.wg.Done()
				b.deliver(ctx, event, s)
			}(sub)
			continue
		}
		b.deliver(ctx, event, sub)
	}
}

// Wait blocks until every asynchronous delivery has finished.
func (b *Bus) Wait() {
	b.wg.Wait()
}

// Metrics returns a copy of the delivery counters.
func (b *Bus) Metrics() Metrics {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()
	return b.metrics
}

func (b *Bus) matching(event Event) []*subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*subscription
	for _, sub := range b.subs {
		if !sub.pattern.MatchString(event.Type) {
			continue
		}
		if sub.opts.Filter != nil && !sub.opts.Filter(event) {
			continue
		}
		out = append(out, sub)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].opts.Priority != out[j].opts.Priority {
			return out[i].opts.Priority > out[j].opts.Priority
		}
		return out[i].sequence < out[j].sequence
	})
	return out
}

func (b *Bus) deliver(ctx context.Context, event Event, sub *subscription) {
	err := b.safeCall(ctx, event, sub)
	if err != nil {
		b.logger.Warn("event handler failed",
			"event_type", event.Type,
			"subscription_id", sub.id,
			"error", err)
		b.count(func(m *Metrics) { m.Failed++ })
		return
	}
	b.count(func(m *Metrics) { m.Delivered++ })
}

func (b *Bus) safeCall(ctx context.Context, event Event, sub *subscription) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return sub.handler(ctx, event)
}

func (b *Bus) count(fn func(*Metrics)) {
	b.metricsMu.Lock()
	fn(&b.metrics)
	b.metricsMu.Unlock()
}

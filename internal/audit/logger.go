// Package audit implements the anonymization-run audit trail: one
// queryable record per logged engine.AnonymizeResource run, with aggregate
// stats. Events are written asynchronously through a channel and held in a
// mutex-guarded in-memory store.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/savegress/fhirguard/internal/config"
	"github.com/savegress/fhirguard/internal/engine"
)

// Outcome classifies how a logged run concluded.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
	OutcomeSkipped Outcome = "skipped"
)

// Event is one anonymization-run audit record.
type Event struct {
	ID                      string
	Recorded                time.Time
	ResourceType            string
	ResourceID              string
	Outcome                 Outcome
	RuleCount               int
	MutatedCount            int
	NoOpCount               int
	ErrorCount              int
	IsDifferentiallyPrivate bool
	Methods                 []string
	Errors                  []string
}

// Logger handles audit logging for anonymization runs.
type Logger struct {
	config  *config.AuditConfig
	events  map[string]*Event
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	eventCh chan *Event
}

// NewLogger creates a new audit logger. cfg may be nil, in which case
// logging defaults to enabled.
func NewLogger(cfg *config.AuditConfig) *Logger {
	return &Logger{
		config:  cfg,
		events:  make(map[string]*Event),
		stopCh:  make(chan struct{}),
		eventCh: make(chan *Event, 1000),
	}
}

func (l *Logger) enabled() bool {
	return l.config == nil || l.config.Enabled
}

// Start begins draining logged events into the in-memory store.
func (l *Logger) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	stopCh := make(chan struct{})
	l.stopCh = stopCh
	l.mu.Unlock()

	go l.processEvents(ctx, stopCh)
	return nil
}

// Stop halts the drain loop. A stopped Logger still queues LogRun calls in
// its 1000-event buffer (LogRun blocks once that buffer is full); queued
// events are persisted once Start is called again.
func (l *Logger) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		close(l.stopCh)
		l.running = false
	}
}

func (l *Logger) processEvents(ctx context.Context, stopCh <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event := <-l.eventCh:
			l.mu.Lock()
			l.events[event.ID] = event
			l.mu.Unlock()
		}
	}
}

// LogRun records one engine.AnonymizeResource call's outcome. res.Skipped
// takes precedence over a non-empty res.Errors for Outcome classification,
// matching engine semantics where Skip mode still records the triggering
// ProcessingError alongside the Skipped flag.
func (l *Logger) LogRun(resourceType, resourceID string, res *engine.Result) *Event {
	if !l.enabled() {
		return nil
	}

	event := &Event{
		ID:                      uuid.New().String(),
		Recorded:                time.Now(),
		ResourceType:            resourceType,
		ResourceID:              resourceID,
		RuleCount:               len(res.Records),
		IsDifferentiallyPrivate: res.IsDifferentiallyPrivate,
		Outcome:                 outcomeOf(res),
	}
	for _, rec := range res.Records {
		event.Methods = append(event.Methods, rec.Method)
		switch rec.Outcome {
		case "mutated":
			event.MutatedCount++
		default:
			event.NoOpCount++
		}
	}
	for _, err := range res.Errors {
		event.Errors = append(event.Errors, err.Error())
	}
	event.ErrorCount = len(event.Errors)

	l.eventCh <- event
	return event
}

func outcomeOf(res *engine.Result) Outcome {
	if res.Skipped {
		return OutcomeSkipped
	}
	if len(res.Errors) > 0 {
		return OutcomeError
	}
	return OutcomeSuccess
}

// GetEvent retrieves an audit event by ID.
func (l *Logger) GetEvent(id string) (*Event, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	event, ok := l.events[id]
	return event, ok
}

// EventFilter narrows a GetEvents query.
type EventFilter struct {
	ResourceType string
	Outcome      Outcome
	StartDate    *time.Time
	EndDate      *time.Time
}

// GetEvents retrieves audit events matching filter.
func (l *Logger) GetEvents(filter EventFilter) []*Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var results []*Event
	for _, event := range l.events {
		if matchesFilter(event, filter) {
			results = append(results, event)
		}
	}
	return results
}

func matchesFilter(event *Event, filter EventFilter) bool {
	if filter.ResourceType != "" && event.ResourceType != filter.ResourceType {
		return false
	}
	if filter.Outcome != "" && event.Outcome != filter.Outcome {
		return false
	}
	if filter.StartDate != nil && event.Recorded.Before(*filter.StartDate) {
		return false
	}
	if filter.EndDate != nil && event.Recorded.After(*filter.EndDate) {
		return false
	}
	return true
}

// Stats summarizes the audit log.
type Stats struct {
	TotalEvents    int
	FailedEvents   int
	SkippedEvents  int
	ByResourceType map[string]int
	ByMethod       map[string]int
}

// GetStats returns aggregate statistics over all logged events.
func (l *Logger) GetStats() *Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := &Stats{
		ByResourceType: make(map[string]int),
		ByMethod:       make(map[string]int),
	}

	for _, event := range l.events {
		stats.TotalEvents++
		stats.ByResourceType[event.ResourceType]++
		for _, m := range event.Methods {
			stats.ByMethod[m]++
		}
		switch event.Outcome {
		case OutcomeError:
			stats.FailedEvents++
		case OutcomeSkipped:
			stats.SkippedEvents++
		}
	}

	return stats
}

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/savegress/fhirguard/internal/config"
	"github.com/savegress/fhirguard/internal/engine"
	"github.com/savegress/fhirguard/internal/processors"
)

func waitForEvent(t *testing.T, l *Logger, id string) *Event {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if e, ok := l.GetEvent(id); ok {
			return e
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("event %s was never persisted", id)
	return nil
}

func TestLogRunRecordsSuccessfulEvent(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	res := &engine.Result{
		Records: []*processors.Record{
			{Method: "redact", Outcome: processors.OutcomeMutated},
			{Method: "keep", Outcome: processors.OutcomeNoOp},
		},
	}
	event := l.LogRun("Patient", "abc", res)
	if event == nil {
		t.Fatal("expected a non-nil event")
	}

	got := waitForEvent(t, l, event.ID)
	if got.Outcome != OutcomeSuccess {
		t.Errorf("expected success outcome, got %v", got.Outcome)
	}
	if got.MutatedCount != 1 || got.NoOpCount != 1 {
		t.Errorf("expected 1 mutated and 1 no-op, got %+v", got)
	}
}

func TestLogRunRecordsErrorOutcome(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	res := &engine.Result{Errors: []error{errors.New("boom")}}
	event := l.LogRun("Patient", "abc", res)
	got := waitForEvent(t, l, event.ID)
	if got.Outcome != OutcomeError || got.ErrorCount != 1 {
		t.Errorf("expected error outcome with 1 error, got %+v", got)
	}
}

func TestLogRunRecordsSkippedOutcomeEvenWithErrors(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	res := &engine.Result{Skipped: true, Errors: []error{errors.New("triggering error")}}
	event := l.LogRun("Patient", "abc", res)
	got := waitForEvent(t, l, event.ID)
	if got.Outcome != OutcomeSkipped {
		t.Errorf("expected skipped outcome to take precedence, got %v", got.Outcome)
	}
}

func TestLogRunReturnsNilWhenDisabled(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: false})
	if event := l.LogRun("Patient", "abc", &engine.Result{}); event != nil {
		t.Fatal("expected nil event when audit logging disabled")
	}
}

func TestGetEventsFiltersByResourceTypeAndOutcome(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	e1 := l.LogRun("Patient", "1", &engine.Result{})
	e2 := l.LogRun("Observation", "2", &engine.Result{Errors: []error{errors.New("x")}})
	waitForEvent(t, l, e1.ID)
	waitForEvent(t, l, e2.ID)

	results := l.GetEvents(EventFilter{ResourceType: "Patient"})
	if len(results) != 1 || results[0].ResourceType != "Patient" {
		t.Fatalf("expected 1 Patient event, got %+v", results)
	}

	errResults := l.GetEvents(EventFilter{Outcome: OutcomeError})
	if len(errResults) != 1 || errResults[0].ResourceType != "Observation" {
		t.Fatalf("expected 1 error event, got %+v", errResults)
	}
}

func TestGetStatsAggregatesAcrossEvents(t *testing.T) {
	l := NewLogger(&config.AuditConfig{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l.Start(ctx)

	e1 := l.LogRun("Patient", "1", &engine.Result{Records: []*processors.Record{{Method: "redact", Outcome: processors.OutcomeMutated}}})
	e2 := l.LogRun("Patient", "2", &engine.Result{Errors: []error{errors.New("x")}})
	waitForEvent(t, l, e1.ID)
	waitForEvent(t, l, e2.ID)

	stats := l.GetStats()
	if stats.TotalEvents != 2 {
		t.Errorf("expected 2 total events, got %d", stats.TotalEvents)
	}
	if stats.FailedEvents != 1 {
		t.Errorf("expected 1 failed event, got %d", stats.FailedEvents)
	}
	if stats.ByMethod["redact"] != 1 {
		t.Errorf("expected 1 redact method count, got %d", stats.ByMethod["redact"])
	}
}

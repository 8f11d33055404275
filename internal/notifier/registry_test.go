package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/newthinker/reversion/internal/journal"
)

type mockNotifier struct {
	name       string
	sendCalled int
	batchCalls int
	lastBatch  []journal.Decision
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Init(cfg Config) error { return nil }

func (m *mockNotifier) Send(ctx context.Context, d journal.Decision) error {
	m.sendCalled++
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
}

func (m *mockNotifier) SendBatch(ctx context.Context, ds []journal.Decision) error {
	m.batchCalls++
	m.lastBatch = ds
	if m.shouldFail {
		return errors.New("batch send failed")
	}
	return nil
}

func buyDecision() journal.Decision {
	return journal.Decision{
		Symbol:   "EURUSD",
		Time:     time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC),
		Decision: "buy",
		Reason:   "close re-entered lower band from below",
		Detail:   "SL: 1.08390, TP: 1.11000",
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	err := r.Register(mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate registration should fail
	err = r.Register(mock)
	if err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected 'test', got '%s'", n.Name())
	}

	// Non-existent notifier
	_, err = r.Get("nonexistent")
	if err == nil {
		t.Error("expected error for non-existent notifier")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "telegram"})

	names := r.Names()
	if len(names) != 2 || names[0] != "telegram" || names[1] != "webhook" {
		t.Errorf("unexpected names: %v", names)
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 notifiers, got %d", r.Len())
	}

	var nilRegistry *Registry
	if nilRegistry.Len() != 0 {
		t.Error("nil registry should be empty")
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()

	ok := &mockNotifier{name: "ok"}
	failing := &mockNotifier{name: "failing", shouldFail: true}
	r.Register(ok)
	r.Register(failing)

	errs := r.NotifyAll(context.Background(), buyDecision())

	if ok.sendCalled != 1 || failing.sendCalled != 1 {
		t.Error("every notifier should be called once")
	}
	if len(errs) != 1 || errs["failing"] == nil {
		t.Errorf("expected one error from 'failing', got %v", errs)
	}
}

func TestRegistry_NotifyAllBatch(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	errs := r.NotifyAllBatch(context.Background(), []journal.Decision{buyDecision(), buyDecision()})
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
	if mock.batchCalls != 1 || len(mock.lastBatch) != 2 {
		t.Errorf("expected one batch of 2, got %d calls with %d", mock.batchCalls, len(mock.lastBatch))
	}
}

func TestRegistry_NotifyAllBatch_Empty(t *testing.T) {
	r := NewRegistry()

	mock := &mockNotifier{name: "test"}
	r.Register(mock)

	r.NotifyAllBatch(context.Background(), nil)
	if mock.batchCalls != 0 {
		t.Error("empty batch should not be sent")
	}

	var nilRegistry *Registry
	if errs := nilRegistry.NotifyAllBatch(context.Background(), []journal.Decision{buyDecision()}); len(errs) != 0 {
		t.Errorf("nil registry should send nothing, got %v", errs)
	}
}

func TestActionable(t *testing.T) {
	ignored := buyDecision()
	ignored.Decision = journal.DecisionIgnored

	got := Actionable([]journal.Decision{ignored, buyDecision()})
	if len(got) != 1 || got[0].Decision != "buy" {
		t.Errorf("expected only the buy decision, got %+v", got)
	}
}

package notifier

import (
	"context"
	"errors"
	"testing"
)

type mockNotifier struct {
	name       string
	sent       []Event
	shouldFail bool
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Send(ctx context.Context, ev Event) error {
	m.sent = append(m.sent, ev)
	if m.shouldFail {
		return errors.New("send failed")
	}
	return nil
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
	if r.Len() != 1 {
		t.Errorf("expected 1 notifier, got %d", r.Len())
	}
}

func TestRegistry_Get(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "test"})

	n, err := r.Get("test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Name() != "test" {
		t.Errorf("expected 'test', got %s", n.Name())
	}

	if _, err := r.Get("missing"); err == nil {
		t.Error("expected error for missing notifier")
	}
}

func TestRegistry_GetAllSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockNotifier{name: "webhook"})
	r.Register(&mockNotifier{name: "audit"})

	all := r.GetAll()
	if len(all) != 2 || all[0].Name() != "audit" || all[1].Name() != "webhook" {
		t.Errorf("expected notifiers sorted by name, got %v", all)
	}
}

func TestRegistry_NotifyAll(t *testing.T) {
	r := NewRegistry()
	ok := &mockNotifier{name: "ok"}
	failing := &mockNotifier{name: "failing", shouldFail: true}
	r.Register(ok)
	r.Register(failing)

	ev := NewEvent(EventTrainingCompleted, "model retrained", map[string]any{"model_id": "m-1"})
	errs := r.NotifyAll(context.Background(), ev)

	if len(errs) != 1 || errs["failing"] == nil {
		t.Errorf("expected one failure from 'failing', got %v", errs)
	}
	if len(ok.sent) != 1 || ok.sent[0].Type != EventTrainingCompleted {
		t.Errorf("expected event delivered, got %v", ok.sent)
	}
	if len(failing.sent) != 1 {
		t.Error("expected failing notifier to be attempted")
	}
}

func TestNewEvent_StampsTime(t *testing.T) {
	ev := NewEvent(EventMacroUpdated, "macro updated", nil)
	if ev.OccurredAt.IsZero() {
		t.Error("expected occurred_at to be set")
	}
	if ev.OccurredAt.Location().String() != "UTC" {
		t.Errorf("expected UTC, got %s", ev.OccurredAt.Location())
	}
}

package notifier

import (
	"context"
	"time"
)

// Event types emitted by the pipeline
const (
	EventTrainingCompleted = "training_completed"
	EventTrainingFailed    = "training_failed"
	EventMacroUpdated      = "macro_updated"
)

// Event describes a finished pipeline run.
type Event struct {
	Type       string         `json:"type"`
	Message    string         `json:"message"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, message string, fields map[string]any) Event {
	return Event{
		Type:       eventType,
		Message:    message,
		Fields:     fields,
		OccurredAt: time.Now().UTC(),
	}
}

// Notifier delivers pipeline events to an external channel.
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Send delivers a single event
	Send(ctx context.Context, ev Event) error
}

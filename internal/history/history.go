package history

import (
	"context"
	"time"
)

// EventType defines the kind of orchestration event.
type EventType string

const (
	EventPhaseStart       EventType = "phase_start"
	EventPhaseAdvance     EventType = "phase_advance"
	EventPhaseFailed      EventType = "phase_failed"
	EventReboot           EventType = "reboot"
	EventSequenceComplete EventType = "sequence_complete"
)

// Event is one phase-transition record exported to external systems.
// The stream is append-only and best-effort; the orchestrator never blocks
// or fails on sink errors.
type Event struct {
	Type       EventType `json:"type"`
	Family     string    `json:"family"`
	Phase      string    `json:"phase"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
	PID        int       `json:"pid"`
}

// Sink is a destination for orchestration events (audit/analytics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

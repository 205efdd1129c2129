// Package notify carries run lifecycle events from the orchestrator to
// whatever wants to observe them. Delivery is fire-and-forget: a slow or
// absent listener must never affect run execution.
package notify

import (
	"context"

	"github.com/osbench/osbench/pkg/runstore"
)

// EventType enumerates the run lifecycle notifications.
type EventType string

const (
	EventRunStarted         EventType = "run:started"
	EventEnvironmentCreated EventType = "run:environment-created"
	EventEnvironmentStarted EventType = "run:environment-started"
	EventLogChunk           EventType = "run:log-chunk"
	EventRunCompleted       EventType = "run:completed"
	EventRunFailed          EventType = "run:failed"
)

// Event is one lifecycle notification. Within a single run, events are
// published in strict lifecycle order; across runs no ordering holds.
type Event struct {
	Type  EventType     `json:"type"`
	RunID string        `json:"run_id"`
	Run   *runstore.Run `json:"run,omitempty"`

	// Handle is set on environment-created events.
	Handle string `json:"handle,omitempty"`

	// Chunk is the output fragment on log-chunk events.
	Chunk string `json:"chunk,omitempty"`

	// Error is the failure reason on run:failed events.
	Error string `json:"error,omitempty"`
}

// Notifier receives lifecycle events. Implementations must not block the
// publisher; errors are logged by the caller, never escalated.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans one event out to several notifiers. The first error is
// returned after all notifiers have been attempted.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard drops every event. Useful when no notification collaborator is
// configured.
type Discard struct{}

func (Discard) Publish(context.Context, Event) error { return nil }

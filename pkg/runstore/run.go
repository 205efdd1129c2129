// Package runstore holds the run record model and its durable,
// file-resident store: one directory per run, rewritten atomically on
// every state change. The record is the single source of truth for a
// run's status; log files and scripts are supplementary artifacts.
package runstore

import (
	"time"

	"github.com/osbench/osbench/pkg/classify"
)

// Status is the persisted lifecycle state of a run. It is monotonic:
// pending → running → completed|failed, and never regresses.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Run is the unit of work: one execution of a user script inside an
// isolated environment.
type Run struct {
	ID       string `json:"id"`
	TargetOS string `json:"target_os"`
	Image    string `json:"image"`

	// ContainerID is the runtime's handle for the environment; empty
	// until creation succeeds.
	ContainerID string `json:"container_id,omitempty"`

	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// ExitCode is the authoritative code from the environment's wait
	// channel; set only on completed runs.
	ExitCode *int `json:"exit_code,omitempty"`

	// Result is the classifier verdict; non-nil exactly when the run
	// completed.
	Result *classify.Result `json:"result,omitempty"`

	// FailureReason is the human-readable cause; set only on failed runs.
	FailureReason string `json:"failure_reason,omitempty"`
}

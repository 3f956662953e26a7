// Package execution defines the Execution aggregate for Conduit workflow runs.
package execution

import (
	"fmt"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// Status represents the current state of a workflow execution.
type Status string

const (
	// StatusPending indicates the execution row exists but the run has not started.
	StatusPending Status = "PENDING"
	// StatusRunning indicates the run is currently in progress.
	StatusRunning Status = "RUNNING"
	// StatusSuccess indicates every node completed without error.
	StatusSuccess Status = "SUCCESS"
	// StatusFailed indicates a node threw and the run was aborted.
	StatusFailed Status = "FAILED"
)

// IsTerminal returns true if the status represents a finished run.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Execution represents a single run of a workflow, keyed by the unique id of
// the trigger event that started it. The event id is the idempotency boundary
// against at-least-once delivery: replaying the same event upserts the same
// row instead of creating a duplicate.
type Execution struct {
	// ID is the unique identifier for this execution.
	ID types.ExecutionID
	// WorkflowID references the workflow being executed.
	WorkflowID types.WorkflowID
	// EventID is the trigger event's unique id (idempotency key).
	EventID types.EventID
	// Status is the current execution state.
	Status Status
	// StartedAt is when the execution row was created.
	StartedAt time.Time
	// CompletedAt is when the run finished (zero if still running).
	CompletedAt time.Time
	// Output is the final execution context as JSON-compatible data
	// (set only on success).
	Output map[string]interface{}
	// Error is the terminal error message (set only on failure).
	Error string
	// ErrorStack is the stack trace captured at failure. Stored for
	// debugging, never shown to end users.
	ErrorStack string
}

// NewExecution creates a pending execution for a workflow run.
func NewExecution(workflowID types.WorkflowID, eventID types.EventID) (*Execution, error) {
	if workflowID == "" {
		return nil, fmt.Errorf("workflow ID cannot be empty")
	}
	if eventID.IsZero() {
		return nil, fmt.Errorf("event ID cannot be empty")
	}

	return &Execution{
		ID:         types.NewExecutionID(),
		WorkflowID: workflowID,
		EventID:    eventID,
		Status:     StatusPending,
		StartedAt:  time.Now(),
	}, nil
}

// Start transitions the execution from Pending to Running.
func (e *Execution) Start() error {
	if e.Status != StatusPending {
		return fmt.Errorf("cannot start execution: expected status PENDING, got %s", e.Status)
	}

	e.Status = StatusRunning
	return nil
}

// Duration returns the total run time. Returns 0 while still running.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt.IsZero() {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

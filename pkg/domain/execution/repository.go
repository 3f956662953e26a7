package execution

import "github.com/conduitflow/conduit/pkg/domain/types"

// Repository defines the persistence interface for executions.
// Implementations typically use SQLite for storage.
//
// The row for a run is mutated exactly twice: once at start (Upsert) and once
// at terminal success or failure. It is never deleted by the engine.
type Repository interface {
	// Upsert creates the execution row for a trigger event, or returns the
	// existing row when the same event id has been seen before. This is the
	// idempotency boundary against duplicate event deliveries.
	Upsert(exec *Execution) (*Execution, error)

	// GetByEventID retrieves the execution for a trigger event id.
	GetByEventID(eventID types.EventID) (*Execution, error)

	// MarkSuccess records the terminal success state with the final context.
	MarkSuccess(eventID types.EventID, output map[string]interface{}) error

	// MarkFailed records the terminal failure state with the error message
	// and stack trace.
	MarkFailed(eventID types.EventID, message, stack string) error

	// ListByWorkflow returns executions for a workflow, most recent first.
	ListByWorkflow(workflowID types.WorkflowID) ([]*Execution, error)
}

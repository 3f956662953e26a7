package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/execution"
	"github.com/conduitflow/conduit/pkg/domain/types"
)

// ErrExecutionNotFound is returned when no execution exists for an event id.
var ErrExecutionNotFound = fmt.Errorf("execution not found")

// ExecutionRepository implements execution.Repository on SQLite.
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates an execution repository backed by the store.
func NewExecutionRepository(store *Store) *ExecutionRepository {
	return &ExecutionRepository{db: store.DB()}
}

// Upsert creates the execution row for a trigger event, or refreshes the
// existing row when the event id has been seen before. The original row id
// and start time are kept on replay; only the status resets.
func (r *ExecutionRepository) Upsert(exec *execution.Execution) (*execution.Execution, error) {
	if exec == nil {
		return nil, fmt.Errorf("cannot upsert nil execution")
	}

	_, err := r.db.Exec(`
		INSERT INTO executions (id, workflow_id, event_id, status, started_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			status = excluded.status,
			completed_at = NULL,
			output = NULL,
			error = NULL,
			error_stack = NULL`,
		exec.ID.String(), exec.WorkflowID.String(), exec.EventID.String(),
		string(exec.Status), exec.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert execution: %w", err)
	}

	return r.GetByEventID(exec.EventID)
}

// GetByEventID retrieves the execution for a trigger event id.
func (r *ExecutionRepository) GetByEventID(eventID types.EventID) (*execution.Execution, error) {
	row := r.db.QueryRow(`
		SELECT id, workflow_id, event_id, status, started_at, completed_at, output, error, error_stack
		FROM executions WHERE event_id = ?`, eventID.String())
	return scanExecution(row)
}

// MarkSuccess records the terminal success state with the final context.
func (r *ExecutionRepository) MarkSuccess(eventID types.EventID, output map[string]interface{}) error {
	encoded, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to encode execution output: %w", err)
	}

	result, err := r.db.Exec(`
		UPDATE executions
		SET status = ?, completed_at = ?, output = ?, error = NULL, error_stack = NULL
		WHERE event_id = ?`,
		string(execution.StatusSuccess), time.Now().UTC().Format(time.RFC3339Nano),
		string(encoded), eventID.String())
	if err != nil {
		return fmt.Errorf("failed to mark execution success: %w", err)
	}
	return requireRow(result, eventID)
}

// MarkFailed records the terminal failure state with the error and stack.
func (r *ExecutionRepository) MarkFailed(eventID types.EventID, message, stack string) error {
	result, err := r.db.Exec(`
		UPDATE executions
		SET status = ?, completed_at = ?, error = ?, error_stack = ?
		WHERE event_id = ?`,
		string(execution.StatusFailed), time.Now().UTC().Format(time.RFC3339Nano),
		message, stack, eventID.String())
	if err != nil {
		return fmt.Errorf("failed to mark execution failed: %w", err)
	}
	return requireRow(result, eventID)
}

// ListByWorkflow returns executions for a workflow, most recent first.
func (r *ExecutionRepository) ListByWorkflow(workflowID types.WorkflowID) ([]*execution.Execution, error) {
	rows, err := r.db.Query(`
		SELECT id, workflow_id, event_id, status, started_at, completed_at, output, error, error_stack
		FROM executions WHERE workflow_id = ? ORDER BY started_at DESC`, workflowID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var executions []*execution.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, exec)
	}
	return executions, rows.Err()
}

func requireRow(result sql.Result, eventID types.EventID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: event %s", ErrExecutionNotFound, eventID)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExecution(row rowScanner) (*execution.Execution, error) {
	var (
		id, workflowID, eventID, status, startedAt string
		completedAt, output, errMsg, errStack      sql.NullString
	)
	if err := row.Scan(&id, &workflowID, &eventID, &status, &startedAt,
		&completedAt, &output, &errMsg, &errStack); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrExecutionNotFound
		}
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	exec := &execution.Execution{
		ID:         types.ExecutionID(id),
		WorkflowID: types.WorkflowID(workflowID),
		EventID:    types.EventID(eventID),
		Status:     execution.Status(status),
		Error:      errMsg.String,
		ErrorStack: errStack.String,
	}

	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	exec.StartedAt = started

	if completedAt.Valid {
		completed, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		exec.CompletedAt = completed
	}

	if output.Valid && output.String != "" {
		if err := json.Unmarshal([]byte(output.String), &exec.Output); err != nil {
			return nil, fmt.Errorf("failed to decode execution output: %w", err)
		}
	}

	return exec, nil
}

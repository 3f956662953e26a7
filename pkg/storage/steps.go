package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// StepLog implements the durable step store: results of completed steps,
// keyed by (event id, step key). A recorded result is never overwritten, so
// a replayed run sees exactly what the first attempt produced.
type StepLog struct {
	db *sql.DB
}

// NewStepLog creates a step log backed by the store.
func NewStepLog(store *Store) *StepLog {
	return &StepLog{db: store.DB()}
}

// GetStepResult returns the recorded result for a step, if any.
func (l *StepLog) GetStepResult(ctx context.Context, eventID types.EventID, key string) (json.RawMessage, bool, error) {
	var result sql.NullString
	err := l.db.QueryRowContext(ctx,
		"SELECT result FROM step_results WHERE event_id = ? AND step_key = ?",
		eventID.String(), key).Scan(&result)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read step result: %w", err)
	}
	return json.RawMessage(result.String), true, nil
}

// PutStepResult records a step result. A concurrent or replayed write for
// the same key keeps the first recorded result.
func (l *StepLog) PutStepResult(ctx context.Context, eventID types.EventID, key string, result json.RawMessage) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO step_results (event_id, step_key, result, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id, step_key) DO NOTHING`,
		eventID.String(), key, string(result),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}
	return nil
}

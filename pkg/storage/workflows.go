package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// WorkflowStore persists workflow graphs. Loads are always scoped to an
// owner: a workflow belonging to another user is indistinguishable from one
// that does not exist.
type WorkflowStore struct {
	db *sql.DB
}

// NewWorkflowStore creates a workflow store backed by the store.
func NewWorkflowStore(store *Store) *WorkflowStore {
	return &WorkflowStore{db: store.DB()}
}

// Save persists a workflow and its entire graph, replacing any previous
// nodes and connections in one transaction.
func (s *WorkflowStore) Save(ctx context.Context, wf *workflow.Workflow) error {
	if wf == nil {
		return fmt.Errorf("cannot save nil workflow")
	}
	if err := wf.Validate(); err != nil {
		return fmt.Errorf("invalid workflow: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	published := 0
	if wf.Published {
		published = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			published = excluded.published,
			updated_at = excluded.updated_at`,
		wf.ID.String(), wf.UserID.String(), wf.Name, published,
		wf.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE workflow_id = ?", wf.ID.String()); err != nil {
		return fmt.Errorf("failed to clear nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM connections WHERE workflow_id = ?", wf.ID.String()); err != nil {
		return fmt.Errorf("failed to clear connections: %w", err)
	}

	for i, node := range wf.Nodes {
		config, err := json.Marshal(node.Config)
		if err != nil {
			return fmt.Errorf("failed to encode config for node %s: %w", node.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO nodes (id, workflow_id, type, position_x, position_y, config, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			node.ID.String(), wf.ID.String(), string(node.Type),
			node.Position.X, node.Position.Y, string(config), i)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	for i, conn := range wf.Connections {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO connections (id, workflow_id, from_node_id, to_node_id, from_output, to_input, sort_order)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			conn.ID.String(), wf.ID.String(), conn.FromNodeID.String(),
			conn.ToNodeID.String(), conn.FromOutput, conn.ToInput, i)
		if err != nil {
			return fmt.Errorf("failed to save connection %s: %w", conn.ID, err)
		}
	}

	return tx.Commit()
}

// LoadGraph fetches a workflow with its nodes and connections in stored
// order, ownership-checked against userID.
func (s *WorkflowStore) LoadGraph(ctx context.Context, workflowID types.WorkflowID, userID types.UserID) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, published, created_at, updated_at
		FROM workflows WHERE id = ? AND user_id = ?`,
		workflowID.String(), userID.String())

	var (
		id, owner, name, createdAt, updatedAt string
		published                             int
	)
	if err := row.Scan(&id, &owner, &name, &published, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, workflow.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	wf := &workflow.Workflow{
		ID:        types.WorkflowID(id),
		UserID:    types.UserID(owner),
		Name:      name,
		Published: published != 0,
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		wf.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		wf.UpdatedAt = t
	}

	if err := s.loadNodes(ctx, wf); err != nil {
		return nil, err
	}
	if err := s.loadConnections(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Lookup fetches a workflow header (no graph) without owner scoping. Ingress
// handlers use it to discover the owner and publish state for an inbound
// delivery addressed only by workflow id.
func (s *WorkflowStore) Lookup(ctx context.Context, workflowID types.WorkflowID) (*workflow.Workflow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, published, created_at, updated_at
		FROM workflows WHERE id = ?`, workflowID.String())

	var (
		id, owner, name, createdAt, updatedAt string
		published                             int
	)
	if err := row.Scan(&id, &owner, &name, &published, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, workflow.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to look up workflow: %w", err)
	}

	wf := &workflow.Workflow{
		ID:        types.WorkflowID(id),
		UserID:    types.UserID(owner),
		Name:      name,
		Published: published != 0,
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		wf.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		wf.UpdatedAt = t
	}
	return wf, nil
}

// SetPublished flips the publish state, ownership-checked.
func (s *WorkflowStore) SetPublished(ctx context.Context, workflowID types.WorkflowID, userID types.UserID, published bool) error {
	value := 0
	if published {
		value = 1
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE workflows SET published = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		value, time.Now().UTC().Format(time.RFC3339Nano),
		workflowID.String(), userID.String())
	if err != nil {
		return fmt.Errorf("failed to update publish state: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return workflow.ErrWorkflowNotFound
	}
	return nil
}

// List returns a user's workflows, most recently updated first. Graphs are
// not loaded.
func (s *WorkflowStore) List(ctx context.Context, userID types.UserID) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, published, created_at, updated_at
		FROM workflows WHERE user_id = ? ORDER BY updated_at DESC`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var workflows []*workflow.Workflow
	for rows.Next() {
		var (
			id, owner, name, createdAt, updatedAt string
			published                             int
		)
		if err := rows.Scan(&id, &owner, &name, &published, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		wf := &workflow.Workflow{
			ID:        types.WorkflowID(id),
			UserID:    types.UserID(owner),
			Name:      name,
			Published: published != 0,
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			wf.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			wf.UpdatedAt = t
		}
		workflows = append(workflows, wf)
	}
	return workflows, rows.Err()
}

func (s *WorkflowStore) loadNodes(ctx context.Context, wf *workflow.Workflow) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, position_x, position_y, config
		FROM nodes WHERE workflow_id = ? ORDER BY sort_order`, wf.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load nodes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			id, nodeType string
			x, y         float64
			config       sql.NullString
		)
		if err := rows.Scan(&id, &nodeType, &x, &y, &config); err != nil {
			return fmt.Errorf("failed to scan node: %w", err)
		}

		node := &workflow.Node{
			ID:       types.NodeID(id),
			Type:     workflow.NodeType(nodeType),
			Position: workflow.Position{X: x, Y: y},
		}
		if config.Valid && config.String != "" {
			if err := json.Unmarshal([]byte(config.String), &node.Config); err != nil {
				return fmt.Errorf("failed to decode config for node %s: %w", id, err)
			}
		}
		wf.Nodes = append(wf.Nodes, node)
	}
	return rows.Err()
}

func (s *WorkflowStore) loadConnections(ctx context.Context, wf *workflow.Workflow) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_node_id, to_node_id, from_output, to_input
		FROM connections WHERE workflow_id = ? ORDER BY sort_order`, wf.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id, from, to, fromOutput, toInput string
		if err := rows.Scan(&id, &from, &to, &fromOutput, &toInput); err != nil {
			return fmt.Errorf("failed to scan connection: %w", err)
		}
		wf.Connections = append(wf.Connections, &workflow.Connection{
			ID:         types.ConnectionID(id),
			FromNodeID: types.NodeID(from),
			ToNodeID:   types.NodeID(to),
			FromOutput: fromOutput,
			ToInput:    toInput,
		})
	}
	return rows.Err()
}

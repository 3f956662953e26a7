package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// Workflow is a stored directed graph of trigger and action nodes. The graph
// editor owns creation and editing; the engine loads it read-only at run
// start.
type Workflow struct {
	ID        types.WorkflowID `json:"id" yaml:"id,omitempty"`
	UserID    types.UserID     `json:"user_id" yaml:"user_id,omitempty"`
	Name      string           `json:"name" yaml:"name"`
	Published bool             `json:"published" yaml:"published,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`

	Nodes       []*Node       `json:"nodes,omitempty" yaml:"nodes,omitempty"`
	Connections []*Connection `json:"connections,omitempty" yaml:"connections,omitempty"`
}

// NewWorkflow creates a workflow with the given name for a user.
func NewWorkflow(userID types.UserID, name string) (*Workflow, error) {
	if name == "" {
		return nil, errors.New("workflow name cannot be empty")
	}
	if userID == "" {
		return nil, errors.New("workflow owner cannot be empty")
	}

	now := time.Now()
	return &Workflow{
		ID:          types.NewWorkflowID(),
		UserID:      userID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Nodes:       make([]*Node, 0),
		Connections: make([]*Connection, 0),
	}, nil
}

// AddNode adds a node to the workflow, generating an ID if missing.
func (w *Workflow) AddNode(node *Node) error {
	if node == nil {
		return errors.New("cannot add nil node")
	}
	if node.ID == "" {
		node.ID = types.NewNodeID()
	}

	w.Nodes = append(w.Nodes, node)
	w.UpdatedAt = time.Now()
	return nil
}

// AddConnection adds a directed edge, generating an ID if missing.
// Duplicate from/to pairs are rejected.
func (w *Workflow) AddConnection(conn *Connection) error {
	if conn == nil {
		return errors.New("cannot add nil connection")
	}

	for _, existing := range w.Connections {
		if existing.FromNodeID == conn.FromNodeID && existing.ToNodeID == conn.ToNodeID {
			return fmt.Errorf("duplicate connection from %s to %s", conn.FromNodeID, conn.ToNodeID)
		}
	}

	if conn.ID == "" {
		conn.ID = types.NewConnectionID()
	}

	w.Connections = append(w.Connections, conn)
	w.UpdatedAt = time.Now()
	return nil
}

// Node returns the node with the given id, or nil if absent.
func (w *Workflow) Node(id types.NodeID) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}
	return nil
}

// TriggerNode returns the first node with the given trigger type, or nil.
// Used by ingress receivers to read the trigger's configuration.
func (w *Workflow) TriggerNode(t NodeType) *Node {
	for _, node := range w.Nodes {
		if node.Type == t {
			return node
		}
	}
	return nil
}

// Validate checks the workflow invariants: unique node IDs, valid node
// types, and connections referencing nodes within this workflow.
func (w *Workflow) Validate() error {
	var validationErrors []string

	nodeIDs := make(map[types.NodeID]bool)
	for _, node := range w.Nodes {
		if err := node.Validate(); err != nil {
			validationErrors = append(validationErrors, err.Error())
			continue
		}
		if nodeIDs[node.ID] {
			validationErrors = append(validationErrors, fmt.Sprintf("duplicate node ID found: %s", node.ID))
		}
		nodeIDs[node.ID] = true
	}

	for _, conn := range w.Connections {
		if err := conn.Validate(); err != nil {
			validationErrors = append(validationErrors, err.Error())
			continue
		}
		if !nodeIDs[conn.FromNodeID] {
			validationErrors = append(validationErrors, fmt.Sprintf("connection references unknown node (from): %s", conn.FromNodeID))
		}
		if !nodeIDs[conn.ToNodeID] {
			validationErrors = append(validationErrors, fmt.Sprintf("connection references unknown node (to): %s", conn.ToNodeID))
		}
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, "; "))
	}

	return nil
}

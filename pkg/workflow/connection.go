package workflow

import (
	"errors"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// Connection is a directed edge between two nodes. FromOutput and ToInput are
// handle labels; only a single input/output per node is exercised today but
// the model supports multiplexed handles.
type Connection struct {
	ID         types.ConnectionID `json:"id" yaml:"id,omitempty"`
	FromNodeID types.NodeID       `json:"from_node_id" yaml:"from"`
	ToNodeID   types.NodeID       `json:"to_node_id" yaml:"to"`
	FromOutput string             `json:"from_output,omitempty" yaml:"from_output,omitempty"`
	ToInput    string             `json:"to_input,omitempty" yaml:"to_input,omitempty"`
}

// Validate checks the connection invariants.
func (c *Connection) Validate() error {
	if c.ID == "" {
		return errors.New("connection: empty connection ID")
	}
	if c.FromNodeID == "" {
		return errors.New("connection: empty from node")
	}
	if c.ToNodeID == "" {
		return errors.New("connection: empty to node")
	}
	return nil
}

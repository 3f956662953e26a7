package workflow

import (
	"errors"
	"fmt"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// Position is the node's location on the editor canvas. The engine carries
// it through load/store but never reads it.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a stored workflow node: a type tag plus an executor-specific
// configuration blob. Config is authored in the graph editor and is read-only
// from the engine's perspective during execution; each executor deserializes
// it into a strict struct at the point of entry.
type Node struct {
	ID       types.NodeID           `json:"id" yaml:"id"`
	Type     NodeType               `json:"type" yaml:"type"`
	Position Position               `json:"position" yaml:"position,omitempty"`
	Config   map[string]interface{} `json:"config_data,omitempty" yaml:"config,omitempty"`
}

// Validate checks the node invariants.
func (n *Node) Validate() error {
	if n.ID == "" {
		return errors.New("node: empty node ID")
	}
	if n.Type == "" {
		return errors.New("node: empty node type")
	}
	if !n.Type.Valid() {
		return fmt.Errorf("node %s: unknown node type %q", n.ID, n.Type)
	}
	return nil
}

package workflow

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// yamlWorkflow is the YAML file structure before conversion to domain objects.
type yamlWorkflow struct {
	Name        string           `yaml:"name"`
	Published   bool             `yaml:"published,omitempty"`
	Nodes       []yamlNode       `yaml:"nodes"`
	Connections []yamlConnection `yaml:"connections,omitempty"`
}

type yamlNode struct {
	ID       string                 `yaml:"id"`
	Type     string                 `yaml:"type"`
	Position *Position              `yaml:"position,omitempty"`
	Config   map[string]interface{} `yaml:"config,omitempty"`
}

type yamlConnection struct {
	From       string `yaml:"from"`
	To         string `yaml:"to"`
	FromOutput string `yaml:"from_output,omitempty"`
	ToInput    string `yaml:"to_input,omitempty"`
}

// ParseYAML converts a YAML workflow definition into a Workflow.
// The result is validated before being returned.
func ParseYAML(data []byte, userID types.UserID) (*Workflow, error) {
	var raw yamlWorkflow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse workflow YAML: %w", err)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}

	wf, err := NewWorkflow(userID, raw.Name)
	if err != nil {
		return nil, err
	}
	wf.Published = raw.Published

	for _, n := range raw.Nodes {
		node := &Node{
			ID:     types.NodeID(n.ID),
			Type:   NodeType(n.Type),
			Config: n.Config,
		}
		if n.Position != nil {
			node.Position = *n.Position
		}
		if err := wf.AddNode(node); err != nil {
			return nil, err
		}
	}

	for _, c := range raw.Connections {
		conn := &Connection{
			FromNodeID: types.NodeID(c.From),
			ToNodeID:   types.NodeID(c.To),
			FromOutput: c.FromOutput,
			ToInput:    c.ToInput,
		}
		if err := wf.AddConnection(conn); err != nil {
			return nil, err
		}
	}

	if err := wf.Validate(); err != nil {
		return nil, fmt.Errorf("workflow validation failed: %w", err)
	}

	return wf, nil
}

// LoadFromFile reads and parses a workflow YAML file.
func LoadFromFile(path string, userID types.UserID) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}
	return ParseYAML(data, userID)
}

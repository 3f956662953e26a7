package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_AddConnectionRejectsDuplicatePair(t *testing.T) {
	wf, err := NewWorkflow("user-1", "test")
	require.NoError(t, err)
	require.NoError(t, wf.AddNode(makeNode("a", NodeTypeManualTrigger)))
	require.NoError(t, wf.AddNode(makeNode("b", NodeTypeSet)))

	require.NoError(t, wf.AddConnection(makeConnection("a", "b")))
	err = wf.AddConnection(makeConnection("a", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate connection")
}

func TestWorkflow_ValidateRejectsDanglingConnection(t *testing.T) {
	wf, err := NewWorkflow("user-1", "test")
	require.NoError(t, err)
	require.NoError(t, wf.AddNode(makeNode("a", NodeTypeManualTrigger)))
	require.NoError(t, wf.AddConnection(makeConnection("a", "missing")))

	err = wf.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown node")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		nodeType NodeType
		config   map[string]interface{}
		wantErr  bool
	}{
		{
			name:     "valid http config",
			nodeType: NodeTypeHTTPRequest,
			config: map[string]interface{}{
				"variableName": "resp",
				"endpoint":     "https://example.com",
				"method":       "GET",
			},
		},
		{
			name:     "invalid http method",
			nodeType: NodeTypeHTTPRequest,
			config:   map[string]interface{}{"method": "YEET"},
			wantErr:  true,
		},
		{
			name:     "invalid set value type",
			nodeType: NodeTypeSet,
			config:   map[string]interface{}{"valueType": "float"},
			wantErr:  true,
		},
		{
			name:     "nil config allowed",
			nodeType: NodeTypeManualTrigger,
			config:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.nodeType, tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseYAML(t *testing.T) {
	yaml := `name: "test-flow"
nodes:
  - id: "trigger"
    type: "MANUAL_TRIGGER"
  - id: "set"
    type: "SET"
    config:
      variableName: "x"
      value: "1"
      valueType: "number"
connections:
  - from: "trigger"
    to: "set"
`
	wf, err := ParseYAML([]byte(yaml), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "test-flow", wf.Name)
	require.Len(t, wf.Nodes, 2)
	require.Len(t, wf.Connections, 1)
	assert.Equal(t, NodeTypeSet, wf.Nodes[1].Type)
	assert.Equal(t, "x", wf.Nodes[1].Config["variableName"])
	assert.NotEmpty(t, wf.Connections[0].ID)
}

func TestParseYAML_RejectsUnknownNodeType(t *testing.T) {
	yaml := `name: "bad"
nodes:
  - id: "n"
    type: "FTP_UPLOAD"
`
	_, err := ParseYAML([]byte(yaml), "user-1")
	require.Error(t, err)
}

// Package engine runs workflow graphs: it resolves each node to an executor,
// walks the topological order, and threads an accumulating execution context
// through the chain while recording the run's lifecycle.
package engine

import (
	"context"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/realtime"
)

// Context is the shared state threaded through a run. Each executor receives
// the accumulated context and returns a fragment merged over it; later nodes
// win key collisions.
type Context map[string]interface{}

// Clone returns a shallow copy.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Merge overlays other onto a copy of c. Keys in other win.
func (c Context) Merge(other Context) Context {
	out := c.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Params carries everything a node executor needs for one invocation.
type Params struct {
	// Data is the node's raw configuration from the graph.
	Data map[string]interface{}
	// NodeID identifies the node within the workflow.
	NodeID types.NodeID
	// UserID owns the workflow; executors use it to resolve credentials.
	UserID types.UserID
	// Context is the accumulated execution context from upstream nodes.
	Context Context
	// Step wraps side-effecting work in a durable, memoized step.
	Step StepRunner
	// Publish emits realtime status/result messages. Never nil; the
	// orchestrator substitutes a no-op when realtime is suppressed.
	Publish realtime.PublishFunc
}

// Executor runs a single node. It returns the fragment of context the node
// contributes, keyed by exactly one top-level key, or an error. A
// NonRetriableError marks the failure as permanent.
type Executor func(ctx context.Context, p Params) (Context, error)

// TriggerData is the payload of a workflow execution event.
type TriggerData struct {
	WorkflowID  types.WorkflowID       `json:"workflowId"`
	UserID      types.UserID           `json:"userId"`
	InitialData map[string]interface{} `json:"initialData,omitempty"`
}

// TriggerEvent requests one workflow execution. ID is the idempotency key:
// redelivery of the same event updates the existing execution record rather
// than creating a second one.
type TriggerEvent struct {
	ID   types.EventID `json:"id"`
	Data TriggerData   `json:"data"`
}

// Meta flags recognized in a trigger's initial data.
const (
	// MetaKey is the reserved initial-data key carrying per-run flags.
	MetaKey = "meta"
	// MetaDisableRealtime suppresses status/result publication for the run.
	MetaDisableRealtime = "disableRealtime"
	// MetaTriggerSource records which ingress produced the event.
	MetaTriggerSource = "triggerSource"
)

package engine

import (
	"fmt"
	"sync"

	"github.com/conduitflow/conduit/pkg/workflow"
)

// Registry maps node types to executors. Resolution of an unregistered type
// is a hard failure: a graph containing an unknown node type must not be
// partially executed.
type Registry struct {
	mu        sync.RWMutex
	executors map[workflow.NodeType]Executor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[workflow.NodeType]Executor),
	}
}

// Register binds an executor to a node type, replacing any previous binding.
func (r *Registry) Register(nodeType workflow.NodeType, exec Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[nodeType] = exec
}

// Resolve returns the executor for a node type.
func (r *Registry) Resolve(nodeType workflow.NodeType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.executors[nodeType]
	if !ok {
		return nil, fmt.Errorf("unknown node type: %s", nodeType)
	}
	return exec, nil
}

// VerifyComplete checks that every known node type has an executor. Called
// at startup so a wiring gap surfaces before the first run, not during one.
func (r *Registry) VerifyComplete() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []workflow.NodeType
	for _, t := range workflow.AllNodeTypes() {
		if _, ok := r.executors[t]; !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("no executor registered for node types: %v", missing)
	}
	return nil
}

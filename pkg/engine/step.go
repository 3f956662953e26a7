package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// StepRunner wraps side-effecting work in a durable step. The result of the
// first successful invocation of a key is recorded; replays of the same run
// return the recorded result without re-executing the function. Callers must
// use distinct keys for distinct pieces of work within one node.
type StepRunner interface {
	Run(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error)
}

// StepStore persists step results keyed by (event ID, step key).
type StepStore interface {
	GetStepResult(ctx context.Context, eventID types.EventID, key string) (json.RawMessage, bool, error)
	PutStepResult(ctx context.Context, eventID types.EventID, key string, result json.RawMessage) error
}

// DurableStepRunner memoizes step results in a StepStore, scoped to one
// trigger event. Results round-trip through JSON, so a replayed step returns
// the decoded form of what the original invocation produced.
type DurableStepRunner struct {
	store   StepStore
	eventID types.EventID
	log     *logrus.Logger
}

// NewDurableStepRunner creates a step runner for one event's execution.
func NewDurableStepRunner(store StepStore, eventID types.EventID, log *logrus.Logger) *DurableStepRunner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &DurableStepRunner{store: store, eventID: eventID, log: log}
}

// Run executes fn at most once per key for this event. A recorded result is
// returned as-is on replay; errors are never recorded, so a failed step runs
// again on the next attempt.
func (r *DurableStepRunner) Run(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	raw, ok, err := r.store.GetStepResult(ctx, r.eventID, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read step result for %q: %w", key, err)
	}
	if ok {
		r.log.WithFields(logrus.Fields{
			"event_id": r.eventID,
			"step":     key,
		}).Debug("replaying memoized step result")

		var result interface{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &result); err != nil {
				return nil, fmt.Errorf("failed to decode step result for %q: %w", key, err)
			}
		}
		return result, nil
	}

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step result for %q: %w", key, err)
	}
	if err := r.store.PutStepResult(ctx, r.eventID, key, encoded); err != nil {
		return nil, fmt.Errorf("failed to record step result for %q: %w", key, err)
	}
	return result, nil
}

// MemoryStepRunner memoizes step results in memory. Used in tests and for
// one-shot CLI runs where durability across process restarts buys nothing.
type MemoryStepRunner struct {
	mu      sync.Mutex
	results map[string]interface{}
}

// NewMemoryStepRunner creates an empty in-memory step runner.
func NewMemoryStepRunner() *MemoryStepRunner {
	return &MemoryStepRunner{results: make(map[string]interface{})}
}

// Run executes fn at most once per key.
func (r *MemoryStepRunner) Run(ctx context.Context, key string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	r.mu.Lock()
	if result, ok := r.results[key]; ok {
		r.mu.Unlock()
		return result, nil
	}
	r.mu.Unlock()

	result, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.results[key] = result
	r.mu.Unlock()
	return result, nil
}

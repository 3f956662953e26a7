package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// memStepStore is an in-memory StepStore for tests.
type memStepStore struct {
	mu      sync.Mutex
	results map[string]json.RawMessage
}

func newMemStepStore() *memStepStore {
	return &memStepStore{results: make(map[string]json.RawMessage)}
}

func (s *memStepStore) GetStepResult(_ context.Context, eventID types.EventID, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.results[eventID.String()+"/"+key]
	return raw, ok, nil
}

func (s *memStepStore) PutStepResult(_ context.Context, eventID types.EventID, key string, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mapKey := eventID.String() + "/" + key
	if _, exists := s.results[mapKey]; !exists {
		s.results[mapKey] = result
	}
	return nil
}

func TestDurableStepRunner_MemoizesResult(t *testing.T) {
	store := newMemStepStore()
	runner := NewDurableStepRunner(store, types.NewEventID(), nil)

	calls := 0
	fn := func(context.Context) (interface{}, error) {
		calls++
		return map[string]interface{}{"value": float64(7)}, nil
	}

	first, err := runner.Run(context.Background(), "fetch", fn)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), "fetch", fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second run must replay the recorded result")
	assert.Equal(t, first, second)
}

func TestDurableStepRunner_DistinctKeysRunIndependently(t *testing.T) {
	runner := NewDurableStepRunner(newMemStepStore(), types.NewEventID(), nil)

	calls := 0
	fn := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	_, err := runner.Run(context.Background(), "step-a", fn)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), "step-b", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDurableStepRunner_ErrorsAreNotRecorded(t *testing.T) {
	runner := NewDurableStepRunner(newMemStepStore(), types.NewEventID(), nil)

	calls := 0
	boom := errors.New("transient failure")
	_, err := runner.Run(context.Background(), "flaky", func(context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return "ok", nil
	})
	require.ErrorIs(t, err, boom)

	result, err := runner.Run(context.Background(), "flaky", func(context.Context) (interface{}, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 2, calls, "failed step must run again")
}

func TestDurableStepRunner_ReplaySurvivesNewRunner(t *testing.T) {
	// Same store and event id, fresh runner: simulates re-invocation after
	// a crash mid-run.
	store := newMemStepStore()
	eventID := types.NewEventID()

	first := NewDurableStepRunner(store, eventID, nil)
	_, err := first.Run(context.Background(), "work", func(context.Context) (interface{}, error) {
		return []interface{}{"a", "b"}, nil
	})
	require.NoError(t, err)

	second := NewDurableStepRunner(store, eventID, nil)
	result, err := second.Run(context.Background(), "work", func(context.Context) (interface{}, error) {
		t.Fatal("recorded step must not re-execute")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b"}, result)
}

func TestMemoryStepRunner_Memoizes(t *testing.T) {
	runner := NewMemoryStepRunner()

	calls := 0
	for i := 0; i < 3; i++ {
		result, err := runner.Run(context.Background(), "once", func(context.Context) (interface{}, error) {
			calls++
			return "done", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "done", result)
	}
	assert.Equal(t, 1, calls)
}

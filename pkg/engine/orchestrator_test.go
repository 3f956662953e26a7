package engine_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduitflow/conduit/pkg/domain/execution"
	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/nodes"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/template"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// memRepo is an in-memory execution.Repository mirroring the SQLite upsert
// semantics.
type memRepo struct {
	mu   sync.Mutex
	rows map[types.EventID]*execution.Execution
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[types.EventID]*execution.Execution)}
}

func (r *memRepo) Upsert(exec *execution.Execution) (*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.rows[exec.EventID]; ok {
		existing.Status = exec.Status
		existing.CompletedAt = time.Time{}
		existing.Output = nil
		existing.Error = ""
		existing.ErrorStack = ""
		return existing, nil
	}
	clone := *exec
	r.rows[exec.EventID] = &clone
	return &clone, nil
}

func (r *memRepo) GetByEventID(eventID types.EventID) (*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.rows[eventID]
	if !ok {
		return nil, errors.New("execution not found")
	}
	return exec, nil
}

func (r *memRepo) MarkSuccess(eventID types.EventID, output map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec := r.rows[eventID]
	exec.Status = execution.StatusSuccess
	exec.CompletedAt = time.Now()
	exec.Output = output
	return nil
}

func (r *memRepo) MarkFailed(eventID types.EventID, message, stack string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec := r.rows[eventID]
	exec.Status = execution.StatusFailed
	exec.CompletedAt = time.Now()
	exec.Error = message
	exec.ErrorStack = stack
	return nil
}

func (r *memRepo) ListByWorkflow(workflowID types.WorkflowID) ([]*execution.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*execution.Execution
	for _, exec := range r.rows {
		if exec.WorkflowID == workflowID {
			out = append(out, exec)
		}
	}
	return out, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

// mapLoader is an in-memory WorkflowLoader with owner scoping.
type mapLoader struct {
	workflows map[types.WorkflowID]*workflow.Workflow
}

func (l *mapLoader) LoadGraph(_ context.Context, id types.WorkflowID, userID types.UserID) (*workflow.Workflow, error) {
	wf, ok := l.workflows[id]
	if !ok || wf.UserID != userID {
		return nil, workflow.ErrWorkflowNotFound
	}
	return wf, nil
}

func buildWorkflow(t *testing.T, userID types.UserID, nodeDefs []*workflow.Node, edges [][2]string) *workflow.Workflow {
	t.Helper()
	wf, err := workflow.NewWorkflow(userID, "test-flow")
	require.NoError(t, err)
	for _, n := range nodeDefs {
		require.NoError(t, wf.AddNode(n))
	}
	for _, e := range edges {
		require.NoError(t, wf.AddConnection(&workflow.Connection{
			FromNodeID: types.NodeID(e[0]),
			ToNodeID:   types.NodeID(e[1]),
		}))
	}
	return wf
}

func newTestOrchestrator(repo *memRepo, loader *mapLoader, registry *engine.Registry, b *realtime.Broadcaster) *engine.Orchestrator {
	return engine.NewOrchestrator(loader, repo, nil, registry, b, nil)
}

func registryWithDefaults(client *http.Client) *engine.Registry {
	registry := engine.NewRegistry()
	nodes.RegisterAll(registry, nodes.Deps{
		Client:   client,
		Renderer: template.NewRenderer(),
	})
	return registry
}

func TestOrchestrator_EndToEndLinearRun(t *testing.T) {
	var requestedURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedURL = r.URL.String()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"echo": true}`))
	}))
	defer server.Close()

	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
		{ID: "set", Type: workflow.NodeTypeSet, Config: map[string]interface{}{
			"variableName": "x", "value": "1", "valueType": "number",
		}},
		{ID: "http", Type: workflow.NodeTypeHTTPRequest, Config: map[string]interface{}{
			"variableName": "httpResponse",
			"endpoint":     server.URL + "/echo?x={{x}}",
			"method":       "GET",
		}},
	}, [][2]string{{"trigger", "set"}, {"set", "http"}})

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(server.Client()), nil)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}
	require.NoError(t, orch.Execute(context.Background(), event))

	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, exec.Status)

	assert.Equal(t, "/echo?x=1", requestedURL, "templated URL must embed the set variable")
	assert.Equal(t, float64(1), exec.Output["x"])

	envelope, ok := exec.Output["httpResponse"].(map[string]interface{})
	require.True(t, ok, "httpResponse envelope missing: %#v", exec.Output)
	assert.Equal(t, 200, envelope["status"])
}

func TestOrchestrator_IdempotentReplay(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
	}, nil)

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), nil)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}
	require.NoError(t, orch.Execute(context.Background(), event))
	require.NoError(t, orch.Execute(context.Background(), event))

	assert.Equal(t, 1, repo.count(), "replaying an event must not create a second row")
	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, exec.Status)
}

func TestOrchestrator_ContextMonotonicity(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
		{ID: "set", Type: workflow.NodeTypeSet, Config: map[string]interface{}{
			"variableName": "added", "value": "hello",
		}},
	}, [][2]string{{"trigger", "set"}})

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), nil)

	event := engine.TriggerEvent{
		ID: types.NewEventID(),
		Data: engine.TriggerData{
			WorkflowID:  wf.ID,
			UserID:      userID,
			InitialData: map[string]interface{}{"seeded": "value"},
		},
	}
	require.NoError(t, orch.Execute(context.Background(), event))

	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, "value", exec.Output["seeded"], "initial data must survive the run")
	assert.Equal(t, "hello", exec.Output["added"])
}

func TestOrchestrator_PublishedWorkflowSuppressesRealtime(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
		{ID: "set", Type: workflow.NodeTypeSet, Config: map[string]interface{}{
			"variableName": "x", "value": "1",
		}},
	}, [][2]string{{"trigger", "set"}})
	wf.Published = true

	broadcaster := realtime.NewBroadcaster(nil)
	defer broadcaster.Close()
	sub := broadcaster.Subscribe()

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), broadcaster)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}
	require.NoError(t, orch.Execute(context.Background(), event))

	select {
	case msg := <-sub:
		t.Fatalf("published workflow must not emit realtime messages, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}

	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusSuccess, exec.Status)
	assert.Equal(t, "1", exec.Output["x"])
}

func TestOrchestrator_MetaFlagSuppressesRealtime(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
	}, nil)

	broadcaster := realtime.NewBroadcaster(nil)
	defer broadcaster.Close()
	sub := broadcaster.Subscribe()

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), broadcaster)

	event := engine.TriggerEvent{
		ID: types.NewEventID(),
		Data: engine.TriggerData{
			WorkflowID: wf.ID,
			UserID:     userID,
			InitialData: map[string]interface{}{
				"meta": map[string]interface{}{"disableRealtime": true},
			},
		},
	}
	require.NoError(t, orch.Execute(context.Background(), event))

	select {
	case msg := <-sub:
		t.Fatalf("disableRealtime run must not emit messages, got %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOrchestrator_UnsuppressedRunEmitsStatus(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
	}, nil)

	broadcaster := realtime.NewBroadcaster(nil)
	defer broadcaster.Close()
	sub := broadcaster.Subscribe()

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), broadcaster)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}
	require.NoError(t, orch.Execute(context.Background(), event))

	select {
	case msg := <-sub:
		assert.Equal(t, "manual-trigger-execution", msg.Channel)
		assert.Equal(t, realtime.StatusLoading, msg.Status)
	case <-time.After(time.Second):
		t.Fatal("expected a status message from an unsuppressed run")
	}
}

func TestOrchestrator_FailureTerminality(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "trigger", Type: workflow.NodeTypeManualTrigger},
		{ID: "set", Type: workflow.NodeTypeSet, Config: map[string]interface{}{
			"variableName": "x", "value": "not-a-number", "valueType": "number",
		}},
		{ID: "after", Type: workflow.NodeTypeHTTPRequest},
	}, [][2]string{{"trigger", "set"}, {"set", "after"}})

	registry := registryWithDefaults(nil)
	spyCalled := false
	registry.Register(workflow.NodeTypeHTTPRequest, func(ctx context.Context, p engine.Params) (engine.Context, error) {
		spyCalled = true
		return engine.Context{}, nil
	})

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registry, nil)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}

	runErr := orch.Execute(context.Background(), event)
	require.Error(t, runErr)
	assert.True(t, conduiterrors.IsNonRetriable(runErr))
	assert.False(t, spyCalled, "nodes after the failure must not execute")

	require.NoError(t, orch.HandleFailure(context.Background(), event, runErr))

	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Equal(t, `invalid number value: "not-a-number"`, exec.Error)
	assert.NotEmpty(t, exec.ErrorStack)
}

func TestOrchestrator_ValidationFailsNonRetriably(t *testing.T) {
	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), nil)

	err := orch.Execute(context.Background(), engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{UserID: "user-1"},
	})
	require.Error(t, err)
	assert.True(t, conduiterrors.IsNonRetriable(err))
	assert.Equal(t, 0, repo.count(), "invalid events must not create execution rows")
}

func TestOrchestrator_UnknownWorkflowIsNonRetriable(t *testing.T) {
	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), nil)

	err := orch.Execute(context.Background(), engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: "nope", UserID: "user-1"},
	})
	require.Error(t, err)
	assert.True(t, conduiterrors.IsNonRetriable(err))
}

func TestDispatcher_FailureHookFinalizesRun(t *testing.T) {
	userID := types.UserID("user-1")
	wf := buildWorkflow(t, userID, []*workflow.Node{
		{ID: "set", Type: workflow.NodeTypeSet, Config: map[string]interface{}{
			"variableName": "x", "value": "{bad", "valueType": "json",
		}},
	}, nil)

	repo := newMemRepo()
	loader := &mapLoader{workflows: map[types.WorkflowID]*workflow.Workflow{wf.ID: wf}}
	orch := newTestOrchestrator(repo, loader, registryWithDefaults(nil), nil)

	dispatcher := engine.NewDispatcher(orch, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)

	event := engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: wf.ID, UserID: userID},
	}
	require.NoError(t, dispatcher.Dispatch(event))
	dispatcher.Shutdown()

	exec, err := repo.GetByEventID(event.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusFailed, exec.Status)
	assert.Contains(t, exec.Error, "invalid JSON value")
}

func TestDispatcher_RejectsAfterShutdown(t *testing.T) {
	orch := newTestOrchestrator(newMemRepo(), &mapLoader{}, registryWithDefaults(nil), nil)
	dispatcher := engine.NewDispatcher(orch, 1, nil)
	dispatcher.Start(context.Background())
	dispatcher.Shutdown()

	err := dispatcher.Dispatch(engine.TriggerEvent{
		ID:   types.NewEventID(),
		Data: engine.TriggerData{WorkflowID: "wf", UserID: "u"},
	})
	require.Error(t, err)
}

// Dispatch racing Shutdown must end in a rejection, never a send on the
// closed queue. Run with -race to catch regressions.
func TestDispatcher_ConcurrentDispatchAndShutdown(t *testing.T) {
	for i := 0; i < 50; i++ {
		orch := newTestOrchestrator(newMemRepo(), &mapLoader{}, registryWithDefaults(nil), nil)
		dispatcher := engine.NewDispatcher(orch, 1, nil)
		dispatcher.Start(context.Background())

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					_ = dispatcher.Dispatch(engine.TriggerEvent{
						ID:   types.NewEventID(),
						Data: engine.TriggerData{WorkflowID: "missing", UserID: "u"},
					})
				}
			}()
		}
		dispatcher.Shutdown()
		wg.Wait()
	}
}

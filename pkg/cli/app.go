package cli

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/nodes"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/storage"
	"github.com/conduitflow/conduit/pkg/template"
)

// app wires the storage layer, executor registry, and orchestrator for a
// command invocation.
type app struct {
	store       *storage.Store
	workflows   *storage.WorkflowStore
	executions  *storage.ExecutionRepository
	steps       *storage.StepLog
	credentials *storage.CredentialService
	broadcaster *realtime.Broadcaster
	registry    *engine.Registry
	orch        *engine.Orchestrator
	log         *logrus.Logger
}

// newApp opens the database and assembles the engine. withRealtime controls
// whether a broadcaster is started; one-shot commands run without one.
func newApp(withRealtime bool) (*app, error) {
	log := newLogger()

	store, err := storage.OpenPath(GlobalConfig.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		store:       store,
		workflows:   storage.NewWorkflowStore(store),
		executions:  storage.NewExecutionRepository(store),
		steps:       storage.NewStepLog(store),
		credentials: storage.NewCredentialService(store, storage.NewKeyringSecretStore()),
		registry:    engine.NewRegistry(),
		log:         log,
	}
	if withRealtime {
		a.broadcaster = realtime.NewBroadcaster(log)
	}

	nodes.RegisterAll(a.registry, nodes.Deps{
		Credentials: a.credentials,
		Renderer:    template.NewRenderer(),
	})
	if err := a.registry.VerifyComplete(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("executor registry incomplete: %w", err)
	}

	a.orch = engine.NewOrchestrator(a.workflows, a.executions, a.steps, a.registry, a.broadcaster, log)
	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.broadcaster != nil {
		a.broadcaster.Close()
	}
	_ = a.store.Close()
}

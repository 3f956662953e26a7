package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/domain/execution"
	"github.com/conduitflow/conduit/pkg/domain/types"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// WorkflowLoader fetches a workflow graph scoped to its owner. A workflow
// that exists but belongs to another user is indistinguishable from one that
// does not exist.
type WorkflowLoader interface {
	LoadGraph(ctx context.Context, workflowID types.WorkflowID, userID types.UserID) (*workflow.Workflow, error)
}

// Orchestrator drives one workflow execution per trigger event: it records
// the run, sorts the graph, and invokes each node's executor in order,
// threading the accumulated context through the chain.
type Orchestrator struct {
	workflows   WorkflowLoader
	executions  execution.Repository
	steps       StepStore
	registry    *Registry
	broadcaster *realtime.Broadcaster
	log         *logrus.Logger
}

// NewOrchestrator wires an orchestrator. broadcaster may be nil, in which
// case realtime publication is disabled for every run.
func NewOrchestrator(
	workflows WorkflowLoader,
	executions execution.Repository,
	steps StepStore,
	registry *Registry,
	broadcaster *realtime.Broadcaster,
	log *logrus.Logger,
) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		workflows:   workflows,
		executions:  executions,
		steps:       steps,
		registry:    registry,
		broadcaster: broadcaster,
		log:         log,
	}
}

// Execute runs the workflow named by the event. Redelivery of an event that
// already ran updates the same execution record rather than creating a new
// one. On error the execution record is NOT finalized here; callers route
// the error through HandleFailure, mirroring a zero-retry failure hook.
func (o *Orchestrator) Execute(ctx context.Context, event TriggerEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	log := o.log.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"workflow_id": event.Data.WorkflowID,
	})

	exec, err := execution.NewExecution(event.Data.WorkflowID, event.ID)
	if err != nil {
		return conduiterrors.WrapNonRetriable(err)
	}
	if err := exec.Start(); err != nil {
		return fmt.Errorf("failed to start execution: %w", err)
	}
	if _, err := o.executions.Upsert(exec); err != nil {
		return fmt.Errorf("failed to record execution: %w", err)
	}

	wf, err := o.workflows.LoadGraph(ctx, event.Data.WorkflowID, event.Data.UserID)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			return conduiterrors.WrapNonRetriable(err)
		}
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	sorted, err := workflow.Sort(wf.Nodes, wf.Connections)
	if err != nil {
		return conduiterrors.WrapNonRetriablef(err, "workflow graph is not executable")
	}

	publish := o.publishFunc(wf, event)
	steps := o.stepRunner(event.ID)

	execCtx := Context{}
	for k, v := range event.Data.InitialData {
		execCtx[k] = v
	}

	log.WithField("nodes", len(sorted)).Info("starting workflow execution")

	for _, node := range sorted {
		executor, err := o.registry.Resolve(node.Type)
		if err != nil {
			return conduiterrors.WrapNonRetriablef(err, "cannot execute node %s", node.ID)
		}

		fragment, err := executor(ctx, Params{
			Data:    node.Config,
			NodeID:  node.ID,
			UserID:  event.Data.UserID,
			Context: execCtx,
			Step:    steps,
			Publish: publish,
		})
		if err != nil {
			log.WithError(err).WithField("node_id", node.ID).Error("node execution failed")
			return conduiterrors.NewOperationalError("execute node", wf.ID.String(), node.ID.String(), err)
		}
		execCtx = execCtx.Merge(fragment)
	}

	if err := o.executions.MarkSuccess(event.ID, execCtx); err != nil {
		return fmt.Errorf("failed to finalize execution: %w", err)
	}

	log.Info("workflow execution completed")
	return nil
}

// HandleFailure finalizes the execution record after Execute returned an
// error. The dispatcher invokes it exactly once per failed run.
func (o *Orchestrator) HandleFailure(ctx context.Context, event TriggerEvent, runErr error) error {
	o.log.WithFields(logrus.Fields{
		"event_id":    event.ID,
		"workflow_id": event.Data.WorkflowID,
	}).WithError(runErr).Warn("marking execution failed")

	// The record keeps the failing node's own message; the operational
	// wrapper with workflow/node context goes into the stack field.
	message := runErr.Error()
	stack := fmt.Sprintf("%+v", runErr)
	var opErr *conduiterrors.OperationalError
	if errors.As(runErr, &opErr) && opErr.Cause != nil {
		message = opErr.Cause.Error()
		stack = opErr.Error()
	}

	if err := o.executions.MarkFailed(event.ID, message, stack); err != nil {
		return fmt.Errorf("failed to mark execution failed: %w", err)
	}
	return nil
}

// publishFunc selects the realtime sink for a run. Published workflows and
// runs flagged with meta.disableRealtime get a no-op so production traffic
// never feeds the editor.
func (o *Orchestrator) publishFunc(wf *workflow.Workflow, event TriggerEvent) realtime.PublishFunc {
	if o.broadcaster == nil || wf.Published || realtimeDisabled(event.Data.InitialData) {
		return realtime.NopPublish
	}
	return o.broadcaster.Publish
}

func (o *Orchestrator) stepRunner(eventID types.EventID) StepRunner {
	if o.steps == nil {
		return NewMemoryStepRunner()
	}
	return NewDurableStepRunner(o.steps, eventID, o.log)
}

func realtimeDisabled(initialData map[string]interface{}) bool {
	meta, ok := initialData[MetaKey].(map[string]interface{})
	if !ok {
		return false
	}
	disabled, _ := meta[MetaDisableRealtime].(bool)
	return disabled
}

func validateEvent(event TriggerEvent) error {
	if event.ID.IsZero() {
		return conduiterrors.NewNonRetriable("event ID is required")
	}
	if event.Data.WorkflowID == "" {
		return conduiterrors.NewNonRetriable("workflow ID is required")
	}
	if event.Data.UserID == "" {
		return conduiterrors.NewNonRetriable("user ID is required")
	}
	return nil
}

// Package ingress turns inbound HTTP deliveries into trigger events: a
// production webhook receiver and a Telegram bot update receiver. Each
// handler normalizes the raw payload into the initial-data shape trigger
// nodes expect, then hands the event to the dispatcher.
package ingress

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// WorkflowDirectory is the lookup surface ingress needs: an unscoped header
// fetch to discover the owner, and an owner-scoped graph load for trigger
// node config.
type WorkflowDirectory interface {
	Lookup(ctx context.Context, workflowID types.WorkflowID) (*workflow.Workflow, error)
	LoadGraph(ctx context.Context, workflowID types.WorkflowID, userID types.UserID) (*workflow.Workflow, error)
}

// Dispatcher accepts trigger events for asynchronous execution.
type Dispatcher interface {
	Dispatch(event engine.TriggerEvent) error
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, success bool, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: success, Message: message})
}

func logIngressError(log *logrus.Logger, source string, err error) {
	log.WithError(err).WithField("source", source).Error("ingress delivery failed")
}

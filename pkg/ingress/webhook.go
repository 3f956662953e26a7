package ingress

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// WebhookHandler receives production webhook deliveries addressed by
// workflowId query parameter. Only published workflows accept deliveries,
// and runs triggered here carry meta.disableRealtime so no editor events
// are emitted for headless traffic.
type WebhookHandler struct {
	workflows  WorkflowDirectory
	dispatcher Dispatcher
	log        *logrus.Logger
}

// NewWebhookHandler creates a production webhook receiver.
func NewWebhookHandler(workflows WorkflowDirectory, dispatcher Dispatcher, log *logrus.Logger) *WebhookHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WebhookHandler{workflows: workflows, dispatcher: dispatcher, log: log}
}

// ServeHTTP handles GET and POST deliveries.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, false, "method not allowed")
		return
	}

	workflowID := types.WorkflowID(r.URL.Query().Get("workflowId"))
	if workflowID == "" {
		writeJSON(w, http.StatusBadRequest, false, "Workflow ID is required")
		return
	}

	wf, err := h.workflows.Lookup(r.Context(), workflowID)
	if err != nil {
		if errors.Is(err, workflow.ErrWorkflowNotFound) {
			writeJSON(w, http.StatusNotFound, false, "Workflow not found")
			return
		}
		logIngressError(h.log, "webhook", err)
		writeJSON(w, http.StatusInternalServerError, false, "Failed to process webhook")
		return
	}
	if !wf.Published {
		writeJSON(w, http.StatusForbidden, false, "Workflow must be published before webhook execution")
		return
	}

	// The webhook trigger node may pin the accepted HTTP method.
	if method := h.configuredMethod(r, wf); method != "" && r.Method != method {
		writeJSON(w, http.StatusMethodNotAllowed, false,
			"Method "+r.Method+" is not allowed for this webhook. Expected "+method+".")
		return
	}

	query := map[string]interface{}{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}
	headers := map[string]interface{}{}
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[strings.ToLower(key)] = values[0]
		}
	}

	event := engine.TriggerEvent{
		ID: types.NewEventID(),
		Data: engine.TriggerData{
			WorkflowID: wf.ID,
			UserID:     wf.UserID,
			InitialData: map[string]interface{}{
				engine.MetaKey: map[string]interface{}{
					engine.MetaDisableRealtime: true,
					engine.MetaTriggerSource:   "prod-webhook",
				},
				"webhook": map[string]interface{}{
					"method":  r.Method,
					"headers": headers,
					"query":   query,
					"body":    captureBody(r),
				},
			},
		},
	}

	if err := h.dispatcher.Dispatch(event); err != nil {
		logIngressError(h.log, "webhook", err)
		writeJSON(w, http.StatusServiceUnavailable, false, "Failed to process webhook")
		return
	}

	writeJSON(w, http.StatusOK, true, "Production webhook processed successfully")
}

// configuredMethod reads the method pinned in the webhook trigger node's
// config, if the graph has one.
func (h *WebhookHandler) configuredMethod(r *http.Request, wf *workflow.Workflow) string {
	graph, err := h.workflows.LoadGraph(r.Context(), wf.ID, wf.UserID)
	if err != nil {
		return ""
	}
	trigger := graph.TriggerNode(workflow.NodeTypeWebhookTrigger)
	if trigger == nil {
		return ""
	}
	method, _ := trigger.Config["method"].(string)
	if method == http.MethodGet || method == http.MethodPost {
		return method
	}
	return ""
}

// captureBody normalizes the request body by content type: JSON is decoded,
// form payloads become a flat map, anything else is kept as text. GET
// deliveries have no body.
func captureBody(r *http.Request) interface{} {
	if r.Method == http.MethodGet {
		return nil
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		var decoded interface{}
		if err := json.NewDecoder(r.Body).Decode(&decoded); err != nil {
			return nil
		}
		return decoded
	case strings.Contains(contentType, "application/x-www-form-urlencoded"),
		strings.Contains(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			if err := r.ParseForm(); err != nil {
				return nil
			}
		}
		form := map[string]interface{}{}
		for key, values := range r.Form {
			if len(values) > 0 {
				form[key] = values[0]
			}
		}
		return form
	default:
		raw, err := io.ReadAll(r.Body)
		if err != nil || len(raw) == 0 {
			return nil
		}
		return string(raw)
	}
}

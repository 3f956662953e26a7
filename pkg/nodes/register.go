package nodes

import (
	"net/http"

	"github.com/conduitflow/conduit/pkg/engine"
	"github.com/conduitflow/conduit/pkg/template"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// Deps carries the collaborators shared by node executors. Zero-value fields
// get production defaults; tests override the client and base URLs.
type Deps struct {
	Client            *http.Client
	Credentials       CredentialResolver
	Renderer          *template.Renderer
	OpenRouterBaseURL string
	TelegramBaseURL   string
}

// RegisterAll binds an executor to every node type. The initial placeholder
// node shares the manual trigger executor. Call registry.VerifyComplete
// afterwards; a node type added without a matching entry here must fail at
// startup.
func RegisterAll(registry *engine.Registry, deps Deps) {
	if deps.Renderer == nil {
		deps.Renderer = template.NewRenderer()
	}

	manual := NewManualTriggerExecutor()
	registry.Register(workflow.NodeTypeInitial, manual)
	registry.Register(workflow.NodeTypeManualTrigger, manual)
	registry.Register(workflow.NodeTypeWebhookTrigger, NewWebhookTriggerExecutor())
	registry.Register(workflow.NodeTypeTelegramTrigger, NewTelegramTriggerExecutor())
	registry.Register(workflow.NodeTypeHTTPRequest, NewHTTPRequestExecutor(deps.Client, deps.Renderer))
	registry.Register(workflow.NodeTypeOpenRouter, NewOpenRouterExecutor(deps.Client, deps.Credentials, deps.OpenRouterBaseURL, deps.Renderer))
	registry.Register(workflow.NodeTypeSet, NewSetNodeExecutor(deps.Renderer))
	registry.Register(workflow.NodeTypeTelegramMessage, NewTelegramMessageExecutor(deps.Client, deps.Credentials, deps.TelegramBaseURL, deps.Renderer))
}

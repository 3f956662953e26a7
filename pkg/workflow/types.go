package workflow

import "errors"

// Common workflow errors
var (
	// ErrWorkflowNotFound is returned when a workflow cannot be found
	// or is not owned by the requesting user.
	ErrWorkflowNotFound = errors.New("workflow not found")
)

// NodeType tags a node with the executor that runs it. The set is closed:
// every value here must have a registered executor before a graph containing
// it is executed.
type NodeType string

const (
	// NodeTypeInitial is the placeholder node created with a new workflow.
	// It executes as a manual trigger.
	NodeTypeInitial NodeType = "INITIAL"
	// NodeTypeManualTrigger starts a run from an explicit user action.
	NodeTypeManualTrigger NodeType = "MANUAL_TRIGGER"
	// NodeTypeWebhookTrigger starts a run from an inbound HTTP delivery.
	NodeTypeWebhookTrigger NodeType = "WEBHOOK_TRIGGER"
	// NodeTypeTelegramTrigger starts a run from a Telegram bot update.
	NodeTypeTelegramTrigger NodeType = "TELEGRAM_TRIGGER"
	// NodeTypeHTTPRequest performs an outbound HTTP call.
	NodeTypeHTTPRequest NodeType = "HTTP_REQUEST"
	// NodeTypeOpenRouter invokes an LLM through the OpenRouter API.
	NodeTypeOpenRouter NodeType = "OPENROUTER"
	// NodeTypeSet writes a typed value into the execution context.
	NodeTypeSet NodeType = "SET"
	// NodeTypeTelegramMessage sends a message through a Telegram bot.
	NodeTypeTelegramMessage NodeType = "TELEGRAM_MESSAGE"
)

// AllNodeTypes enumerates every node type reachable in a stored graph.
// The executor registry is checked against this list at startup.
func AllNodeTypes() []NodeType {
	return []NodeType{
		NodeTypeInitial,
		NodeTypeManualTrigger,
		NodeTypeWebhookTrigger,
		NodeTypeTelegramTrigger,
		NodeTypeHTTPRequest,
		NodeTypeOpenRouter,
		NodeTypeSet,
		NodeTypeTelegramMessage,
	}
}

// IsTrigger reports whether the node type is a workflow entry point.
func (t NodeType) IsTrigger() bool {
	switch t {
	case NodeTypeInitial, NodeTypeManualTrigger, NodeTypeWebhookTrigger, NodeTypeTelegramTrigger:
		return true
	}
	return false
}

// Valid reports whether the tag is a known node type.
func (t NodeType) Valid() bool {
	for _, known := range AllNodeTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Package nodes provides the executor for every node type: workflow triggers,
// outbound HTTP requests, OpenRouter LLM calls, context variable assignment,
// and Telegram messaging.
//
// Every executor follows the same shape: publish a loading status on entry,
// validate config (configuration errors publish an error status and fail
// non-retriably), do the actual work inside a durable step, publish the
// terminal status, and return the single context key the node produces.
package nodes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conduitflow/conduit/pkg/domain/types"
	"github.com/conduitflow/conduit/pkg/engine"
	conduiterrors "github.com/conduitflow/conduit/pkg/errors"
	"github.com/conduitflow/conduit/pkg/realtime"
	"github.com/conduitflow/conduit/pkg/workflow"
)

// CredentialResolver returns the decrypted secret for a credential owned by
// a user. A credential belonging to a different user is reported as not
// found. The secret must not be cached or logged by callers.
type CredentialResolver interface {
	ResolveSecret(ctx context.Context, id types.CredentialID, userID types.UserID) (string, error)
}

// decodeConfig validates a node's raw configData against its type schema and
// decodes it into the executor's config struct. Any failure here is a
// configuration error.
func decodeConfig(t workflow.NodeType, data map[string]interface{}, out interface{}) error {
	if err := workflow.ValidateConfig(t, data); err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("invalid %s config: %w", t, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("invalid %s config: %w", t, err)
	}
	return nil
}

func publishStatus(p engine.Params, channel string, status realtime.NodeStatus) {
	p.Publish(realtime.Message{
		Channel: channel,
		Topic:   realtime.TopicStatus,
		NodeID:  p.NodeID,
		Status:  status,
	})
}

func publishResult(p engine.Params, channel string, status realtime.NodeStatus, output, errMsg string) {
	p.Publish(realtime.Message{
		Channel: channel,
		Topic:   realtime.TopicResult,
		NodeID:  p.NodeID,
		Status:  status,
		Output:  output,
		Error:   errMsg,
	})
}

// failConfig publishes an error status and returns a non-retriable error.
// Used for validation failures so the UI sees the node turn red before the
// run aborts.
func failConfig(p engine.Params, channel, message string) error {
	publishStatus(p, channel, realtime.StatusError)
	return conduiterrors.NewNonRetriable(message)
}

// failConfigResult additionally publishes an error result for node types
// with a result topic.
func failConfigResult(p engine.Params, channel, message string) error {
	publishStatus(p, channel, realtime.StatusError)
	publishResult(p, channel, realtime.StatusError, "", message)
	return conduiterrors.NewNonRetriable(message)
}

// prettyJSON serializes a value for a result payload. Falls back to %v on
// values that cannot marshal.
func prettyJSON(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// Package realtime implements the per-node-type status/result channels that
// feed the editor UI during a run. Publication is fire-and-forget: a
// non-blocking send into a bounded queue drained by a broadcaster goroutine,
// so a slow or absent subscriber can never stall node execution.
package realtime

import (
	"strings"
	"time"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// NodeStatus is the transient per-node state broadcast to subscribers.
// It is never persisted; the run is correct without any subscriber.
type NodeStatus string

const (
	// StatusInitial is the pre-run state shown by the editor.
	StatusInitial NodeStatus = "initial"
	// StatusLoading is published when an executor starts.
	StatusLoading NodeStatus = "loading"
	// StatusSuccess is published when an executor completes.
	StatusSuccess NodeStatus = "success"
	// StatusError is published when an executor fails.
	StatusError NodeStatus = "error"
)

// Topic names within a channel.
const (
	TopicStatus = "status"
	TopicResult = "result"
)

// Message is one channel publication. Status messages carry only the node's
// state transition; result messages additionally carry a payload or error for
// node types with richer UI.
type Message struct {
	Channel   string       `json:"channel"`
	Topic     string       `json:"topic"`
	NodeID    types.NodeID `json:"nodeId"`
	Status    NodeStatus   `json:"status"`
	Output    string       `json:"output,omitempty"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// ChannelFor derives the channel name for a node type tag,
// e.g. "SET" -> "set-node-execution", "HTTP_REQUEST" -> "http-request-execution".
// SET and OPENROUTER have historical channel names the editor subscribes to.
func ChannelFor(nodeType string) string {
	name := strings.ToLower(strings.ReplaceAll(nodeType, "_", "-"))
	switch name {
	case "set":
		name = "set-node"
	case "openrouter":
		name = "open-router"
	}
	return name + "-execution"
}

// PublishFunc is the capability handed to node executors. Implementations
// must be non-blocking.
type PublishFunc func(msg Message)

// NopPublish discards every message. The orchestrator substitutes it when
// realtime is suppressed; executors are never aware of the distinction.
func NopPublish(Message) {}

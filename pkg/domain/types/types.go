// Package types defines core domain type aliases and identifiers for Conduit.
package types

import "github.com/google/uuid"

// WorkflowID is a unique identifier for a workflow.
type WorkflowID string

// NodeID is a unique identifier for a node within a workflow.
type NodeID string

// ConnectionID is a unique identifier for a connection between two nodes.
type ConnectionID string

// ExecutionID is a unique identifier for a workflow execution.
type ExecutionID string

// EventID is the unique identifier of the trigger event that started a run.
// It is the idempotency key for the execution row.
type EventID string

// CredentialID is a unique identifier for a stored credential.
type CredentialID string

// UserID identifies the owner of a workflow or credential.
type UserID string

// NewWorkflowID generates a new unique WorkflowID.
func NewWorkflowID() WorkflowID {
	return WorkflowID(uuid.NewString())
}

// NewNodeID generates a new unique NodeID.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// NewConnectionID generates a new unique ConnectionID.
func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

// NewExecutionID generates a new unique ExecutionID.
func NewExecutionID() ExecutionID {
	return ExecutionID(uuid.NewString())
}

// NewEventID generates a new unique EventID for a trigger dispatch.
func NewEventID() EventID {
	return EventID(uuid.NewString())
}

// NewCredentialID generates a new unique CredentialID.
func NewCredentialID() CredentialID {
	return CredentialID(uuid.NewString())
}

// String returns the string representation of a WorkflowID.
func (id WorkflowID) String() string { return string(id) }

// String returns the string representation of a NodeID.
func (id NodeID) String() string { return string(id) }

// String returns the string representation of a ConnectionID.
func (id ConnectionID) String() string { return string(id) }

// String returns the string representation of an ExecutionID.
func (id ExecutionID) String() string { return string(id) }

// IsZero returns true if the ExecutionID is the zero value.
func (id ExecutionID) IsZero() bool { return id == "" }

// String returns the string representation of an EventID.
func (id EventID) String() string { return string(id) }

// IsZero returns true if the EventID is the zero value.
func (id EventID) IsZero() bool { return id == "" }

// String returns the string representation of a CredentialID.
func (id CredentialID) String() string { return string(id) }

// String returns the string representation of a UserID.
func (id UserID) String() string { return string(id) }

package workflow

import (
	"fmt"

	"github.com/conduitflow/conduit/pkg/domain/types"
)

// CircularDependencyError indicates the connection graph contains a cycle
// among two or more distinct nodes. The run is aborted before any node
// executes.
type CircularDependencyError struct {
	// Remaining holds the node IDs that could not be ordered.
	Remaining []types.NodeID
}

// Error implements the error interface.
func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected in workflow (%d nodes unresolved)", len(e.Remaining))
}

// Sort orders nodes for execution using Kahn's algorithm.
//
// With no connections the input order is returned unchanged, so a
// single-node workflow costs nothing. Otherwise every node id is unioned
// into the vertex set, which keeps disconnected nodes in the result without
// resorting to synthetic self-loop edges. The output is deterministic: the
// vertex list, adjacency lists, and ready queue all preserve insertion
// order, so ties always break the same way.
//
// Each node appears exactly once in the result. Connection endpoints that do
// not belong to the node set are ignored.
func Sort(nodes []*Node, connections []*Connection) ([]*Node, error) {
	if len(connections) == 0 {
		return nodes, nil
	}

	nodeByID := make(map[types.NodeID]*Node, len(nodes))
	order := make([]types.NodeID, 0, len(nodes))
	for _, node := range nodes {
		if _, seen := nodeByID[node.ID]; seen {
			continue
		}
		nodeByID[node.ID] = node
		order = append(order, node.ID)
	}

	adjacency := make(map[types.NodeID][]types.NodeID, len(nodes))
	inDegree := make(map[types.NodeID]int, len(nodes))
	for _, id := range order {
		inDegree[id] = 0
	}

	for _, conn := range connections {
		from, to := conn.FromNodeID, conn.ToNodeID
		if _, ok := nodeByID[from]; !ok {
			continue
		}
		if _, ok := nodeByID[to]; !ok {
			continue
		}
		adjacency[from] = append(adjacency[from], to)
		inDegree[to]++
	}

	// Seed the ready queue in insertion order for stable tie-breaking.
	queue := make([]types.NodeID, 0, len(order))
	for _, id := range order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]*Node, 0, len(order))
	emitted := make(map[types.NodeID]bool, len(order))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if emitted[current] {
			continue
		}
		emitted[current] = true
		sorted = append(sorted, nodeByID[current])

		for _, neighbor := range adjacency[current] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	// Any node left unprocessed is part of a cycle.
	if len(sorted) != len(order) {
		remaining := make([]types.NodeID, 0, len(order)-len(sorted))
		for _, id := range order {
			if !emitted[id] {
				remaining = append(remaining, id)
			}
		}
		return nil, &CircularDependencyError{Remaining: remaining}
	}

	return sorted, nil
}

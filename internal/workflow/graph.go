package workflow

import (
	"github.com/langdag/dagbuilder/pkg/types"
)

// Edge points from a prerequisite to the node that depends on it.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// GraphStats summarizes a draft's dependency graph.
type GraphStats struct {
	NodeCount        int      `json:"nodeCount" yaml:"nodeCount"`
	EdgeCount        int      `json:"edgeCount" yaml:"edgeCount"`
	RootNodes        []string `json:"rootNodes" yaml:"rootNodes"`
	LeafNodes        []string `json:"leafNodes" yaml:"leafNodes"`
	TopologicalOrder []string `json:"topologicalOrder" yaml:"topologicalOrder"`
	Unordered        []string `json:"unordered,omitempty" yaml:"unordered,omitempty"`
	Acyclic          bool     `json:"acyclic" yaml:"acyclic"`
}

// Graph is the structured view of a draft.
type Graph struct {
	Nodes []types.Node `json:"nodes" yaml:"nodes"`
	Edges []Edge       `json:"edges" yaml:"edges"`
	Stats GraphStats   `json:"stats" yaml:"stats"`
}

// GenerateGraph derives edges, root/leaf sets and a topological order.
func GenerateGraph(draft types.Draft) Graph {
	edges := []Edge{}
	dependedOn := make(map[string]bool)
	for _, node := range draft.Nodes {
		for _, dep := range node.DependsOn {
			edges = append(edges, Edge{From: dep, To: node.ID})
			if dep != node.ID {
				dependedOn[dep] = true
			}
		}
	}

	roots := []string{}
	leaves := []string{}
	for _, node := range draft.Nodes {
		if len(node.DependsOn) == 0 {
			roots = append(roots, node.ID)
		}
		if !dependedOn[node.ID] {
			leaves = append(leaves, node.ID)
		}
	}

	order, unordered := TopologicalOrder(draft.Nodes)

	nodes := draft.Nodes
	if nodes == nil {
		nodes = []types.Node{}
	}

	return Graph{
		Nodes: nodes,
		Edges: edges,
		Stats: GraphStats{
			NodeCount:        len(draft.Nodes),
			EdgeCount:        len(edges),
			RootNodes:        roots,
			LeafNodes:        leaves,
			TopologicalOrder: order,
			Unordered:        unordered,
			Acyclic:          len(unordered) == 0,
		},
	}
}

// TopologicalOrder returns node ids in an order consistent with every
// dependency edge, using Kahn's algorithm. Ready nodes are emitted in the
// order they were enqueued: initially declaration order, afterwards the
// declaration order of the edges that unblocked them.
//
// Nodes that can never become ready (cycles, self-references) are returned
// in declaration order as unordered. Dependencies on unknown ids are
// ignored and duplicate ids are counted once.
func TopologicalOrder(nodes []types.Node) (order []string, unordered []string) {
	inDegree := make(map[string]int, len(nodes))
	adj := make(map[string][]string, len(nodes))
	var ids []string

	for _, node := range nodes {
		if _, seen := inDegree[node.ID]; seen {
			continue
		}
		inDegree[node.ID] = 0
		ids = append(ids, node.ID)
	}

	counted := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		if counted[node.ID] {
			continue
		}
		counted[node.ID] = true
		for _, dep := range node.DependsOn {
			if _, ok := inDegree[dep]; !ok {
				continue
			}
			adj[dep] = append(adj[dep], node.ID)
			inDegree[node.ID]++
		}
	}

	var queue []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order = []string{}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, child := range adj[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) == len(ids) {
		return order, nil
	}

	placed := make(map[string]bool, len(order))
	for _, id := range order {
		placed[id] = true
	}
	for _, id := range ids {
		if !placed[id] {
			unordered = append(unordered, id)
		}
	}
	return order, unordered
}

package workflow

import (
	"fmt"
	"strings"

	"github.com/langdag/dagbuilder/pkg/types"
)

// RenderASCII renders the draft in topological order, one node per line.
// A leading ">" marks a root and "*" marks a leaf; each line ends with the
// node's direct dependencies. Nodes that cannot be ordered are listed last.
func RenderASCII(draft types.Draft, g Graph) string {
	var sb strings.Builder

	name := draft.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(&sb, "%s\n", name)
	fmt.Fprintf(&sb, "%d nodes, %d edges\n", g.Stats.NodeCount, g.Stats.EdgeCount)

	if g.Stats.NodeCount == 0 {
		sb.WriteString("\n(no nodes)\n")
		return sb.String()
	}

	byID := make(map[string]types.Node, len(draft.Nodes))
	for _, node := range draft.Nodes {
		if _, ok := byID[node.ID]; !ok {
			byID[node.ID] = node
		}
	}
	roots := toSet(g.Stats.RootNodes)
	leaves := toSet(g.Stats.LeafNodes)

	sb.WriteString("\n")
	for _, id := range g.Stats.TopologicalOrder {
		writeNodeLine(&sb, byID[id], roots[id], leaves[id])
	}

	if len(g.Stats.Unordered) > 0 {
		sb.WriteString("\nunordered (cycle):\n")
		for _, id := range g.Stats.Unordered {
			writeNodeLine(&sb, byID[id], roots[id], leaves[id])
		}
	}

	sb.WriteString("\n> root  * leaf\n")
	return sb.String()
}

func writeNodeLine(sb *strings.Builder, node types.Node, root, leaf bool) {
	marker := []byte("  ")
	if root {
		marker[0] = '>'
	}
	if leaf {
		marker[1] = '*'
	}

	line := fmt.Sprintf("%s %s [%s]", marker, node.ID, node.Type)
	if len(node.DependsOn) > 0 {
		line += " <- " + strings.Join(node.DependsOn, ", ")
	}
	sb.WriteString(line)
	sb.WriteString("\n")
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

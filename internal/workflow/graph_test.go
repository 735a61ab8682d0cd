package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/langdag/dagbuilder/pkg/types"
)

func TestTopologicalOrderLinearChain(t *testing.T) {
	nodes := []types.Node{
		node("A", "t"),
		node("B", "t", "A"),
		node("C", "t", "B"),
	}

	order, unordered := TopologicalOrder(nodes)
	assert.Equal(t, []string{"A", "B", "C"}, order)
	assert.Empty(t, unordered)
}

func TestTopologicalOrderDeclaredOutOfOrder(t *testing.T) {
	nodes := []types.Node{
		node("C", "t", "B"),
		node("B", "t", "A"),
		node("A", "t"),
	}

	order, _ := TopologicalOrder(nodes)
	assert.Equal(t, []string{"A", "B", "C"}, order)
}

func TestTopologicalOrderTieBreak(t *testing.T) {
	// r1 and r2 are seeded in declaration order. Dependents of r1 are
	// enqueued in the declaration order of their edges.
	nodes := []types.Node{
		node("r1", "t"),
		node("x", "t", "r1"),
		node("r2", "t"),
		node("y", "t", "r1"),
		node("z", "t", "r2"),
		node("w", "t", "y", "z"),
	}

	order, unordered := TopologicalOrder(nodes)
	assert.Equal(t, []string{"r1", "r2", "x", "y", "z", "w"}, order)
	assert.Empty(t, unordered)
}

func TestTopologicalOrderWithCycle(t *testing.T) {
	nodes := []types.Node{
		node("root", "t"),
		node("a", "t", "b"),
		node("b", "t", "a"),
		node("s", "t", "s"),
		node("after", "t", "root"),
	}

	order, unordered := TopologicalOrder(nodes)
	assert.Equal(t, []string{"root", "after"}, order)
	assert.Equal(t, []string{"a", "b", "s"}, unordered)
}

func TestTopologicalOrderIgnoresUnknownDeps(t *testing.T) {
	order, unordered := TopologicalOrder([]types.Node{node("a", "t", "ghost")})
	assert.Equal(t, []string{"a"}, order)
	assert.Empty(t, unordered)
}

func TestGenerateGraph(t *testing.T) {
	draft := types.Draft{Name: "demo", Nodes: []types.Node{
		node("fetch", "http"),
		node("parse", "transform", "fetch"),
		node("store", "db", "parse"),
		node("notify", "email", "parse"),
	}}

	g := GenerateGraph(draft)
	assert.Equal(t, []Edge{
		{From: "fetch", To: "parse"},
		{From: "parse", To: "store"},
		{From: "parse", To: "notify"},
	}, g.Edges)
	assert.Equal(t, 4, g.Stats.NodeCount)
	assert.Equal(t, 3, g.Stats.EdgeCount)
	assert.Equal(t, []string{"fetch"}, g.Stats.RootNodes)
	assert.Equal(t, []string{"store", "notify"}, g.Stats.LeafNodes)
	assert.Equal(t, []string{"fetch", "parse", "store", "notify"}, g.Stats.TopologicalOrder)
	assert.True(t, g.Stats.Acyclic)
}

func TestGenerateGraphEmpty(t *testing.T) {
	g := GenerateGraph(types.Draft{Name: "demo"})
	assert.NotNil(t, g.Nodes)
	assert.NotNil(t, g.Edges)
	assert.Empty(t, g.Stats.RootNodes)
	assert.True(t, g.Stats.Acyclic)
}

func TestGenerateGraphSelfReferenceIsLeaf(t *testing.T) {
	g := GenerateGraph(types.Draft{Name: "demo", Nodes: []types.Node{node("s", "t", "s")}})
	assert.Equal(t, []string{"s"}, g.Stats.LeafNodes)
	assert.Empty(t, g.Stats.RootNodes)
	assert.False(t, g.Stats.Acyclic)
	require.Len(t, g.Edges, 1)
}

func TestRenderASCII(t *testing.T) {
	draft := types.Draft{Name: "demo", Nodes: []types.Node{
		node("A", "http"),
		node("B", "transform", "A"),
		node("C", "email", "B"),
	}}

	want := "demo\n" +
		"3 nodes, 2 edges\n" +
		"\n" +
		">  A [http]\n" +
		"   B [transform] <- A\n" +
		" * C [email] <- B\n" +
		"\n" +
		"> root  * leaf\n"
	assert.Equal(t, want, RenderASCII(draft, GenerateGraph(draft)))
}

func TestRenderASCIIIsolatedAndCycle(t *testing.T) {
	draft := types.Draft{Name: "demo", Nodes: []types.Node{
		node("solo", "t"),
		node("a", "t", "b"),
		node("b", "t", "a"),
	}}

	want := "demo\n" +
		"3 nodes, 2 edges\n" +
		"\n" +
		">* solo [t]\n" +
		"\n" +
		"unordered (cycle):\n" +
		"   a [t] <- b\n" +
		"   b [t] <- a\n" +
		"\n" +
		"> root  * leaf\n"
	assert.Equal(t, want, RenderASCII(draft, GenerateGraph(draft)))
}

func TestRenderASCIIEmpty(t *testing.T) {
	draft := types.Draft{Name: "demo"}
	assert.Equal(t, "demo\n0 nodes, 0 edges\n\n(no nodes)\n", RenderASCII(draft, GenerateGraph(draft)))
}

package prov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semtext/ident"
)

func TestGraphBasic(t *testing.T) {
	graph := NewGraph()

	itemID1 := ident.New()
	opID1 := ident.New()
	require.NoError(t, graph.AddNode(itemID1, opID1, nil))

	// second node produced by the same operation
	itemID2 := ident.New()
	require.NoError(t, graph.AddNode(itemID2, opID1, nil))

	// third node derived from the first
	itemID3 := ident.New()
	opID2 := ident.New()
	require.NoError(t, graph.AddNode(itemID3, opID2, []string{itemID1}))

	nodes := graph.ListNodes()
	require.Len(t, nodes, 3)
	node1, node2, node3 := nodes[0], nodes[1], nodes[2]

	assert.Equal(t, itemID1, node1.DataItemID)
	assert.Equal(t, opID1, node1.OpID())
	assert.Empty(t, node1.SourceIDs())
	// third node was automatically appended to the derived ids of the first
	assert.Equal(t, []string{itemID3}, node1.DerivedIDs)

	assert.Equal(t, itemID2, node2.DataItemID)
	assert.Equal(t, opID1, node2.OpID())
	assert.Empty(t, node2.SourceIDs())
	assert.Empty(t, node2.DerivedIDs)

	assert.Equal(t, itemID3, node3.DataItemID)
	assert.Equal(t, opID2, node3.OpID())
	assert.Equal(t, []string{itemID1}, node3.SourceIDs())
	assert.Empty(t, node3.DerivedIDs)

	assert.True(t, graph.HasNode(itemID1))
	got, err := graph.GetNode(itemID1)
	require.NoError(t, err)
	assert.Equal(t, node1, got)

	assert.False(t, graph.HasNode(ident.New()))
	_, err = graph.GetNode(ident.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGraphMultipleDerived(t *testing.T) {
	graph := NewGraph()

	itemID1 := ident.New()
	require.NoError(t, graph.AddNode(itemID1, ident.New(), nil))
	itemID2 := ident.New()
	require.NoError(t, graph.AddNode(itemID2, ident.New(), nil))

	// third node derived from the first and second
	itemID3 := ident.New()
	require.NoError(t, graph.AddNode(itemID3, ident.New(), []string{itemID1, itemID2}))

	// fourth node derived from the first
	itemID4 := ident.New()
	require.NoError(t, graph.AddNode(itemID4, ident.New(), []string{itemID1}))

	node1, err := graph.GetNode(itemID1)
	require.NoError(t, err)
	assert.Empty(t, node1.SourceIDs())
	assert.Equal(t, []string{itemID3, itemID4}, node1.DerivedIDs)

	node2, err := graph.GetNode(itemID2)
	require.NoError(t, err)
	assert.Empty(t, node2.SourceIDs())
	assert.Equal(t, []string{itemID3}, node2.DerivedIDs)

	node3, err := graph.GetNode(itemID3)
	require.NoError(t, err)
	assert.Equal(t, []string{itemID1, itemID2}, node3.SourceIDs())
	assert.Empty(t, node3.DerivedIDs)

	node4, err := graph.GetNode(itemID4)
	require.NoError(t, err)
	assert.Equal(t, []string{itemID1}, node4.SourceIDs())
	assert.Empty(t, node4.DerivedIDs)
}

func TestGraphStubNode(t *testing.T) {
	graph := NewGraph()

	// node derived from an item the graph has never seen
	itemID1 := ident.New()
	itemID2 := ident.New()
	require.NoError(t, graph.AddNode(itemID1, ident.New(), []string{itemID2}))

	node1, err := graph.GetNode(itemID1)
	require.NoError(t, err)
	assert.Equal(t, []string{itemID2}, node1.SourceIDs())

	// a stub node was created automatically for the unknown source
	node2, err := graph.GetNode(itemID2)
	require.NoError(t, err)
	assert.True(t, node2.IsStub())
	assert.Empty(t, node2.SourceIDs())
	assert.Equal(t, []string{itemID1}, node2.DerivedIDs)

	// completing the stub keeps its derived ids
	opID := ident.New()
	require.NoError(t, graph.AddNode(itemID2, opID, nil))
	node2, err = graph.GetNode(itemID2)
	require.NoError(t, err)
	assert.False(t, node2.IsStub())
	assert.Equal(t, opID, node2.OpID())
	assert.Empty(t, node2.SourceIDs())
	assert.Equal(t, []string{itemID1}, node2.DerivedIDs)

	// completing a node twice is a duplicate recording
	err = graph.AddNode(itemID2, ident.New(), nil)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestGraphAddNodeRequiresOp(t *testing.T) {
	graph := NewGraph()
	err := graph.AddNode(ident.New(), "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "operation id is required")
}

func TestGraphFromSnapshot(t *testing.T) {
	itemID1 := ident.New()
	itemID2 := ident.New()
	opID1 := ident.New()
	opID2 := ident.New()

	graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
		{DataItemID: itemID1, OpID: opID1, DerivedIDs: []string{itemID2}},
		{DataItemID: itemID2, OpID: opID2, SourceIDs: []string{itemID1}},
	}})

	require.NoError(t, graph.CheckSanity())
	nodes := graph.ListNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, itemID1, nodes[0].DataItemID)
	assert.Equal(t, opID1, nodes[0].OpID())
	assert.Equal(t, []string{itemID2}, nodes[0].DerivedIDs)
	assert.Equal(t, itemID2, nodes[1].DataItemID)
	assert.Equal(t, []string{itemID1}, nodes[1].SourceIDs())
}

// genChainGraph builds a three-node graph where each node is derived
// from the previous one.
func genChainGraph(t *testing.T) *Graph {
	t.Helper()
	graph := NewGraph()

	itemID1 := ident.New()
	require.NoError(t, graph.AddNode(itemID1, ident.New(), nil))
	itemID2 := ident.New()
	require.NoError(t, graph.AddNode(itemID2, ident.New(), []string{itemID1}))
	itemID3 := ident.New()
	require.NoError(t, graph.AddNode(itemID3, ident.New(), []string{itemID2}))

	return graph
}

func TestGraphSubGraphBasic(t *testing.T) {
	graph := genChainGraph(t)

	// sub-graph for an operation present in the main graph
	node1 := graph.ListNodes()[0]
	subGraph1 := genChainGraph(t)
	graph.AddSubGraph(node1.OpID(), subGraph1)
	assert.Equal(t, []*Graph{subGraph1}, graph.ListSubGraphs())
	assert.True(t, graph.HasSubGraph(node1.OpID()))
	got, err := graph.GetSubGraph(node1.OpID())
	require.NoError(t, err)
	assert.Same(t, subGraph1, got)

	// sub-graph for a different operation
	node2 := graph.ListNodes()[1]
	subGraph2 := genChainGraph(t)
	graph.AddSubGraph(node2.OpID(), subGraph2)
	assert.Equal(t, []*Graph{subGraph1, subGraph2}, graph.ListSubGraphs())

	// sub-graph for an operation the main graph has no node for
	graph.AddSubGraph(ident.New(), genChainGraph(t))
	assert.Len(t, graph.ListSubGraphs(), 3)

	_, err = graph.GetSubGraph(ident.New())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGraphSubGraphMerge(t *testing.T) {
	graph := genChainGraph(t)
	opID := graph.ListNodes()[0].OpID()

	subGraph1 := genChainGraph(t)
	graph.AddSubGraph(opID, subGraph1)
	got, err := graph.GetSubGraph(opID)
	require.NoError(t, err)
	assert.Equal(t, subGraph1.ListNodes(), got.ListNodes())

	// registering a second sub-graph for the same operation merges both
	subGraph2 := genChainGraph(t)
	graph.AddSubGraph(opID, subGraph2)
	merged, err := graph.GetSubGraph(opID)
	require.NoError(t, err)
	expected := append(subGraph1.ListNodes(), subGraph2.ListNodes()...)
	assert.Equal(t, expected, merged.ListNodes())
}

func TestGraphSubGraphMergeRightBias(t *testing.T) {
	itemID := ident.New()
	opA := ident.New()
	opB := ident.New()

	left := NewGraph()
	require.NoError(t, left.AddNode(itemID, opA, nil))
	right := NewGraph()
	require.NoError(t, right.AddNode(itemID, opB, nil))

	graph := NewGraph()
	compositeID := ident.New()
	graph.AddSubGraph(compositeID, left)
	graph.AddSubGraph(compositeID, right)

	merged, err := graph.GetSubGraph(compositeID)
	require.NoError(t, err)
	node, err := merged.GetNode(itemID)
	require.NoError(t, err)
	// the later registration wins on collision
	assert.Equal(t, opB, node.OpID())
	require.Len(t, merged.ListNodes(), 1)
}

func TestGraphFlatten(t *testing.T) {
	graph := genChainGraph(t)
	// flattening a graph without sub-graphs changes nothing
	assert.Equal(t, graph.ListNodes(), graph.Flatten().ListNodes())

	node1 := graph.ListNodes()[0]
	subGraph1 := genChainGraph(t)
	graph.AddSubGraph(node1.OpID(), subGraph1)

	flat1 := graph.Flatten()
	assert.Empty(t, flat1.ListSubGraphs())
	// the node produced by the expanded operation is replaced by the
	// sub-graph contents
	expected1 := append(graph.ListNodes()[1:], subGraph1.ListNodes()...)
	assert.Equal(t, expected1, flat1.ListNodes())

	node2 := graph.ListNodes()[1]
	subGraph2 := genChainGraph(t)
	graph.AddSubGraph(node2.OpID(), subGraph2)

	flat2 := graph.Flatten()
	expected2 := append(graph.ListNodes()[2:], subGraph1.ListNodes()...)
	expected2 = append(expected2, subGraph2.ListNodes()...)
	assert.Equal(t, expected2, flat2.ListNodes())
}

func TestGraphFlattenRecursive(t *testing.T) {
	graph := genChainGraph(t)

	node := graph.ListNodes()[0]
	subGraph := genChainGraph(t)
	graph.AddSubGraph(node.OpID(), subGraph)

	subNode := subGraph.ListNodes()[0]
	subSubGraph := genChainGraph(t)
	subGraph.AddSubGraph(subNode.OpID(), subSubGraph)

	flat := graph.Flatten()
	expected := append(graph.ListNodes()[1:], subGraph.ListNodes()[1:]...)
	expected = append(expected, subSubGraph.ListNodes()...)
	assert.Equal(t, expected, flat.ListNodes())
}

func TestGraphFlattenMergesScopes(t *testing.T) {
	// The raw item is produced by a loader at the top level and then
	// referenced as a stub source inside a composite's sub-graph.
	graph := NewGraph()
	require.NoError(t, graph.AddNode("raw", "loader-op", nil))
	require.NoError(t, graph.AddNode("sentence", "pipeline-op", []string{"raw"}))

	sub := NewGraph()
	require.NoError(t, sub.AddNode("sentence", "tokenizer-op", []string{"raw"}))
	require.NoError(t, sub.AddNode("attr", "detector-op", []string{"sentence"}))
	graph.AddSubGraph("pipeline-op", sub)

	flat := graph.Flatten()
	require.Len(t, flat.ListNodes(), 3)

	raw, err := flat.GetNode("raw")
	require.NoError(t, err)
	// flattening must not turn the raw item back into a stub
	assert.Equal(t, "loader-op", raw.OpID())
	assert.Equal(t, []string{"sentence"}, raw.DerivedIDs)

	sentence, err := flat.GetNode("sentence")
	require.NoError(t, err)
	assert.Equal(t, "tokenizer-op", sentence.OpID())
	assert.Equal(t, []string{"attr"}, sentence.DerivedIDs)

	require.NoError(t, flat.CheckSanity())
}

func TestGraphCheckSanity(t *testing.T) {
	sourceID := ident.New()
	derivedID := ident.New()

	t.Run("valid graph", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: derivedID, OpID: ident.New(), SourceIDs: []string{sourceID}},
			{DataItemID: sourceID, DerivedIDs: []string{derivedID}},
		}})
		require.NoError(t, graph.CheckSanity())
	})

	t.Run("sources but no operation", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: ident.New(), SourceIDs: []string{sourceID}},
		}})
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has source ids but no operation")
	})

	t.Run("source without node", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: ident.New(), OpID: ident.New(), SourceIDs: []string{ident.New()}},
		}})
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no corresponding node")
	})

	t.Run("derived without node", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: ident.New(), DerivedIDs: []string{ident.New()}},
		}})
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "has no corresponding node")
	})

	t.Run("missing reciprocal derived link", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: sourceID},
			{DataItemID: derivedID, OpID: ident.New(), SourceIDs: []string{sourceID}},
		}})
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not list it as derived")
	})

	t.Run("missing reciprocal source link", func(t *testing.T) {
		graph := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: sourceID, DerivedIDs: []string{derivedID}},
			{DataItemID: derivedID, OpID: ident.New()},
		}})
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not list it as source")
	})

	t.Run("invalid sub-graph", func(t *testing.T) {
		graph := genChainGraph(t)
		invalid := GraphFromSnapshot(Snapshot{Nodes: []NodeSnapshot{
			{DataItemID: ident.New(), OpID: ident.New(), SourceIDs: []string{ident.New()}},
		}})
		graph.AddSubGraph(ident.New(), invalid)
		err := graph.CheckSanity()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sub-graph")
		assert.Contains(t, err.Error(), "has no corresponding node")
	})
}

func TestGraphSnapshotRoundTrip(t *testing.T) {
	graph := genChainGraph(t)
	sub := genChainGraph(t)
	graph.AddSubGraph(graph.ListNodes()[0].OpID(), sub)

	snap := graph.Snapshot()
	rebuilt := GraphFromSnapshot(snap)

	require.NoError(t, rebuilt.CheckSanity())
	assert.Equal(t, graph.ListNodes(), rebuilt.ListNodes())
	require.Len(t, rebuilt.ListSubGraphs(), 1)
	assert.Equal(t, sub.ListNodes(), rebuilt.ListSubGraphs()[0].ListNodes())
}

// Package prov tracks the provenance of data items produced by
// annotation operations: which operation produced each item and from
// which source items it was derived. A Graph holds the raw derivation
// structure, a Tracer is the recording facade operations call into, and
// composite operations (pipelines) nest their internal provenance as
// sub-graphs keyed by operation id.
package prov

import (
	"fmt"
	"slices"
)

// Origin identifies how a data item came to be: the operation that
// produced it and the items it was derived from. SourceIDs may be empty
// for operations with no traced inputs, such as a document loader.
type Origin struct {
	OpID      string
	SourceIDs []string
}

// Node is a read-only view of one provenance node. Origin is nil when
// the derivation is unknown, which happens when an item was referenced
// as a source before (or without) its own production being recorded.
type Node struct {
	DataItemID string
	Origin     *Origin
	DerivedIDs []string
}

// IsStub reports whether the node's derivation is unknown.
func (n Node) IsStub() bool {
	return n.Origin == nil
}

// OpID returns the producing operation id, or "" when unknown.
func (n Node) OpID() string {
	if n.Origin == nil {
		return ""
	}
	return n.Origin.OpID
}

// SourceIDs returns the ids of the items this item was derived from.
func (n Node) SourceIDs() []string {
	if n.Origin == nil {
		return nil
	}
	return n.Origin.SourceIDs
}

// node is the mutable graph-internal representation backing Node views.
type node struct {
	id      string
	origin  *Origin
	derived []string
}

func (n *node) stub() bool {
	return n.origin == nil
}

func (n *node) view() Node {
	v := Node{DataItemID: n.id, DerivedIDs: slices.Clone(n.derived)}
	if n.origin != nil {
		v.Origin = &Origin{OpID: n.origin.OpID, SourceIDs: slices.Clone(n.origin.SourceIDs)}
	}
	return v
}

// Graph is an in-memory provenance graph: one node per data item ever
// seen, plus nested sub-graphs holding the internal provenance of
// composite operations, keyed by operation id. Nodes and sub-graphs are
// only ever added, never removed. Iteration order is insertion order.
//
// A Graph is owned by a single goroutine for the duration of a pipeline
// run and is not safe for concurrent use.
type Graph struct {
	nodes    map[string]*node
	order    []string
	subs     map[string]*Graph
	subOrder []string
}

// NewGraph creates an empty provenance graph.
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
		subs:  make(map[string]*Graph),
	}
}

// AddNode records that dataItemID was produced by opID from sourceIDs.
//
// Sources unknown to the graph get a stub node, so that a derivation can
// be recorded before (or without) the derivation of its inputs being
// known. If a stub node already exists for dataItemID it is completed in
// place; completing it a second time returns ErrDuplicate. Each source
// node's derived list gets dataItemID appended, never rewritten.
func (g *Graph) AddNode(dataItemID, opID string, sourceIDs []string) error {
	if opID == "" {
		return fmt.Errorf("add node %s: operation id is required", dataItemID)
	}

	if n, ok := g.nodes[dataItemID]; ok {
		if !n.stub() {
			return fmt.Errorf("add node %s: %w", dataItemID, ErrDuplicate)
		}
		n.origin = &Origin{OpID: opID, SourceIDs: slices.Clone(sourceIDs)}
	} else {
		g.insert(&node{
			id:     dataItemID,
			origin: &Origin{OpID: opID, SourceIDs: slices.Clone(sourceIDs)},
		})
	}

	for _, sourceID := range sourceIDs {
		src, ok := g.nodes[sourceID]
		if !ok {
			src = &node{id: sourceID}
			g.insert(src)
		}
		src.derived = append(src.derived, dataItemID)
	}

	return nil
}

func (g *Graph) insert(n *node) {
	g.nodes[n.id] = n
	g.order = append(g.order, n.id)
}

// GetNode returns the node for a data item id.
func (g *Graph) GetNode(dataItemID string) (Node, error) {
	n, ok := g.nodes[dataItemID]
	if !ok {
		return Node{}, fmt.Errorf("get node %s: %w", dataItemID, ErrNotFound)
	}
	return n.view(), nil
}

// HasNode reports whether a node exists for the given data item id.
func (g *Graph) HasNode(dataItemID string) bool {
	_, ok := g.nodes[dataItemID]
	return ok
}

// ListNodes returns all nodes of this graph in insertion order, without
// recursing into sub-graphs.
func (g *Graph) ListNodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		nodes = append(nodes, g.nodes[id].view())
	}
	return nodes
}

// AddSubGraph attaches sub as the internal provenance of the composite
// operation opID. If a sub-graph is already registered for opID the two
// are merged, right-biased: on a node id collision the entry from sub
// wins, and nested sub-graph maps are merged recursively under the same
// rule. This supports a composite operation invoked once per batch.
func (g *Graph) AddSubGraph(opID string, sub *Graph) {
	if current, ok := g.subs[opID]; ok {
		g.subs[opID] = mergeGraphs(current, sub)
		return
	}
	g.subs[opID] = sub
	g.subOrder = append(g.subOrder, opID)
}

// mergeGraphs unions two graphs, entries from right winning on
// collision. Node and sub-graph structures are shared, not copied.
func mergeGraphs(left, right *Graph) *Graph {
	merged := NewGraph()
	for _, id := range left.order {
		merged.insert(left.nodes[id])
	}
	for _, id := range right.order {
		if _, ok := merged.nodes[id]; ok {
			merged.nodes[id] = right.nodes[id]
			continue
		}
		merged.insert(right.nodes[id])
	}
	for _, opID := range left.subOrder {
		merged.subs[opID] = left.subs[opID]
		merged.subOrder = append(merged.subOrder, opID)
	}
	for _, opID := range right.subOrder {
		if current, ok := merged.subs[opID]; ok {
			merged.subs[opID] = mergeGraphs(current, right.subs[opID])
			continue
		}
		merged.subs[opID] = right.subs[opID]
		merged.subOrder = append(merged.subOrder, opID)
	}
	return merged
}

// GetSubGraph returns the sub-graph registered for a composite
// operation id.
func (g *Graph) GetSubGraph(opID string) (*Graph, error) {
	sub, ok := g.subs[opID]
	if !ok {
		return nil, fmt.Errorf("get sub-graph %s: %w", opID, ErrNotFound)
	}
	return sub, nil
}

// HasSubGraph reports whether a sub-graph is registered for the given
// operation id.
func (g *Graph) HasSubGraph(opID string) bool {
	_, ok := g.subs[opID]
	return ok
}

// ListSubGraphs returns all directly nested sub-graphs in registration
// order.
func (g *Graph) ListSubGraphs() []*Graph {
	subs := make([]*Graph, 0, len(g.subOrder))
	for _, opID := range g.subOrder {
		subs = append(subs, g.subs[opID])
	}
	return subs
}

// Flatten returns a graph holding the fully expanded derivation
// structure: nodes attributed to a composite operation are replaced by
// the contents of that operation's sub-graph, recursively. The original
// graph is left untouched. Nodes are shared where only one scope knows
// an item; items both scopes know are merged into fresh nodes.
func (g *Graph) Flatten() *Graph {
	flat := NewGraph()
	for _, id := range g.order {
		n := g.nodes[id]
		if n.origin != nil && g.HasSubGraph(n.origin.OpID) {
			continue
		}
		flat.insert(n)
	}
	for _, opID := range g.subOrder {
		flatSub := g.subs[opID].Flatten()
		for _, id := range flatSub.order {
			sub := flatSub.nodes[id]
			existing, ok := flat.nodes[id]
			if !ok {
				flat.insert(sub)
				continue
			}
			flat.nodes[id] = mergeNodes(existing, sub)
		}
	}
	return flat
}

// mergeNodes combines two scopes' views of the same data item. The
// origin comes from whichever side knows it; an item referenced as a
// stub source inside a composite keeps the real origin recorded in
// the outer scope. Derived edges are unioned.
func mergeNodes(a, b *node) *node {
	if a.stub() && !b.stub() {
		a, b = b, a
	}
	merged := &node{id: a.id, origin: a.origin, derived: slices.Clone(a.derived)}
	for _, id := range b.derived {
		if !slices.Contains(merged.derived, id) {
			merged.derived = append(merged.derived, id)
		}
	}
	return merged
}

// CheckSanity verifies the structural invariants of the graph and of
// every nested sub-graph: a node with sources must have an operation,
// every source and derived id must resolve to a node, and every
// derivation edge must have its reciprocal back-reference. It reports
// the first violation found and never repairs anything.
func (g *Graph) CheckSanity() error {
	for _, id := range g.order {
		n := g.nodes[id]
		if n.origin != nil && n.origin.OpID == "" && len(n.origin.SourceIDs) > 0 {
			return fmt.Errorf("node %s has source ids but no operation", id)
		}
		if n.origin != nil {
			for _, sourceID := range n.origin.SourceIDs {
				src, ok := g.nodes[sourceID]
				if !ok {
					return fmt.Errorf("source id %s of node %s has no corresponding node", sourceID, id)
				}
				if !slices.Contains(src.derived, id) {
					return fmt.Errorf("node %s has source item %s but %s does not list it as derived", id, sourceID, sourceID)
				}
			}
		}
		for _, derivedID := range n.derived {
			d, ok := g.nodes[derivedID]
			if !ok {
				return fmt.Errorf("derived id %s of node %s has no corresponding node", derivedID, id)
			}
			if d.origin == nil || !slices.Contains(d.origin.SourceIDs, id) {
				return fmt.Errorf("node %s has derived item %s but %s does not list it as source", id, derivedID, derivedID)
			}
		}
	}
	for _, opID := range g.subOrder {
		if err := g.subs[opID].CheckSanity(); err != nil {
			return fmt.Errorf("sub-graph %s: %w", opID, err)
		}
	}
	return nil
}

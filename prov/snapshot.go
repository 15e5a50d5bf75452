package prov

import (
	"slices"
	"sort"
)

// NodeSnapshot is the serializable form of one provenance node. An
// empty OpID together with empty SourceIDs marks a stub node.
type NodeSnapshot struct {
	DataItemID string   `json:"data_item_id"`
	OpID       string   `json:"operation_id,omitempty"`
	SourceIDs  []string `json:"source_ids,omitempty"`
	DerivedIDs []string `json:"derived_ids,omitempty"`
}

// Snapshot is the serializable form of a provenance graph, suitable for
// persisting an audit trail after a pipeline run.
type Snapshot struct {
	Nodes     []NodeSnapshot      `json:"nodes"`
	SubGraphs map[string]Snapshot `json:"sub_graphs,omitempty"`
}

// Snapshot returns the serializable form of the graph, nodes in
// insertion order, sub-graphs keyed by operation id.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{Nodes: make([]NodeSnapshot, 0, len(g.order))}
	for _, id := range g.order {
		n := g.nodes[id]
		ns := NodeSnapshot{DataItemID: id, DerivedIDs: slices.Clone(n.derived)}
		if n.origin != nil {
			ns.OpID = n.origin.OpID
			ns.SourceIDs = slices.Clone(n.origin.SourceIDs)
		}
		snap.Nodes = append(snap.Nodes, ns)
	}
	if len(g.subs) > 0 {
		snap.SubGraphs = make(map[string]Snapshot, len(g.subs))
		for _, opID := range g.subOrder {
			snap.SubGraphs[opID] = g.subs[opID].Snapshot()
		}
	}
	return snap
}

// GraphFromSnapshot rebuilds a graph from its serialized form. Edge
// reciprocity is taken as stored; run CheckSanity to validate a
// snapshot from an untrusted source.
func GraphFromSnapshot(snap Snapshot) *Graph {
	g := NewGraph()
	for _, ns := range snap.Nodes {
		n := &node{id: ns.DataItemID, derived: slices.Clone(ns.DerivedIDs)}
		if ns.OpID != "" || len(ns.SourceIDs) > 0 {
			n.origin = &Origin{OpID: ns.OpID, SourceIDs: slices.Clone(ns.SourceIDs)}
		}
		g.insert(n)
	}
	opIDs := make([]string, 0, len(snap.SubGraphs))
	for opID := range snap.SubGraphs {
		opIDs = append(opIDs, opID)
	}
	sort.Strings(opIDs)
	for _, opID := range opIDs {
		g.AddSubGraph(opID, GraphFromSnapshot(snap.SubGraphs[opID]))
	}
	return g
}

package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/semtext/prov"
)

// Snapshot is a flattened provenance graph captured after a pipeline
// run, stored for audit. Composite operations are expanded first, so
// every node carries its innermost producing operation.
type Snapshot struct {
	ID         string              `json:"id"`
	Label      string              `json:"label,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	Nodes      []SnapshotNode      `json:"nodes"`
	Operations []SnapshotOperation `json:"operations,omitempty"`
}

// SnapshotNode is one provenance node in persisted form.
type SnapshotNode struct {
	DataItemID string   `json:"data_item_id"`
	OpID       string   `json:"op_id,omitempty"`
	SourceIDs  []string `json:"source_ids,omitempty"`
	DerivedIDs []string `json:"derived_ids,omitempty"`
}

// SnapshotOperation describes an operation referenced by snapshot
// nodes.
type SnapshotOperation struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Config map[string]any `json:"config,omitempty"`
}

// NewSnapshot captures a tracer's provenance as a snapshot. The graph
// is flattened, and operation descriptions are resolved from the
// tracer's store in first-use order.
func NewSnapshot(label string, tracer *prov.Tracer) *Snapshot {
	flat := tracer.Graph().Flatten()

	snap := &Snapshot{Label: label}
	seen := make(map[string]bool)
	for _, n := range flat.ListNodes() {
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			DataItemID: n.DataItemID,
			OpID:       n.OpID(),
			SourceIDs:  n.SourceIDs(),
			DerivedIDs: n.DerivedIDs,
		})

		opID := n.OpID()
		if opID == "" || seen[opID] {
			continue
		}
		seen[opID] = true
		if desc, ok := tracer.Store().GetOp(opID); ok {
			snap.Operations = append(snap.Operations, SnapshotOperation{
				ID:     desc.UID,
				Name:   desc.Name,
				Config: desc.Config,
			})
		}
	}
	return snap
}

// Dot renders the snapshot in graphviz dot syntax. Nodes are labeled
// by data item id and edges by operation name, since a snapshot does
// not retain item content.
func (s *Snapshot) Dot() string {
	names := make(map[string]string, len(s.Operations))
	for _, op := range s.Operations {
		names[op.ID] = op.Name
	}

	var sb strings.Builder
	sb.WriteString("digraph {\n\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&sb, "%q;\n", n.DataItemID)

		opLabel := "Unknown"
		if name, ok := names[n.OpID]; ok {
			opLabel = name
		}
		for _, src := range n.SourceIDs {
			fmt.Fprintf(&sb, "%q -> %q [label=%q];\n", src, n.DataItemID, opLabel)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

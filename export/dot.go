// Package export renders provenance graphs and annotated documents in
// interchange formats: graphviz dot for visualization, JSON Lines for
// document dumps and PROV-O RDF for triple stores.
package export

import (
	"fmt"
	"strings"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/operation"
	"github.com/c360studio/semtext/prov"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatDOT produces graphviz (.dot) output.
	FormatDOT Format = "dot"

	// FormatJSONL produces JSON Lines (.jsonl) output.
	FormatJSONL Format = "jsonl"

	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"
)

// ItemFormatter renders a data item as a node label.
type ItemFormatter func(item prov.Identifiable) string

// OpFormatter renders an operation description as an edge label.
type OpFormatter func(desc operation.Description) string

// DefaultItemFormatter labels segments as label:text and attributes as
// label:value. Unknown item types fall back to their uid.
func DefaultItemFormatter(item prov.Identifiable) string {
	switch it := item.(type) {
	case *document.Segment:
		return it.Label + ":" + it.Text
	case *document.Attribute:
		return fmt.Sprintf("%s:%v", it.Label, it.Value)
	default:
		return item.UID()
	}
}

// DefaultOpFormatter labels operations with their name.
func DefaultOpFormatter(desc operation.Description) string {
	return desc.Name
}

// DotConfig holds dot rendering settings.
type DotConfig struct {
	// ItemFormatter renders node labels. Defaults to
	// DefaultItemFormatter.
	ItemFormatter ItemFormatter

	// OpFormatter renders edge labels. Defaults to DefaultOpFormatter.
	OpFormatter OpFormatter

	// MaxDepth limits composite operation expansion: 0 collapses every
	// composite to a single edge, N expands N nesting levels, negative
	// expands fully.
	MaxDepth int

	// ShowAttrLinks draws dashed edges from items to their attributes.
	ShowAttrLinks bool
}

// DefaultDotConfig returns the default dot rendering settings: full
// expansion with attribute links.
func DefaultDotConfig() DotConfig {
	return DotConfig{
		ItemFormatter: DefaultItemFormatter,
		OpFormatter:   DefaultOpFormatter,
		MaxDepth:      -1,
		ShowAttrLinks: true,
	}
}

// DotExporter renders provenance graphs in graphviz dot syntax. Nodes
// come out in graph insertion order, one per data item, with each
// derivation edge labeled by the producing operation. Nodes produced by
// an expanded composite operation are emitted from the composite's
// sub-graph instead of the outer graph.
type DotExporter struct {
	store  prov.Store
	config DotConfig
}

// NewDotExporter creates a dot exporter resolving items and operations
// from store.
func NewDotExporter(store prov.Store, cfg DotConfig) *DotExporter {
	if cfg.ItemFormatter == nil {
		cfg.ItemFormatter = DefaultItemFormatter
	}
	if cfg.OpFormatter == nil {
		cfg.OpFormatter = DefaultOpFormatter
	}
	return &DotExporter{store: store, config: cfg}
}

// Export renders graph and its expanded sub-graphs as a dot document.
func (e *DotExporter) Export(graph *prov.Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n\n")
	e.exportGraph(&sb, graph, 0)
	sb.WriteString("}\n")
	return sb.String()
}

// ExportTracer renders the graph of a tracer.
func ExportTracer(tracer *prov.Tracer, cfg DotConfig) string {
	return NewDotExporter(tracer.Store(), cfg).Export(tracer.Graph())
}

func (e *DotExporter) exportGraph(sb *strings.Builder, g *prov.Graph, depth int) {
	expand := e.config.MaxDepth < 0 || depth < e.config.MaxDepth

	for _, n := range g.ListNodes() {
		// When a composite gets expanded, its sub-graph re-derives the
		// node with the composite's internal operations.
		if expand && n.OpID() != "" && g.HasSubGraph(n.OpID()) {
			continue
		}
		e.writeNode(sb, n)
	}

	if !expand {
		return
	}
	for _, sub := range g.ListSubGraphs() {
		e.exportGraph(sb, sub, depth+1)
	}
}

func (e *DotExporter) writeNode(sb *strings.Builder, n prov.Node) {
	item, ok := e.store.GetItem(n.DataItemID)
	label := n.DataItemID
	if ok {
		label = e.config.ItemFormatter(item)
	}
	fmt.Fprintf(sb, "%q [label=%q];\n", n.DataItemID, label)

	opLabel := "Unknown"
	if n.OpID() != "" {
		if desc, found := e.store.GetOp(n.OpID()); found {
			opLabel = e.config.OpFormatter(desc)
		}
	}
	for _, src := range n.SourceIDs() {
		fmt.Fprintf(sb, "%q -> %q [label=%q];\n", src, n.DataItemID, opLabel)
	}

	if seg, isSeg := item.(*document.Segment); isSeg && e.config.ShowAttrLinks {
		for _, attr := range seg.Attrs {
			fmt.Fprintf(sb, "%q -> %q [style=dashed, color=grey, label=\"attr\", fontcolor=grey];\n",
				n.DataItemID, attr.ID)
		}
	}

	sb.WriteString("\n")
}

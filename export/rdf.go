package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semtext/prov"
	"github.com/c360studio/semtext/vocabulary/provo"
)

// Statement is one predicate-object pair about a resource.
type Statement struct {
	Predicate string
	Object    any
}

// Resource is an exportable RDF resource: a subject IRI, its type
// assertions and its statements.
type Resource struct {
	IRI        string
	Types      []string
	Statements []Statement
}

// RDFExporter exports resources as RDF. Provenance graphs map to the
// PROV-O generation/derivation model via ProvResources.
type RDFExporter struct {
	resources []Resource
	prefixes  map[string]string
}

// NewRDFExporter creates an empty RDF exporter with default prefixes.
func NewRDFExporter() *RDFExporter {
	return &RDFExporter{
		prefixes: defaultPrefixes(),
	}
}

// defaultPrefixes returns the standard namespace prefixes for RDF
// export.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":  "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs": "http://www.w3.org/2000/01/rdf-schema#",
		"xsd":  "http://www.w3.org/2001/XMLSchema#",
		"prov": provo.Namespace,
	}
}

// AddResource adds a resource to be exported.
func (e *RDFExporter) AddResource(r Resource) {
	e.resources = append(e.resources, r)
}

// Export serializes all resources to the specified format.
func (e *RDFExporter) Export(format Format) (string, error) {
	switch format {
	case FormatTurtle:
		return e.toTurtle(), nil
	case FormatNTriples:
		return e.toNTriples(), nil
	default:
		return "", fmt.Errorf("unsupported RDF format: %s", format)
	}
}

// ProvResources maps a provenance graph to PROV-O resources: one
// prov:Entity per data item with wasGeneratedBy/wasDerivedFrom
// statements, then one prov:Activity per producing operation. The
// graph is flattened first, so composite operations contribute their
// internal derivations.
func ProvResources(graph *prov.Graph, store prov.Store, itemFormatter ItemFormatter, opFormatter OpFormatter) []Resource {
	if itemFormatter == nil {
		itemFormatter = DefaultItemFormatter
	}
	if opFormatter == nil {
		opFormatter = DefaultOpFormatter
	}

	flat := graph.Flatten()
	var resources []Resource
	var opIDs []string
	seenOps := make(map[string]bool)

	for _, n := range flat.ListNodes() {
		r := Resource{IRI: uidIRI(n.DataItemID), Types: []string{provo.ClassEntity}}
		if item, ok := store.GetItem(n.DataItemID); ok {
			r.Statements = append(r.Statements, Statement{provo.RDFSLabel, itemFormatter(item)})
		}
		if opID := n.OpID(); opID != "" {
			r.Statements = append(r.Statements, Statement{provo.WasGeneratedBy, uidIRI(opID)})
			if !seenOps[opID] {
				seenOps[opID] = true
				opIDs = append(opIDs, opID)
			}
		}
		for _, src := range n.SourceIDs() {
			r.Statements = append(r.Statements, Statement{provo.WasDerivedFrom, uidIRI(src)})
		}
		resources = append(resources, r)
	}

	for _, opID := range opIDs {
		r := Resource{IRI: uidIRI(opID), Types: []string{provo.ClassActivity}}
		if desc, ok := store.GetOp(opID); ok {
			r.Statements = append(r.Statements, Statement{provo.RDFSLabel, opFormatter(desc)})
		}
		resources = append(resources, r)
	}
	return resources
}

// uidIRI converts a uuid identifier to an IRI.
func uidIRI(uid string) string {
	return "urn:uuid:" + uid
}

// toTurtle serializes to Turtle format.
func (e *RDFExporter) toTurtle() string {
	var sb strings.Builder

	prefixKeys := make([]string, 0, len(e.prefixes))
	for k := range e.prefixes {
		prefixKeys = append(prefixKeys, k)
	}
	sort.Strings(prefixKeys)
	for _, prefix := range prefixKeys {
		sb.WriteString(fmt.Sprintf("@prefix %s: <%s> .\n", prefix, e.prefixes[prefix]))
	}
	sb.WriteString("\n")

	for _, r := range e.resources {
		e.writeResourceTurtle(&sb, r)
		sb.WriteString("\n")
	}

	return sb.String()
}

// writeResourceTurtle writes a single resource in Turtle format.
func (e *RDFExporter) writeResourceTurtle(sb *strings.Builder, r Resource) {
	sb.WriteString(fmt.Sprintf("<%s>\n", r.IRI))

	for i, typeIRI := range r.Types {
		sb.WriteString(fmt.Sprintf("    a <%s>", typeIRI))
		if i < len(r.Types)-1 || len(r.Statements) > 0 {
			sb.WriteString(" ;\n")
		} else {
			sb.WriteString(" .\n")
		}
	}

	for i, st := range r.Statements {
		sb.WriteString(fmt.Sprintf("    <%s> %s", st.Predicate, formatObject(st.Object)))
		if i < len(r.Statements)-1 {
			sb.WriteString(" ;\n")
		} else {
			sb.WriteString(" .\n")
		}
	}
}

// toNTriples serializes to N-Triples format.
func (e *RDFExporter) toNTriples() string {
	var sb strings.Builder

	for _, r := range e.resources {
		for _, typeIRI := range r.Types {
			sb.WriteString(fmt.Sprintf("<%s> <%s> <%s> .\n", r.IRI, provo.RDFType, typeIRI))
		}
		for _, st := range r.Statements {
			sb.WriteString(fmt.Sprintf("<%s> <%s> %s .\n", r.IRI, st.Predicate, formatObjectNTriples(st.Object)))
		}
	}

	return sb.String()
}

// formatObject formats an object value for Turtle output.
func formatObject(obj any) string {
	switch v := obj.(type) {
	case string:
		if isIRI(v) {
			return fmt.Sprintf("<%s>", v)
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return fmt.Sprintf("\"%s\"^^xsd:dateTime", v)
		}
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int, int32, int64:
		return fmt.Sprintf("\"%d\"^^xsd:integer", v)
	case float32, float64:
		return fmt.Sprintf("\"%f\"^^xsd:decimal", v)
	case bool:
		return fmt.Sprintf("\"%t\"^^xsd:boolean", v)
	default:
		return fmt.Sprintf("\"%v\"", v)
	}
}

// formatObjectNTriples formats an object value for N-Triples output.
func formatObjectNTriples(obj any) string {
	switch v := obj.(type) {
	case string:
		if isIRI(v) {
			return fmt.Sprintf("<%s>", v)
		}
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return fmt.Sprintf("\"%s\"^^<http://www.w3.org/2001/XMLSchema#dateTime>", v)
		}
		return fmt.Sprintf("\"%s\"", escapeString(v))
	case int, int32, int64:
		return fmt.Sprintf("\"%d\"^^<http://www.w3.org/2001/XMLSchema#integer>", v)
	case float32, float64:
		return fmt.Sprintf("\"%f\"^^<http://www.w3.org/2001/XMLSchema#decimal>", v)
	case bool:
		return fmt.Sprintf("\"%t\"^^<http://www.w3.org/2001/XMLSchema#boolean>", v)
	default:
		return fmt.Sprintf("\"%v\"", v)
	}
}

// isIRI reports whether a string object is a resource reference rather
// than a literal.
func isIRI(s string) bool {
	return strings.HasPrefix(s, "http://") ||
		strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "urn:")
}

// Package provo provides the W3C PROV-O vocabulary terms used when
// exporting provenance as RDF.
//
// Only the core generation/derivation fragment is carried: data items
// map to prov:Entity, operation descriptions to prov:Activity, and the
// graph's edges to prov:wasGeneratedBy and prov:wasDerivedFrom.
package provo

// Namespace is the base IRI of the W3C provenance ontology.
const Namespace = "http://www.w3.org/ns/prov#"

// Class IRIs.
const (
	// ClassEntity represents a produced data item.
	ClassEntity = Namespace + "Entity"

	// ClassActivity represents an operation that produced data items.
	ClassActivity = Namespace + "Activity"

	// ClassSoftwareAgent represents a piece of software running
	// activities.
	ClassSoftwareAgent = Namespace + "SoftwareAgent"
)

// Predicate IRIs.
const (
	// WasGeneratedBy links an entity to the activity that produced it.
	WasGeneratedBy = Namespace + "wasGeneratedBy"

	// WasDerivedFrom links an entity to an entity it was derived from.
	WasDerivedFrom = Namespace + "wasDerivedFrom"

	// Used links an activity to an entity it consumed.
	Used = Namespace + "used"

	// WasAssociatedWith links an activity to the agent running it.
	WasAssociatedWith = Namespace + "wasAssociatedWith"
)

// Common non-PROV predicates appearing alongside provenance exports.
const (
	// RDFType is the rdf:type predicate.
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	// RDFSLabel is the rdfs:label predicate.
	RDFSLabel = "http://www.w3.org/2000/01/rdf-schema#label"
)

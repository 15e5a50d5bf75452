// Package semtext defines the predicate vocabulary used when
// publishing documents, annotations and provenance to the knowledge
// graph.
package semtext

// Provenance predicates link data items to their derivation.
const (
	// ItemProducedBy links a data item to the operation that produced
	// it.
	ItemProducedBy = "semtext.prov.produced-by"

	// ItemDerivedFrom links a data item to one of its source items.
	ItemDerivedFrom = "semtext.prov.derived-from"

	// OperationName is the human-readable name of an operation.
	OperationName = "semtext.operation.name"
)

// Annotation predicates describe segments and their placement.
const (
	// AnnotationLabel is the annotation's label, e.g. SENTENCE.
	AnnotationLabel = "semtext.annotation.label"

	// AnnotationText is the text the annotation covers.
	AnnotationText = "semtext.annotation.text"

	// AnnotationDocument links an annotation to its document entity.
	AnnotationDocument = "semtext.annotation.document"

	// AnnotationSpanStart is the annotation's start offset in the
	// document's full text.
	AnnotationSpanStart = "semtext.annotation.span.start"

	// AnnotationSpanEnd is the annotation's end offset.
	AnnotationSpanEnd = "semtext.annotation.span.end"
)

// Document predicates describe where a document came from.
const (
	// DocumentPath is the source file path of a loaded document.
	DocumentPath = "semtext.document.path"

	// DocumentURL is the source URL of a fetched document.
	DocumentURL = "semtext.document.url"

	// DocumentTitle is the document title, when the source carried
	// one.
	DocumentTitle = "semtext.document.title"
)

// AttributePredicate returns the predicate for a named attribute, e.g.
// is_negated becomes semtext.annotation.attr.is_negated.
func AttributePredicate(label string) string {
	return "semtext.annotation.attr." + label
}

// Package document holds the text data model annotation operations
// work on: documents, text segments located by spans, and attributes
// attached to segments. Everything carries a uid so provenance can be
// recorded against it.
package document

import (
	"github.com/c360studio/semtext/ident"
)

// RawLabel is the reserved annotation label of a document's full text.
const RawLabel = "RAW_TEXT"

// TextDocument is a text document and its annotations. The full text
// is exposed as an auto-generated raw segment so operations that
// consume text can take the whole document as input.
type TextDocument struct {
	ID       string         `json:"uid"`
	Metadata map[string]any `json:"metadata,omitempty"`

	raw  *Segment
	anns *AnnotationContainer
}

// New creates a document with a fresh uid holding the given text.
func New(text string) *TextDocument {
	return NewWithID(ident.New(), text)
}

// NewWithID creates a document with a caller-chosen uid, used by
// ingestion to derive stable document ids from source keys. The raw
// segment's uid is derived from the document uid, so re-ingesting the
// same source yields identical annotation targets.
func NewWithID(uid, text string) *TextDocument {
	raw := &Segment{
		ID:    ident.Deterministic(uid + "/" + RawLabel),
		Label: RawLabel,
		Text:  text,
		Span:  NewSpan(0, len(text)),
	}
	return &TextDocument{
		ID:   uid,
		raw:  raw,
		anns: newAnnotationContainer(raw),
	}
}

// UID implements prov.Identifiable.
func (d *TextDocument) UID() string {
	return d.ID
}

// Text returns the document's full text.
func (d *TextDocument) Text() string {
	return d.raw.Text
}

// Raw returns the auto-generated segment holding the full text.
func (d *TextDocument) Raw() *Segment {
	return d.raw
}

// Anns returns the document's annotation container.
func (d *TextDocument) Anns() *AnnotationContainer {
	return d.anns
}

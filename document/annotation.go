package document

import (
	"github.com/c360studio/semtext/ident"
)

// Segment is a labeled piece of a document's text, such as a sentence
// or a matched entity. The span locates the text in the document's
// full text. Segments are the data items annotation operations consume
// and produce, so each one carries its own uid.
type Segment struct {
	ID    string       `json:"uid"`
	Label string       `json:"label"`
	Text  string       `json:"text"`
	Span  Span         `json:"span"`
	Attrs []*Attribute `json:"attrs,omitempty"`
}

// NewSegment creates a segment with a fresh uid.
func NewSegment(label, text string, span Span) *Segment {
	return &Segment{ID: ident.New(), Label: label, Text: text, Span: span}
}

// UID implements prov.Identifiable.
func (s *Segment) UID() string {
	return s.ID
}

// AddAttr attaches an attribute to the segment, keeping attachment
// order.
func (s *Segment) AddAttr(attr *Attribute) {
	s.Attrs = append(s.Attrs, attr)
}

// AttrsByLabel returns the segment's attributes carrying the given
// label, in attachment order.
func (s *Segment) AttrsByLabel(label string) []*Attribute {
	var attrs []*Attribute
	for _, attr := range s.Attrs {
		if attr.Label == label {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// Attribute is a labeled value attached to a segment, such as a
// negation flag on a matched entity. Attributes are data items of
// their own so their production can be traced.
type Attribute struct {
	ID    string `json:"uid"`
	Label string `json:"label"`
	Value any    `json:"value,omitempty"`
}

// NewAttribute creates an attribute with a fresh uid.
func NewAttribute(label string, value any) *Attribute {
	return &Attribute{ID: ident.New(), Label: label, Value: value}
}

// UID implements prov.Identifiable.
func (a *Attribute) UID() string {
	return a.ID
}

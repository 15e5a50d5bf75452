package document

import "fmt"

// Span is a slice of the document's full text, by character offsets.
// Start is the index of the first character, End the index past the
// last one.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// NewSpan creates a span covering [start, end).
func NewSpan(start, end int) Span {
	return Span{Start: start, End: end}
}

// Length returns the number of characters covered by the span.
func (s Span) Length() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one character.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && s.End > other.Start
}

// Shift returns the span moved by offset characters, used to map a
// position relative to a segment back to the document's full text.
func (s Span) Shift(offset int) Span {
	return Span{Start: s.Start + offset, End: s.End + offset}
}

// String returns the span in [start:end) form.
func (s Span) String() string {
	return fmt.Sprintf("[%d:%d)", s.Start, s.End)
}

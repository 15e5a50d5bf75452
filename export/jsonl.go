package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/c360studio/semtext/document"
)

// DocumentRecord is the JSON shape of one annotated document.
type DocumentRecord struct {
	UID      string              `json:"uid"`
	Text     string              `json:"text"`
	Metadata map[string]any      `json:"metadata,omitempty"`
	Anns     []*document.Segment `json:"anns,omitempty"`
}

// NewDocumentRecord captures a document and its annotations. The raw
// segment is left out, it is rebuilt from the text on load.
func NewDocumentRecord(doc *document.TextDocument) DocumentRecord {
	return DocumentRecord{
		UID:      doc.UID(),
		Text:     doc.Text(),
		Metadata: doc.Metadata,
		Anns:     doc.Anns().All(),
	}
}

// Document rebuilds the annotated document a record was captured from.
func (r DocumentRecord) Document() (*document.TextDocument, error) {
	doc := document.NewWithID(r.UID, r.Text)
	doc.Metadata = r.Metadata
	for _, seg := range r.Anns {
		if err := doc.Anns().Add(seg); err != nil {
			return nil, fmt.Errorf("document %s: %w", r.UID, err)
		}
	}
	return doc, nil
}

// WriteDocuments writes annotated documents as JSON Lines, one
// document per line.
func WriteDocuments(w io.Writer, docs []*document.TextDocument) error {
	enc := json.NewEncoder(w)
	for _, doc := range docs {
		if err := enc.Encode(NewDocumentRecord(doc)); err != nil {
			return fmt.Errorf("encode document %s: %w", doc.UID(), err)
		}
	}
	return nil
}

// ReadDocuments reads documents back from JSON Lines.
func ReadDocuments(r io.Reader) ([]*document.TextDocument, error) {
	var docs []*document.TextDocument
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record DocumentRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, fmt.Errorf("parse document line %d: %w", len(docs)+1, err)
		}
		doc, err := record.Document()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}
	return docs, nil
}

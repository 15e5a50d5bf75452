// Package publish pushes annotations and provenance to the knowledge
// graph ingest stream as entity triples.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semstreams/message"
	"github.com/c360studio/semstreams/natsclient"

	"github.com/c360studio/semtext/document"
	"github.com/c360studio/semtext/prov"
	"github.com/c360studio/semtext/vocabulary/semtext"
)

// GraphIngestSubject is the subject graph entities are published to.
const GraphIngestSubject = "graph.ingest.entity"

// tripleSource tags every published triple with its producer.
const tripleSource = "semtext.publish"

// EntityIngestMessage is the message format for graph ingestion.
// Matches the format used by other graph ingest producers.
type EntityIngestMessage struct {
	ID        string           `json:"id"`
	Triples   []message.Triple `json:"triples"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ItemEntityID generates a consistent entity ID for a data item.
func ItemEntityID(uid string) string {
	return fmt.Sprintf("semtext.local.prov.item.%s", uid)
}

// OperationEntityID generates a consistent entity ID for an operation.
func OperationEntityID(uid string) string {
	return fmt.Sprintf("semtext.local.prov.operation.%s", uid)
}

// DocumentEntityID generates a consistent entity ID for a document.
func DocumentEntityID(uid string) string {
	return fmt.Sprintf("semtext.local.document.%s", uid)
}

// ProvenanceEntities builds one ingest message per node of the
// tracer's flattened provenance, plus one per referenced operation.
// Stub nodes with no recorded derivation produce nothing.
func ProvenanceEntities(tracer *prov.Tracer, now time.Time) []EntityIngestMessage {
	flat := tracer.Graph().Flatten()

	var msgs []EntityIngestMessage
	var opIDs []string
	seenOps := make(map[string]bool)
	for _, n := range flat.ListNodes() {
		entityID := ItemEntityID(n.DataItemID)

		var triples []message.Triple
		if opID := n.OpID(); opID != "" {
			triples = append(triples, newTriple(entityID, semtext.ItemProducedBy, OperationEntityID(opID), now))
			if !seenOps[opID] {
				seenOps[opID] = true
				opIDs = append(opIDs, opID)
			}
		}
		for _, src := range n.SourceIDs() {
			triples = append(triples, newTriple(entityID, semtext.ItemDerivedFrom, ItemEntityID(src), now))
		}
		if len(triples) == 0 {
			continue
		}

		msgs = append(msgs, EntityIngestMessage{
			ID:        entityID,
			Triples:   triples,
			UpdatedAt: now,
		})
	}

	for _, opID := range opIDs {
		desc, ok := tracer.Store().GetOp(opID)
		if !ok {
			continue
		}
		entityID := OperationEntityID(opID)
		msgs = append(msgs, EntityIngestMessage{
			ID:        entityID,
			Triples:   []message.Triple{newTriple(entityID, semtext.OperationName, desc.Name, now)},
			UpdatedAt: now,
		})
	}
	return msgs
}

// AnnotationEntities builds one ingest message per annotation of the
// document, preceded by one for the document itself when its metadata
// records a source.
func AnnotationEntities(doc *document.TextDocument, now time.Time) []EntityIngestMessage {
	var msgs []EntityIngestMessage
	docEntity := DocumentEntityID(doc.ID)

	var docTriples []message.Triple
	if path, ok := doc.Metadata["path"].(string); ok {
		docTriples = append(docTriples, newTriple(docEntity, semtext.DocumentPath, path, now))
	}
	if url, ok := doc.Metadata["url"].(string); ok {
		docTriples = append(docTriples, newTriple(docEntity, semtext.DocumentURL, url, now))
	}
	if title, ok := doc.Metadata["title"].(string); ok {
		docTriples = append(docTriples, newTriple(docEntity, semtext.DocumentTitle, title, now))
	}
	if len(docTriples) > 0 {
		msgs = append(msgs, EntityIngestMessage{
			ID:        docEntity,
			Triples:   docTriples,
			UpdatedAt: now,
		})
	}

	for _, seg := range doc.Anns().All() {
		entityID := ItemEntityID(seg.ID)
		triples := []message.Triple{
			newTriple(entityID, semtext.AnnotationLabel, seg.Label, now),
			newTriple(entityID, semtext.AnnotationText, seg.Text, now),
			newTriple(entityID, semtext.AnnotationDocument, docEntity, now),
			newTriple(entityID, semtext.AnnotationSpanStart, seg.Span.Start, now),
			newTriple(entityID, semtext.AnnotationSpanEnd, seg.Span.End, now),
		}
		for _, attr := range seg.Attrs {
			triples = append(triples, newTriple(entityID, semtext.AttributePredicate(attr.Label), attr.Value, now))
		}

		msgs = append(msgs, EntityIngestMessage{
			ID:        entityID,
			Triples:   triples,
			UpdatedAt: now,
		})
	}
	return msgs
}

// PublishProvenance publishes a tracer's flattened provenance to the
// knowledge graph.
func PublishProvenance(ctx context.Context, nc *natsclient.Client, tracer *prov.Tracer) error {
	if nc == nil {
		return nil // Skip publishing if no NATS client (graceful degradation)
	}
	for _, msg := range ProvenanceEntities(tracer, time.Now()) {
		if err := publishEntity(ctx, nc, msg); err != nil {
			return err
		}
	}
	return nil
}

// PublishAnnotations publishes a document's annotations to the
// knowledge graph.
func PublishAnnotations(ctx context.Context, nc *natsclient.Client, doc *document.TextDocument) error {
	if nc == nil {
		return nil // Skip publishing if no NATS client (graceful degradation)
	}
	for _, msg := range AnnotationEntities(doc, time.Now()) {
		if err := publishEntity(ctx, nc, msg); err != nil {
			return err
		}
	}
	return nil
}

func publishEntity(ctx context.Context, nc *natsclient.Client, msg EntityIngestMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal entity %s: %w", msg.ID, err)
	}
	if err := nc.PublishToStream(ctx, GraphIngestSubject, data); err != nil {
		return fmt.Errorf("publish entity %s: %w", msg.ID, err)
	}
	return nil
}

func newTriple(subject, predicate string, object any, now time.Time) message.Triple {
	return message.Triple{
		Subject:    subject,
		Predicate:  predicate,
		Object:     object,
		Source:     tripleSource,
		Timestamp:  now,
		Confidence: 1.0,
	}
}

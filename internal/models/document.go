package models

import "fmt"

// RawDocument is what an acquisition/parsing collaborator hands to the
// pipeline: already-decoded text plus a content type hint.
type RawDocument struct {
	Source      string
	Text        string
	ContentType string
	Metadata    map[string]any
	Tags        []string
}

// Document is a normalized unit of ingested content. The ID is assigned once
// per logical document and stays stable across re-ingestion.
type Document struct {
	ID       string
	Content  string
	Source   string
	Metadata map[string]any
	Tags     []string
}

// Segment is a contiguous sub-range of a document's content. Offsets are
// half-open rune offsets into the parent content.
type Segment struct {
	ParentDocumentID string
	SequenceNumber   int
	StartOffset      int
	EndOffset        int
	Content          string
	Metadata         map[string]any
	Tags             []string
}

// ID derives the segment identity from its parent and sequence, so
// re-chunking the same document reproduces the same IDs.
func (s Segment) ID() string {
	return SegmentID(s.ParentDocumentID, s.SequenceNumber)
}

// SegmentID builds the deterministic segment identifier.
func SegmentID(parentDocumentID string, sequenceNumber int) string {
	return fmt.Sprintf("%s#%d", parentDocumentID, sequenceNumber)
}

// EmbeddingRecord is the unit stored in the vector index. The vector may be
// left nil, in which case the index manager embeds Text itself.
type EmbeddingRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// SearchResult is one ranked hit from a similarity query. Distance is
// ascending dissimilarity: smaller means more similar.
type SearchResult struct {
	ID       string
	Distance float32
	Metadata map[string]string
	Text     string
}

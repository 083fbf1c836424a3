package splitter

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"policy-rag/internal/models"
)

// Splitter divides normalized document content into fixed-size overlapping
// segments. Offsets are rune offsets, so multi-byte content splits on
// character boundaries, and the same document with the same parameters
// always yields byte-identical output.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// New validates the chunking parameters. A non-positive chunk size is a
// configuration error; an overlap >= size is clamped to 0 with a warning,
// since a zero-overlap split is always well-defined.
func New(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		log.Warn().Msgf("chunk overlap (%d) >= chunk size (%d), clamping overlap to 0", chunkOverlap, chunkSize)
		chunkOverlap = 0
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// ChunkSize reports the configured target segment width.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap reports the effective overlap after clamping.
func (s *Splitter) ChunkOverlap() int { return s.chunkOverlap }

// Split emits the ordered segment sequence for a document. Segments cover
// [0, len(content)) with no gaps, consecutive segments overlap by exactly
// the configured width, and the final segment may be shorter than the
// target size but is never empty. Empty content yields an empty sequence.
func (s *Splitter) Split(doc models.Document) ([]models.Segment, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("document has no id")
	}
	runes := []rune(doc.Content)
	total := len(runes)
	if total == 0 {
		log.Debug().Str("document", doc.ID).Msg("document has no content to split")
		return nil, nil
	}

	var segments []models.Segment
	start := 0
	seq := 0
	for start < total {
		end := start + s.chunkSize
		if end > total {
			end = total
		}
		segments = append(segments, s.segment(doc, seq, start, end, string(runes[start:end])))
		seq++
		if end == total {
			break
		}
		next := start + s.chunkSize - s.chunkOverlap
		if next <= start {
			// cannot happen with a clamped overlap, but guarantees termination
			next = start + s.chunkSize
		}
		start = next
	}

	log.Debug().Str("document", doc.ID).Int("segments", len(segments)).Msg("split document")
	return segments, nil
}

// segment builds one segment with the parent's metadata and tags copied in.
// Lineage fields win on key collision.
func (s *Splitter) segment(doc models.Document, seq, start, end int, content string) models.Segment {
	meta := make(map[string]any, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[models.MetaParentDocumentID] = doc.ID
	meta[models.MetaSequenceNumber] = seq
	meta[models.MetaStartOffset] = start
	meta[models.MetaEndOffset] = end
	if doc.Source != "" {
		meta[models.MetaSource] = doc.Source
	}

	tags := make([]string, len(doc.Tags))
	copy(tags, doc.Tags)

	return models.Segment{
		ParentDocumentID: doc.ID,
		SequenceNumber:   seq,
		StartOffset:      start,
		EndOffset:        end,
		Content:          content,
		Metadata:         meta,
		Tags:             tags,
	}
}

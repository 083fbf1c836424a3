package pipeline

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"policy-rag/internal/db"
	"policy-rag/internal/docstore"
	"policy-rag/internal/helper"
	"policy-rag/internal/models"
	"policy-rag/internal/normalizer"
	"policy-rag/internal/splitter"
	"policy-rag/internal/vectordb"
)

// IngestReport tells the caller, per document, what the pipeline did:
// how many segments were produced and how many embedding records were
// skipped or failed, not just a boolean success.
type IngestReport struct {
	Source     string
	DocumentID string
	Segments   int
	Upserted   int
	Skipped    int
	Failed     []vectordb.RecordError
}

// Pipeline drives ingestion: normalize, persist the original, split,
// embed, upsert. Documents, segments and embedding records derived here
// are owned by the run that created them; re-running the same source
// reproduces the same IDs, so every step is safe to repeat.
type Pipeline struct {
	norm      *normalizer.Normalizer
	split     *splitter.Splitter
	store     *docstore.Store
	index     *vectordb.Manager
	embedFunc chromem.EmbeddingFunc
	archive   *bun.DB
}

func New(norm *normalizer.Normalizer, split *splitter.Splitter, store *docstore.Store, index *vectordb.Manager) *Pipeline {
	return &Pipeline{norm: norm, split: split, store: store, index: index}
}

// WithArchive enables the Postgres segment archive. It needs the embedding
// function so archived rows carry the same vectors the index holds.
func (p *Pipeline) WithArchive(archive *bun.DB, embedFunc chromem.EmbeddingFunc) *Pipeline {
	p.archive = archive
	p.embedFunc = embedFunc
	return p
}

// Ingest runs one document through the pipeline. The original text is
// persisted before any transformation; a storage failure aborts the whole
// ingestion, while per-segment embedding failures are reported and skipped.
func (p *Pipeline) Ingest(ctx context.Context, raw models.RawDocument) (IngestReport, error) {
	report := IngestReport{Source: raw.Source}
	if raw.Source == "" {
		return report, fmt.Errorf("raw document has no source")
	}

	if err := p.store.Put(raw.Source, []byte(raw.Text), raw.Metadata); err != nil {
		return report, err
	}

	doc := models.Document{
		ID:       helper.DocumentID(raw.Source),
		Content:  p.norm.Normalize(raw.Text),
		Source:   raw.Source,
		Metadata: raw.Metadata,
		Tags:     raw.Tags,
	}
	report.DocumentID = doc.ID

	segments, err := p.split.Split(doc)
	if err != nil {
		return report, err
	}
	report.Segments = len(segments)
	if len(segments) == 0 {
		log.Info().Str("source", raw.Source).Msg("document produced no segments")
		return report, nil
	}

	records, archiveRows, failed := p.buildRecords(ctx, segments)
	report.Failed = append(report.Failed, failed...)

	upsert, err := p.index.Upsert(ctx, records)
	report.Upserted = upsert.Upserted
	report.Skipped = upsert.Skipped
	report.Failed = append(report.Failed, upsert.Failed...)
	if err != nil {
		return report, err
	}

	if p.archive != nil {
		if err := db.StoreSegments(ctx, p.archive, archiveRows); err != nil {
			return report, fmt.Errorf("failed to archive segments: %w", err)
		}
	}

	log.Info().
		Str("source", raw.Source).
		Str("document", doc.ID).
		Int("segments", report.Segments).
		Int("upserted", report.Upserted).
		Int("skipped", report.Skipped).
		Int("failed", len(report.Failed)).
		Msg("ingested document")
	return report, nil
}

// buildRecords turns segments into embedding records. When the archive is
// enabled the pipeline embeds each segment itself so the archive rows and
// the index share one vector per segment; otherwise embedding is deferred
// to the index manager.
func (p *Pipeline) buildRecords(ctx context.Context, segments []models.Segment) ([]models.EmbeddingRecord, []db.SegmentRecord, []vectordb.RecordError) {
	records := make([]models.EmbeddingRecord, 0, len(segments))
	var rows []db.SegmentRecord
	var failed []vectordb.RecordError

	for _, seg := range segments {
		meta, dropped := models.FlattenMetadata(seg.Metadata)
		if len(dropped) > 0 {
			log.Warn().Str("segment", seg.ID()).Strs("keys", dropped).Msg("dropped non-scalar metadata")
		}
		if len(seg.Tags) > 0 {
			meta[models.MetaTags] = models.JoinTags(seg.Tags)
		}

		rec := models.EmbeddingRecord{
			ID:       seg.ID(),
			Text:     seg.Content,
			Metadata: meta,
		}

		if p.archive != nil {
			vector, err := p.embedFunc(ctx, seg.Content)
			if err != nil {
				log.Warn().Err(err).Str("segment", seg.ID()).Msg("failed to embed segment")
				failed = append(failed, vectordb.RecordError{ID: seg.ID(), Err: err})
				continue
			}
			rec.Vector = vector
			rows = append(rows, db.FromSegment(seg, vector))
		}
		records = append(records, rec)
	}
	return records, rows, failed
}

// Remove cascades a document deletion: embedding records first, then the
// archive rows, then the stored original. The store and the index never
// cascade on their own.
func (p *Pipeline) Remove(ctx context.Context, source string) error {
	docID := helper.DocumentID(source)

	if err := p.index.DeleteWhere(ctx, map[string]string{models.MetaParentDocumentID: docID}); err != nil {
		return err
	}
	if p.archive != nil {
		if err := db.DeleteByDocument(ctx, p.archive, docID); err != nil {
			return fmt.Errorf("failed to delete archived segments: %w", err)
		}
	}
	if _, err := p.store.Delete(source); err != nil {
		return err
	}
	log.Info().Str("source", source).Str("document", docID).Msg("removed document")
	return nil
}

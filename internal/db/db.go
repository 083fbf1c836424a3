package db

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"policy-rag/internal/config"
	"policy-rag/internal/models"
)

// SegmentRecord archives a segment and its embedding in Postgres,
// independently of the vector index. Useful for re-indexing without
// re-embedding and for relational queries over lineage.
type SegmentRecord struct {
	bun.BaseModel `bun:"table:segments,alias:s"`

	ID               string            `bun:"id,pk"`
	ParentDocumentID string            `bun:"parent_document_id,notnull"`
	SequenceNumber   int               `bun:"sequence_number,notnull"`
	StartOffset      int               `bun:"start_offset,notnull"`
	EndOffset        int               `bun:"end_offset,notnull"`
	Content          string            `bun:"content,notnull"`
	Embedding        []float32         `bun:"embedding,type:vector(768)"`
	Metadata         map[string]string `bun:"metadata,type:jsonb"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Key))), nil
}

func InitDB(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().Model((*SegmentRecord)(nil)).IfNotExists().Exec(ctx)
	return err
}

// StoreSegments upserts segment records by ID, mirroring the vector
// index's replace-on-conflict semantics.
func StoreSegments(ctx context.Context, db *bun.DB, records []SegmentRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := db.NewInsert().
		Model(&records).
		On("CONFLICT (id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding").
		Set("metadata = EXCLUDED.metadata").
		Exec(ctx)
	return err
}

// DeleteByDocument removes every archived segment of a document.
func DeleteByDocument(ctx context.Context, db *bun.DB, parentDocumentID string) error {
	_, err := db.NewDelete().
		Model((*SegmentRecord)(nil)).
		Where("parent_document_id = ?", parentDocumentID).
		Exec(ctx)
	return err
}

// SearchSegments ranks archived segments by vector distance to the query
// embedding.
func SearchSegments(ctx context.Context, db *bun.DB, queryEmbedding []float32, limit int) ([]SegmentRecord, error) {
	var recs []SegmentRecord
	err := db.NewSelect().
		Model(&recs).
		OrderExpr("embedding <-> ?", queryEmbedding).
		Limit(limit).
		Scan(ctx)
	return recs, err
}

// FromSegment converts a pipeline segment plus its vector into an archive
// row.
func FromSegment(seg models.Segment, vector []float32) SegmentRecord {
	meta, _ := models.FlattenMetadata(seg.Metadata)
	return SegmentRecord{
		ID:               seg.ID(),
		ParentDocumentID: seg.ParentDocumentID,
		SequenceNumber:   seg.SequenceNumber,
		StartOffset:      seg.StartOffset,
		EndOffset:        seg.EndOffset,
		Content:          seg.Content,
		Embedding:        vector,
		Metadata:         meta,
	}
}

// drop table segments
func DropSegments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*SegmentRecord)(nil)).IfExists().Exec(ctx)
	return err
}

package vectordb

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"policy-rag/internal/models"
)

const compress = false

// RecordError reports a per-record failure inside a batch, so a single bad
// segment does not poison the rest of an upsert.
type RecordError struct {
	ID  string
	Err error
}

// UpsertReport summarizes a batch upsert: how many records were written,
// how many were skipped for missing fields, and which ones failed to embed.
type UpsertReport struct {
	Upserted int
	Skipped  int
	Failed   []RecordError
}

// Manager encapsulates the chromem-go database operations. Records are
// keyed by segment ID; re-upserting an ID replaces its vector, text and
// metadata, which makes re-indexing a document idempotent.
type Manager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	embedFunc     chromem.EmbeddingFunc
	dbPath        string
	encryptionKey string
	filePath      string
}

// NewManager initializes a new vector database manager. The embedding
// function is fixed per collection: the same function embeds records at
// index time and queries at search time.
func NewManager(dbPath, collectionName string, inMemory bool, encryptionKey string, embedFunc chromem.EmbeddingFunc) (*Manager, error) {
	var db *chromem.DB
	var err error
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &Manager{
		db:            db,
		embedFunc:     embedFunc,
		dbPath:        dbPath,
		encryptionKey: encryptionKey,
		filePath:      dbPath + "/" + collectionName + ".chromem",
	}
	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *Manager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, m.embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert writes embedding records into the collection. Records missing an
// ID or text are skipped and counted, never silently dropped. Records
// without a vector are embedded one by one so an embedding failure is
// reported per record; a backend failure aborts the remaining batch.
func (m *Manager) Upsert(ctx context.Context, records []models.EmbeddingRecord) (UpsertReport, error) {
	var report UpsertReport
	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" || rec.Text == "" {
			log.Warn().Str("id", rec.ID).Msg("skipping record with missing id or text")
			report.Skipped++
			continue
		}
		vector := rec.Vector
		if len(vector) == 0 {
			var err error
			vector, err = m.embedFunc(ctx, rec.Text)
			if err != nil {
				log.Warn().Err(err).Str("id", rec.ID).Msg("failed to embed record")
				report.Failed = append(report.Failed, RecordError{ID: rec.ID, Err: err})
				continue
			}
		}
		docs = append(docs, chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Metadata:  rec.Metadata,
			Embedding: vector,
		})
	}

	if len(docs) == 0 {
		return report, nil
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return report, fmt.Errorf("failed to add documents: %w", err)
	}
	report.Upserted = len(docs)
	return report, nil
}

// Search embeds the query with the collection's embedding function and
// returns up to topK hits ordered by ascending distance. The filter, when
// present, restricts candidates by exact metadata match before ranking.
// Zero matches is an empty result, never an error.
func (m *Manager) Search(ctx context.Context, queryText string, topK int, filter map[string]string) ([]models.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if queryText == "" {
		return nil, fmt.Errorf("query text must be provided")
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryText: queryText,
		NResults:  topK,
		Where:     filter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	// chromem ranks by descending cosine similarity, which is ascending
	// distance already
	out := make([]models.SearchResult, len(results))
	for i, res := range results {
		out[i] = models.SearchResult{
			ID:       res.ID,
			Distance: 1 - res.Similarity,
			Metadata: res.Metadata,
			Text:     res.Content,
		}
	}
	return out, nil
}

// DeleteWhere removes every record whose metadata matches the filter
// exactly. The pipeline uses it to cascade a document deletion to the
// document's embedding records.
func (m *Manager) DeleteWhere(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete without a filter")
	}
	if err := m.collection.Delete(ctx, filter, nil); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Count reports the number of records in the collection.
func (m *Manager) Count() int {
	return m.collection.Count()
}

// delete collection
func (m *Manager) DeleteCollection() error {
	err := m.db.DeleteCollection(m.collection.Name)
	if err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

// export to file
func (m *Manager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Msg("exporting collection")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// import from file
func (m *Manager) Import(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	return nil
}

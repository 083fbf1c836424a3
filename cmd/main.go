package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"policy-rag/internal/config"
	"policy-rag/internal/db"
	"policy-rag/internal/docstore"
	"policy-rag/internal/embedding"
	"policy-rag/internal/helper"
	"policy-rag/internal/normalizer"
	"policy-rag/internal/parser"
	"policy-rag/internal/pipeline"
	"policy-rag/internal/rag"
	"policy-rag/internal/splitter"
	"policy-rag/internal/vectordb"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to a document file to ingest")
	query := flag.String("query", "", "Similarity query over indexed segments")
	ask := flag.String("ask", "", "Question to answer with retrieved context")
	remove := flag.String("delete", "", "Source whose document should be removed")
	topK := flag.Int("topk", 0, "Maximum number of results")
	filter := flag.String("filter", "", "Metadata filter, key=value pairs separated by commas")
	archiveQuery := flag.String("archive-query", "", "Similarity query over the Postgres archive")
	backup := flag.Bool("backup", false, "Export the vector database collection to an encrypted file")
	restore := flag.Bool("restore", false, "Import the vector database collection from an encrypted file")
	resetIndex := flag.Bool("reset-index", false, "Drop and recreate the vector database collection")
	resetArchive := flag.Bool("reset-archive", false, "Drop and recreate the Postgres archive table")
	flag.Parse()

	cfg := loadConfig()
	ctx := context.Background()

	switch {
	case *filePath != "":
		ingestFile(ctx, cfg, *filePath)
	case *query != "":
		searchSegments(ctx, cfg, *query, *topK, parseFilter(*filter))
	case *ask != "":
		askQuestion(ctx, cfg, *ask, *topK, parseFilter(*filter))
	case *remove != "":
		removeDocument(ctx, cfg, *remove)
	case *archiveQuery != "":
		searchArchive(ctx, cfg, *archiveQuery, *topK)
	case *backup:
		backupIndex(ctx, cfg)
	case *restore:
		restoreIndex(ctx, cfg)
	case *resetIndex:
		resetIndexCollection(ctx, cfg)
	case *resetArchive:
		resetArchiveTable(ctx, cfg)
	default:
		log.Fatal().Msg("Please provide one of -file, -query, -ask, -delete, -archive-query, -backup, -restore, -reset-index or -reset-archive")
	}
}

func loadConfig() *config.Config {
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warn().Str("path", configFilePath).Msg("config file not found, using defaults")
			return config.Default()
		}
		log.Fatal().Err(err).Msg("Error loading config")
	}
	return cfg
}

// newPipeline wires the core from config: normalizer, splitter, document
// store, vector index and the optional Postgres archive.
func newPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, *vectordb.Manager) {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	embedFunc := embedding.ChromemFunc(embedder)

	if err := helper.CreateFolder(cfg.Store.VectorDBPath); err != nil {
		log.Fatal().Err(err).Msg("Error creating vector database folder")
	}
	index, err := vectordb.NewManager(cfg.Store.VectorDBPath, cfg.RAG.Collection, cfg.Store.InMemory, cfg.RAG.EncryptionKey, embedFunc)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector database manager")
	}

	store, err := docstore.NewStore(cfg.Store.DocumentPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating document store")
	}

	split, err := splitter.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid chunking configuration")
	}

	p := pipeline.New(normalizer.New(cfg.Normalizer), split, store, index)

	if cfg.Database.Enabled {
		dbInstance := connectArchive(cfg)
		if err := db.InitDB(ctx, dbInstance); err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		p = p.WithArchive(dbInstance, embedFunc)
	}

	return p, index
}

func ingestFile(ctx context.Context, cfg *config.Config, filePath string) {
	raw, err := parser.Extract(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}

	p, _ := newPipeline(ctx, cfg)
	report, err := p.Ingest(ctx, raw)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting document")
	}
	helper.PrettyPrint(report)
}

func searchSegments(ctx context.Context, cfg *config.Config, query string, topK int, filter map[string]string) {
	_, index := newPipeline(ctx, cfg)
	if topK <= 0 {
		topK = cfg.RAG.TopK
	}

	results, err := index.Search(ctx, query, topK, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching")
	}
	if len(results) == 0 {
		fmt.Println("No results found.")
		return
	}
	for _, res := range results {
		fmt.Printf("%s  distance=%.4f\n%s\n\n", res.ID, res.Distance, res.Text)
	}
}

func askQuestion(ctx context.Context, cfg *config.Config, question string, topK int, filter map[string]string) {
	_, index := newPipeline(ctx, cfg)

	r := rag.NewRAG(index, cfg)
	response, err := r.Query(ctx, question, topK, filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Error querying")
	}

	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Query)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", strings.Join(response.Sources, "\n"))

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", response.Content)
}

// searchArchive queries the Postgres archive directly, bypassing the
// embedded vector database. Useful when the archive outlives a local index.
func searchArchive(ctx context.Context, cfg *config.Config, query string, topK int) {
	if !cfg.Database.Enabled {
		log.Fatal().Msg("The Postgres archive is not enabled in the config")
	}
	if topK <= 0 {
		topK = cfg.RAG.TopK
	}

	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	vector, err := embedding.ChromemFunc(embedder)(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error embedding query")
	}

	dbInstance := connectArchive(cfg)
	records, err := db.SearchSegments(ctx, dbInstance, vector, topK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching archive")
	}
	if len(records) == 0 {
		fmt.Println("No results found.")
		return
	}
	for _, rec := range records {
		fmt.Printf("%s\n%s\n\n", rec.ID, rec.Content)
	}
}

func backupIndex(ctx context.Context, cfg *config.Config) {
	_, index := newPipeline(ctx, cfg)
	if err := index.Export(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error exporting vector database")
	}
	log.Info().Msg("Vector database exported")
}

func restoreIndex(ctx context.Context, cfg *config.Config) {
	_, index := newPipeline(ctx, cfg)
	if err := index.Import(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error importing vector database")
	}
	log.Info().Int("segments", index.Count()).Msg("Vector database imported")
}

func resetIndexCollection(ctx context.Context, cfg *config.Config) {
	_, index := newPipeline(ctx, cfg)
	if err := index.DeleteCollection(); err != nil {
		log.Fatal().Err(err).Msg("Error dropping collection")
	}
	if _, err := index.GetOrCreateCollection(cfg.RAG.Collection); err != nil {
		log.Fatal().Err(err).Msg("Error recreating collection")
	}
	log.Info().Str("collection", cfg.RAG.Collection).Msg("Collection reset")
}

func resetArchiveTable(ctx context.Context, cfg *config.Config) {
	if !cfg.Database.Enabled {
		log.Fatal().Msg("The Postgres archive is not enabled in the config")
	}
	dbInstance := connectArchive(cfg)
	if err := db.DropSegments(ctx, dbInstance); err != nil {
		log.Fatal().Err(err).Msg("Error dropping archive table")
	}
	if err := db.InitDB(ctx, dbInstance); err != nil {
		log.Fatal().Err(err).Msg("Error recreating archive table")
	}
	log.Info().Msg("Archive table reset")
}

func connectArchive(cfg *config.Config) *bun.DB {
	dbClient, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	return db.NewDB(dbClient, cfg.Database.Debug)
}

func removeDocument(ctx context.Context, cfg *config.Config, source string) {
	p, _ := newPipeline(ctx, cfg)
	if err := p.Remove(ctx, source); err != nil {
		log.Fatal().Err(err).Msg("Error removing document")
	}
}

func parseFilter(s string) map[string]string {
	if s == "" {
		return nil
	}
	filter := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			log.Fatal().Str("pair", pair).Msg("Invalid filter, expected key=value")
		}
		filter[kv[0]] = kv[1]
	}
	return filter
}

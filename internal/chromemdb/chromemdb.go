package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations for one collection
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	collectionName string
	embeddingFunc  chromem.EmbeddingFunc
	dbPath         string
	compress       bool
	encryptionKey  string
	filePath       string
}

type Options struct {
	DBPath         string
	CollectionName string
	InMemory       bool
	// snapshot settings; SnapshotPath defaults to <DBPath>/<collection>.chromem
	SnapshotPath  string
	Compress      bool
	EncryptionKey string
}

// NewVectorDBManager opens (or creates) the database and the collection.
// embeddingFunc is only used by chromem when a document arrives without an embedding.
func NewVectorDBManager(opts Options, embeddingFunc chromem.EmbeddingFunc) (*VectorDBManager, error) {
	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		// Compress only applies to snapshots; the live store stays uncompressed
		db, err = chromem.NewPersistentDB(opts.DBPath, false)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	filePath := opts.SnapshotPath
	if filePath == "" {
		filePath = filepath.Join(opts.DBPath, opts.CollectionName+".chromem")
	}
	// chromem decides on gzip from the file suffix when importing
	if opts.Compress && !strings.HasSuffix(filePath, ".gz") {
		filePath += ".gz"
	}

	m := &VectorDBManager{
		db:             db,
		collectionName: opts.CollectionName,
		embeddingFunc:  embeddingFunc,
		dbPath:         opts.DBPath,
		compress:       opts.Compress,
		encryptionKey:  opts.EncryptionKey,
		filePath:       filePath,
	}
	if _, err := m.GetOrCreateCollection(); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection() (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, m.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

// Upsert adds entries; an existing document with the same ID is replaced.
func (m *VectorDBManager) Upsert(ctx context.Context, entries []models.Entry) error {
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  e.Metadata.ToMap(),
			Embedding: e.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// Query returns up to topK nearest entries, most similar first.
func (m *VectorDBManager) Query(ctx context.Context, embedding []float32, topK int) ([]models.RetrievedChunk, error) {
	count := m.collection.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       min(topK, count),
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]models.RetrievedChunk, len(results))
	for i, r := range results {
		chunks[i] = models.RetrievedChunk{
			ID:         r.ID,
			Content:    r.Content,
			Metadata:   models.MetadataFromMap(r.Metadata),
			Similarity: r.Similarity,
		}
	}
	return chunks, nil
}

// SearchWithQueryOptions performs a similarity search
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, errors.New("either query or embedding must be provided")
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Reset drops the collection and recreates it empty.
func (m *VectorDBManager) Reset(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.GetOrCreateCollection()
	return err
}

// Export writes the collection to the snapshot file
func (m *VectorDBManager) Export(ctx context.Context) error {
	log.Debug().
		Str("collection", m.collectionName).
		Str("file", m.filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Restore loads the collection from the snapshot file, replacing documents with the same IDs.
func (m *VectorDBManager) Restore(ctx context.Context) error {
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to import database: %w", err)
	}
	// the import swaps in a new collection object
	_, err := m.GetOrCreateCollection()
	return err
}

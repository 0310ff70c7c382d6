// Package vectorstore embeds chunks and queries them through a pluggable vector backend.
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/config"
	"document-qa/internal/helper"
	"document-qa/internal/models"
)

const defaultTopK = 5

// ErrSnapshotUnsupported is returned by Export/Restore when the backend keeps no snapshot file.
var ErrSnapshotUnsupported = errors.New("backend does not support snapshots")

// Backend is a persisted vector collection.
type Backend interface {
	Upsert(ctx context.Context, entries []models.Entry) error
	Query(ctx context.Context, embedding []float32, topK int) ([]models.RetrievedChunk, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) error
}

// Snapshotter is implemented by backends that can be exported to a single file.
type Snapshotter interface {
	Export(ctx context.Context) error
	Restore(ctx context.Context) error
}

type Manager struct {
	backend  Backend
	embedder embeddings.Embedder
	idScheme string
}

func NewManager(backend Backend, embedder embeddings.Embedder, idScheme string) *Manager {
	if idScheme == "" {
		idScheme = config.IDSchemeSequential
	}
	return &Manager{backend: backend, embedder: embedder, idScheme: idScheme}
}

// Add embeds chunks and upserts them with their metadata. Empty input is a no-op.
func (m *Manager) Add(ctx context.Context, chunks []string, metadata []models.ChunkMetadata) error {
	if len(chunks) == 0 {
		return nil
	}
	if metadata != nil && len(metadata) != len(chunks) {
		return fmt.Errorf("got %d metadata records for %d chunks", len(metadata), len(chunks))
	}

	vectors, err := m.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	ids, err := m.generateIDs(len(chunks))
	if err != nil {
		return err
	}

	entries := make([]models.Entry, len(chunks))
	for i, chunk := range chunks {
		entries[i] = models.Entry{
			ID:        ids[i],
			Content:   chunk,
			Embedding: vectors[i],
		}
		if metadata != nil {
			entries[i].Metadata = metadata[i]
		}
	}
	if err := m.backend.Upsert(ctx, entries); err != nil {
		return err
	}

	log.Info().Msgf("Added %d documents to vector store", len(entries))
	return nil
}

// Search embeds query and returns the topK nearest chunks. An empty collection yields an
// empty result, not an error.
func (m *Manager) Search(ctx context.Context, query string, topK int) (models.SearchResult, error) {
	if topK <= 0 {
		topK = defaultTopK
	}
	count, err := m.backend.Count(ctx)
	if err != nil {
		return models.SearchResult{}, err
	}
	if count == 0 {
		return models.SearchResult{}, nil
	}

	vector, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("failed to embed query: %w", err)
	}
	chunks, err := m.backend.Query(ctx, vector, min(topK, count))
	if err != nil {
		return models.SearchResult{}, err
	}
	return models.SearchResult{Chunks: chunks}, nil
}

// Stats returns the number of stored entries.
func (m *Manager) Stats(ctx context.Context) (int, error) {
	return m.backend.Count(ctx)
}

func (m *Manager) Reset(ctx context.Context) error {
	return m.backend.Reset(ctx)
}

func (m *Manager) Export(ctx context.Context) error {
	s, ok := m.backend.(Snapshotter)
	if !ok {
		return ErrSnapshotUnsupported
	}
	return s.Export(ctx)
}

func (m *Manager) Restore(ctx context.Context) error {
	s, ok := m.backend.(Snapshotter)
	if !ok {
		return ErrSnapshotUnsupported
	}
	return s.Restore(ctx)
}

// generateIDs numbers chunks within this call. The run scheme prefixes a fresh UUID so
// repeated ingestions append instead of overwriting doc_0..doc_n.
func (m *Manager) generateIDs(n int) ([]string, error) {
	prefix := models.IDPrefix
	if m.idScheme == config.IDSchemeRun {
		runID, err := helper.GenerateUUID()
		if err != nil {
			return nil, err
		}
		prefix = runID + "_" + models.IDPrefix
	}
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return ids, nil
}

package vectorstore

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"

	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
)

// Open builds the configured backend and wraps it in a Manager. The returned close
// function releases backend resources.
func Open(ctx context.Context, cfg *config.VectorStoreConfig, secrets *config.Secrets, embedder embeddings.Embedder) (*Manager, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.BackendPGVector:
		store, err := db.Open(ctx, &cfg.PGVector, secrets.PGPassword, cfg.CollectionName)
		if err != nil {
			return nil, noop, err
		}
		return NewManager(store, embedder, cfg.IDScheme), store.Close, nil

	case config.BackendChromem, "":
		if err := helper.CreateFolder(cfg.PersistDirectory); err != nil {
			return nil, noop, err
		}
		store, err := chromemdb.NewVectorDBManager(chromemdb.Options{
			DBPath:         cfg.PersistDirectory,
			CollectionName: cfg.CollectionName,
			SnapshotPath:   cfg.Snapshot.Path,
			Compress:       cfg.Snapshot.Compress,
			EncryptionKey:  secrets.SnapshotKey,
		}, embedding.EmbeddingFunc(embedder))
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create vector database manager: %w", err)
		}
		return NewManager(store, embedder, cfg.IDScheme), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown vector store backend: %s", cfg.Backend)
	}
}

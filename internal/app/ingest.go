// Package app drives the two run modes: document ingestion and the interactive question loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"document-qa/internal/models"
)

type Discoverer interface {
	Discover() ([]string, error)
	Validate(path string) bool
}

type DocumentParser interface {
	ParseDocument(filePath string) []string
}

type Store interface {
	Add(ctx context.Context, chunks []string, metadata []models.ChunkMetadata) error
	Reset(ctx context.Context) error
	Export(ctx context.Context) error
}

type IngestOptions struct {
	// ResetCollection clears the collection before the new chunks are added.
	ResetCollection bool
	// ExportSnapshot writes the collection snapshot after a successful add.
	ExportSnapshot bool
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Files  int
	Parsed int
	Chunks int
}

type Ingestor struct {
	loader Discoverer
	parser DocumentParser
	store  Store
	opts   IngestOptions
}

func NewIngestor(loader Discoverer, parser DocumentParser, store Store, opts IngestOptions) *Ingestor {
	return &Ingestor{loader: loader, parser: parser, store: store, opts: opts}
}

// Run discovers, parses and stores every supported document in a single bulk add.
// Finding nothing to store is logged, not returned as an error.
func (i *Ingestor) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	files, err := i.loader.Discover()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Msg("Input directory does not exist")
			return sum, nil
		}
		return sum, err
	}
	sum.Files = len(files)
	if len(files) == 0 {
		log.Warn().Msg("No supported files found")
		return sum, nil
	}

	var chunks []models.Chunk
	for _, path := range files {
		if !i.loader.Validate(path) {
			log.Warn().Str("file", path).Msg("Skipping invalid file")
			continue
		}
		log.Info().Msgf("Processing %s", filepath.Base(path))
		fileChunks := chunksFor(path, i.parser.ParseDocument(path))
		if len(fileChunks) > 0 {
			sum.Parsed++
		}
		chunks = append(chunks, fileChunks...)
	}

	if len(chunks) == 0 {
		log.Warn().Msg("No chunks were generated from the documents")
		return sum, nil
	}

	if i.opts.ResetCollection {
		if err := i.store.Reset(ctx); err != nil {
			return sum, fmt.Errorf("failed to reset collection: %w", err)
		}
	}

	texts := make([]string, len(chunks))
	metadata := make([]models.ChunkMetadata, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Content
		metadata[n] = c.Metadata
	}
	if err := i.store.Add(ctx, texts, metadata); err != nil {
		return sum, fmt.Errorf("failed to store chunks: %w", err)
	}
	sum.Chunks = len(chunks)
	log.Info().Msgf("Processed %d files into %d chunks", sum.Files, sum.Chunks)

	if i.opts.ExportSnapshot {
		if err := i.store.Export(ctx); err != nil {
			return sum, fmt.Errorf("failed to export snapshot: %w", err)
		}
		log.Info().Msg("Exported collection snapshot")
	}
	return sum, nil
}

// chunksFor attaches per-file metadata to the parsed texts of path.
func chunksFor(path string, texts []string) []models.Chunk {
	chunks := make([]models.Chunk, len(texts))
	for n, text := range texts {
		chunks[n] = models.Chunk{
			Content: text,
			Metadata: models.ChunkMetadata{
				Source:      filepath.Base(path),
				FilePath:    path,
				TotalChunks: len(texts),
				ChunkIndex:  n,
			},
		}
	}
	return chunks
}

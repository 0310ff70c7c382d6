package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"document-qa/internal/config"
)

// NewEmbedder builds the embedder named by vector_store.embedding_provider.
// The same instance must serve ingestion and search.
func NewEmbedder(cfg *config.VectorStoreConfig, apiKey string) (*embeddings.EmbedderImpl, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOllama, "":
		return NewOllamaEmbedder(cfg)
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(cfg, apiKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.EmbeddingProvider)
	}
}

// new ollama embedder
func NewOllamaEmbedder(cfg *config.VectorStoreConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("base_url", cfg.EmbeddingBaseURL).Str("embedding_model", cfg.EmbeddingModel).Msg("Creating ollama embedder")

	opts := []ollama.Option{ollama.WithModel(cfg.EmbeddingModel)}
	if cfg.EmbeddingBaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.EmbeddingBaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
	}
	return newEmbedder(llm, cfg.EmbeddingBatchSize)
}

// NewOpenAIEmbedder talks to the OpenAI embeddings API or a compatible gateway.
func NewOpenAIEmbedder(cfg *config.VectorStoreConfig, apiKey string) (*embeddings.EmbedderImpl, error) {
	log.Debug().Str("base_url", cfg.EmbeddingBaseURL).Str("embedding_model", cfg.EmbeddingModel).Msg("Creating openai embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(apiKey, "Bearer ")),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.EmbeddingBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.EmbeddingBaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize openai client: %w", err)
	}
	return newEmbedder(llm, cfg.EmbeddingBatchSize)
}

func newEmbedder(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbeddingFunc adapts an embedder to the single-text signature vector databases expect.
func EmbeddingFunc(e embeddings.Embedder) func(ctx context.Context, text string) ([]float32, error) {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.EmbedQuery(ctx, text)
	}
}

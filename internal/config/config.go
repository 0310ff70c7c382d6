package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingKey is returned when a required configuration key is absent.
var ErrMissingKey = errors.New("missing required config key")

type Config struct {
	Data        DataConfig        `yaml:"data"`
	Parser      ParserConfig      `yaml:"parser"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	RAG         RAGConfig         `yaml:"rag"`
	Log         LogConfig         `yaml:"log"`
}

type DataConfig struct {
	InputDirectory   string   `yaml:"input_directory"`
	SupportedFormats []string `yaml:"supported_formats"`
}

type ParserConfig struct {
	MaxFileSizeMB float64 `yaml:"max_file_size_mb"`
	ChunkSize     int     `yaml:"chunk_size"`
	ChunkOverlap  int     `yaml:"chunk_overlap"`
}

// MaxFileSizeBytes converts the configured megabyte limit to bytes.
func (p ParserConfig) MaxFileSizeBytes() int64 {
	return int64(p.MaxFileSizeMB * 1024 * 1024)
}

type VectorStoreConfig struct {
	Backend            string         `yaml:"backend"`
	EmbeddingProvider  string         `yaml:"embedding_provider"`
	EmbeddingModel     string         `yaml:"embedding_model"`
	EmbeddingBaseURL   string         `yaml:"embedding_base_url"`
	EmbeddingBatchSize int            `yaml:"embedding_batch_size"`
	PersistDirectory   string         `yaml:"persist_directory"`
	CollectionName     string         `yaml:"collection_name"`
	IDScheme           string         `yaml:"id_scheme"`
	ResetCollection    bool           `yaml:"reset_collection"`
	Snapshot           SnapshotConfig `yaml:"snapshot"`
	PGVector           PGVectorConfig `yaml:"pgvector"`
}

// SnapshotConfig points at an exported copy of the chromem collection.
type SnapshotConfig struct {
	Path     string `yaml:"path"`
	Compress bool   `yaml:"compress"`
}

type PGVectorConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
	Debug  bool   `yaml:"debug"`
}

type RAGConfig struct {
	ModelName   string  `yaml:"model_name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	BaseURL     string  `yaml:"base_url"`
	TopK        int     `yaml:"top_k"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Secrets are read from the process environment, never from the YAML file.
type Secrets struct {
	OpenAIAPIKey string `env:"OPENAI_API_KEY,notEmpty"`
	SnapshotKey  string `env:"RAG_SNAPSHOT_KEY"`
	PGPassword   string `env:"RAG_PG_PASSWORD"`
}

const (
	BackendChromem  = "chromem"
	BackendPGVector = "pgvector"

	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	IDSchemeSequential = "sequential"
	IDSchemeRun        = "run"

	defaultTopK      = 3
	defaultLogLevel  = "info"
	defaultBatchSize = 32
)

var requiredKeys = []string{
	"data.input_directory",
	"data.supported_formats",
	"parser.max_file_size_mb",
	"parser.chunk_size",
	"parser.chunk_overlap",
	"vector_store.embedding_model",
	"vector_store.persist_directory",
	"vector_store.collection_name",
	"rag.model_name",
	"rag.temperature",
	"rag.max_tokens",
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML document, checks required keys and fills defaults.
func Parse(data []byte) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for _, key := range requiredKeys {
		if !hasKey(raw, key) {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Data.SupportedFormats) == 0 {
		return errors.New("data.supported_formats must not be empty")
	}
	if c.Parser.MaxFileSizeMB <= 0 {
		return errors.New("parser.max_file_size_mb must be positive")
	}
	if c.Parser.ChunkSize <= 0 {
		return errors.New("parser.chunk_size must be positive")
	}
	if c.Parser.ChunkOverlap < 0 || c.Parser.ChunkOverlap >= c.Parser.ChunkSize {
		return fmt.Errorf("parser.chunk_overlap must be in [0, %d)", c.Parser.ChunkSize)
	}
	if c.RAG.MaxTokens <= 0 {
		return errors.New("rag.max_tokens must be positive")
	}
	switch c.VectorStore.Backend {
	case BackendChromem:
	case BackendPGVector:
		if c.VectorStore.PGVector.DSN == "" {
			return errors.New("vector_store.pgvector.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown vector_store.backend: %s", c.VectorStore.Backend)
	}
	switch c.VectorStore.EmbeddingProvider {
	case ProviderOllama, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown vector_store.embedding_provider: %s", c.VectorStore.EmbeddingProvider)
	}
	switch c.VectorStore.IDScheme {
	case IDSchemeSequential, IDSchemeRun:
	default:
		return fmt.Errorf("unknown vector_store.id_scheme: %s", c.VectorStore.IDScheme)
	}
	return nil
}

// LoadSecrets reads .env (if present) and the process environment.
func LoadSecrets() (*Secrets, error) {
	_ = godotenv.Load()

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("missing required environment variable: %w", err)
	}
	return &s, nil
}

func applyDefaults(cfg *Config) {
	if cfg.VectorStore.Backend == "" {
		cfg.VectorStore.Backend = BackendChromem
	}
	if cfg.VectorStore.EmbeddingProvider == "" {
		cfg.VectorStore.EmbeddingProvider = ProviderOllama
	}
	if cfg.VectorStore.EmbeddingBatchSize == 0 {
		cfg.VectorStore.EmbeddingBatchSize = defaultBatchSize
	}
	if cfg.VectorStore.IDScheme == "" {
		cfg.VectorStore.IDScheme = IDSchemeSequential
	}
	if cfg.RAG.TopK == 0 {
		cfg.RAG.TopK = defaultTopK
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
}

func hasKey(raw map[string]any, dotted string) bool {
	var cur any = raw
	for _, part := range strings.Split(dotted, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return false
		}
		v, ok := m[part]
		if !ok || v == nil {
			return false
		}
		cur = v
	}
	return true
}

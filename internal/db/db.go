package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

const (
	DriverPGDriver = "pgdriver"
	DriverPQ       = "pq"
)

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	Collection    string            `bun:"collection,pk"`
	ID            string            `bun:"id,pk"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,notnull,type:vector"`
	Distance      float64           `bun:"distance,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens a pool with bun's pgdriver (default) or lib/pq.
func ConnectDB(cfg *config.PGVectorConfig, password string) (*sql.DB, error) {
	switch cfg.Driver {
	case DriverPGDriver, "":
		opts := []pgdriver.Option{pgdriver.WithDSN(cfg.DSN)}
		if password != "" {
			opts = append(opts, pgdriver.WithPassword(password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	case DriverPQ:
		return sql.Open("postgres", dsnWithPassword(cfg.DSN, password))
	default:
		return nil, fmt.Errorf("unknown postgres driver: %s", cfg.Driver)
	}
}

// dsnWithPassword sets password on a URL or key=value DSN. An empty password leaves dsn as is.
func dsnWithPassword(dsn, password string) string {
	if password == "" {
		return dsn
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String()
	}
	quoted := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return strings.TrimSpace(dsn) + " password='" + quoted + "'"
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	_, err := db.NewCreateTable().Model((*Document)(nil)).IfNotExists().Exec(ctx)
	return err
}

// drop table documents
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*Document)(nil)).IfExists().Exec(ctx)
	return err
}

// Store keeps one collection inside the shared documents table.
type Store struct {
	db         *bun.DB
	collection string
}

func NewStore(db *bun.DB, collection string) *Store {
	return &Store{db: db, collection: collection}
}

// Open connects, makes sure the schema exists and returns the store.
func Open(ctx context.Context, cfg *config.PGVectorConfig, password, collection string) (*Store, error) {
	sqldb, err := ConnectDB(cfg, password)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db := NewDB(sqldb, cfg.Debug)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := InitDB(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return NewStore(db, collection), nil
}

func (s *Store) Upsert(ctx context.Context, entries []models.Entry) error {
	docs := make([]Document, len(entries))
	for i, e := range entries {
		docs[i] = Document{
			Collection: s.collection,
			ID:         e.ID,
			Content:    e.Content,
			Metadata:   e.Metadata.ToMap(),
			Embedding:  pgvector.NewVector(e.Embedding),
		}
	}
	_, err := s.db.NewInsert().
		Model(&docs).
		On("CONFLICT (collection, id) DO UPDATE").
		Set("content = EXCLUDED.content").
		Set("metadata = EXCLUDED.metadata").
		Set("embedding = EXCLUDED.embedding").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to store documents: %w", err)
	}
	return nil
}

// Query orders by cosine distance; similarity is reported as 1 - distance.
func (s *Store) Query(ctx context.Context, embedding []float32, topK int) ([]models.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(embedding)

	var docs []Document
	err := s.db.NewSelect().
		Model(&docs).
		Column("id", "content", "metadata").
		ColumnExpr("d.embedding <=> ? AS distance", vec).
		Where("d.collection = ?", s.collection).
		OrderExpr("d.embedding <=> ?", vec).
		Limit(topK).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}

	chunks := make([]models.RetrievedChunk, len(docs))
	for i, d := range docs {
		chunks[i] = models.RetrievedChunk{
			ID:         d.ID,
			Content:    d.Content,
			Metadata:   models.MetadataFromMap(d.Metadata),
			Similarity: float32(1 - d.Distance),
		}
	}
	return chunks, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().
		Model((*Document)(nil)).
		Where("d.collection = ?", s.collection).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Reset removes every row of the collection. When no other collection shares the table,
// the table is dropped and created again.
func (s *Store) Reset(ctx context.Context) error {
	others, err := s.db.NewSelect().
		Model((*Document)(nil)).
		Where("d.collection != ?", s.collection).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count documents: %w", err)
	}
	if others == 0 {
		if err := DropDocuments(ctx, s.db); err != nil {
			return fmt.Errorf("failed to drop documents table: %w", err)
		}
		if err := InitDB(ctx, s.db); err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		return nil
	}

	_, err = s.db.NewDelete().
		Model((*Document)(nil)).
		Where("d.collection = ?", s.collection).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

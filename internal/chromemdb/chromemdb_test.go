package chromemdb

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"

	"document-qa/internal/models"
)

func noEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding func should not be called")
}

func newTestManager(t *testing.T, opts Options) *VectorDBManager {
	t.Helper()
	if opts.CollectionName == "" {
		opts.CollectionName = "test"
	}
	m, err := NewVectorDBManager(opts, noEmbedding)
	if err != nil {
		t.Fatalf("NewVectorDBManager: %v", err)
	}
	return m
}

func testEntries() []models.Entry {
	return []models.Entry{
		{ID: "doc_0", Content: "about cats", Embedding: []float32{1, 0, 0},
			Metadata: models.ChunkMetadata{Source: "cats.txt", FilePath: "/d/cats.txt", TotalChunks: 1, ChunkIndex: 0}},
		{ID: "doc_1", Content: "about dogs", Embedding: []float32{0, 1, 0},
			Metadata: models.ChunkMetadata{Source: "dogs.txt", FilePath: "/d/dogs.txt", TotalChunks: 2, ChunkIndex: 0}},
		{ID: "doc_2", Content: "more dogs", Embedding: []float32{0, 0.9, 0.1},
			Metadata: models.ChunkMetadata{Source: "dogs.txt", FilePath: "/d/dogs.txt", TotalChunks: 2, ChunkIndex: 1}},
	}
}

func TestQuery_emptyCollection(t *testing.T) {
	m := newTestManager(t, Options{InMemory: true})
	got, err := m.Query(context.Background(), []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}

func TestUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{InMemory: true})
	if err := m.Upsert(ctx, testEntries()); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if n, _ := m.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}

	got, err := m.Query(ctx, []float32{0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected topK clamped to 3, got %d", len(got))
	}
	if got[0].ID != "doc_1" || got[1].ID != "doc_2" || got[2].ID != "doc_0" {
		t.Errorf("order = %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	if got[0].Similarity < got[1].Similarity {
		t.Errorf("similarities not descending: %v %v", got[0].Similarity, got[1].Similarity)
	}
	want := models.ChunkMetadata{Source: "dogs.txt", FilePath: "/d/dogs.txt", TotalChunks: 2, ChunkIndex: 0}
	if got[0].Metadata != want {
		t.Errorf("metadata = %+v", got[0].Metadata)
	}
}

func TestUpsert_replacesSameID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{InMemory: true})
	if err := m.Upsert(ctx, testEntries()); err != nil {
		t.Fatal(err)
	}
	replacement := []models.Entry{{ID: "doc_0", Content: "replaced", Embedding: []float32{1, 0, 0}}}
	if err := m.Upsert(ctx, replacement); err != nil {
		t.Fatal(err)
	}
	if n, _ := m.Count(ctx); n != 3 {
		t.Errorf("Count = %d, want 3", n)
	}
	got, _ := m.Query(ctx, []float32{1, 0, 0}, 1)
	if len(got) != 1 || got[0].Content != "replaced" {
		t.Errorf("got %+v", got)
	}
}

func TestSearchWithQueryOptions_requiresQuery(t *testing.T) {
	m := newTestManager(t, Options{InMemory: true})
	if _, err := m.SearchWithQueryOptions(context.Background(), chromem.QueryOptions{NResults: 1}); err == nil {
		t.Error("expected error without query")
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Options{InMemory: true})
	if err := m.Upsert(ctx, testEntries()); err != nil {
		t.Fatal(err)
	}
	if err := m.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n, _ := m.Count(ctx); n != 0 {
		t.Errorf("Count after reset = %d", n)
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newTestManager(t, Options{DBPath: dir})
	if err := m.Upsert(ctx, testEntries()); err != nil {
		t.Fatal(err)
	}

	reopened := newTestManager(t, Options{DBPath: dir})
	if n, _ := reopened.Count(ctx); n != 3 {
		t.Errorf("Count after reopen = %d, want 3", n)
	}
}

func TestExportRestore(t *testing.T) {
	ctx := context.Background()
	snapshot := filepath.Join(t.TempDir(), "snap.gob.gz")
	key := "0123456789abcdef0123456789abcdef"

	src := newTestManager(t, Options{InMemory: true, SnapshotPath: snapshot, Compress: true, EncryptionKey: key})
	if err := src.Upsert(ctx, testEntries()); err != nil {
		t.Fatal(err)
	}
	if err := src.Export(ctx); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := newTestManager(t, Options{InMemory: true, SnapshotPath: snapshot, Compress: true, EncryptionKey: key})
	if err := dst.Restore(ctx); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if n, _ := dst.Count(ctx); n != 3 {
		t.Errorf("Count after restore = %d, want 3", n)
	}
	got, err := dst.Query(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ID != "doc_0" {
		t.Errorf("got %+v", got)
	}
}

func TestPersistence_snapshotCompressionLeavesStoreUncompressed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	m := newTestManager(t, Options{DBPath: dir, Compress: true, SnapshotPath: filepath.Join(t.TempDir(), "snap.gob")})
	if err := m.Upsert(ctx, testEntries()); err != nil {
		t.Fatal(err)
	}

	var stored int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if strings.HasSuffix(path, ".gz") {
			t.Errorf("store file %s is compressed", path)
		}
		stored++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if stored == 0 {
		t.Error("nothing persisted")
	}

	reopened := newTestManager(t, Options{DBPath: dir})
	if n, _ := reopened.Count(ctx); n != 3 {
		t.Errorf("Count after reopen without compression = %d, want 3", n)
	}
}

package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"document-qa/internal/config"
	"document-qa/internal/loader"
	"document-qa/internal/models"
	"document-qa/internal/parser"
)

type fakeStore struct {
	chunks   []string
	metadata []models.ChunkMetadata
	adds     int
	resets   int
	exports  int
	addErr   error
}

func (s *fakeStore) Add(ctx context.Context, chunks []string, metadata []models.ChunkMetadata) error {
	s.adds++
	s.chunks = append(s.chunks, chunks...)
	s.metadata = append(s.metadata, metadata...)
	return s.addErr
}

func (s *fakeStore) Reset(ctx context.Context) error {
	s.resets++
	return nil
}

func (s *fakeStore) Export(ctx context.Context) error {
	s.exports++
	return nil
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Data:   config.DataConfig{InputDirectory: dir, SupportedFormats: []string{".txt", ".md"}},
		Parser: config.ParserConfig{MaxFileSizeMB: 1, ChunkSize: 50, ChunkOverlap: 10},
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestIngestor(cfg *config.Config, store Store, opts IngestOptions) *Ingestor {
	return NewIngestor(loader.NewLoader(cfg), parser.NewParser(&cfg.Parser), store, opts)
}

func TestIngestor_Run(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "short.txt"), "A short note.")
	writeFile(t, filepath.Join(dir, "nested", "long.txt"), strings.Repeat("word ", 30))
	writeFile(t, filepath.Join(dir, "ignored.csv"), "a,b,c")

	store := &fakeStore{}
	sum, err := newTestIngestor(testConfig(dir), store, IngestOptions{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Files != 2 || sum.Parsed != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if store.adds != 1 {
		t.Errorf("Add called %d times, want one bulk add", store.adds)
	}
	if sum.Chunks != len(store.chunks) || len(store.chunks) < 3 {
		t.Fatalf("chunks = %d, summary = %+v", len(store.chunks), sum)
	}
	if len(store.metadata) != len(store.chunks) {
		t.Fatalf("metadata = %d for %d chunks", len(store.metadata), len(store.chunks))
	}

	perFile := map[string][]models.ChunkMetadata{}
	for _, m := range store.metadata {
		perFile[m.Source] = append(perFile[m.Source], m)
	}
	if got := perFile["short.txt"]; len(got) != 1 || got[0].TotalChunks != 1 || got[0].ChunkIndex != 0 {
		t.Errorf("short.txt metadata = %+v", got)
	}
	long := perFile["long.txt"]
	if len(long) < 2 {
		t.Fatalf("long.txt metadata = %+v", long)
	}
	for i, m := range long {
		if m.ChunkIndex != i || m.TotalChunks != len(long) || m.FilePath != filepath.Join(dir, "nested", "long.txt") {
			t.Errorf("long.txt chunk %d metadata = %+v", i, m)
		}
	}
	if store.resets != 0 || store.exports != 0 {
		t.Errorf("unexpected reset/export: %+v", store)
	}
}

func TestIngestor_Run_resetAndExport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "# Title\n\nBody text.")

	store := &fakeStore{}
	_, err := newTestIngestor(testConfig(dir), store, IngestOptions{ResetCollection: true, ExportSnapshot: true}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.resets != 1 || store.adds != 1 || store.exports != 1 {
		t.Errorf("resets=%d adds=%d exports=%d", store.resets, store.adds, store.exports)
	}
}

func TestIngestor_Run_nothingToStore(t *testing.T) {
	tests := []struct {
		name  string
		setup func(dir string)
		input func(dir string) string
	}{
		{"empty directory", func(string) {}, func(dir string) string { return dir }},
		{"missing directory", func(string) {}, func(dir string) string { return filepath.Join(dir, "absent") }},
		{"only blank documents", func(dir string) { writeFile(t, filepath.Join(dir, "blank.txt"), "  \n\n ") }, func(dir string) string { return dir }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			tt.setup(dir)
			store := &fakeStore{}
			sum, err := newTestIngestor(testConfig(tt.input(dir)), store, IngestOptions{ResetCollection: true}).Run(context.Background())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if store.adds != 0 || store.resets != 0 || sum.Chunks != 0 {
				t.Errorf("store touched: %+v, summary %+v", store, sum)
			}
		})
	}
}

type staticLoader struct {
	files []string
	valid map[string]bool
}

func (l staticLoader) Discover() ([]string, error) { return l.files, nil }
func (l staticLoader) Validate(path string) bool   { return l.valid[path] }

type mapParser map[string][]string

func (p mapParser) ParseDocument(path string) []string { return p[path] }

func TestIngestor_Run_skipsInvalidFiles(t *testing.T) {
	ld := staticLoader{files: []string{"/d/ok.txt", "/d/gone.txt"}, valid: map[string]bool{"/d/ok.txt": true}}
	ps := mapParser{"/d/ok.txt": {"one", "two"}, "/d/gone.txt": {"never"}}
	store := &fakeStore{}

	sum, err := NewIngestor(ld, ps, store, IngestOptions{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Files != 2 || sum.Parsed != 1 || sum.Chunks != 2 {
		t.Errorf("summary = %+v", sum)
	}
	if strings.Join(store.chunks, ",") != "one,two" {
		t.Errorf("chunks = %v", store.chunks)
	}
}

func TestIngestor_Run_addError(t *testing.T) {
	ld := staticLoader{files: []string{"/d/ok.txt"}, valid: map[string]bool{"/d/ok.txt": true}}
	store := &fakeStore{addErr: errors.New("disk full")}
	if _, err := NewIngestor(ld, mapParser{"/d/ok.txt": {"x"}}, store, IngestOptions{ExportSnapshot: true}).Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if store.exports != 0 {
		t.Error("exported after failed add")
	}
}

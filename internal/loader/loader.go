// Package loader finds the documents to ingest.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
)

type Loader struct {
	inputDir     string
	formats      map[string]struct{}
	maxSizeBytes int64
}

func NewLoader(cfg *config.Config) *Loader {
	formats := make(map[string]struct{}, len(cfg.Data.SupportedFormats))
	for _, f := range cfg.Data.SupportedFormats {
		formats[normalizeExt(f)] = struct{}{}
	}
	return &Loader{
		inputDir:     cfg.Data.InputDirectory,
		formats:      formats,
		maxSizeBytes: cfg.Parser.MaxFileSizeBytes(),
	}
}

// Discover walks the input directory and returns every supported file within the size limit.
// The order follows filepath.WalkDir and is not part of the contract.
func (l *Loader) Discover() ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == l.inputDir {
				return err
			}
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !l.supported(path) {
			return nil
		}
		// os.Stat follows symlinks so linked documents count like regular ones
		info, err := os.Stat(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable file")
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > l.maxSizeBytes {
			log.Debug().Str("file", path).Int64("size", info.Size()).Msg("Skipping oversized file")
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", l.inputDir, err)
	}

	log.Info().Msgf("Found %d supported files", len(files))
	return files, nil
}

// Validate reports whether path exists, has a supported extension and fits the size limit.
func (l *Loader) Validate(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if !l.supported(path) {
		return false
	}
	return info.Size() <= l.maxSizeBytes
}

func (l *Loader) supported(path string) bool {
	_, ok := l.formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

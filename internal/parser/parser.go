package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
)

// Result is what a format backend produces. It is one of Text, KeyedText or Fragments
// and never leaves this package.
type Result interface {
	result()
}

// Text is a single block of extracted text.
type Text struct {
	Text string
}

// KeyedText carries its text under the "text" key next to other fields (title, sheet...).
type KeyedText map[string]string

// Fragments is an ordered sequence of sub-results, e.g. pages or slides.
type Fragments []Result

func (Text) result()      {}
func (KeyedText) result() {}
func (Fragments) result() {}

const textKey = "text"

// Backend turns one file into a Result.
type Backend func(filePath string) (Result, error)

type Parser struct {
	splitter *Splitter
	backends map[string]Backend
	fallback Backend
}

type Option func(*Parser)

// WithBackend registers b for ext (".pdf"), replacing any built-in backend.
func WithBackend(ext string, b Backend) Option {
	return func(p *Parser) {
		p.backends[strings.ToLower(ext)] = b
	}
}

func NewParser(cfg *config.ParserConfig, opts ...Option) *Parser {
	p := &Parser{
		splitter: NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		backends: defaultBackends(),
		fallback: parsePlain,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseDocument extracts the text of filePath and splits it into chunks.
// Failures are logged and produce no chunks so one bad file never stops an ingestion run.
func (p *Parser) ParseDocument(filePath string) (chunks []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("file", filePath).Interface("panic", r).Msg("Error parsing document")
			chunks = nil
		}
	}()

	result, err := p.parse(filePath)
	if err != nil {
		log.Error().Err(err).Msgf("Error parsing %s", filePath)
		return nil
	}

	chunks = p.splitter.Split(extractText(result))
	log.Info().Msgf("Parsed %s into %d chunks", filepath.Base(filePath), len(chunks))
	return chunks
}

func (p *Parser) parse(filePath string) (Result, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	backend, ok := p.backends[ext]
	if !ok {
		backend = p.fallback
	}
	result, err := backend(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ext, err)
	}
	return result, nil
}

// extractText concatenates every text fragment of r in encounter order.
func extractText(r Result) string {
	var parts []string
	collectText(r, &parts)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func collectText(r Result, parts *[]string) {
	switch v := r.(type) {
	case Text:
		if v.Text != "" {
			*parts = append(*parts, v.Text)
		}
	case KeyedText:
		if t := v[textKey]; t != "" {
			*parts = append(*parts, t)
		}
	case Fragments:
		for _, item := range v {
			collectText(item, parts)
		}
	}
}

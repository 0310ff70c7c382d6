package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"document-qa/internal/app"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/helper"
	"document-qa/internal/llmservice"
	"document-qa/internal/loader"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
	"document-qa/internal/vectorstore"
)

const usage = "Please specify either --process to build vector store or --query for interactive mode"

type mode int

const (
	modeNone mode = iota
	modeProcess
	modeQuery
	modeStats
	modeRestore
)

type options struct {
	process    bool
	query      bool
	stats      bool
	restore    bool
	configPath string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("document-qa", flag.ContinueOnError)
	fs.BoolVar(&o.process, "process", false, "Process documents and build vector store")
	fs.BoolVar(&o.query, "query", false, "Start interactive query mode")
	fs.BoolVar(&o.stats, "stats", false, "Print the number of stored chunks")
	fs.BoolVar(&o.restore, "restore", false, "Restore the collection from its snapshot file")
	fs.StringVar(&o.configPath, "config", "config.yaml", "Path to the YAML config file")
	err := fs.Parse(args)
	return o, err
}

// selectMode applies the flag precedence: process, query, stats, restore.
func (o options) selectMode() mode {
	switch {
	case o.process:
		return modeProcess
	case o.query:
		return modeQuery
	case o.stats:
		return modeStats
	case o.restore:
		return modeRestore
	default:
		return modeNone
	}
}

func main() {
	helper.SetupLogger(os.Stdout, "info")
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return fmt.Errorf("error loading environment variables: %w", err)
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	helper.SetupLogger(stdout, cfg.Log.Level)
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	m := opts.selectMode()
	if m == modeNone {
		fmt.Fprintln(stdout, usage)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	embedder, err := embedding.NewEmbedder(&cfg.VectorStore, secrets.OpenAIAPIKey)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}
	store, closeStore, err := vectorstore.Open(ctx, &cfg.VectorStore, secrets, embedder)
	if err != nil {
		return fmt.Errorf("error opening vector store: %w", err)
	}
	defer closeStore()

	switch m {
	case modeProcess:
		return processDocuments(ctx, cfg, store)
	case modeQuery:
		return interactiveQuery(ctx, cfg, secrets, store, stdout)
	case modeStats:
		return printStats(ctx, cfg, store, stdout)
	default:
		if err := store.Restore(ctx); err != nil {
			return err
		}
		log.Info().Str("collection", cfg.VectorStore.CollectionName).Msg("Restored collection from snapshot")
		return nil
	}
}

// process all documents and build vector store
func processDocuments(ctx context.Context, cfg *config.Config, store *vectorstore.Manager) error {
	ingestor := app.NewIngestor(
		loader.NewLoader(cfg),
		parser.NewParser(&cfg.Parser),
		store,
		app.IngestOptions{
			ResetCollection: cfg.VectorStore.ResetCollection,
			ExportSnapshot:  cfg.VectorStore.Backend == config.BackendChromem && cfg.VectorStore.Snapshot.Path != "",
		},
	)
	_, err := ingestor.Run(ctx)
	return err
}

func interactiveQuery(ctx context.Context, cfg *config.Config, secrets *config.Secrets, store *vectorstore.Manager, stdout io.Writer) error {
	llm, err := llmservice.New(&cfg.RAG, secrets.OpenAIAPIKey)
	if err != nil {
		return fmt.Errorf("failed to create language model client: %w", err)
	}
	pipeline := rag.NewRAG(store, llm, cfg.RAG.TopK)
	return app.NewSession(os.Stdin, stdout, pipeline, cfg.RAG.TopK).Run(ctx)
}

type collectionStats struct {
	Collection string `json:"collection"`
	Backend    string `json:"backend"`
	Chunks     int    `json:"chunks"`
}

func printStats(ctx context.Context, cfg *config.Config, store *vectorstore.Manager, stdout io.Writer) error {
	n, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	helper.PrettyPrint(stdout, collectionStats{
		Collection: cfg.VectorStore.CollectionName,
		Backend:    cfg.VectorStore.Backend,
		Chunks:     n,
	})
	return nil
}

// Command text2sql-embed reads the built-in content sources from Postgres,
// embeds them and writes the vectors to the configured content index.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cortexai/text2sql/internal/config"
	"github.com/cortexai/text2sql/internal/server"
	"github.com/cortexai/text2sql/internal/vectorsearch"
)

func main() {
	sources := flag.String("sources", "", "comma-separated sources to embed; empty means all")
	batch := flag.Int("batch", 0, "documents per embedding request; 0 uses config")
	delay := flag.Duration("delay", -1, "pause between embedding requests; negative uses config")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.RequireLLMKey(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	selected, err := vectorsearch.SelectSources(server.EmbeddingSources(cfg), splitList(*sources))
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	batchSize := cfg.EmbedBatchSize
	if *batch > 0 {
		batchSize = *batch
	}
	pause := time.Duration(cfg.EmbedDelayMS) * time.Millisecond
	if *delay >= 0 {
		pause = *delay
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenDatabase(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	store, err := server.NewContentStore(cfg, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "content index error: %v\n", err)
		os.Exit(1)
	}
	if err := store.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s unreachable: %v\n", store.Backend(), err)
		os.Exit(1)
	}

	ingestor := vectorsearch.NewIngestor(vectorsearch.NewSQLReader(db), server.NewEmbedder(cfg), store, batchSize, pause)
	reports, err := ingestor.Run(ctx, selected)
	for _, r := range reports {
		status := "ok"
		if r.Error != "" {
			status = "error: " + r.Error
		}
		fmt.Printf("%-10s documents=%-6d stored=%-6d failed_chunks=%-3d %s\n", r.Source, r.Documents, r.Stored, r.FailedChunks, status)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "embedding failed: %v\n", err)
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/grounder"
	"github.com/poiesic/grounder/ai"
	aiopenai "github.com/poiesic/grounder/ai/openai"
	"github.com/poiesic/grounder/core"
	"github.com/poiesic/grounder/ingestion"
	"github.com/poiesic/grounder/storage"
	storebadger "github.com/poiesic/grounder/storage/badger"
)

func main() {
	app := &cli.App{
		Name:  "grounder",
		Usage: "Hybrid retrieval and grounded generation over document chunks",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Segment, embed, and store a document",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: append(commonFlags(),
					&cli.StringFlag{
						Name:  "title",
						Usage: "Document title (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "domain",
						Usage: "Source domain recorded in chunk metadata",
					},
				),
			},
			{
				Name:   "backfill",
				Usage:  "Embed chunks that were stored without vectors",
				Action: backfillCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:      "search",
				Usage:     "Retrieve ranked chunks for a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append(commonFlags(),
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   grounder.DefaultTopK,
					},
					&cli.StringFlag{
						Name:  "domain",
						Usage: "Restrict results to a source domain",
					},
				),
			},
			{
				Name:      "ask",
				Usage:     "Answer a question grounded in retrieved chunks",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags:     commonFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to BadgerDB database directory",
		},
		&cli.StringFlag{
			Name:     "tenant",
			Aliases:  []string{"t"},
			Usage:    "Tenant id scoping all reads and writes",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
		},
		&cli.StringFlag{
			Name:  "generator-model",
			Usage: "Completion model name",
		},
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

// openEngine builds an Engine from the config file and flag overrides.
func openEngine(c *cli.Context) (*grounder.Engine, error) {
	fc, err := loadFileConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = fc.Database
	}
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required (--db flag or config file)")
	}

	aiConfig, err := fc.aiConfig(flagOverrides(c)...)
	if err != nil {
		return nil, err
	}

	return grounder.NewEngine(dbPath, grounder.WithAIConfig(aiConfig))
}

func flagOverrides(c *cli.Context) []ai.ConfigOption {
	var opts []ai.ConfigOption
	if host := c.String("host"); host != "" {
		opts = append(opts, ai.WithHost(host))
	}
	if model := c.String("embedding-model"); model != "" {
		opts = append(opts, ai.WithEmbeddingModel(model))
	}
	if model := c.String("generator-model"); model != "" {
		opts = append(opts, ai.WithGeneratorModel(model))
	}
	return opts
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}
	path := c.Args().First()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Close()

	title := c.String("title")
	if title == "" {
		title = filepath.Base(path)
	}
	metadata := map[string]string{}
	if domain := c.String("domain"); domain != "" {
		metadata[core.MetaDomain] = domain
	}

	doc := &ingestion.Document{
		TenantId: c.String("tenant"),
		Title:    title,
		Text:     string(data),
		Metadata: metadata,
	}
	chunks, err := pipeline.IngestDocument(context.Background(), doc)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	embedded := 0
	for _, chunk := range chunks {
		if chunk.HasVector() {
			embedded++
		}
	}
	fmt.Printf("Ingested document %s: %d chunks (%d embedded)\n",
		doc.Id.String(), len(chunks), embedded)
	if embedded < len(chunks) {
		fmt.Println("Some chunks are awaiting embedding; run 'grounder backfill' to finish.")
	}
	return nil
}

func backfillCommand(c *cli.Context) error {
	fc, err := loadFileConfig(c.String("config"))
	if err != nil {
		return err
	}

	dbPath := c.String("db")
	if dbPath == "" {
		dbPath = fc.Database
	}
	if dbPath == "" {
		return fmt.Errorf("database path is required (--db flag or config file)")
	}

	aiConfig, err := fc.aiConfig(flagOverrides(c)...)
	if err != nil {
		return err
	}

	// The backfill only needs the store and an embedder; skip the full
	// engine.
	backend, err := storebadger.OpenBackend(dbPath, false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	store, err := storebadger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create repository: %w", err)
	}

	embedder, err := aiopenai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &ingestion.BackfillConfig{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	backfiller := ingestion.NewBackfiller(store, embedder, config, os.Stderr)
	if _, err := backfiller.Run(context.Background()); err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one query argument")
	}
	query := c.Args().First()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	filters := &storage.SearchFilters{
		TenantId: c.String("tenant"),
		Domain:   c.String("domain"),
	}
	results, err := engine.Retrieve(context.Background(), query, c.Int("top-k"), filters)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, sc := range results {
		fmt.Printf("%d. [%.3f] (%s) %s\n", i+1, sc.Score, sc.Source(), firstLine(sc.Chunk.Text))
		fmt.Printf("   semantic=%.3f keyword=%.3f recency=%.3f authority=%.3f\n",
			sc.Breakdown.Semantic, sc.Breakdown.Keyword,
			sc.Breakdown.Recency, sc.Breakdown.Authority)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one question argument")
	}
	question := c.Args().First()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	result, err := engine.Answer(context.Background(), question,
		&storage.SearchFilters{TenantId: c.String("tenant")})
	if err != nil {
		if grounder.IsNoResults(err) {
			fmt.Println("Nothing relevant found for that question.")
			return nil
		}
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Println(result.Text)
	fmt.Println()
	fmt.Println("Sources:")
	for i, sc := range result.Sources {
		fmt.Printf("  %d. [%.3f] %s\n", i+1, sc.Score, sc.Source())
	}
	if result.Cached {
		fmt.Println("(served from cache)")
	}
	return nil
}

func firstLine(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if len(text) > 100 {
		text = text[:100] + "..."
	}
	return text
}

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
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/faqrag"
	"github.com/poiesic/faqrag/config"
	"github.com/poiesic/faqrag/corpus"
	"github.com/poiesic/faqrag/crawl"
	"github.com/poiesic/faqrag/ingestion"
	"github.com/poiesic/faqrag/query"
)

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the configuration file",
		Value:   "faqrag.yaml",
		EnvVars: []string{"FAQRAG_CONFIG"},
	}
	nameFlag := &cli.StringFlag{
		Name:    "name",
		Aliases: []string{"n"},
		Usage:   "Configuration name",
		Value:   config.DefaultName,
	}

	return &cli.App{
		Name:  "faqrag",
		Usage: "Answer questions from a fixed FAQ corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Embed a configuration's corpus and write its index",
				Action: ingestCommand,
				Flags: []cli.Flag{
					configFlag,
					nameFlag,
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per embedding request",
						Value: ingestion.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of concurrent embedding requests",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts for each embedding request",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question",
				ArgsUsage: "QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					configFlag,
					nameFlag,
					&cli.IntFlag{
						Name:  "k",
						Usage: "Number of candidates to retrieve (default from config)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum rerank score (default from config)",
					},
					&cli.BoolFlag{
						Name:  "trace",
						Usage: "Print each answering stage to stderr",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the full result as JSON",
					},
				},
			},
			{
				Name:   "configs",
				Usage:  "List configuration names",
				Action: configsCommand,
				Flags:  []cli.Flag{configFlag},
			},
			{
				Name:   "convert-corpus",
				Usage:  "Convert a corpus between JSON and YAML",
				Action: convertCorpusCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "Source corpus file (.json, .yaml or .yml)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "output",
						Aliases:  []string{"o"},
						Usage:    "Destination corpus file (.json, .yaml or .yml)",
						Required: true,
					},
				},
			},
			{
				Name:   "crawl-report",
				Usage:  "Summarize crawled documents as JSON",
				Action: crawlReportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "input",
						Aliases:  []string{"i"},
						Usage:    "JSON file of crawled documents",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "elapsed",
						Usage: "Crawl duration used for throughput",
						Value: time.Second,
					},
				},
			},
		},
	}
}

func ingestCommand(c *cli.Context) error {
	if c.Int("batch-size") <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if c.Int("pool-size") <= 0 {
		return fmt.Errorf("pool-size must be greater than 0")
	}
	if c.Int("report-interval") <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if c.Int("max-retries") <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, faqrag.WithIngestRetry(c.Int("max-retries"), c.Duration("retry-delay")))
	if err != nil {
		return err
	}
	defer engine.Close()

	name := c.String("name")
	entry, ok := cfg.Entry(name)
	if !ok {
		return fmt.Errorf("unknown configuration %q", name)
	}
	fmt.Fprintf(os.Stderr, "Configuration: %s\n", name)
	fmt.Fprintf(os.Stderr, "Corpus: %s\n", entry.CorpusPath)
	fmt.Fprintf(os.Stderr, "Index: %s\n", entry.IndexPath)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", entry.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	result, err := engine.Ingest(c.Context, name,
		ingestion.WithBatchSize(c.Int("batch-size")),
		ingestion.WithPoolSize(c.Int("pool-size")),
		ingestion.WithProgress(os.Stderr, c.Int("report-interval")),
	)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Indexed %d records (dimension %d)\n", result.Header.Count, result.Header.Dimension)
	return nil
}

// newEngine is replaced in tests to avoid live model endpoints.
var newEngine = faqrag.NewEngine

// loadConfig reads the --config file. A path set on the command line or in
// the environment must exist; the default path falls back to defaults.
func loadConfig(c *cli.Context) (*config.File, error) {
	load := config.Load
	if c.IsSet("config") {
		load = config.LoadFile
	}
	cfg, err := load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func askCommand(c *cli.Context) error {
	// A blank question is answered with the not-found sentinel.
	question := strings.Join(c.Args().Slice(), " ")

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	params := engine.DefaultParams()
	if c.IsSet("k") {
		params.K = c.Int("k")
	}
	if c.IsSet("threshold") {
		params.Threshold = float32(c.Float64("threshold"))
	}
	if err := params.Validate(); err != nil {
		return err
	}

	configuration, err := engine.Configuration(c.Context, c.String("name"))
	if err != nil {
		return err
	}

	var monitor query.Monitor
	if c.Bool("trace") {
		monitor = newTraceMonitor(os.Stderr)
	}
	result, err := configuration.Pipeline.AnswerWithMonitor(c.Context, question, params, monitor)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(c.App.Writer, result.Answer)
	return nil
}

func configsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	for _, name := range cfg.Names() {
		e, _ := cfg.Entry(name)
		fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", name, e.EmbeddingModel, e.IndexPath)
	}
	return nil
}

func convertCorpusCommand(c *cli.Context) error {
	records, err := corpus.Load(c.String("input"))
	if err != nil {
		return err
	}
	if err := corpus.Save(c.String("output"), records); err != nil {
		return err
	}
	slog.Info("corpus converted", "records", len(records), "output", c.String("output"))
	return nil
}

func crawlReportCommand(c *cli.Context) error {
	docs, err := crawl.LoadDocuments(c.String("input"))
	if err != nil {
		return err
	}
	report := crawl.Summarize(docs, c.Duration("elapsed"))

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
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

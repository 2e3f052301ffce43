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
	"errors"
	"fmt"
	"io"
	"iter"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/sift"
	"github.com/poiesic/sift/config"
	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/ingestion"
	"github.com/poiesic/sift/metrics"
	"github.com/poiesic/sift/reindex"
	"github.com/poiesic/sift/search"
	"github.com/urfave/cli/v2"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "sift",
		Usage: "Embedded prefix and substring search over structured records",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides storage.path)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest records from a JSON-lines file",
				ArgsUsage: "[file|-]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records committed per transaction (default from config)",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search records",
				ArgsUsage: "<term>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Search mode (startsWith, contains, containsBrute)",
						Value:   string(search.ModeContains),
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Print at most N hits (0 prints all)",
						Value: 20,
					},
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete records by id",
				ArgsUsage: "<id>...",
				Action:    deleteCommand,
			},
			{
				Name:   "stats",
				Usage:  "Show record and word counts",
				Action: statsCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the word and fragment indices from stored records",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "if-needed",
						Usage: "Only rebuild when the index schema is out of date",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records to process in each batch (default from config)",
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of batches prepared at once",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N records",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum attempts per batch",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 100 * time.Millisecond,
					},
				},
			},
			{
				Name:   "metrics",
				Usage:  "Serve Prometheus metrics for the database",
				Action: metricsCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (default from config)",
					},
					&cli.DurationFlag{
						Name:  "refresh",
						Usage: "How often to refresh the index size gauges",
						Value: 15 * time.Second,
					},
				},
			},
		},
	}
}

// setupLogger loads the configuration, applies the global flags to it and
// installs the configured logger as the default.
func setupLogger(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("db") {
		cfg.Storage.Path = c.String("db")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(cfg.Logging.NewLogger(c.App.ErrWriter))
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func appConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[configKey].(*config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

func openDatabase(c *cli.Context) (*sift.Database, error) {
	cfg := appConfig(c)
	db, err := sift.Open(cfg, sift.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func ingestCommand(c *cli.Context) error {
	ctx := c.Context
	cfg := appConfig(c)

	batchSize := cfg.Ingestion.BatchSize
	if c.IsSet("batch-size") {
		batchSize = c.Int("batch-size")
	}
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}

	var src io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	start := time.Now()
	total, err := ingestBatched(ctx, pipeline, readRecords(src), batchSize)
	if err != nil {
		return fmt.Errorf("ingest failed after %d records: %w", total, err)
	}
	fmt.Fprintf(c.App.Writer, "Ingested %d records in %dms\n", total, time.Since(start).Milliseconds())
	return nil
}

// ingestBatched reads records from source and ingests them in batches.
func ingestBatched(ctx context.Context, pipeline *ingestion.Pipeline, source iter.Seq2[*core.Record, error], batchSize int) (int, error) {
	batch := make([]*core.Record, 0, batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := pipeline.Ingest(ctx, batch...); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for record, err := range source {
		if err != nil {
			return total, err
		}
		batch = append(batch, record)
		if len(batch) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	return total, flush()
}

func searchCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a search term is required")
	}
	mode, err := search.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}
	term := strings.Join(c.Args().Slice(), " ")

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	searcher, err := db.NewSearcher()
	if err != nil {
		return err
	}

	start := time.Now()
	results, err := searcher.Search(c.Context, mode, term)
	if err != nil {
		return err
	}
	took := time.Since(start)

	fmt.Fprintf(c.App.Writer, "Found %d hits in %dms\n", len(results), took.Milliseconds())
	limit := c.Int("limit")
	for i, r := range results {
		if limit > 0 && i >= limit {
			fmt.Fprintf(c.App.Writer, "... %d more\n", len(results)-limit)
			break
		}
		if err := writeRecord(c.App.Writer, r); err != nil {
			return err
		}
	}
	return nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one record id is required")
	}
	ids := make([]core.ID, c.NArg())
	for i, arg := range c.Args().Slice() {
		ids[i] = core.ID(arg)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	result, err := pipeline.DeleteBatch(c.Context, ids...)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d records, removed %d words\n", result.Deleted, result.WordsRemoved)
	return nil
}

func statsCommand(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats(c.Context)
	if err != nil {
		return err
	}
	needs, err := db.NeedsReindex(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Database: %s\n", db.Config().Storage.Path)
	fmt.Fprintf(w, "Records: %d\n", stats.Records)
	fmt.Fprintf(w, "Words: %d\n", stats.Words)
	if stats.Meta != nil {
		fmt.Fprintf(w, "Schema version: %d\n", stats.Meta.SchemaVersion)
		fmt.Fprintf(w, "Last rebuilt: %s\n", stats.Meta.RebuiltAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Needs reindex: %t\n", needs)
	return nil
}

func reindexCommand(c *cli.Context) error {
	cfg := appConfig(c)

	rcfg := &reindex.Config{
		BatchSize:      cfg.Ingestion.BatchSize,
		Concurrency:    c.Int("concurrency"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if c.IsSet("batch-size") {
		rcfg.BatchSize = c.Int("batch-size")
	}

	if rcfg.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if rcfg.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if rcfg.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if c.Bool("if-needed") {
		needs, err := db.NeedsReindex(c.Context)
		if err != nil {
			return err
		}
		if !needs {
			fmt.Fprintln(c.App.ErrWriter, "Index is up to date")
			return nil
		}
	}

	pipeline, err := db.NewIngestionPipeline()
	if err != nil {
		return err
	}
	defer pipeline.Release()

	reindexer, err := reindex.NewReindexer(db.RecordRepository(), db.WordIndexRepository(), db.MetaRepository(),
		pipeline, rcfg, c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n\n", cfg.Storage.Path)
	if _, err := reindexer.Run(c.Context); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}

func metricsCommand(c *cli.Context) error {
	cfg := appConfig(c)
	cfg.Metrics.Enabled = true
	addr := cfg.Metrics.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	refresh := func() {
		if _, err := db.Stats(ctx); err != nil {
			slog.Warn("failed to refresh index size", "err", err)
		}
	}
	refresh()
	go func() {
		ticker := time.NewTicker(c.Duration("refresh"))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				refresh()
			}
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(db.Gatherer()))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("serving metrics", "addr", addr, "path", "/metrics")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

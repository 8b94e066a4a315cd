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
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/poiesic/lectern"
	"github.com/poiesic/lectern/chunker"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lectern",
		Usage: "Scrape, store and semantically index research publications",
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
				Usage:   "Path to the YAML configuration file",
				EnvVars: []string{"LECTERN_CONFIG"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "scrape",
				Usage:  "Scrape the publication listing, store assets and insert new records",
				Action: scrapeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "run-id",
						Usage: "Identifier of the scrape run; generated when empty",
					},
					&cli.BoolFlag{
						Name:  "resume",
						Usage: "Continue the run saved under --run-id",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List stored publications with their object references",
				Action: listCommand,
			},
			{
				Name:   "index",
				Usage:  "Chunk, embed and index stored publication documents",
				Action: indexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "title",
						Aliases: []string{"t"},
						Usage:   "Index only the publication with this title",
					},
					&cli.BoolFlag{
						Name:  "progress",
						Usage: "Report progress on stderr",
						Value: true,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search indexed documents",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results",
						Value:   5,
					},
				},
			},
			{
				Name:   "summarize",
				Usage:  "Summarize the document of a publication",
				Action: summarizeCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Publication title",
						Required: true,
					},
				},
			},
			{
				Name:   "delete",
				Usage:  "Delete the vectors of a publication document",
				Action: deleteCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Publication title",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "chunks",
						Usage: "Delete only the first N chunks; all chunks when 0",
					},
				},
			},
			{
				Name:      "chunk",
				Usage:     "Print the chunks of a text file",
				ArgsUsage: "<file>",
				Action:    chunkCommand,
			},
		},
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func openLectern(ctx context.Context, c *cli.Context) (*lectern.Lectern, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	l, err := lectern.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open backends: %w", err)
	}
	return l, nil
}

func scrapeCommand(c *cli.Context) error {
	if c.Bool("resume") && c.String("run-id") == "" {
		return errors.New("--resume requires --run-id")
	}
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	report, err := l.Scrape(ctx, c.String("run-id"), c.Bool("resume"))
	if report != nil {
		w := c.App.Writer
		fmt.Fprintf(w, "Run: %s\n", report.RunID)
		fmt.Fprintf(w, "Publications found: %d\n", report.Found)
		fmt.Fprintf(w, "Inserted: %d, already present: %d, skipped: %d, failed: %d\n",
			report.Inserted, report.Existing, report.Skipped, report.Failed)
		fmt.Fprintf(w, "Assets uploaded: %d, reused: %d, failed: %d\n",
			report.Assets.Uploaded, report.Assets.Reused, report.Assets.Failed)
	}
	if err != nil {
		return fmt.Errorf("scrape failed: %w", err)
	}
	return nil
}

func indexCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	var opts []ingestion.Option
	if c.Bool("progress") {
		opts = append(opts, ingestion.WithProgress(os.Stderr))
	}
	summary, err := l.Index(ctx, c.String("title"), opts...)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Documents: %d, indexed: %d, failed: %d\n", summary.Documents, summary.Indexed, len(summary.Failures))
	fmt.Fprintf(w, "Chunks stored: %d, skipped: %d\n", summary.Stored, summary.Skipped)
	for title, report := range summary.Reports {
		if failed := report.FailedBatchNumbers(); len(failed) > 0 {
			fmt.Fprintf(w, "  %s: failed batches %v\n", title, failed)
		}
	}
	return summary.Err()
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return errors.New("a search query is required")
	}
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	matches, err := l.Search(ctx, query, c.Int("top-k"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	w := c.App.Writer
	if len(matches) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}
	for i, m := range matches {
		fmt.Fprintf(w, "%d. [%.4f] %s (chunk %d)\n", i+1, m.Score, m.Metadata.Title, m.Metadata.ChunkIndex)
		fmt.Fprintf(w, "   %s\n", m.Metadata.Source)
		fmt.Fprintf(w, "   %s\n\n", m.Metadata.Text)
	}
	return nil
}

func summarizeCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	summary, err := l.Summarize(ctx, c.String("title"))
	if err != nil {
		return fmt.Errorf("summarization failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, summary)
	return nil
}

func listCommand(c *cli.Context) error {
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	pubs, err := l.Publications(ctx)
	if err != nil {
		return fmt.Errorf("listing failed: %w", err)
	}
	w := c.App.Writer
	if len(pubs) == 0 {
		fmt.Fprintln(w, "No publications.")
		return nil
	}
	for _, pub := range pubs {
		fmt.Fprintln(w, pub.Title)
		fmt.Fprintf(w, "   file:  %s\n", core.OrNA(pub.FileObject))
		fmt.Fprintf(w, "   image: %s\n", core.OrNA(pub.ImageObject))
	}
	fmt.Fprintf(w, "%d publications\n", len(pubs))
	return nil
}

func deleteCommand(c *cli.Context) error {
	chunks := c.Int("chunks")
	if chunks < 0 {
		return errors.New("chunks must not be negative")
	}
	ctx, cancel := signalContext()
	defer cancel()

	l, err := openLectern(ctx, c)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.DeleteDocument(ctx, c.String("title"), chunks); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	if chunks == 0 {
		fmt.Fprintf(c.App.Writer, "Deleted all chunks of %q\n", c.String("title"))
		return nil
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d chunks of %q\n", chunks, c.String("title"))
	return nil
}

func chunkCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one file argument is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}

	ch, err := chunker.New(
		chunker.WithMaxChars(cfg.Chunking.MaxChars),
		chunker.WithOverlap(cfg.Chunking.Overlap),
	)
	if err != nil {
		return err
	}
	w := c.App.Writer
	for _, chunk := range ch.Split(string(data)) {
		fmt.Fprintf(w, "--- chunk %d (%d chars, %d sentences)\n%s\n", chunk.Index, chunk.Length, len(chunk.Sentences), chunk.Text)
	}
	return nil
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

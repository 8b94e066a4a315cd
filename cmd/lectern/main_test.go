package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/lectern"
	"github.com/poiesic/lectern/ai/mock"
	"github.com/poiesic/lectern/config"
	"github.com/poiesic/lectern/core"
	"github.com/poiesic/lectern/ingestion"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"lectern"}, args...))
	return out.String(), err
}

func findCommand(t *testing.T, name string) *cli.Command {
	t.Helper()
	for _, cmd := range newApp().Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func TestCommands(t *testing.T) {
	for _, name := range []string{"scrape", "list", "index", "search", "summarize", "delete", "chunk"} {
		t.Run(name, func(t *testing.T) {
			assert.NotNil(t, findCommand(t, name).Action)
		})
	}

	t.Run("top-k has default value", func(t *testing.T) {
		var topK *cli.IntFlag
		for _, flag := range findCommand(t, "search").Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "top-k" {
				topK = f
			}
		}
		require.NotNil(t, topK)
		assert.Equal(t, 5, topK.Value)
	})
}

func TestCommandValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"summarize requires title", []string{"summarize"}, "title"},
		{"delete requires title", []string{"delete"}, "title"},
		{"delete rejects negative chunks", []string{"delete", "--title", "X", "--chunks", "-1"}, "must not be negative"},
		{"search requires a query", []string{"search"}, "query is required"},
		{"resume requires run id", []string{"scrape", "--resume"}, "--run-id"},
		{"chunk requires a file", []string{"chunk"}, "file argument"},
		{"missing config file", []string{"--config", "/nonexistent/lectern.yaml", "chunk", "x.txt"}, "no such file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChunkCommand(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(file, []byte("The first sentence. The second sentence."), 0644))

	cfgPath := filepath.Join(dir, "lectern.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("chunking:\n  max_chars: 25\n  overlap: 0\n"), 0644))

	out, err := runApp(t, "--config", cfgPath, "chunk", file)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "--- chunk"))
	assert.Contains(t, out, "--- chunk 0 (19 chars, 1 sentences)\nThe first sentence.")
	assert.Contains(t, out, "The second sentence.")
}

// seededConfig writes a config over a local database holding two
// publications, the first with three indexed chunks.
func seededConfig(t *testing.T) (string, core.Publication) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "lectern.yaml")
	yaml := "data_dir: " + filepath.Join(dir, "data") + "\nai:\n  token: test-token\n  dimension: 2\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(yaml), 0644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	ctx := context.Background()
	l, err := lectern.Open(ctx, cfg, lectern.WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer l.Close()

	file, link, img := "badger://pdfs/alpha.pdf", "https://example.org/alpha.pdf", "badger://images/alpha.png"
	alpha := core.Publication{Title: "Alpha Report", FileLink: &link, FileObject: &file, ImageObject: &img}
	beta := core.Publication{Title: "Beta Study"}
	for _, pub := range []*core.Publication{&alpha, &beta} {
		_, err := l.MetadataStore().InsertIfAbsent(ctx, pub)
		require.NoError(t, err)
	}

	doc, _, err := ingestion.DocumentFor(&alpha)
	require.NoError(t, err)
	var records []core.EmbeddingRecord
	for i := 0; i < 3; i++ {
		records = append(records, core.EmbeddingRecord{
			ID:       core.ChunkID(doc.ID, i),
			Vector:   []float32{1, float32(i)},
			Metadata: core.VectorMetadata{DocumentID: doc.ID, Title: alpha.Title, ChunkIndex: i, Text: "alpha"},
		})
	}
	require.NoError(t, l.VectorIndex().Upsert(ctx, records))
	return cfgPath, alpha
}

func TestListCommand(t *testing.T) {
	cfgPath, _ := seededConfig(t)

	out, err := runApp(t, "--config", cfgPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Alpha Report\n   file:  badger://pdfs/alpha.pdf\n   image: badger://images/alpha.png\n")
	assert.Contains(t, out, "Beta Study\n   file:  N/A\n   image: N/A\n")
	assert.Contains(t, out, "2 publications")
}

func TestDeleteCommand_ByTitle(t *testing.T) {
	cfgPath, _ := seededConfig(t)

	out, err := runApp(t, "--config", cfgPath, "delete", "--title", "Alpha Report")
	require.NoError(t, err)
	assert.Contains(t, out, `Deleted all chunks of "Alpha Report"`)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	l, err := lectern.Open(context.Background(), cfg, lectern.WithAIProvider(mock.NewMockProvider()))
	require.NoError(t, err)
	defer l.Close()
	matches, err := l.VectorIndex().Query(context.Background(), []float32{1, 1}, 10)
	require.NoError(t, err)
	assert.Empty(t, matches)

	_, err = runApp(t, "--config", cfgPath, "delete", "--title", "Beta Study")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no stored document")
}

func TestSetupLogger(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		for _, tc := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
			t.Run(tc, func(t *testing.T) {
				app := &cli.App{
					Name: "test",
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "log-level", Value: "info"},
					},
					Before: setupLogger,
					Action: func(c *cli.Context) error { return nil },
				}
				require.NoError(t, app.Run([]string{"test", "--log-level", tc}))
			})
		}
	})

	t.Run("invalid log level returns error", func(t *testing.T) {
		_, err := runApp(t, "--log-level", "invalid", "chunk")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("log-level flag has alias -l", func(t *testing.T) {
		app := &cli.App{
			Name: "test",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Value: "info"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error {
				assert.Equal(t, "debug", c.String("log-level"))
				return nil
			},
		}
		require.NoError(t, app.Run([]string{"test", "-l", "debug"}))
	})
}

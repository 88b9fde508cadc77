package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/chunk"
	"github.com/nickcecere/codemap/internal/config"
	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/ingest"
	"github.com/nickcecere/codemap/internal/store"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	ingestProject    string
	ingestExtensions []string
	ingestIgnore     []string
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Chunk, embed and store a codebase",
	Long: `Scan a directory, split files into chunks, embed new chunks and
persist them with git provenance. Content the store has already seen
for the project is skipped, so re-running is cheap and idempotent.

Examples:
  # Ingest the current directory
  codemap ingest

  # Ingest under an explicit project name
  codemap ingest ./src --project api`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestProject, "project", "p", "", "project name (defaults to directory name)")
	ingestCmd.Flags().StringSliceVarP(&ingestExtensions, "ext", "e", nil, "file extensions to include")
	ingestCmd.Flags().StringSliceVarP(&ingestIgnore, "ignore", "i", nil, "additional patterns to ignore")
}

// services bundles the wired pipeline with the store it writes to.
type services struct {
	store    *store.SQLiteStore
	embedder embeddings.Service
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		log.Warn("Failed to close store", "error", err)
	}
}

// newPipeline wires the ingest pipeline from configuration.
func newPipeline() (*ingest.Pipeline, *services, error) {
	cfg := config.Get()

	embedder, st, err := openServices()
	if err != nil {
		return nil, nil, err
	}

	chunker := chunk.New(chunk.Options{
		MaxLines:      cfg.Chunking.MaxChunkLines,
		WindowLines:   cfg.Chunking.WindowLines,
		WindowOverlap: cfg.Chunking.WindowOverlap,
	})
	pipeline := ingest.New(st, embedder, chunker, analyze.DefaultRegistry(), cfg.Ingest.BatchSize)
	return pipeline, &services{store: st, embedder: embedder}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	project := projectNameOr(ingestProject, root)

	pipeline, closers, err := newPipeline()
	if err != nil {
		return err
	}
	defer closers.Close()

	user, err := currentUser(closers.store)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Ingesting", "path", root, "project", project)
	stats, err := pipeline.IngestDir(ctx, project, user, scanOptions(root, ingestExtensions, ingestIgnore))
	if err != nil {
		if errors.Is(err, ingest.ErrBusy) {
			return fmt.Errorf("project %q is already being ingested", project)
		}
		return err
	}

	printIngestSummary(project, stats)
	return nil
}

func printIngestSummary(project string, stats *ingest.Stats) {
	fmt.Println(ui.Header.Render("Ingested " + project))
	fmt.Println(" ", ui.FormatCount("files", stats.FilesProcessed))
	fmt.Println(" ", ui.FormatCount("chunks inserted", stats.ChunksInserted))
	fmt.Println(" ", ui.FormatCount("chunks skipped", stats.ChunksSkipped))
	fmt.Println(" ", ui.Dim.Render("took "+stats.Duration.Round(time.Millisecond).String()))
	for _, e := range stats.Errors {
		fmt.Println(" ", ui.Error.Render(e))
	}
}

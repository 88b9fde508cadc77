package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/config"
	"github.com/nickcecere/codemap/internal/index"
	"github.com/nickcecere/codemap/internal/scan"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	indexProject    string
	indexOutput     string
	indexExtensions []string
	indexIgnore     []string
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the structural index for a codebase",
	Long: `Scan a directory, analyze every source file, and write the structural
index: per-file functions, classes and imports, forward lookup tables,
and reverse who-calls-whom tables.

Examples:
  # Index the current directory
  codemap index

  # Index a specific directory under a project name
  codemap index ./src --project api

  # Only specific extensions
  codemap index --ext .py --ext .go`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexProject, "project", "p", "", "project name (defaults to directory name)")
	indexCmd.Flags().StringVarP(&indexOutput, "output", "o", "", "output path (defaults to the configured index dir)")
	indexCmd.Flags().StringSliceVarP(&indexExtensions, "ext", "e", nil, "file extensions to include (e.g., .go, .py)")
	indexCmd.Flags().StringSliceVarP(&indexIgnore, "ignore", "i", nil, "additional patterns to ignore")
}

// scanOptions builds scanner options from config plus command flags.
func scanOptions(root string, extensions, ignore []string) scan.Options {
	cfg := config.Get()
	opts := scan.DefaultOptions(root)
	opts.MaxFileSize = int64(cfg.Scan.MaxFileSize)
	opts.MaxFileCount = cfg.Scan.MaxFileCount
	opts.Extensions = extensions
	opts.IgnorePatterns = append(append([]string{}, cfg.Ignore...), ignore...)
	return opts
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	project := projectNameOr(indexProject, root)
	cfg := config.Get()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Scanning", "path", root)
	scanner, err := scan.NewScanner(scanOptions(root, indexExtensions, indexIgnore))
	if err != nil {
		return err
	}
	scanned, err := scanner.Scan()
	if err != nil {
		return err
	}
	for _, w := range scanned.Warnings {
		log.Warn("Scan warning", "path", w.Path, "reason", w.Reason)
	}

	builder := index.NewBuilder(analyze.DefaultRegistry(), cfg.Analysis.Workers)
	idx, err := builder.Build(ctx, project, scanned)
	if err != nil {
		return err
	}

	output := indexOutput
	if output == "" {
		output = filepath.Join(cfg.Index.Dir, project+".json")
	}
	if err := index.Save(idx, output); err != nil {
		return err
	}

	fmt.Println(ui.Header.Render("Indexed " + project))
	fmt.Println(" ", ui.FormatCount("files", idx.ProjectMetadata.TotalFiles))
	fmt.Println(" ", ui.FormatCount("lines", idx.ProjectMetadata.TotalLines))
	fmt.Println(" ", ui.FormatCount("functions", len(idx.Lookups.FunctionFiles)))
	fmt.Println(" ", ui.FormatCount("classes", len(idx.Lookups.ClassFiles)))
	if n := len(idx.IndexMetadata.FilesWithErrors); n > 0 {
		fmt.Println(" ", ui.Warning.Render(fmt.Sprintf("files with parse errors: %d", n)))
	}
	fmt.Println(" ", ui.Dim.Render("written to "+output))
	return nil
}

// indexPathFor returns the saved index location for a project.
func indexPathFor(project string) string {
	return filepath.Join(config.Get().Index.Dir, project+".json")
}

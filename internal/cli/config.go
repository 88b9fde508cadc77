package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/config"
	"github.com/nickcecere/codemap/internal/ui"
)

var configShowPath bool

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Display current configuration settings and config file locations.

Examples:
  # Show current configuration
  codemap config

  # Show config file paths
  codemap config --path`,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().BoolVar(&configShowPath, "path", false, "show config file paths")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configShowPath {
		fmt.Println(ui.SectionTitle.Render("Configuration Paths"))
		fmt.Println()
		fmt.Printf("Local config:  .codemaprc.yaml (searched from cwd upward)\n")
		fmt.Printf("Active config: %s\n", config.ConfigFilePath())
		fmt.Printf("Database:      %s\n", config.Get().Database.Path)
		fmt.Printf("Index dir:     %s\n", config.Get().Index.Dir)
		return nil
	}

	cfg := config.Get()

	fmt.Println(ui.SectionTitle.Render("Current Configuration"))
	fmt.Println()

	fmt.Println(ui.Bold.Render("Embeddings:"))
	fmt.Printf("  Provider: %s\n", cfg.Embeddings.Provider)
	fmt.Printf("  OpenAI Model: %s\n", cfg.Embeddings.OpenAI.Model)
	if cfg.Embeddings.OpenAI.BaseURL != "" {
		fmt.Printf("  OpenAI Base URL: %s\n", cfg.Embeddings.OpenAI.BaseURL)
	}
	fmt.Printf("  Mock Dimensions: %d\n", cfg.Embeddings.Mock.Dimensions)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Scanning:"))
	fmt.Printf("  Max File Size: %d bytes\n", cfg.Scan.MaxFileSize)
	fmt.Printf("  Max File Count: %d\n", cfg.Scan.MaxFileCount)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Analysis:"))
	fmt.Printf("  Workers: %d\n", cfg.Analysis.Workers)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Chunking:"))
	fmt.Printf("  Max Chunk Lines: %d\n", cfg.Chunking.MaxChunkLines)
	fmt.Printf("  Window Lines: %d\n", cfg.Chunking.WindowLines)
	fmt.Printf("  Window Overlap: %d\n", cfg.Chunking.WindowOverlap)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ingest:"))
	fmt.Printf("  Batch Size: %d\n", cfg.Ingest.BatchSize)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Database:"))
	fmt.Printf("  Path: %s\n", cfg.Database.Path)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Index:"))
	fmt.Printf("  Dir: %s\n", cfg.Index.Dir)
	fmt.Println()

	fmt.Println(ui.Bold.Render("Auth:"))
	if cfg.Auth.Email == "" {
		fmt.Println("  Anonymous (single-user)")
	} else {
		fmt.Printf("  Email: %s\n", cfg.Auth.Email)
	}
	fmt.Println()

	fmt.Println(ui.Bold.Render("Ignore Patterns:"))
	fmt.Printf("  %d patterns configured\n", len(cfg.Ignore))

	return nil
}

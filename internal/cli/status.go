package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/config"
	"github.com/nickcecere/codemap/internal/index"
	"github.com/nickcecere/codemap/internal/store"
	"github.com/nickcecere/codemap/internal/ui"
)

var statusProject string

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ingested projects and their statistics",
	Long: `Display the projects stored in the chunk database along with
file and chunk counts, and whether a structural index file exists
for each.

Examples:
  # Show all projects
  codemap status

  # Show a single project
  codemap status --project api`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusProject, "project", "p", "", "show only this project")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	_, st, err := openServices()
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := st.ListProjects()
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	if statusProject != "" {
		var filtered []store.Project
		for _, p := range projects {
			if p.Name == statusProject {
				filtered = append(filtered, p)
			}
		}
		if len(filtered) == 0 {
			return fmt.Errorf("project not found: %s", statusProject)
		}
		projects = filtered
	}

	if len(projects) == 0 {
		fmt.Println("No projects found.")
		fmt.Println()
		fmt.Println("Run 'codemap ingest [path]' to create one.")
		return nil
	}

	fmt.Println(ui.Header.Render("Project Status"))
	fmt.Println()

	for i, p := range projects {
		stats, err := st.Stats(p.ID)
		if err != nil {
			log.Warn("Failed to get stats", "project", p.Name, "error", err)
			continue
		}

		fmt.Printf("%s %s\n", ui.Highlight.Render("Project:"), ui.Bold.Render(p.Name))
		if p.Language != "" {
			fmt.Printf("  %s %s\n", ui.Dim.Render("Language:"), p.Language)
		}
		if p.Owner != "" {
			fmt.Printf("  %s %s\n", ui.Dim.Render("Owner:"), p.Owner)
		}
		fmt.Printf("  %s %d\n", ui.Dim.Render("Files:"), stats.FileCount)
		fmt.Printf("  %s %d\n", ui.Dim.Render("Chunks:"), stats.ChunkCount)

		idxPath := indexPathFor(p.Name)
		if idx, err := index.Load(idxPath); err == nil {
			fmt.Printf("  %s %s (%d files, built %s)\n",
				ui.Dim.Render("Index:"),
				idxPath,
				idx.ProjectMetadata.TotalFiles,
				idx.ProjectMetadata.BuildTimestamp.Format("2006-01-02 15:04"),
			)
		} else if errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("  %s %s\n", ui.Dim.Render("Index:"), ui.Warning.Render("not built"))
		}

		if i < len(projects)-1 {
			fmt.Println()
		}
	}

	fmt.Println()
	fmt.Printf("%s %s\n", ui.Dim.Render("Database:"), cfg.Database.Path)
	return nil
}

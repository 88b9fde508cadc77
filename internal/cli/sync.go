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

	"github.com/nickcecere/codemap/internal/gitsync"
	"github.com/nickcecere/codemap/internal/gitx"
	"github.com/nickcecere/codemap/internal/ingest"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	syncProject string
	syncFrom    string
	syncTo      string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Resync the chunk store after the repository advanced",
	Long: `Diff two commits and bring the project's stored chunks up to date:
renamed files keep their vectors, changed files are re-embedded, and
chunks of deleted files are removed.

The worktree must be checked out at the target revision, since changed
content is read from disk.

Examples:
  # Sync from a known commit to the current HEAD
  codemap sync --project api --from a1b2c3d

  # Sync between two explicit revisions
  codemap sync --project api --from v1.2.0 --to HEAD`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncProject, "project", "p", "", "project name (defaults to directory name)")
	syncCmd.Flags().StringVar(&syncFrom, "from", "", "revision the store currently reflects (required)")
	syncCmd.Flags().StringVar(&syncTo, "to", "HEAD", "revision to sync to")
	_ = syncCmd.MarkFlagRequired("from")
}

func runSync(cmd *cobra.Command, args []string) error {
	root, err := resolveRoot(args)
	if err != nil {
		return err
	}
	project := projectNameOr(syncProject, root)

	pipeline, closers, err := newPipeline()
	if err != nil {
		return err
	}
	defer closers.Close()

	st := closers.store
	user, err := currentUser(st)
	if err != nil {
		return err
	}
	record, err := st.GetProject(project, user.Owner())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("Syncing", "project", project, "from", syncFrom, "to", syncTo)
	engine := gitsync.New(st, pipeline)
	stats, err := engine.DeltaSync(ctx, record.ID, root, syncFrom, syncTo, user)
	if err != nil {
		switch {
		case errors.Is(err, gitx.ErrUnknownRevision):
			return fmt.Errorf("cannot sync: %w", err)
		case errors.Is(err, gitx.ErrNotARepo):
			return fmt.Errorf("%s is not a git repository", root)
		case errors.Is(err, ingest.ErrBusy):
			return fmt.Errorf("project %q is already being ingested", project)
		}
		return err
	}

	fmt.Println(ui.Header.Render("Synced " + project))
	fmt.Println(" ", ui.FormatCount("files reindexed", stats.FilesReindexed))
	fmt.Println(" ", ui.FormatCount("files deleted", stats.FilesDeleted))
	fmt.Println(" ", ui.FormatCount("chunks inserted", stats.ChunksInserted))
	fmt.Println(" ", ui.FormatCount("chunks skipped", stats.ChunksSkipped))
	fmt.Println(" ", ui.FormatCount("chunks deleted", stats.ChunksDeleted))
	fmt.Println(" ", ui.Dim.Render("took "+stats.Duration.Round(time.Millisecond).String()))
	for _, e := range stats.Errors {
		fmt.Println(" ", ui.Error.Render(e))
	}
	return nil
}

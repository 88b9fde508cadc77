// Package cli implements the command-line interface for codemap.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nickcecere/codemap/internal/auth"
	"github.com/nickcecere/codemap/internal/config"
	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/store"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	// Version information set at build time
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile string
	debug   bool
)

// SetVersionInfo sets the version information from build flags.
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "codemap",
	Short: "Structural code index and semantic chunk store",
	Long: `codemap builds a structural index of a codebase (functions, classes,
imports, and who-calls-whom tables) and keeps a searchable store of
embedded code chunks in sync with the repository.

Examples:
  # Build the structural index for the current directory
  codemap index

  # Ingest chunks into the store
  codemap ingest --project api

  # Resync the store after the repo advanced
  codemap sync --project api --from a1b2c3 --to HEAD

  # Semantic search
  codemap search "where is the config parsed" --project api

  # Structural queries against the saved index
  codemap symbol helper --project api`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if debug {
			log.SetLevel(log.DebugLevel)
			log.Debug("Debug logging enabled")
		}
		if err := config.Load(cfgFile); err != nil {
			log.Warn("Failed to load config", "error", err)
		}
		return nil
	},
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	ui.InitLogger()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/codemap/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(symbolCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd shows version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("codemap %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

// resolveRoot turns an optional positional path into an absolute root.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	return abs, nil
}

// projectNameOr defaults the project name to the root directory name.
func projectNameOr(flag, root string) string {
	if flag != "" {
		return flag
	}
	return filepath.Base(root)
}

// openServices builds the embedder and store from configuration. The
// vector table dimensionality follows the configured embedder.
func openServices() (embeddings.Service, *store.SQLiteStore, error) {
	cfg := config.Get()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	embedder, err := embeddings.NewService(cfg)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path, embedder.Dimensions())
	if err != nil {
		return nil, nil, err
	}
	return embedder, st, nil
}

// currentUser authenticates the configured identity against the user
// table, registering it on first use. An empty auth section means
// anonymous single-user operation and yields a nil context.
func currentUser(st *store.SQLiteStore) (*auth.UserContext, error) {
	cfg := config.Get()
	if cfg.Auth.Email == "" {
		return nil, nil
	}

	authenticator := auth.NewKeyAuthenticator(st)
	if _, err := authenticator.EnsureUser(cfg.Auth.Email, cfg.Auth.APIKey, 0); err != nil {
		return nil, err
	}
	return authenticator.Authenticate(cfg.Auth.Email, cfg.Auth.APIKey)
}

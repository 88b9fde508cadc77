package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/search"
	"github.com/nickcecere/codemap/internal/store"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	searchProject  string
	searchContent  bool
	searchLimit    int
	searchMinScore float64
	searchJSON     bool
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <query> [path]",
	Short: "Search ingested code using semantic similarity",
	Long: `Search for code using natural language queries.

The search embeds the query and ranks stored chunks by vector
similarity, so results match meaning rather than keywords.

Examples:
  # Basic search
  codemap search "how does authentication work"

  # Search with content preview
  codemap search "database connection" -c

  # Limit results
  codemap search "api endpoints" -m 5

  # Filter by minimum similarity score
  codemap search "error handling" --min-score 0.5`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&searchProject, "project", "p", "", "project name (defaults to directory name)")
	searchCmd.Flags().BoolVarP(&searchContent, "content", "c", false, "show content snippets in results")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "m", 10, "maximum number of results")
	searchCmd.Flags().Float64Var(&searchMinScore, "min-score", 0.0, "minimum similarity score (0-1)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]
	root, err := resolveRoot(args[1:])
	if err != nil {
		return err
	}
	project := projectNameOr(searchProject, root)

	if searchLimit <= 0 {
		searchLimit = 10
	}

	log.Debug("Starting search", "query", query, "project", project, "limit", searchLimit)

	embedder, st, err := openServices()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := currentUser(st)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	searcher := search.New(st, embedder)
	opts := search.Options{
		Project:        project,
		Owner:          user.Owner(),
		TopK:           searchLimit,
		MinScore:       searchMinScore,
		IncludeContent: searchContent || searchJSON,
	}

	results, err := searcher.Search(ctx, query, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("project %q not found, run 'codemap ingest' first", project)
		}
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	displayResults(results, searchContent)
	return nil
}

// displayResults formats and displays search results.
func displayResults(results []search.Result, showContent bool) {
	fmt.Printf("Found %d results:\n\n", len(results))

	for i, r := range results {
		header := ui.Highlight.Render(fmt.Sprintf("[%d]", i+1)) + " " +
			ui.FilePath.Render(r.FilePath) + " " +
			ui.FormatScore(r.Score)
		fmt.Println(header)

		if r.SymbolName != "" {
			fmt.Printf("    %s %s\n", ui.Dim.Render(r.ChunkType), ui.Bold.Render(r.SymbolName))
		}
		if r.StartLine > 0 {
			fmt.Printf("    %s\n", ui.LineNum.Render(fmt.Sprintf("Lines %d-%d", r.StartLine, r.EndLine)))
		}

		if showContent && r.Content != "" {
			fmt.Println()
			displayContentHighlighted(r.Content, r.StartLine, r.FilePath)
		}

		fmt.Println()
	}
}

// displayContentHighlighted displays code content with syntax highlighting.
func displayContentHighlighted(content string, startLine int, filename string) {
	lexer := lexers.Match(filename)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("dracula")
	if style == nil {
		style = styles.Fallback
	}

	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}

	lines := strings.Split(content, "\n")
	maxLines := 15

	if len(lines) > maxLines {
		show := maxLines / 2
		displayHighlightedLines(strings.Join(lines[:show], "\n"), startLine, lexer, style, formatter)
		fmt.Printf("    %s\n", ui.Dim.Render(fmt.Sprintf("    ... (%d lines omitted)", len(lines)-maxLines)))
		displayHighlightedLines(strings.Join(lines[len(lines)-show:], "\n"), startLine+len(lines)-show, lexer, style, formatter)
	} else {
		displayHighlightedLines(content, startLine, lexer, style, formatter)
	}
}

// displayHighlightedLines highlights and displays code with line numbers.
func displayHighlightedLines(content string, startLine int, lexer chroma.Lexer, style *chroma.Style, formatter chroma.Formatter) {
	iterator, err := lexer.Tokenise(nil, content)
	if err != nil {
		displayPlainLines(content, startLine)
		return
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		displayPlainLines(content, startLine)
		return
	}

	for i, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		fmt.Printf("    %s %s\n", ui.LineNum.Render(fmt.Sprintf("%4d│", startLine+i)), line)
	}
}

// displayPlainLines displays content without highlighting.
func displayPlainLines(content string, startLine int) {
	for i, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Printf("    %s %s\n", ui.LineNum.Render(fmt.Sprintf("%4d│", startLine+i)), line)
	}
}

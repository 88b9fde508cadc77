package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/nickcecere/codemap/internal/index"
	"github.com/nickcecere/codemap/internal/search"
	"github.com/nickcecere/codemap/internal/ui"
)

var (
	symbolProject      string
	symbolCallers      bool
	symbolInstantiates bool
	symbolImporters    bool
)

// symbolCmd represents the symbol command
var symbolCmd = &cobra.Command{
	Use:   "symbol <name> [path]",
	Short: "Look up a symbol in the structural index",
	Long: `Answer structural questions from a saved index: where a function or
class is defined, which files call it, which files instantiate it, and
which files import a module. Run 'codemap index' first to build the
index.

Examples:
  # Where is process_order defined?
  codemap symbol process_order

  # Who calls it?
  codemap symbol process_order --callers

  # Who instantiates the OrderService class?
  codemap symbol OrderService --new

  # Who imports the payments module?
  codemap symbol payments --importers`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSymbol,
}

func init() {
	symbolCmd.Flags().StringVarP(&symbolProject, "project", "p", "", "project name (defaults to directory name)")
	symbolCmd.Flags().BoolVar(&symbolCallers, "callers", false, "list files calling the function")
	symbolCmd.Flags().BoolVar(&symbolInstantiates, "new", false, "list files instantiating the class")
	symbolCmd.Flags().BoolVar(&symbolImporters, "importers", false, "treat the name as a module and list importers")
}

func runSymbol(cmd *cobra.Command, args []string) error {
	name := args[0]
	root, err := resolveRoot(args[1:])
	if err != nil {
		return err
	}
	project := projectNameOr(symbolProject, root)

	path := indexPathFor(project)
	idx, err := index.Load(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("no index for project %q, run 'codemap index' first", project)
		}
		return err
	}

	switch {
	case symbolCallers:
		printSites("Callers of "+name, search.Callers(idx, name))
	case symbolInstantiates:
		printSites("Instantiators of "+name, search.Instantiators(idx, name))
	case symbolImporters:
		importers := search.Importers(idx, name)
		fmt.Println(ui.Header.Render("Importers of " + name))
		if len(importers) == 0 {
			fmt.Println(" ", ui.Dim.Render("none"))
			return nil
		}
		for _, p := range importers {
			fmt.Println(" ", ui.FilePath.Render(p))
		}
	default:
		hits := search.Symbols(idx, name)
		fmt.Println(ui.Header.Render("Definitions of " + name))
		if len(hits) == 0 {
			fmt.Println(" ", ui.Dim.Render("not found"))
			return nil
		}
		for _, h := range hits {
			fmt.Printf("  %s %s\n", ui.Dim.Render(h.Kind), ui.FormatFilePath(h.Path, h.StartLine, h.EndLine))
		}
	}
	return nil
}

func printSites(title string, sites []index.UsageSite) {
	fmt.Println(ui.Header.Render(title))
	if len(sites) == 0 {
		fmt.Println(" ", ui.Dim.Render("none"))
		return
	}
	for _, s := range sites {
		fmt.Printf("  %s%s\n", ui.FilePath.Render(s.Caller), ui.LineNum.Render(fmt.Sprintf(":%d", s.Line)))
	}
}

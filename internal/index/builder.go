package index

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/scan"
)

// Builder turns a scan result into a structural index. Per-file
// analysis runs on a bounded worker pool; the relationship-resolution
// pass runs afterwards, since it is a global join over names.
type Builder struct {
	registry *analyze.Registry
	workers  int
}

// NewBuilder creates a builder. workers bounds concurrent file
// analysis.
func NewBuilder(registry *analyze.Registry, workers int) *Builder {
	if workers <= 0 {
		workers = 4
	}
	return &Builder{registry: registry, workers: workers}
}

// fileResult pairs a scanned file with its analysis.
type fileResult struct {
	info     scan.FileInfo
	lines    int
	analysis *analyze.FileAnalysis
}

// Build analyzes every scanned file and assembles the index.
func (b *Builder) Build(ctx context.Context, projectName string, scanned *scan.Result) (*StructuralIndex, error) {
	start := time.Now()

	// Files arrive sorted by relative path; position is the dense ID.
	results := make([]fileResult, len(scanned.Files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, info := range scanned.Files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(info.Path)
			if err != nil {
				results[i] = fileResult{
					info:     info,
					analysis: &analyze.FileAnalysis{Errors: []string{err.Error()}},
				}
				return nil
			}
			results[i] = fileResult{
				info:     info,
				lines:    countLines(content),
				analysis: b.registry.Analyze(info.RelPath, content),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := b.assemble(projectName, scanned, results)
	idx.IndexMetadata.AnalysisTimeMS = time.Since(start).Milliseconds()

	log.Debug("Built structural index",
		"project", projectName,
		"files", len(idx.Files),
		"duration", time.Since(start))
	return idx, nil
}

// assemble runs the single-threaded join: file records, forward
// lookups, then the name-resolution pass that fills the relationship
// lists and reverse tables.
func (b *Builder) assemble(projectName string, scanned *scan.Result, results []fileResult) *StructuralIndex {
	idx := &StructuralIndex{
		DirectoryTree: scanned.Tree,
		SpecialFiles:  scanned.Special,
		Lookups: Lookups{
			PathToID:      make(map[string]int),
			FunctionFiles: make(map[string][]int),
			ClassFiles:    make(map[string][]int),
		},
		ReverseLookups: ReverseLookups{
			FunctionCallers:    make(map[string][]UsageSite),
			ClassInstantiators: make(map[string][]UsageSite),
			DecoratorUsage:     make(map[string][]string),
			ModuleImporters:    make(map[string][]string),
		},
	}

	totalLines := 0
	langSet := make(map[string]bool)
	var filesWithErrors []string
	fileErrors := make(map[string][]string)

	for i, r := range results {
		a := r.analysis
		rec := FileRecord{
			ID:           i,
			Path:         r.info.RelPath,
			Size:         r.info.Size,
			ModifiedTime: r.info.ModTime,
			Extension:    strings.ToLower(path.Ext(r.info.RelPath)),
			Language:     a.Language,
			Lines:        r.lines,
			Functions:    a.Functions,
			Classes:      a.Classes,
			Imports:      a.Imports,
		}
		if rec.Functions == nil {
			rec.Functions = []*analyze.Function{}
		}
		if rec.Classes == nil {
			rec.Classes = []*analyze.Class{}
		}
		if rec.Imports == nil {
			rec.Imports = []analyze.Import{}
		}

		idx.Files = append(idx.Files, rec)
		idx.Lookups.PathToID[rec.Path] = i
		totalLines += r.lines
		if a.Language != "" {
			langSet[a.Language] = true
		}
		if len(a.Errors) > 0 {
			filesWithErrors = append(filesWithErrors, rec.Path)
			fileErrors[rec.Path] = a.Errors
		}

		for _, fn := range rec.Functions {
			idx.Lookups.FunctionFiles[fn.Name] = appendUniqueInt(idx.Lookups.FunctionFiles[fn.Name], i)
			for _, d := range fn.Decorators {
				idx.ReverseLookups.DecoratorUsage[d] = appendUnique(idx.ReverseLookups.DecoratorUsage[d], rec.Path)
			}
		}
		for _, cls := range rec.Classes {
			idx.Lookups.ClassFiles[cls.Name] = appendUniqueInt(idx.Lookups.ClassFiles[cls.Name], i)
			for _, d := range cls.Decorators {
				idx.ReverseLookups.DecoratorUsage[d] = appendUnique(idx.ReverseLookups.DecoratorUsage[d], rec.Path)
			}
		}
		for _, imp := range rec.Imports {
			idx.ReverseLookups.ModuleImporters[imp.Module] = appendUnique(idx.ReverseLookups.ModuleImporters[imp.Module], rec.Path)
		}
	}

	b.resolve(idx, results)

	sort.Strings(filesWithErrors)
	langs := make([]string, 0, len(langSet))
	for lang := range langSet {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	idx.ProjectMetadata = ProjectMetadata{
		Name:           projectName,
		TotalFiles:     len(idx.Files),
		TotalLines:     totalLines,
		BuildTimestamp: time.Now().UTC(),
	}
	idx.IndexMetadata = IndexMetadata{
		Version:           currentIndexVersion,
		LanguagesAnalyzed: langs,
		FilesWithErrors:   filesWithErrors,
	}
	if len(filesWithErrors) > 0 {
		idx.IndexMetadata.FileErrors = fileErrors
	} else {
		idx.IndexMetadata.FilesWithErrors = []string{}
	}

	return idx
}

// resolve is the second pass: every call or instantiation mention is
// matched by name against the definition tables. An ambiguous name is
// attributed to every file that defines it; an unmatched mention stays
// outbound-only on its caller.
func (b *Builder) resolve(idx *StructuralIndex, results []fileResult) {
	for i, r := range results {
		callerPath := idx.Files[i].Path

		for _, site := range allCallSites(r.analysis) {
			if defs, ok := idx.Lookups.FunctionFiles[site.Name]; ok {
				ref := analyze.CallerRef{Caller: callerPath, Line: site.Line}
				for _, fileID := range defs {
					for _, fn := range idx.Files[fileID].Functions {
						if fn.Name == site.Name {
							fn.CalledBy = append(fn.CalledBy, ref)
						}
					}
				}
				idx.ReverseLookups.FunctionCallers[site.Name] = append(
					idx.ReverseLookups.FunctionCallers[site.Name],
					UsageSite{Caller: callerPath, Line: site.Line})
			}
			if defs, ok := idx.Lookups.ClassFiles[site.Name]; ok {
				ref := analyze.CallerRef{Caller: callerPath, Line: site.Line}
				for _, fileID := range defs {
					for _, cls := range idx.Files[fileID].Classes {
						if cls.Name == site.Name {
							cls.InstantiatedBy = append(cls.InstantiatedBy, ref)
						}
					}
				}
				idx.ReverseLookups.ClassInstantiators[site.Name] = append(
					idx.ReverseLookups.ClassInstantiators[site.Name],
					UsageSite{Caller: callerPath, Line: site.Line})
			}
		}
	}

	for name := range idx.ReverseLookups.FunctionCallers {
		sortSites(idx.ReverseLookups.FunctionCallers[name])
	}
	for name := range idx.ReverseLookups.ClassInstantiators {
		sortSites(idx.ReverseLookups.ClassInstantiators[name])
	}
}

// allCallSites returns every mention in a file, in a stable order. The
// file-level list already includes sites inside function bodies.
func allCallSites(a *analyze.FileAnalysis) []analyze.CallSite {
	sites := append([]analyze.CallSite{}, a.Calls...)
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Line != sites[j].Line {
			return sites[i].Line < sites[j].Line
		}
		return sites[i].Name < sites[j].Name
	})
	return sites
}

func sortSites(sites []UsageSite) {
	sort.Slice(sites, func(i, j int) bool {
		if sites[i].Caller != sites[j].Caller {
			return sites[i].Caller < sites[j].Caller
		}
		return sites[i].Line < sites[j].Line
	})
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

func appendUniqueInt(list []int, n int) []int {
	for _, v := range list {
		if v == n {
			return list
		}
	}
	return append(list, n)
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := 0
	for _, c := range content {
		if c == '\n' {
			n++
		}
	}
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

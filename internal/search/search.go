// Package search answers semantic queries over stored chunks and
// structural queries over a built index.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/index"
	"github.com/nickcecere/codemap/internal/store"
)

// Searcher provides semantic search over a project's chunk store.
type Searcher struct {
	store    store.Store
	embedder embeddings.Service
}

// Result represents a semantic search hit.
type Result struct {
	FilePath   string  `json:"file_path"`
	ChunkType  string  `json:"chunk_type"`
	SymbolName string  `json:"symbol_name,omitempty"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	Content    string  `json:"content,omitempty"`
	Language   string  `json:"language,omitempty"`
	CommitHash string  `json:"commit_hash,omitempty"`
	Score      float64 `json:"score"`    // 0-1, higher is better
	Distance   float64 `json:"distance"` // cosine distance
}

// Options configures a semantic search.
type Options struct {
	// Project is the name of the project to search.
	Project string

	// Owner scopes the project lookup to one identity. Empty is the
	// anonymous single-user owner.
	Owner string

	// TopK is the maximum number of results to return.
	TopK int

	// MinScore filters results below this similarity score.
	MinScore float64

	// IncludeContent includes the chunk content in results.
	IncludeContent bool
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:           10,
		MinScore:       0.0,
		IncludeContent: true,
	}
}

// New creates a new Searcher.
func New(st store.Store, embedder embeddings.Service) *Searcher {
	return &Searcher{store: st, embedder: embedder}
}

// Search embeds the query and returns the nearest chunks.
func (s *Searcher) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}

	project, err := s.store.GetProject(opts.Project, opts.Owner)
	if err != nil {
		return nil, err
	}

	log.Debug("Generating query embedding", "query", truncate(query, 50))
	queryEmbedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = 10
	}

	log.Debug("Searching project", "project", opts.Project, "topK", topK)
	hits, err := s.store.Search(project.ID, queryEmbedding, topK)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var results []Result
	for _, hit := range hits {
		if hit.Score < opts.MinScore {
			continue
		}
		result := Result{
			FilePath:   hit.Chunk.FilePath,
			ChunkType:  hit.Chunk.ChunkType,
			SymbolName: hit.Chunk.SymbolName,
			StartLine:  hit.Chunk.StartLine,
			EndLine:    hit.Chunk.EndLine,
			Language:   hit.Chunk.Language,
			CommitHash: hit.Chunk.Provenance.CommitHash,
			Score:      hit.Score,
			Distance:   hit.Distance,
		}
		if opts.IncludeContent {
			result.Content = hit.Chunk.Content
		}
		results = append(results, result)
	}
	return results, nil
}

// SymbolHit is a structural query result.
type SymbolHit struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // function or class
	Path      string `json:"path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
}

// Symbols finds functions and classes by exact name in a structural
// index. An ambiguous name returns one hit per defining file.
func Symbols(idx *index.StructuralIndex, name string) []SymbolHit {
	var hits []SymbolHit
	for _, id := range idx.Lookups.FunctionFiles[name] {
		for _, fn := range idx.Files[id].Functions {
			if fn.Name == name {
				hits = append(hits, SymbolHit{
					Name: name, Kind: "function", Path: idx.Files[id].Path,
					StartLine: fn.StartLine, EndLine: fn.EndLine,
				})
			}
		}
	}
	for _, id := range idx.Lookups.ClassFiles[name] {
		for _, cls := range idx.Files[id].Classes {
			if cls.Name == name {
				hits = append(hits, SymbolHit{
					Name: name, Kind: "class", Path: idx.Files[id].Path,
					StartLine: cls.StartLine, EndLine: cls.EndLine,
				})
			}
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Path != hits[j].Path {
			return hits[i].Path < hits[j].Path
		}
		return hits[i].StartLine < hits[j].StartLine
	})
	return hits
}

// Callers returns the recorded call sites of a function name.
func Callers(idx *index.StructuralIndex, name string) []index.UsageSite {
	return idx.ReverseLookups.FunctionCallers[name]
}

// Instantiators returns the recorded instantiation sites of a class
// name.
func Instantiators(idx *index.StructuralIndex, name string) []index.UsageSite {
	return idx.ReverseLookups.ClassInstantiators[name]
}

// Importers returns the files importing a module.
func Importers(idx *index.StructuralIndex, module string) []string {
	return idx.ReverseLookups.ModuleImporters[module]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}

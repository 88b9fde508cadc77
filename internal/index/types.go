// Package index builds the structural index: per-file analysis joined
// into forward and reverse lookup tables over the whole project.
package index

import (
	"time"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/scan"
)

// FileRecord is one indexed file. IDs are dense integers assigned in
// stable path order, unique within a single build.
type FileRecord struct {
	ID           int       `json:"id"`
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ModifiedTime time.Time `json:"modified_time"`
	Extension    string    `json:"extension"`
	Language     string    `json:"language,omitempty"`
	Lines        int       `json:"lines"`

	Functions []*analyze.Function `json:"functions"`
	Classes   []*analyze.Class    `json:"classes"`
	Imports   []analyze.Import    `json:"imports"`
}

// Lookups are the forward lookup tables. A function or class name may
// legitimately map to multiple files.
type Lookups struct {
	PathToID      map[string]int   `json:"path_to_id"`
	FunctionFiles map[string][]int `json:"function_files"`
	ClassFiles    map[string][]int `json:"class_files"`
}

// UsageSite is one resolved call or instantiation site.
type UsageSite struct {
	Caller string `json:"caller"` // relative path of the using file
	Line   int    `json:"line"`
}

// ReverseLookups answer "who uses this name" queries.
type ReverseLookups struct {
	FunctionCallers    map[string][]UsageSite `json:"function_callers"`
	ClassInstantiators map[string][]UsageSite `json:"class_instantiators"`
	DecoratorUsage     map[string][]string    `json:"decorator_usage"`
	ModuleImporters    map[string][]string    `json:"module_importers"`
}

// ProjectMetadata describes the indexed project.
type ProjectMetadata struct {
	Name           string    `json:"name"`
	TotalFiles     int       `json:"total_files"`
	TotalLines     int       `json:"total_lines"`
	BuildTimestamp time.Time `json:"build_timestamp"`
}

// IndexMetadata describes the build itself.
type IndexMetadata struct {
	Version           int      `json:"version"`
	AnalysisTimeMS    int64    `json:"analysis_time_ms"`
	LanguagesAnalyzed []string `json:"languages_analyzed"`
	FilesWithErrors   []string `json:"files_with_errors"`

	// FileErrors maps a path to its parse problems.
	FileErrors map[string][]string `json:"file_errors,omitempty"`
}

// StructuralIndex is the complete queryable index of one project.
// It is a pure function of file contents at scan time: rebuilding from
// identical inputs yields identical output except for timestamps.
type StructuralIndex struct {
	ProjectMetadata ProjectMetadata   `json:"project_metadata"`
	DirectoryTree   *scan.DirTree     `json:"directory_tree"`
	Files           []FileRecord      `json:"files"`
	Lookups         Lookups           `json:"lookups"`
	ReverseLookups  ReverseLookups    `json:"reverse_lookups"`
	SpecialFiles    scan.SpecialFiles `json:"special_files"`
	IndexMetadata   IndexMetadata     `json:"index_metadata"`
}

// FileByPath returns the record for a path, or nil.
func (idx *StructuralIndex) FileByPath(path string) *FileRecord {
	id, ok := idx.Lookups.PathToID[path]
	if !ok || id < 0 || id >= len(idx.Files) {
		return nil
	}
	return &idx.Files[id]
}

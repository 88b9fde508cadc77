// Package scan provides read-only project traversal for indexing.
package scan

import "time"

// FileInfo represents metadata about a scanned file.
type FileInfo struct {
	Path     string    // Absolute path to the file
	RelPath  string    // Forward-slash path relative to the project root
	Size     int64     // File size in bytes
	ModTime  time.Time // Last modification time
	Hash     string    // xxhash of file contents
	Language string    // Detected programming language (if applicable)
}

// Options configures the scanner.
type Options struct {
	// Root is the directory to start scanning from.
	Root string

	// MaxFileSize is the maximum file size to process (in bytes).
	MaxFileSize int64

	// MaxFileCount is the maximum number of files to process.
	MaxFileCount int

	// IgnorePatterns are additional patterns to ignore (gitignore syntax).
	IgnorePatterns []string

	// IncludeHidden includes hidden files and directories.
	IncludeHidden bool

	// UseGitignore respects the project's .gitignore file.
	UseGitignore bool

	// Extensions limits to specific file extensions (e.g., ".go", ".py").
	// Empty means all text files.
	Extensions []string
}

// DefaultOptions returns sensible defaults for scanning.
func DefaultOptions(root string) Options {
	return Options{
		Root:         root,
		MaxFileSize:  1024 * 1024, // 1MB
		MaxFileCount: 10000,
		UseGitignore: true,
	}
}

// Warning records a non-fatal problem encountered during a scan.
type Warning struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Stats contains statistics from a scan.
type Stats struct {
	FilesFound   int   // Total files found
	FilesSkipped int   // Files skipped due to size/pattern/etc
	DirsSkipped  int   // Directories skipped
	TotalBytes   int64 // Total bytes of files found
	SkippedBytes int64 // Total bytes of skipped files
}

// DirTree is a nested directory tree keyed by path segment.
// Leaf entries (files) have a nil Children map.
type DirTree struct {
	Children map[string]*DirTree `json:"children,omitempty"`
}

// SpecialFiles categorizes notable project files by role.
type SpecialFiles struct {
	EntryPoints []string `json:"entry_points"`
	ConfigFiles []string `json:"config_files"`
	Docs        []string `json:"documentation"`
	BuildFiles  []string `json:"build_files"`
}

// Result is the output of a full project scan.
type Result struct {
	Root     string       // Absolute project root
	Files    []FileInfo   // Ordered by relative path
	Tree     *DirTree     // Nested directory tree
	Special  SpecialFiles // Categorized special files
	Warnings []Warning    // Non-fatal problems
	Stats    Stats        // Traversal statistics
}

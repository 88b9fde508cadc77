package scan

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Ignorer defines the interface for exclusion pattern matching.
type Ignorer interface {
	MatchesPath(path string) bool
}

// combinedIgnorer wraps the project .gitignore and the configured patterns.
type combinedIgnorer struct {
	file     *gitignore.GitIgnore
	patterns *gitignore.GitIgnore
}

// MatchesPath returns true if the path matches any ignore pattern.
func (c *combinedIgnorer) MatchesPath(path string) bool {
	return c.file.MatchesPath(path) || c.patterns.MatchesPath(path)
}

// Scanner walks a project tree and produces the eligible file list,
// directory tree, and special-file categorization. It is read-only.
type Scanner struct {
	opts    Options
	ignorer Ignorer
	extSet  map[string]bool
}

// NewScanner creates a scanner for the given options.
func NewScanner(opts Options) (*Scanner, error) {
	// Ensure root is absolute
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path: %w", err)
	}
	opts.Root = root

	// Check root exists
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root path does not exist: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", root)
	}

	s := &Scanner{opts: opts}

	// Build extension set for fast lookup
	if len(opts.Extensions) > 0 {
		s.extSet = make(map[string]bool)
		for _, ext := range opts.Extensions {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.extSet[strings.ToLower(ext)] = true
		}
	}

	if err := s.initIgnorer(); err != nil {
		return nil, err
	}

	return s, nil
}

// initIgnorer initializes the gitignore matcher.
func (s *Scanner) initIgnorer() error {
	var patterns []string

	// Custom ignore patterns plus built-in defaults
	patterns = append(patterns, s.opts.IgnorePatterns...)
	patterns = append(patterns, defaultIgnorePatterns...)

	// Load .gitignore from root if it exists
	if s.opts.UseGitignore {
		gitignorePath := filepath.Join(s.opts.Root, ".gitignore")
		if _, err := os.Stat(gitignorePath); err == nil {
			gi, err := gitignore.CompileIgnoreFile(gitignorePath)
			if err != nil {
				log.Warn("Failed to parse .gitignore", "path", gitignorePath, "error", err)
			} else {
				combined := gitignore.CompileIgnoreLines(patterns...)
				s.ignorer = &combinedIgnorer{
					file:     gi,
					patterns: combined,
				}
				return nil
			}
		}
	}

	s.ignorer = gitignore.CompileIgnoreLines(patterns...)
	return nil
}

// Scan traverses the project and assembles the full scan result.
// Unreadable entries are recorded as warnings, never fatal.
func (s *Scanner) Scan() (*Result, error) {
	res := &Result{
		Root: s.opts.Root,
		Tree: &DirTree{Children: make(map[string]*DirTree)},
	}

	err := filepath.WalkDir(s.opts.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{
				Path:   relOrSelf(s.opts.Root, path),
				Reason: err.Error(),
			})
			res.Stats.DirsSkipped++
			return nil // Skip errors, continue walking
		}

		relPath := relOrSelf(s.opts.Root, path)

		if d.IsDir() {
			if path == s.opts.Root {
				return nil
			}
			if s.shouldSkipDir(d.Name(), relPath) {
				res.Stats.DirsSkipped++
				return filepath.SkipDir
			}
			return nil
		}

		// Check max file count
		if s.opts.MaxFileCount > 0 && res.Stats.FilesFound >= s.opts.MaxFileCount {
			return filepath.SkipAll
		}

		if s.shouldSkipFile(d.Name(), relPath) {
			res.Stats.FilesSkipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: relPath, Reason: err.Error()})
			res.Stats.FilesSkipped++
			return nil
		}

		// Check file size
		if s.opts.MaxFileSize > 0 && info.Size() > s.opts.MaxFileSize {
			res.Stats.FilesSkipped++
			res.Stats.SkippedBytes += info.Size()
			return nil
		}

		// Check extension filter
		if s.extSet != nil {
			ext := strings.ToLower(filepath.Ext(path))
			if !s.extSet[ext] {
				res.Stats.FilesSkipped++
				return nil
			}
		}

		// Check if file is binary
		if isBinary, err := isBinaryFile(path); err != nil || isBinary {
			if err != nil {
				res.Warnings = append(res.Warnings, Warning{Path: relPath, Reason: err.Error()})
			}
			res.Stats.FilesSkipped++
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			res.Warnings = append(res.Warnings, Warning{Path: relPath, Reason: err.Error()})
			res.Stats.FilesSkipped++
			return nil
		}

		res.Files = append(res.Files, FileInfo{
			Path:     path,
			RelPath:  filepath.ToSlash(relPath),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			Hash:     hash,
			Language: DetectLanguage(path),
		})

		res.Stats.FilesFound++
		res.Stats.TotalBytes += info.Size()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.opts.Root, err)
	}

	// Stable ordering so file identity assignment is deterministic
	sort.Slice(res.Files, func(i, j int) bool {
		return res.Files[i].RelPath < res.Files[j].RelPath
	})

	for _, fi := range res.Files {
		res.Tree.insert(fi.RelPath)
		categorizeSpecial(&res.Special, fi.RelPath)
	}

	return res, nil
}

// insert adds a forward-slash relative path to the tree.
func (t *DirTree) insert(relPath string) {
	node := t
	for _, seg := range strings.Split(relPath, "/") {
		if node.Children == nil {
			node.Children = make(map[string]*DirTree)
		}
		child, ok := node.Children[seg]
		if !ok {
			child = &DirTree{}
			node.Children[seg] = child
		}
		node = child
	}
}

// shouldSkipDir checks if a directory should be skipped.
func (s *Scanner) shouldSkipDir(name, relPath string) bool {
	// Always skip .git
	if name == ".git" {
		return true
	}

	// Skip hidden directories unless configured otherwise
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	// Check gitignore patterns
	if s.ignorer != nil && s.ignorer.MatchesPath(relPath+"/") {
		return true
	}

	return false
}

// shouldSkipFile checks if a file should be skipped.
func (s *Scanner) shouldSkipFile(name, relPath string) bool {
	// Skip hidden files unless configured otherwise
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return true
	}

	// Check gitignore patterns
	if s.ignorer != nil && s.ignorer.MatchesPath(relPath) {
		return true
	}

	return false
}

func relOrSelf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

// hashFile computes the xxhash of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%016x", h.Sum64()), nil
}

// HashContent computes the xxhash of content bytes.
func HashContent(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

// isBinaryFile checks if a file appears to be binary.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	// Read first 8KB
	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}

	return isBinaryContent(buf[:n]), nil
}

// isBinaryContent checks if content appears to be binary.
func isBinaryContent(content []byte) bool {
	if len(content) == 0 {
		return false
	}

	// Null bytes are a strong indicator of binary
	for _, b := range content {
		if b == 0 {
			return true
		}
	}

	// Count non-printable characters
	nonPrintable := 0
	for _, b := range content {
		if b < 32 && b != '\t' && b != '\n' && b != '\r' {
			nonPrintable++
		}
	}

	// If more than 30% non-printable, consider binary
	return float64(nonPrintable)/float64(len(content)) > 0.3
}

// Default patterns to ignore (common binary/generated files).
var defaultIgnorePatterns = []string{
	// Build outputs
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"out/",
	"target/",
	"bin/",
	"obj/",
	"__pycache__/",
	"*.min.js",
	"*.min.css",
	"*.bundle.js",

	// Package locks (often huge)
	"package-lock.json",
	"yarn.lock",
	"pnpm-lock.yaml",
	"Cargo.lock",
	"poetry.lock",
	"go.sum",

	// IDE/editor
	".idea/",
	".vscode/",
	"*.swp",
	"*.swo",
	"*~",

	// OS files
	".DS_Store",
	"Thumbs.db",

	// Binary file extensions
	"*.exe",
	"*.dll",
	"*.so",
	"*.dylib",
	"*.a",
	"*.o",
	"*.obj",
	"*.pyc",
	"*.pyo",
	"*.class",
	"*.jar",
	"*.zip",
	"*.tar",
	"*.gz",
	"*.bz2",
	"*.xz",
	"*.rar",
	"*.7z",
	"*.pdf",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.bmp",
	"*.ico",
	"*.svg",
	"*.mp3",
	"*.mp4",
	"*.wav",
	"*.woff",
	"*.woff2",
	"*.ttf",
	"*.eot",
	"*.otf",

	// Database files
	"*.db",
	"*.sqlite",
	"*.sqlite3",

	// Coverage and test artifacts
	"coverage/",
	".nyc_output/",
	"*.lcov",

	// Generated files
	"*.generated.*",
	"*.gen.*",
}

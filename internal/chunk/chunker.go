// Package chunk splits files into semantically bounded text chunks for
// embedding. Chunk identity is the content hash over normalized text,
// so a no-op edit or a re-run never changes a chunk's identity.
package chunk

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/nickcecere/codemap/internal/analyze"
)

// Type tags the origin of a chunk.
type Type string

const (
	TypeFunction Type = "function"
	TypeClass    Type = "class"
	TypeModule   Type = "module"
	TypeWindow   Type = "window"
)

// Chunk is a bounded unit of source text selected for embedding.
type Chunk struct {
	FilePath    string // forward-slash project-relative path
	Type        Type
	Name        string // function/class name, or "" for module/window chunks
	StartLine   int    // 1-indexed
	EndLine     int    // 1-indexed
	Content     string
	ContentHash string // xxhash over normalized content
	Language    string
}

// Options configures chunking.
type Options struct {
	// MaxLines is the maximum chunk size before a structural chunk is
	// split along statement boundaries.
	MaxLines int

	// WindowLines is the window size for unstructured content.
	WindowLines int

	// WindowOverlap is the line overlap between consecutive windows.
	WindowOverlap int
}

// DefaultOptions returns sensible chunking defaults.
func DefaultOptions() Options {
	return Options{
		MaxLines:      200,
		WindowLines:   60,
		WindowOverlap: 10,
	}
}

// Chunker splits file content into chunks.
type Chunker struct {
	opts Options
}

// New creates a chunker.
func New(opts Options) *Chunker {
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultOptions().MaxLines
	}
	if opts.WindowLines <= 0 {
		opts.WindowLines = DefaultOptions().WindowLines
	}
	if opts.WindowOverlap < 0 || opts.WindowOverlap >= opts.WindowLines {
		opts.WindowOverlap = DefaultOptions().WindowOverlap
	}
	return &Chunker{opts: opts}
}

// Chunk splits content into chunks. When the analysis carries structure
// (functions/classes), chunk boundaries follow the analyzer's line
// ranges; otherwise fixed overlapping windows are used.
func (c *Chunker) Chunk(relPath, content, language string, analysis *analyze.FileAnalysis) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(normalize(content), "\n")

	if analysis != nil && (len(analysis.Functions) > 0 || len(analysis.Classes) > 0) {
		return c.chunkStructured(relPath, language, lines, analysis)
	}
	return c.chunkWindows(relPath, language, lines)
}

// boundary is an internal view of one structural region.
type boundary struct {
	typ   Type
	name  string
	start int // 1-indexed
	end   int
}

// chunkStructured produces one chunk per top-level declaration, with
// leading module-level code captured as a module chunk. Declarations
// nested inside a class range (methods) are covered by the class chunk.
func (c *Chunker) chunkStructured(relPath, language string, lines []string, analysis *analyze.FileAnalysis) []Chunk {
	var bounds []boundary
	for _, cls := range analysis.Classes {
		bounds = append(bounds, boundary{TypeClass, cls.Name, cls.StartLine, cls.EndLine})
	}
	for _, fn := range analysis.Functions {
		if enclosed(fn.StartLine, fn.EndLine, bounds) {
			continue
		}
		bounds = append(bounds, boundary{TypeFunction, fn.Name, fn.StartLine, fn.EndLine})
	}
	sortBounds(bounds)

	var chunks []Chunk
	cursor := 1 // next unclaimed line

	flushGap := func(upto int) {
		// Module-level code between declarations becomes module chunks.
		if upto <= cursor {
			return
		}
		text := strings.Join(lines[cursor-1:upto-1], "\n")
		if strings.TrimSpace(text) == "" {
			return
		}
		chunks = append(chunks, c.emit(relPath, language, TypeModule, "", cursor, upto-1, text)...)
	}

	for _, b := range bounds {
		if b.start > len(lines) {
			break
		}
		end := b.end
		if end > len(lines) {
			end = len(lines)
		}
		// Decorator lines directly above the declaration belong to it.
		start := b.start
		for start-1 >= cursor && start-2 >= 0 && strings.HasPrefix(strings.TrimSpace(lines[start-2]), "@") {
			start--
		}
		flushGap(start)
		text := strings.Join(lines[start-1:end], "\n")
		chunks = append(chunks, c.emit(relPath, language, b.typ, b.name, start, end, text)...)
		if end+1 > cursor {
			cursor = end + 1
		}
	}
	flushGap(len(lines) + 1)

	return chunks
}

// emit creates a chunk, splitting oversized ones along statement
// boundaries (blank lines, falling back to hard splits).
func (c *Chunker) emit(relPath, language string, typ Type, name string, start, end int, text string) []Chunk {
	lines := strings.Split(text, "\n")
	if len(lines) <= c.opts.MaxLines {
		return []Chunk{c.build(relPath, language, typ, name, start, end, text)}
	}

	var chunks []Chunk
	segStart := 0
	for segStart < len(lines) {
		segEnd := segStart + c.opts.MaxLines
		if segEnd >= len(lines) {
			segEnd = len(lines)
		} else {
			// Prefer the last blank line in the window as the split point.
			split := -1
			for i := segEnd - 1; i > segStart; i-- {
				if strings.TrimSpace(lines[i]) == "" {
					split = i
					break
				}
			}
			if split > segStart {
				segEnd = split
			}
		}
		segText := strings.Join(lines[segStart:segEnd], "\n")
		if strings.TrimSpace(segText) != "" {
			part := fmt.Sprintf("%s[%d]", name, len(chunks)+1)
			if name == "" {
				part = ""
			}
			chunks = append(chunks, c.build(relPath, language, typ, part,
				start+segStart, start+segEnd-1, segText))
		}
		segStart = segEnd
		for segStart < len(lines) && strings.TrimSpace(lines[segStart]) == "" {
			segStart++
		}
	}
	return chunks
}

// chunkWindows produces overlapping fixed-size line windows for content
// the analyzer cannot structurally parse.
func (c *Chunker) chunkWindows(relPath, language string, lines []string) []Chunk {
	var chunks []Chunk
	step := c.opts.WindowLines - c.opts.WindowOverlap

	for start := 0; start < len(lines); start += step {
		end := start + c.opts.WindowLines
		if end > len(lines) {
			end = len(lines)
		}
		text := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, c.build(relPath, language, TypeWindow, "", start+1, end, text))
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}

func (c *Chunker) build(relPath, language string, typ Type, name string, start, end int, text string) Chunk {
	return Chunk{
		FilePath:    relPath,
		Type:        typ,
		Name:        name,
		StartLine:   start,
		EndLine:     end,
		Content:     text,
		ContentHash: Hash(text),
		Language:    language,
	}
}

// Hash computes the chunk identity hash over normalized content.
func Hash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalize(content)))
}

// normalize canonicalizes line endings and strips trailing whitespace
// per line, so identical logical content always hashes identically.
func normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	// Trailing blank lines do not change chunk identity.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func sortBounds(bounds []boundary) {
	for i := 1; i < len(bounds); i++ {
		for j := i; j > 0 && bounds[j].start < bounds[j-1].start; j-- {
			bounds[j], bounds[j-1] = bounds[j-1], bounds[j]
		}
	}
}

func enclosed(start, end int, bounds []boundary) bool {
	for _, b := range bounds {
		if b.typ == TypeClass && start >= b.start && end <= b.end {
			return true
		}
	}
	return false
}

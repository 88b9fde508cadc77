// Package analyze extracts structural facts from source files.
//
// Analyzers are pure: content in, facts out. Call and instantiation
// mentions are textual name matches, not type-resolved: a mention of
// name N is later attributed to every file defining N. See the index
// package for the resolution policy.
package analyze

import (
	"path/filepath"
	"strings"
)

// Language tags understood by the default registry.
const (
	LangPython     = "python"
	LangGo         = "go"
	LangJavaScript = "javascript"
	LangTypeScript = "typescript"
)

// Import style tags.
const (
	ImportPlain   = "import"  // import module
	ImportFrom    = "from"    // from module import names
	ImportRequire = "require" // const x = require("module")
	ImportES6     = "es6"     // import ... from "module"
)

// CallSite is a textual call or instantiation mention.
type CallSite struct {
	Name string `json:"name"`
	Line int    `json:"line"`
}

// CallerRef identifies a call site in another file. Populated only by
// the index resolution pass, never by analyzers.
type CallerRef struct {
	Caller string `json:"caller"` // relative path of the calling file
	Line   int    `json:"line"`
}

// Function is an extracted function or method declaration.
type Function struct {
	Name       string      `json:"name"`
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
	Params     []string    `json:"params,omitempty"`
	Decorators []string    `json:"decorators,omitempty"`
	Async      bool        `json:"async,omitempty"`
	Calls      []CallSite  `json:"calls,omitempty"`
	CalledBy   []CallerRef `json:"called_by,omitempty"`
}

// Class is an extracted class (or struct type) declaration.
type Class struct {
	Name           string      `json:"name"`
	StartLine      int         `json:"start_line"`
	EndLine        int         `json:"end_line"`
	Base           string      `json:"base,omitempty"`
	Decorators     []string    `json:"decorators,omitempty"`
	Methods        []string    `json:"methods,omitempty"`
	InstantiatedBy []CallerRef `json:"instantiated_by,omitempty"`
}

// Import is an extracted import statement. It is not resolved against
// target files; it only drives the module-importers reverse table.
type Import struct {
	Module string   `json:"module"`
	Names  []string `json:"names,omitempty"`
	Style  string   `json:"style"`
	Line   int      `json:"line"`
}

// FileAnalysis holds all structural facts for one file.
type FileAnalysis struct {
	Language  string      `json:"language,omitempty"`
	Functions []*Function `json:"functions"`
	Classes   []*Class    `json:"classes"`
	Imports   []Import    `json:"imports"`

	// Calls are all call/instantiation mentions in the file, including
	// those inside function bodies.
	Calls []CallSite `json:"-"`

	// Errors holds parse problems. A failed parse yields an entry here
	// and empty facts, never an aborted build.
	Errors []string `json:"analysis_errors,omitempty"`
}

// empty returns a metadata-only analysis for unsupported files.
func empty() *FileAnalysis {
	return &FileAnalysis{
		Functions: []*Function{},
		Classes:   []*Class{},
		Imports:   []Import{},
	}
}

// Analyzer extracts structural facts from file content.
type Analyzer interface {
	Analyze(path string, content []byte) *FileAnalysis
}

// Registry maps file extensions to language analyzers.
// Adding a language means registering a new variant here; call sites
// never branch on language.
type Registry struct {
	byExt  map[string]Analyzer
	byLang map[string]Analyzer
	langOf map[string]string // extension → language tag
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:  make(map[string]Analyzer),
		byLang: make(map[string]Analyzer),
		langOf: make(map[string]string),
	}
}

// Register adds an analyzer under the given language tag and extensions.
func (r *Registry) Register(lang string, exts []string, a Analyzer) {
	r.byLang[lang] = a
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.byExt[ext] = a
		r.langOf[ext] = lang
	}
}

// ForFile returns the analyzer and language tag for a path, or ok=false
// when the extension is unsupported.
func (r *Registry) ForFile(path string) (a Analyzer, lang string, ok bool) {
	ext := strings.ToLower(filepath.Ext(path))
	a, ok = r.byExt[ext]
	if !ok {
		return nil, "", false
	}
	return a, r.langOf[ext], true
}

// Analyze runs the analyzer selected by extension. An unsupported
// extension yields an empty, error-free result: the file is still
// indexed by metadata.
func (r *Registry) Analyze(path string, content []byte) *FileAnalysis {
	a, lang, ok := r.ForFile(path)
	if !ok {
		return empty()
	}
	res := a.Analyze(path, content)
	if res.Language == "" {
		res.Language = lang
	}
	return res
}

// Languages returns the registered language tags, for index metadata.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.byLang))
	for lang := range r.byLang {
		langs = append(langs, lang)
	}
	return langs
}

// DefaultRegistry returns a registry with all built-in analyzers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(LangPython, []string{".py", ".pyi"}, &PythonAnalyzer{})
	r.Register(LangGo, []string{".go"}, &GoAnalyzer{})
	r.Register(LangJavaScript, []string{".js", ".jsx", ".mjs", ".cjs"}, &JSAnalyzer{})
	r.Register(LangTypeScript, []string{".ts", ".tsx", ".mts", ".cts"}, &JSAnalyzer{})
	return r
}

// splitLines splits content into lines without dropping a trailing
// newline artifact that would shift line numbers.
func splitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	return strings.Split(text, "\n")
}

// indentOf returns the count of leading spaces (tabs count as 4).
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

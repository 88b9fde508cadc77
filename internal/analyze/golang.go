package analyze

import (
	"regexp"
	"strings"
)

// GoAnalyzer extracts structural facts from Go sources. Struct types
// are treated as classes so composite-literal construction feeds the
// instantiation reverse table.
type GoAnalyzer struct{}

var (
	goFuncPattern   = regexp.MustCompile(`^func\s+(?:\(\s*\w+\s+\*?([A-Za-z_][A-Za-z0-9_]*)\s*\)\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*\(([^)]*)`)
	goStructPattern = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+struct\s*\{`)
	goImportSingle  = regexp.MustCompile(`^import\s+(?:(\w+)\s+)?"([^"]+)"`)
	goImportLine    = regexp.MustCompile(`^\s*(?:(\w+)\s+)?"([^"]+)"`)
	goLiteral       = regexp.MustCompile(`(?:^|[^\w.])([A-Z][A-Za-z0-9_]*)\{`)
)

var goKeywords = map[string]bool{
	"if": true, "for": true, "switch": true, "select": true, "return": true,
	"go": true, "defer": true, "func": true, "range": true, "case": true,
	"make": true, "new": true, "len": true, "cap": true, "append": true,
	"copy": true, "delete": true, "panic": true, "recover": true,
	"close": true, "print": true, "println": true, "string": true,
	"int": true, "int32": true, "int64": true, "uint": true, "byte": true,
	"rune": true, "float32": true, "float64": true, "bool": true,
	"error": true, "any": true, "chan": true, "map": true, "interface": true,
	"struct": true, "type": true, "var": true, "const": true,
}

// Analyze extracts functions, struct types, imports, and call mentions.
func (a *GoAnalyzer) Analyze(path string, content []byte) *FileAnalysis {
	res := empty()
	res.Language = LangGo

	lines := splitLines(content)
	inImportBlock := false
	inBlockComment := false

	for i, raw := range lines {
		lineNum := i + 1
		line := raw

		if inBlockComment {
			if idx := strings.Index(line, "*/"); idx >= 0 {
				line = line[idx+2:]
				inBlockComment = false
			} else {
				continue
			}
		}
		if idx := strings.Index(line, "/*"); idx >= 0 && !strings.Contains(line[:idx], "//") {
			inBlockComment = !strings.Contains(line[idx:], "*/")
			line = line[:idx]
		}
		line = stripLineComment(line, "//")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		// Import block handling
		if strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if inImportBlock {
			if trimmed == ")" {
				inImportBlock = false
				continue
			}
			if m := goImportLine.FindStringSubmatch(line); m != nil {
				res.Imports = append(res.Imports, Import{
					Module: m[2],
					Style:  ImportPlain,
					Line:   lineNum,
				})
			}
			continue
		}
		if m := goImportSingle.FindStringSubmatch(line); m != nil {
			res.Imports = append(res.Imports, Import{
				Module: m[2],
				Style:  ImportPlain,
				Line:   lineNum,
			})
			continue
		}

		if m := goStructPattern.FindStringSubmatch(line); m != nil {
			res.Classes = append(res.Classes, &Class{
				Name:      m[1],
				StartLine: lineNum,
				EndLine:   braceEnd(lines, i),
			})
			continue
		}

		if m := goFuncPattern.FindStringSubmatch(line); m != nil {
			fn := &Function{
				Name:      m[2],
				StartLine: lineNum,
				EndLine:   braceEnd(lines, i),
				Params:    goParams(m[3]),
			}
			res.Functions = append(res.Functions, fn)
			// Attribute methods to their receiver struct when present.
			if m[1] != "" {
				for _, cls := range res.Classes {
					if cls.Name == m[1] {
						cls.Methods = append(cls.Methods, fn.Name)
					}
				}
			}
			continue
		}

		res.Calls = append(res.Calls, extractCalls(line, lineNum, goKeywords)...)

		// Composite literals read as instantiation mentions.
		for _, m := range goLiteral.FindAllStringSubmatch(line, -1) {
			res.Calls = append(res.Calls, CallSite{Name: m[1], Line: lineNum})
		}
	}

	attachCalls(res)
	return res
}

// braceEnd finds the line of the closing brace matching the first
// opening brace at or after startLine.
func braceEnd(lines []string, startLine int) int {
	depth := 0
	opened := false
	for i := startLine; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				opened = true
			case '}':
				depth--
				if opened && depth == 0 {
					return i + 1
				}
			}
		}
	}
	return len(lines)
}

func goParams(sig string) []string {
	var params []string
	for _, p := range strings.Split(sig, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// "name type" or bare type; keep the name when present.
		fields := strings.Fields(p)
		if len(fields) >= 2 {
			params = append(params, fields[0])
		}
	}
	return params
}

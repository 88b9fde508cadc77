package analyze

import (
	"regexp"
	"strings"
)

// JSAnalyzer extracts structural facts from JavaScript and TypeScript
// sources. One analyzer serves both: the declaration grammar they share
// is what the heuristics key on.
type JSAnalyzer struct{}

var (
	jsFuncPattern  = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?(async\s+)?function\s*\*?\s*([A-Za-z_$][A-Za-z0-9_$]*)\s*\(([^)]*)`)
	jsArrowPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(async\s+)?(?:\([^)]*\)|[A-Za-z_$][A-Za-z0-9_$]*)\s*=>`)
	jsClassPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][A-Za-z0-9_$]*)(?:\s+extends\s+([A-Za-z_$][\w$.]*))?`)
	jsImportES6    = regexp.MustCompile(`^\s*import\s+(.+?)\s+from\s+['"]([^'"]+)['"]`)
	jsImportBare   = regexp.MustCompile(`^\s*import\s+['"]([^'"]+)['"]`)
	jsRequire      = regexp.MustCompile(`(?:const|let|var)\s+(\{[^}]*\}|[A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*require\(\s*['"]([^'"]+)['"]`)
	jsNewPattern   = regexp.MustCompile(`new\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*\(`)
	jsMethodHint   = regexp.MustCompile(`^\s*(async\s+)?([A-Za-z_$][A-Za-z0-9_$]*)\s*\([^)]*\)\s*\{`)
)

var jsKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"catch": true, "function": true, "typeof": true, "await": true,
	"require": true, "new": true, "super": true, "constructor": true,
	"String": true, "Number": true, "Boolean": true, "Array": true,
	"Object": true, "Promise": true, "Error": true, "Symbol": true,
	"parseInt": true, "parseFloat": true, "setTimeout": true,
	"setInterval": true, "console": true, "JSON": true,
}

// Analyze extracts functions, classes, imports, and call mentions.
func (a *JSAnalyzer) Analyze(path string, content []byte) *FileAnalysis {
	res := empty()

	lines := splitLines(content)
	inBlockComment := false
	var openClass *Class
	classDepth := 0
	depth := 0

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
		if idx := strings.Index(line, "/*"); idx >= 0 {
			inBlockComment = !strings.Contains(line[idx:], "*/")
			line = line[:idx]
		}
		line = stripLineComment(line, "//")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if openClass != nil && depth < classDepth {
			openClass = nil
		}

		switch {
		case jsImportES6.MatchString(line):
			m := jsImportES6.FindStringSubmatch(line)
			res.Imports = append(res.Imports, Import{
				Module: m[2],
				Names:  jsImportNames(m[1]),
				Style:  ImportES6,
				Line:   lineNum,
			})
		case jsImportBare.MatchString(line):
			m := jsImportBare.FindStringSubmatch(line)
			res.Imports = append(res.Imports, Import{
				Module: m[1],
				Style:  ImportES6,
				Line:   lineNum,
			})
		case jsRequire.MatchString(line):
			m := jsRequire.FindStringSubmatch(line)
			res.Imports = append(res.Imports, Import{
				Module: m[2],
				Names:  jsImportNames(m[1]),
				Style:  ImportRequire,
				Line:   lineNum,
			})
		case jsClassPattern.MatchString(line):
			m := jsClassPattern.FindStringSubmatch(line)
			cls := &Class{
				Name:      m[1],
				StartLine: lineNum,
				EndLine:   braceEnd(lines, i),
				Base:      m[2],
			}
			res.Classes = append(res.Classes, cls)
			openClass = cls
			classDepth = depth + 1
		case jsFuncPattern.MatchString(line):
			m := jsFuncPattern.FindStringSubmatch(line)
			res.Functions = append(res.Functions, &Function{
				Name:      m[2],
				StartLine: lineNum,
				EndLine:   braceEnd(lines, i),
				Params:    jsParams(m[3]),
				Async:     m[1] != "",
			})
		case jsArrowPattern.MatchString(line):
			m := jsArrowPattern.FindStringSubmatch(line)
			res.Functions = append(res.Functions, &Function{
				Name:      m[1],
				StartLine: lineNum,
				EndLine:   arrowEnd(lines, i),
				Async:     m[2] != "",
			})
		default:
			if openClass != nil {
				if m := jsMethodHint.FindStringSubmatch(line); m != nil && !jsKeywords[m[2]] {
					openClass.Methods = append(openClass.Methods, m[2])
					depth += strings.Count(line, "{") - strings.Count(line, "}")
					continue
				}
			}
			// Record constructor mentions once, then plain calls on the
			// remainder so "new Foo()" is not double counted.
			for _, m := range jsNewPattern.FindAllStringSubmatch(line, -1) {
				res.Calls = append(res.Calls, CallSite{Name: m[1], Line: lineNum})
			}
			rest := jsNewPattern.ReplaceAllString(line, "")
			res.Calls = append(res.Calls, extractCalls(rest, lineNum, jsKeywords)...)
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}

	attachCalls(res)
	return res
}

// arrowEnd estimates the last line of an arrow function: single-line
// bodies end where they start, braced bodies end at the matching brace.
func arrowEnd(lines []string, startLine int) int {
	if strings.Contains(lines[startLine], "{") {
		return braceEnd(lines, startLine)
	}
	return startLine + 1
}

func jsImportNames(clause string) []string {
	clause = strings.Trim(clause, "{} ")
	var names []string
	for _, n := range strings.Split(clause, ",") {
		n = strings.TrimSpace(n)
		if n == "" || n == "*" {
			continue
		}
		if idx := strings.Index(n, " as "); idx >= 0 {
			n = n[:idx]
		}
		names = append(names, strings.TrimSpace(n))
	}
	return names
}

func jsParams(sig string) []string {
	var params []string
	for _, p := range strings.Split(sig, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Drop TypeScript annotations and defaults.
		if idx := strings.IndexAny(p, ":="); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}
		p = strings.TrimLeft(p, ".")
		if p != "" {
			params = append(params, p)
		}
	}
	return params
}

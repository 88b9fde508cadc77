package analyze

import (
	"fmt"
	"regexp"
	"strings"
)

// PythonAnalyzer extracts structural facts from Python sources using
// line-level pattern matching. It is tolerant by design: malformed
// code yields partial facts plus an analysis error, never a failure.
type PythonAnalyzer struct{}

var (
	pyDefPattern    = regexp.MustCompile(`^(\s*)(async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(`)
	pyClassPattern  = regexp.MustCompile(`^(\s*)class\s+([A-Za-z_][A-Za-z0-9_]*)\s*(\(([^)]*)\))?\s*:`)
	pyImportPattern = regexp.MustCompile(`^\s*import\s+([A-Za-z_][\w.]*)(\s+as\s+\w+)?`)
	pyFromPattern   = regexp.MustCompile(`^\s*from\s+([A-Za-z_][\w.]*)\s+import\s+(.+)`)
	pyDecorator     = regexp.MustCompile(`^\s*@([A-Za-z_][\w.]*)`)
)

var pyKeywords = map[string]bool{
	"if": true, "elif": true, "while": true, "for": true, "return": true,
	"yield": true, "assert": true, "raise": true, "with": true, "not": true,
	"and": true, "or": true, "in": true, "is": true, "lambda": true,
	"def": true, "class": true, "print": true, "len": true, "range": true,
	"str": true, "int": true, "float": true, "bool": true, "list": true,
	"dict": true, "set": true, "tuple": true, "type": true, "super": true,
	"isinstance": true, "enumerate": true, "zip": true, "open": true,
	"getattr": true, "setattr": true, "hasattr": true, "repr": true,
}

// Analyze extracts functions, classes, imports, and call mentions.
func (a *PythonAnalyzer) Analyze(path string, content []byte) *FileAnalysis {
	res := empty()
	res.Language = LangPython

	defer func() {
		if r := recover(); r != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("python analysis panic: %v", r))
			res.Functions = []*Function{}
			res.Classes = []*Class{}
			res.Imports = []Import{}
			res.Calls = nil
		}
	}()

	lines := splitLines(content)

	var pendingDecorators []string
	var openClasses []*Class // innermost last
	classIndents := []int{}

	for i, raw := range lines {
		lineNum := i + 1
		line := stripLineComment(raw, "#")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		indent := indentOf(line)

		// Close class scopes that this line dedents out of.
		for len(openClasses) > 0 && indent <= classIndents[len(classIndents)-1] {
			openClasses = openClasses[:len(openClasses)-1]
			classIndents = classIndents[:len(classIndents)-1]
		}

		if m := pyDecorator.FindStringSubmatch(line); m != nil {
			pendingDecorators = append(pendingDecorators, m[1])
			continue
		}

		if m := pyClassPattern.FindStringSubmatch(line); m != nil {
			cls := &Class{
				Name:       m[2],
				StartLine:  lineNum,
				EndLine:    blockEnd(lines, i, indent),
				Decorators: pendingDecorators,
			}
			if m[4] != "" {
				// First base only; multiple inheritance keeps the head.
				bases := strings.Split(m[4], ",")
				cls.Base = strings.TrimSpace(bases[0])
				if cls.Base == "object" {
					cls.Base = ""
				}
			}
			pendingDecorators = nil
			res.Classes = append(res.Classes, cls)
			openClasses = append(openClasses, cls)
			classIndents = append(classIndents, indent)
			continue
		}

		if m := pyDefPattern.FindStringSubmatch(line); m != nil {
			fn := &Function{
				Name:       m[3],
				StartLine:  lineNum,
				EndLine:    blockEnd(lines, i, indent),
				Params:     pySignatureParams(lines, i),
				Decorators: pendingDecorators,
				Async:      m[2] != "",
			}
			pendingDecorators = nil
			res.Functions = append(res.Functions, fn)
			if len(openClasses) > 0 {
				inner := openClasses[len(openClasses)-1]
				inner.Methods = append(inner.Methods, fn.Name)
			}
			continue
		}

		pendingDecorators = nil

		if m := pyFromPattern.FindStringSubmatch(line); m != nil {
			res.Imports = append(res.Imports, Import{
				Module: m[1],
				Names:  splitImportNames(m[2]),
				Style:  ImportFrom,
				Line:   lineNum,
			})
			continue
		}
		if m := pyImportPattern.FindStringSubmatch(line); m != nil {
			res.Imports = append(res.Imports, Import{
				Module: m[1],
				Style:  ImportPlain,
				Line:   lineNum,
			})
			continue
		}

		res.Calls = append(res.Calls, extractCalls(line, lineNum, pyKeywords)...)
	}

	attachCalls(res)
	return res
}

// blockEnd finds the last line of an indented block opened at defLine.
func blockEnd(lines []string, defLine, defIndent int) int {
	end := defLine + 1
	for i := defLine + 1; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if trimmed == "" {
			continue
		}
		if indentOf(lines[i]) <= defIndent {
			break
		}
		end = i + 1
	}
	return end
}

// pySignatureParams collects parameter names from a def signature,
// which may span multiple lines.
func pySignatureParams(lines []string, defLine int) []string {
	var sig strings.Builder
	depth := 0
	started := false
	for i := defLine; i < len(lines) && i < defLine+20; i++ {
		for _, r := range lines[i] {
			if r == '(' {
				depth++
				started = true
				if depth == 1 {
					continue
				}
			}
			if r == ')' {
				depth--
				if depth == 0 {
					goto done
				}
			}
			if started && depth >= 1 {
				sig.WriteRune(r)
			}
		}
		sig.WriteRune(' ')
		if started && depth == 0 {
			break
		}
	}
done:
	var params []string
	for _, p := range strings.Split(sig.String(), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Drop annotations and defaults.
		if idx := strings.IndexAny(p, ":="); idx >= 0 {
			p = strings.TrimSpace(p[:idx])
		}
		p = strings.TrimLeft(p, "*")
		if p == "" || p == "self" || p == "cls" {
			continue
		}
		params = append(params, p)
	}
	return params
}

func splitImportNames(clause string) []string {
	clause = strings.Trim(clause, "() ")
	var names []string
	for _, n := range strings.Split(clause, ",") {
		n = strings.TrimSpace(n)
		if n == "" || n == "\\" {
			continue
		}
		// Strip "as alias".
		if idx := strings.Index(n, " as "); idx >= 0 {
			n = n[:idx]
		}
		names = append(names, strings.TrimSpace(n))
	}
	return names
}

// attachCalls distributes file-level call mentions to the functions
// whose line ranges enclose them, keeping the file-level list intact
// for the resolution pass.
func attachCalls(res *FileAnalysis) {
	for _, call := range res.Calls {
		var innermost *Function
		for _, fn := range res.Functions {
			if call.Line >= fn.StartLine && call.Line <= fn.EndLine {
				if innermost == nil || fn.StartLine > innermost.StartLine {
					innermost = fn
				}
			}
		}
		if innermost != nil {
			innermost.Calls = append(innermost.Calls, call)
		}
	}
}

package analyze

import "regexp"

// callPattern matches a bare identifier followed by an open paren.
// Attribute/selector calls (x.foo()) are excluded by the byte check
// below: only the receiver-less name form participates in name-based
// resolution.
var callPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// extractCalls pulls call mentions out of one line of source.
// keywords are language keywords that look like calls (if, for, ...)
// and are never recorded.
func extractCalls(line string, lineNum int, keywords map[string]bool) []CallSite {
	var calls []CallSite
	for _, m := range callPattern.FindAllStringSubmatchIndex(line, -1) {
		start, end := m[2], m[3]
		name := line[start:end]
		if keywords[name] {
			continue
		}
		// Skip attribute calls and anything glued to a preceding word.
		if start > 0 {
			prev := line[start-1]
			if prev == '.' || prev == '_' ||
				(prev >= 'a' && prev <= 'z') || (prev >= 'A' && prev <= 'Z') ||
				(prev >= '0' && prev <= '9') {
				continue
			}
		}
		calls = append(calls, CallSite{Name: name, Line: lineNum})
	}
	return calls
}

// stripLineComment cuts a line at the first occurrence of marker that
// is not inside a quoted string.
func stripLineComment(line, marker string) string {
	inSingle, inDouble := false, false
	for i := 0; i+len(marker) <= len(line); i++ {
		switch line[i] {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		}
		if !inSingle && !inDouble && line[i:i+len(marker)] == marker {
			return line[:i]
		}
	}
	return line
}

package scan

import (
	"path/filepath"
	"strings"
)

// Filename heuristics for special-file categorization.
var (
	entryPointNames = map[string]bool{
		"main.go":     true,
		"main.py":     true,
		"__main__.py": true,
		"app.py":      true,
		"manage.py":   true,
		"index.js":    true,
		"index.ts":    true,
		"server.js":   true,
		"server.ts":   true,
		"main.rs":     true,
		"Main.java":   true,
	}

	configNames = map[string]bool{
		"pyproject.toml":     true,
		"setup.py":           true,
		"setup.cfg":          true,
		"requirements.txt":   true,
		"package.json":       true,
		"tsconfig.json":      true,
		"go.mod":             true,
		"Cargo.toml":         true,
		"pom.xml":            true,
		"build.gradle":       true,
		".editorconfig":      true,
		"docker-compose.yml": true,
	}

	buildNames = map[string]bool{
		"Makefile":    true,
		"makefile":    true,
		"Dockerfile":  true,
		"Justfile":    true,
		"BUILD":       true,
		"WORKSPACE":   true,
		"CMakeLists.txt": true,
	}
)

// categorizeSpecial buckets a file into the special-file sets when its
// name or extension marks it as notable. A file lands in at most one bucket.
func categorizeSpecial(sp *SpecialFiles, relPath string) {
	name := filepath.Base(relPath)

	switch {
	case entryPointNames[name]:
		sp.EntryPoints = append(sp.EntryPoints, relPath)
	case buildNames[name]:
		sp.BuildFiles = append(sp.BuildFiles, relPath)
	case configNames[name] || isConfigExt(name):
		sp.ConfigFiles = append(sp.ConfigFiles, relPath)
	case isDocFile(name):
		sp.Docs = append(sp.Docs, relPath)
	}
}

func isConfigExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".toml", ".ini", ".cfg", ".conf":
		return true
	}
	return false
}

func isDocFile(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasPrefix(lower, "readme") || strings.HasPrefix(lower, "changelog") ||
		strings.HasPrefix(lower, "license") || strings.HasPrefix(lower, "contributing") {
		return true
	}
	switch filepath.Ext(lower) {
	case ".md", ".markdown", ".rst":
		return true
	}
	return false
}

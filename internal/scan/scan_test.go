package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDetectLanguage tests language detection from file paths.
func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"main.go", LangGo},
		{"app.ts", LangTypeScript},
		{"component.tsx", LangTypeScript},
		{"script.js", LangJavaScript},
		{"utils.py", LangPython},
		{"lib.rs", LangRust},
		{"README.md", LangMarkdown},
		{"config.yaml", LangYAML},
		{"Makefile", LangShell},
		{"unknown.xyz", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.path))
		})
	}
}

// TestHashContent tests content hashing.
func TestHashContent(t *testing.T) {
	content := []byte("hello world")
	hash1 := HashContent(content)
	hash2 := HashContent(content)
	assert.Equal(t, hash1, hash2)

	hash3 := HashContent([]byte("hello world!"))
	assert.NotEqual(t, hash1, hash3)

	// Hash should be 16 hex characters (64 bits)
	assert.Len(t, hash1, 16)
}

// TestIsBinaryContent tests binary detection.
func TestIsBinaryContent(t *testing.T) {
	assert.False(t, isBinaryContent([]byte("Hello, World!\n")))
	assert.False(t, isBinaryContent([]byte("line1\nline2\tindented")))
	assert.True(t, isBinaryContent([]byte("hello\x00world")))
	assert.False(t, isBinaryContent([]byte{}))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "print('hi')\n")
	writeFile(t, root, "pkg/util.py", "def helper():\n    return 1\n")
	writeFile(t, root, "README.md", "# demo\n")
	writeFile(t, root, "Makefile", "all:\n\ttrue\n")
	writeFile(t, root, "node_modules/dep/index.js", "module.exports = {}\n")
	writeFile(t, root, ".hidden/secret.py", "x = 1\n")

	scanner, err := NewScanner(DefaultOptions(root))
	require.NoError(t, err)

	res, err := scanner.Scan()
	require.NoError(t, err)

	var paths []string
	for _, fi := range res.Files {
		paths = append(paths, fi.RelPath)
	}

	// Ordered by relative path, exclusions applied
	assert.Equal(t, []string{"Makefile", "README.md", "main.py", "pkg/util.py"}, paths)
	assert.NotContains(t, paths, "node_modules/dep/index.js")
	assert.NotContains(t, paths, ".hidden/secret.py")

	// Every record carries a hash and language
	for _, fi := range res.Files {
		assert.NotEmpty(t, fi.Hash, fi.RelPath)
	}
	assert.Equal(t, LangPython, res.Files[2].Language)

	// Directory tree is keyed by path segment
	require.Contains(t, res.Tree.Children, "pkg")
	assert.Contains(t, res.Tree.Children["pkg"].Children, "util.py")

	// Special files categorized
	assert.Contains(t, res.Special.Docs, "README.md")
	assert.Contains(t, res.Special.BuildFiles, "Makefile")

	assert.Equal(t, 4, res.Stats.FilesFound)
}

func TestScanRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated/\n")
	writeFile(t, root, "src/app.py", "x = 1\n")
	writeFile(t, root, "generated/out.py", "y = 2\n")

	scanner, err := NewScanner(DefaultOptions(root))
	require.NoError(t, err)

	res, err := scanner.Scan()
	require.NoError(t, err)

	var paths []string
	for _, fi := range res.Files {
		paths = append(paths, fi.RelPath)
	}
	assert.Equal(t, []string{"src/app.py"}, paths)
}

func TestScanExtensionFilter(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "x = 1\n")
	writeFile(t, root, "b.js", "var x = 1\n")

	opts := DefaultOptions(root)
	opts.Extensions = []string{"py"}
	scanner, err := NewScanner(opts)
	require.NoError(t, err)

	res, err := scanner.Scan()
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "a.py", res.Files[0].RelPath)
}

func TestScanMissingRoot(t *testing.T) {
	_, err := NewScanner(DefaultOptions(filepath.Join(t.TempDir(), "nope")))
	assert.Error(t, err)
}

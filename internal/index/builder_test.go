package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/scan"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func buildIndex(t *testing.T, root string) *StructuralIndex {
	t.Helper()
	scanner, err := scan.NewScanner(scan.DefaultOptions(root))
	require.NoError(t, err)
	scanned, err := scanner.Scan()
	require.NoError(t, err)

	idx, err := NewBuilder(analyze.DefaultRegistry(), 2).Build(context.Background(), "proj", scanned)
	require.NoError(t, err)
	return idx
}

func TestBuildAssignsDenseStableIDs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.py", "x = 1\n")
	writeFile(t, root, "a.py", "y = 2\n")
	writeFile(t, root, "pkg/c.py", "z = 3\n")

	idx := buildIndex(t, root)
	require.Len(t, idx.Files, 3)

	// Dense IDs follow stable path order.
	assert.Equal(t, "a.py", idx.Files[0].Path)
	assert.Equal(t, "b.py", idx.Files[1].Path)
	assert.Equal(t, "pkg/c.py", idx.Files[2].Path)
	for i, f := range idx.Files {
		assert.Equal(t, i, f.ID)
		assert.Equal(t, i, idx.Lookups.PathToID[f.Path])
	}

	assert.Equal(t, 3, idx.ProjectMetadata.TotalFiles)
	assert.Equal(t, 3, idx.ProjectMetadata.TotalLines)
	assert.Equal(t, []string{"python"}, idx.IndexMetadata.LanguagesAnalyzed)
}

func TestReverseLookupConsistency(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "util.py", "def helper():\n    return 1\n")
	writeFile(t, root, "main.py", "from util import helper\n\nresult = helper()\n")

	idx := buildIndex(t, root)

	callers := idx.ReverseLookups.FunctionCallers["helper"]
	require.NotEmpty(t, callers)
	assert.Equal(t, "main.py", callers[0].Caller)
	assert.Equal(t, 3, callers[0].Line)

	// The definition's inbound list matches the reverse table.
	util := idx.FileByPath("util.py")
	require.NotNil(t, util)
	require.Len(t, util.Functions, 1)
	require.NotEmpty(t, util.Functions[0].CalledBy)
	assert.Equal(t, "main.py", util.Functions[0].CalledBy[0].Caller)

	assert.Equal(t, []string{"main.py"}, idx.ReverseLookups.ModuleImporters["util"])
}

func TestAmbiguousNameAttributedToAll(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "one.py", "def process(data):\n    return data\n")
	writeFile(t, root, "two.py", "def process(data):\n    return data * 2\n")
	writeFile(t, root, "main.py", "out = process([])\n")

	idx := buildIndex(t, root)

	defs := idx.Lookups.FunctionFiles["process"]
	require.Len(t, defs, 2)

	// Both definitions carry the call site.
	for _, path := range []string{"one.py", "two.py"} {
		rec := idx.FileByPath(path)
		require.NotNil(t, rec)
		require.Len(t, rec.Functions, 1)
		require.Len(t, rec.Functions[0].CalledBy, 1)
		assert.Equal(t, "main.py", rec.Functions[0].CalledBy[0].Caller)
	}

	// The reverse table records the site once.
	assert.Len(t, idx.ReverseLookups.FunctionCallers["process"], 1)
}

func TestClassInstantiators(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "models.py", "class Widget:\n    def __init__(self):\n        self.x = 1\n")
	writeFile(t, root, "main.py", "from models import Widget\n\nw = Widget()\n")

	idx := buildIndex(t, root)

	sites := idx.ReverseLookups.ClassInstantiators["Widget"]
	require.NotEmpty(t, sites)
	assert.Equal(t, "main.py", sites[0].Caller)

	models := idx.FileByPath("models.py")
	require.NotNil(t, models)
	require.Len(t, models.Classes, 1)
	require.NotEmpty(t, models.Classes[0].InstantiatedBy)
	assert.Equal(t, "main.py", models.Classes[0].InstantiatedBy[0].Caller)
}

func TestDecoratorUsage(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.py", "@route\ndef handler():\n    return 1\n\n\n@route\ndef other():\n    return 2\n")

	idx := buildIndex(t, root)
	assert.Equal(t, []string{"app.py"}, idx.ReverseLookups.DecoratorUsage["route"])
}

func TestUnsupportedExtensionIsMetadataOnly(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "data.cfg", "key = value\n")

	idx := buildIndex(t, root)

	rec := idx.FileByPath("data.cfg")
	require.NotNil(t, rec)
	assert.Empty(t, rec.Functions)
	assert.Empty(t, rec.Classes)
	assert.Empty(t, rec.Imports)
	assert.NotContains(t, idx.IndexMetadata.FilesWithErrors, "data.cfg")
	assert.Greater(t, rec.Lines, 0)
}

func TestBuildDeterministic(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def f():\n    return g()\n")
	writeFile(t, root, "b.py", "def g():\n    return 1\n")
	writeFile(t, root, "c.js", "function h() { return 2; }\n")

	first := buildIndex(t, root)
	second := buildIndex(t, root)

	// Identical inputs produce identical output, timestamps aside.
	normalize := func(idx *StructuralIndex) []byte {
		idx.ProjectMetadata.BuildTimestamp = time.Time{}
		idx.IndexMetadata.AnalysisTimeMS = 0
		data, err := json.Marshal(idx)
		require.NoError(t, err)
		return data
	}
	assert.Equal(t, normalize(first), normalize(second))
}

package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/chunk"
	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/index"
	"github.com/nickcecere/codemap/internal/ingest"
	"github.com/nickcecere/codemap/internal/scan"
	"github.com/nickcecere/codemap/internal/store"
)

func seedProject(t *testing.T) (*Searcher, string) {
	t.Helper()

	root := t.TempDir()
	files := map[string]string{
		"config.py": "def parse_config(path):\n    return read_yaml(path)\n",
		"render.py": "def render_template(name):\n    return lookup(name)\n",
	}
	for rel, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0644))
	}

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 32)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	embedder := embeddings.NewMockService(32)
	pipeline := ingest.New(st, embedder, chunk.New(chunk.DefaultOptions()), analyze.DefaultRegistry(), 10)
	_, err = pipeline.IngestDir(context.Background(), "api", nil, scan.DefaultOptions(root))
	require.NoError(t, err)

	return New(st, embedder), root
}

func TestSemanticSearch(t *testing.T) {
	s, _ := seedProject(t)

	opts := DefaultOptions()
	opts.Project = "api"
	results, err := s.Search(context.Background(), "def parse_config(path):\n    return read_yaml(path)", opts)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// The mock embedder is content-deterministic, so querying with a
	// chunk's own text ranks that chunk first.
	assert.Equal(t, "config.py", results[0].FilePath)
	assert.Equal(t, "function", results[0].ChunkType)
	assert.Equal(t, "parse_config", results[0].SymbolName)
	assert.NotEmpty(t, results[0].Content)
	assert.Greater(t, results[0].Score, 0.99)
}

func TestSearchEmptyQuery(t *testing.T) {
	s, _ := seedProject(t)
	_, err := s.Search(context.Background(), "", Options{Project: "api"})
	assert.Error(t, err)
}

func TestSearchUnknownProject(t *testing.T) {
	s, _ := seedProject(t)
	_, err := s.Search(context.Background(), "anything", Options{Project: "nope"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSearchMinScoreFilters(t *testing.T) {
	s, _ := seedProject(t)

	opts := Options{Project: "api", TopK: 10, MinScore: 0.999}
	results, err := s.Search(context.Background(), "something entirely unrelated to the corpus", opts)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func buildIndex(t *testing.T) *index.StructuralIndex {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"util.py": "def helper():\n    return 1\n",
		"main.py": "from util import helper\n\nclass App:\n    def run(self):\n        return helper()\n",
	}
	for rel, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte(content), 0644))
	}

	scanner, err := scan.NewScanner(scan.DefaultOptions(root))
	require.NoError(t, err)
	scanned, err := scanner.Scan()
	require.NoError(t, err)
	idx, err := index.NewBuilder(analyze.DefaultRegistry(), 2).Build(context.Background(), "proj", scanned)
	require.NoError(t, err)
	return idx
}

func TestSymbols(t *testing.T) {
	idx := buildIndex(t)

	hits := Symbols(idx, "helper")
	require.Len(t, hits, 1)
	assert.Equal(t, "function", hits[0].Kind)
	assert.Equal(t, "util.py", hits[0].Path)

	hits = Symbols(idx, "App")
	require.Len(t, hits, 1)
	assert.Equal(t, "class", hits[0].Kind)

	assert.Empty(t, Symbols(idx, "nothing"))
}

func TestStructuralLookups(t *testing.T) {
	idx := buildIndex(t)

	callers := Callers(idx, "helper")
	require.NotEmpty(t, callers)
	assert.Equal(t, "main.py", callers[0].Caller)

	assert.Equal(t, []string{"main.py"}, Importers(idx, "util"))
	assert.Empty(t, Instantiators(idx, "App"))
}

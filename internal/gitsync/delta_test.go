package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/chunk"
	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/gitx"
	"github.com/nickcecere/codemap/internal/ingest"
	"github.com/nickcecere/codemap/internal/scan"
	"github.com/nickcecere/codemap/internal/store"
)

// countingEmbedder counts embedding calls so tests can assert that
// pure renames never touch the embedder.
type countingEmbedder struct {
	embeddings.Service
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.Service.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.Service.EmbedBatch(ctx, texts)
}

type fixture struct {
	dir      string
	wt       *git.Worktree
	store    *store.SQLiteStore
	pipeline *ingest.Pipeline
	engine   *Engine
	embedder *countingEmbedder
	project  *store.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"), 32)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	embedder := &countingEmbedder{Service: embeddings.NewMockService(32)}
	pipeline := ingest.New(st, embedder, chunk.New(chunk.DefaultOptions()), analyze.DefaultRegistry(), 10)

	project, err := st.EnsureProject("api", "python", "")
	require.NoError(t, err)

	return &fixture{
		dir:      dir,
		wt:       wt,
		store:    st,
		pipeline: pipeline,
		engine:   New(st, pipeline),
		embedder: embedder,
		project:  project,
	}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	_, err := f.wt.Add(rel)
	require.NoError(t, err)
}

func (f *fixture) commit(t *testing.T, msg string) string {
	t.Helper()
	hash, err := f.wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Dev",
			Email: "dev@example.com",
			When:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return hash.String()
}

func (f *fixture) ingestAll(t *testing.T) {
	t.Helper()
	_, err := f.pipeline.IngestDir(context.Background(), "api", nil, scan.DefaultOptions(f.dir))
	require.NoError(t, err)
}

func (f *fixture) hashSet(t *testing.T, projectID int64) []string {
	t.Helper()
	records, err := f.store.ListChunks(projectID, "")
	require.NoError(t, err)
	hashes := make([]string, len(records))
	for i, r := range records {
		hashes[i] = r.ContentHash
	}
	sort.Strings(hashes)
	return hashes
}

func TestDeltaSyncPureRename(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n")
	c0 := f.commit(t, "first")
	f.ingestAll(t)

	_, err := f.wt.Move("a.py", "b.py")
	require.NoError(t, err)
	c1 := f.commit(t, "rename")

	f.embedder.calls = 0
	stats, err := f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.ChunksInserted)
	assert.Equal(t, 0, stats.ChunksDeleted)
	assert.Equal(t, 0, f.embedder.calls)

	records, err := f.store.ListChunks(f.project.ID, "b.py")
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = f.store.ListChunks(f.project.ID, "a.py")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeltaSyncDeletion(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n")
	f.write(t, "b.py", "def g():\n    return 2\n")
	c0 := f.commit(t, "first")
	f.ingestAll(t)

	_, err := f.wt.Remove("a.py")
	require.NoError(t, err)
	c1 := f.commit(t, "remove a")

	stats, err := f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 1, stats.ChunksDeleted)

	records, err := f.store.ListChunks(f.project.ID, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "b.py", records[0].FilePath)
}

func TestDeltaSyncModifiedPrunesStale(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n\n\ndef g():\n    return 2\n")
	c0 := f.commit(t, "first")
	f.ingestAll(t)

	// Change f, keep g.
	f.write(t, "a.py", "def f():\n    return 100\n\n\ndef g():\n    return 2\n")
	c1 := f.commit(t, "edit f")

	stats, err := f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesReindexed)
	assert.Equal(t, 1, stats.ChunksInserted)
	assert.Equal(t, 1, stats.ChunksSkipped)
	assert.Equal(t, 1, stats.ChunksDeleted)

	records, err := f.store.ListChunks(f.project.ID, "a.py")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestDeltaSyncConvergence(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n")
	f.write(t, "b.py", "def g():\n    return 2\n")
	c0 := f.commit(t, "c0")
	f.ingestAll(t)

	f.write(t, "a.py", "def f():\n    return 10\n")
	f.commit(t, "c1")

	_, err := f.wt.Remove("b.py")
	require.NoError(t, err)
	f.write(t, "c.py", "def h():\n    return 3\n")
	c2 := f.commit(t, "c2")

	_, err = f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c2, nil)
	require.NoError(t, err)
	incremental := f.hashSet(t, f.project.ID)

	// Fresh ingest of the worktree at c2 into a second project.
	fresh, err := f.store.EnsureProject("fresh", "python", "")
	require.NoError(t, err)
	_, err = f.pipeline.IngestDir(context.Background(), "fresh", nil, scan.DefaultOptions(f.dir))
	require.NoError(t, err)
	full := f.hashSet(t, fresh.ID)

	assert.Equal(t, full, incremental)
}

func TestDeltaSyncContentMovedToNewFile(t *testing.T) {
	f := newFixture(t)

	// A function body moves wholesale from an edited file into a new
	// one. Dedup skips its re-insert, so the prune of the edited file
	// must re-point the stored row instead of deleting it.
	f.write(t, "a.py", "def f():\n    return 1\n")
	c0 := f.commit(t, "c0")
	f.ingestAll(t)

	f.write(t, "a.py", "def g():\n    return 2\n")
	f.write(t, "b.py", "def f():\n    return 1\n")
	c1 := f.commit(t, "move f into b")

	_, err := f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	require.NoError(t, err)
	incremental := f.hashSet(t, f.project.ID)

	fresh, err := f.store.EnsureProject("fresh", "python", "")
	require.NoError(t, err)
	_, err = f.pipeline.IngestDir(context.Background(), "fresh", nil, scan.DefaultOptions(f.dir))
	require.NoError(t, err)
	full := f.hashSet(t, fresh.ID)

	assert.Equal(t, full, incremental)

	// The surviving row now lives at its new path.
	records, err := f.store.ListChunks(f.project.ID, "b.py")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "f", records[0].SymbolName)
}

func TestDeltaSyncHoldsProjectLock(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n")
	c0 := f.commit(t, "first")
	f.ingestAll(t)

	f.write(t, "a.py", "def f():\n    return 2\n")
	c1 := f.commit(t, "edit")

	release, err := f.pipeline.Lock(f.project.ID)
	require.NoError(t, err)

	_, err = f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	assert.ErrorIs(t, err, ingest.ErrBusy)

	release()
	_, err = f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, c1, nil)
	require.NoError(t, err)
}

func TestDeltaSyncUnknownRevision(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.py", "def f():\n    return 1\n")
	c0 := f.commit(t, "first")
	f.ingestAll(t)

	_, err := f.engine.DeltaSync(context.Background(), f.project.ID, f.dir, c0, "no-such-rev", nil)
	assert.ErrorIs(t, err, gitx.ErrUnknownRevision)

	// Nothing was deleted on the failed attempt.
	records, err := f.store.ListChunks(f.project.ID, "")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

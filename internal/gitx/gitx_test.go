package gitx

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	return dir, wt
}

func writeAndAdd(t *testing.T, dir string, wt *git.Worktree, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	_, err := wt.Add(rel)
	require.NoError(t, err)
}

func commit(t *testing.T, wt *git.Worktree, msg string) string {
	t.Helper()
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Dev",
			Email: "dev@example.com",
			When:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	return hash.String()
}

// longSource is long enough that a rename with a one-line edit still
// clears the similarity threshold for rename detection.
func longSource(marker string) string {
	var b strings.Builder
	b.WriteString("import os\n\n")
	for i := 0; i < 40; i++ {
		b.WriteString("def fn_")
		b.WriteString(string(rune('a' + i%26)))
		b.WriteString("(x):\n    return x + 1\n\n")
	}
	b.WriteString(marker)
	b.WriteString("\n")
	return b.String()
}

func TestHeadMeta(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "main.py", "print('hi')\n")
	hash := commit(t, wt, "initial")

	repo, err := Open(dir)
	require.NoError(t, err)

	meta, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, hash, meta.CommitHash)
	assert.Equal(t, "master", meta.BranchName)
	assert.Equal(t, "Test Dev", meta.AuthorName)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), meta.CommitTimestamp)
}

func TestOpenNotARepo(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrNotARepo)
}

func TestResolveUnknownRevision(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "main.py", "x = 1\n")
	commit(t, wt, "initial")

	repo, err := Open(dir)
	require.NoError(t, err)

	_, err = repo.Resolve("no-such-branch")
	assert.ErrorIs(t, err, ErrUnknownRevision)
}

func TestDiffAddModifyDelete(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "a.py", "a = 1\n")
	writeAndAdd(t, dir, wt, "b.py", "b = 1\n")
	c1 := commit(t, wt, "first")

	writeAndAdd(t, dir, wt, "a.py", "a = 2\n")
	writeAndAdd(t, dir, wt, "d.py", "d = 1\n")
	_, err := wt.Remove("b.py")
	require.NoError(t, err)
	c2 := commit(t, wt, "second")

	repo, err := Open(dir)
	require.NoError(t, err)

	diff, err := repo.DiffRevisions(context.Background(), c1, c2)
	require.NoError(t, err)

	assert.Equal(t, []string{"d.py"}, diff.Added)
	assert.Equal(t, []string{"a.py"}, diff.Modified)
	assert.Equal(t, []string{"b.py"}, diff.Deleted)
	assert.Empty(t, diff.Renamed)

	assert.ElementsMatch(t, []string{"a.py", "d.py"}, diff.FilesNeedingReindex())
}

func TestDiffPureRename(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "old_name.py", longSource("# marker"))
	c1 := commit(t, wt, "first")

	_, err := wt.Move("old_name.py", "new_name.py")
	require.NoError(t, err)
	c2 := commit(t, wt, "rename")

	repo, err := Open(dir)
	require.NoError(t, err)

	diff, err := repo.DiffRevisions(context.Background(), c1, c2)
	require.NoError(t, err)

	require.Len(t, diff.Renamed, 1)
	assert.Equal(t, "old_name.py", diff.Renamed[0].OldPath)
	assert.Equal(t, "new_name.py", diff.Renamed[0].NewPath)
	assert.False(t, diff.Renamed[0].ContentChanged)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Deleted)
	assert.Empty(t, diff.Modified)

	// A pure rename triggers no re-reads.
	assert.Empty(t, diff.FilesNeedingReindex())
}

func TestDiffRenameWithEdit(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "old_name.py", longSource("# before"))
	c1 := commit(t, wt, "first")

	_, err := wt.Move("old_name.py", "new_name.py")
	require.NoError(t, err)
	writeAndAdd(t, dir, wt, "new_name.py", longSource("# after"))
	c2 := commit(t, wt, "rename and edit")

	repo, err := Open(dir)
	require.NoError(t, err)

	diff, err := repo.DiffRevisions(context.Background(), c1, c2)
	require.NoError(t, err)

	require.Len(t, diff.Renamed, 1)
	assert.True(t, diff.Renamed[0].ContentChanged)
	assert.Equal(t, []string{"new_name.py"}, diff.FilesNeedingReindex())
}

func TestFileAt(t *testing.T) {
	dir, wt := initRepo(t)
	writeAndAdd(t, dir, wt, "a.py", "version = 1\n")
	c1 := commit(t, wt, "first")
	writeAndAdd(t, dir, wt, "a.py", "version = 2\n")
	c2 := commit(t, wt, "second")

	repo, err := Open(dir)
	require.NoError(t, err)

	content, err := repo.FileAt(c1, "a.py")
	require.NoError(t, err)
	assert.Equal(t, "version = 1\n", content)

	content, err = repo.FileAt(c2, "a.py")
	require.NoError(t, err)
	assert.Equal(t, "version = 2\n", content)
}

// Package gitx reads commit metadata and computes file-level deltas
// between revisions of a git repository.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

// ErrNotARepo indicates the path is not inside a git repository.
var ErrNotARepo = errors.New("not a git repository")

// ErrUnknownRevision indicates a revision could not be resolved.
var ErrUnknownRevision = errors.New("unknown revision")

// CommitMeta is the provenance of a commit.
type CommitMeta struct {
	CommitHash      string
	BranchName      string
	AuthorName      string
	CommitTimestamp time.Time
}

// Rename is a file that moved between two revisions.
type Rename struct {
	OldPath        string
	NewPath        string
	ContentChanged bool
}

// Diff is the file-level delta between two revisions.
type Diff struct {
	FromRev  string
	ToRev    string
	Added    []string
	Modified []string
	Deleted  []string
	Renamed  []Rename
}

// FilesNeedingReindex returns the paths whose content must be re-read
// and re-ingested: added and modified files, plus renames whose content
// also changed (under their new path). Pure renames are excluded.
func (d *Diff) FilesNeedingReindex() []string {
	var paths []string
	paths = append(paths, d.Added...)
	paths = append(paths, d.Modified...)
	for _, r := range d.Renamed {
		if r.ContentChanged {
			paths = append(paths, r.NewPath)
		}
	}
	return paths
}

// Repo wraps an opened git repository.
type Repo struct {
	repo *git.Repository
}

// Open opens the repository containing path.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotARepo)
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return &Repo{repo: repo}, nil
}

// Head returns the provenance of the current HEAD commit.
func (r *Repo) Head() (*CommitMeta, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD commit: %w", err)
	}

	branch := ""
	if ref.Name().IsBranch() {
		branch = ref.Name().Short()
	}

	return &CommitMeta{
		CommitHash:      commit.Hash.String(),
		BranchName:      branch,
		AuthorName:      commit.Author.Name,
		CommitTimestamp: commit.Author.When.UTC(),
	}, nil
}

// MetaAt returns the provenance of an arbitrary revision. The branch
// name is filled in only when the revision matches the current HEAD.
func (r *Repo) MetaAt(rev string) (*CommitMeta, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", rev, ErrUnknownRevision)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}

	branch := ""
	if head, err := r.repo.Head(); err == nil && head.Hash() == *hash && head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	return &CommitMeta{
		CommitHash:      commit.Hash.String(),
		BranchName:      branch,
		AuthorName:      commit.Author.Name,
		CommitTimestamp: commit.Author.When.UTC(),
	}, nil
}

// Resolve resolves a revision expression (branch, tag, hash, HEAD~n)
// to a commit hash.
func (r *Repo) Resolve(rev string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", fmt.Errorf("%q: %w", rev, ErrUnknownRevision)
	}
	return hash.String(), nil
}

// DiffRevisions computes the file-level delta from one revision to
// another, with rename detection.
func (r *Repo) DiffRevisions(ctx context.Context, fromRev, toRev string) (*Diff, error) {
	fromTree, err := r.treeAt(fromRev)
	if err != nil {
		return nil, err
	}
	toTree, err := r.treeAt(toRev)
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	diff := &Diff{FromRev: fromRev, ToRev: toRev}
	for _, change := range changes {
		action, err := change.Action()
		if err != nil {
			return nil, fmt.Errorf("failed to classify change: %w", err)
		}

		switch action {
		case merkletrie.Insert:
			diff.Added = append(diff.Added, change.To.Name)
		case merkletrie.Delete:
			diff.Deleted = append(diff.Deleted, change.From.Name)
		case merkletrie.Modify:
			if change.From.Name != change.To.Name {
				diff.Renamed = append(diff.Renamed, Rename{
					OldPath:        change.From.Name,
					NewPath:        change.To.Name,
					ContentChanged: change.From.TreeEntry.Hash != change.To.TreeEntry.Hash,
				})
			} else {
				diff.Modified = append(diff.Modified, change.To.Name)
			}
		}
	}
	return diff, nil
}

// FileAt reads a file's content at a revision.
func (r *Repo) FileAt(rev, path string) (string, error) {
	tree, err := r.treeAt(rev)
	if err != nil {
		return "", err
	}
	file, err := tree.File(path)
	if err != nil {
		return "", fmt.Errorf("%s at %s: %w", path, rev, err)
	}
	return file.Contents()
}

func (r *Repo) treeAt(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%q: %w", rev, ErrUnknownRevision)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree for %s: %w", hash, err)
	}
	return tree, nil
}

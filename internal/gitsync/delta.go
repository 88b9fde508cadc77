// Package gitsync brings a project's chunk store from one commit to
// another by re-ingesting only what the git diff says changed.
package gitsync

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/codemap/internal/auth"
	"github.com/nickcecere/codemap/internal/gitx"
	"github.com/nickcecere/codemap/internal/ingest"
	"github.com/nickcecere/codemap/internal/store"
)

// Stats reports the outcome of one delta sync.
type Stats struct {
	FilesDeleted   int
	ChunksDeleted  int
	FilesReindexed int
	ChunksInserted int
	ChunksSkipped  int
	Duration       time.Duration
	Errors         []string
}

// Engine computes the minimal re-index set between two commits and
// drives the ingest pipeline over it. It owns no persistent state.
type Engine struct {
	store    store.Store
	pipeline *ingest.Pipeline
}

// New creates a delta engine.
func New(st store.Store, pipeline *ingest.Pipeline) *Engine {
	return &Engine{store: st, pipeline: pipeline}
}

// DeltaSync advances the project's stored chunks from fromRev to
// toRev. The repository worktree must be checked out at toRev, since
// re-ingested content is read from disk.
//
// Renames move stored rows without re-embedding. Deleted files have
// their chunks removed. Modified files (and renames with edits) are
// re-ingested and their superseded chunks pruned, so the final state
// matches a full ingest at toRev.
//
// An unresolvable revision fails the whole call before any deletion.
func (e *Engine) DeltaSync(ctx context.Context, projectID int64, repoPath, fromRev, toRev string, user *auth.UserContext) (*Stats, error) {
	start := time.Now()

	repo, err := gitx.Open(repoPath)
	if err != nil {
		return nil, err
	}
	if _, err := repo.Resolve(fromRev); err != nil {
		return nil, err
	}
	if _, err := repo.Resolve(toRev); err != nil {
		return nil, err
	}

	diff, err := repo.DiffRevisions(ctx, fromRev, toRev)
	if err != nil {
		return nil, err
	}

	meta, err := repo.MetaAt(toRev)
	if err != nil {
		return nil, err
	}

	// Hold the project lock across the whole sync, so a concurrent
	// ingest or second sync cannot interleave with the rename move,
	// prune and deletion phases.
	release, err := e.pipeline.Lock(projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	stats := &Stats{}

	// Every rename moves its stored rows to the new path first. For a
	// pure rename that is the whole story: no embedding, no insertion.
	// A rename with edits is then handled like a modified file under
	// its new path, which keeps its unchanged chunks without
	// re-embedding them.
	for _, r := range diff.Renamed {
		if _, err := e.store.UpdateChunkPath(projectID, r.OldPath, r.NewPath); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", r.OldPath, err))
		}
	}

	// Re-ingest changed content before deleting anything, so a failure
	// partway leaves a recoverable superset rather than a hole.
	reindex := diff.FilesNeedingReindex()
	if len(reindex) > 0 {
		ingestStats, err := e.pipeline.IngestFilesLocked(ctx, projectID, repoPath, reindex, meta, user)
		if err != nil {
			return nil, err
		}
		stats.FilesReindexed = ingestStats.FilesProcessed
		stats.ChunksInserted = ingestStats.ChunksInserted
		stats.ChunksSkipped = ingestStats.ChunksSkipped
		stats.Errors = append(stats.Errors, ingestStats.Errors...)
	}

	// Chunk every reindexed file to decide what survives the prune.
	// The decision is project-wide, not per file: content that moved
	// out of a changed file into another file of this sync was
	// dedup-skipped during re-ingest, so its stored row must be
	// re-pointed at the producing file rather than deleted.
	producedBy := make(map[string]string)
	keepByPath := make(map[string][]string)
	for _, path := range reindex {
		chunks, err := e.pipeline.ChunkFile(repoPath, path)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		hashes := make([]string, len(chunks))
		for i, c := range chunks {
			hashes[i] = c.ContentHash
			if _, ok := producedBy[c.ContentHash]; !ok {
				producedBy[c.ContentHash] = path
			}
		}
		keepByPath[path] = hashes
	}

	// Prune chunks a changed file no longer produces.
	prune := append([]string{}, diff.Modified...)
	for _, r := range diff.Renamed {
		if r.ContentChanged {
			prune = append(prune, r.NewPath)
		}
	}
	for _, path := range prune {
		keep, ok := keepByPath[path]
		if !ok {
			// Chunking failed above; leave the rows in place.
			continue
		}
		e.repointMigrated(projectID, path, keep, producedBy, stats)

		deleted, err := e.store.DeleteStaleChunks(projectID, path, keep)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		stats.ChunksDeleted += int(deleted)
	}

	// Remove files that are gone from the tree. Content that survived
	// the deletion by moving into a reindexed file is re-pointed the
	// same way first.
	for _, path := range diff.Deleted {
		e.repointMigrated(projectID, path, nil, producedBy, stats)

		deleted, err := e.store.DeleteChunksByPath(projectID, path)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		stats.FilesDeleted++
		stats.ChunksDeleted += int(deleted)
	}

	stats.Duration = time.Since(start)
	log.Debug("Delta sync complete",
		"from", fromRev, "to", toRev,
		"reindexed", stats.FilesReindexed,
		"inserted", stats.ChunksInserted,
		"deleted", stats.ChunksDeleted,
		"duration", stats.Duration)
	return stats, nil
}

// repointMigrated moves stored chunks under path whose content is now
// produced by a different file of this sync. keep lists the hashes the
// path itself still produces; nil means the path produces nothing.
func (e *Engine) repointMigrated(projectID int64, path string, keep []string, producedBy map[string]string, stats *Stats) {
	keepSet := make(map[string]bool, len(keep))
	for _, h := range keep {
		keepSet[h] = true
	}

	stored, err := e.store.ListChunks(projectID, path)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
		return
	}
	for _, rec := range stored {
		if keepSet[rec.ContentHash] {
			continue
		}
		dest, ok := producedBy[rec.ContentHash]
		if !ok || dest == path {
			continue
		}
		if _, err := e.store.UpdateChunkPathByHash(projectID, rec.ContentHash, dest); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		log.Debug("Re-pointed migrated chunk", "hash", rec.ContentHash, "from", path, "to", dest)
	}
}

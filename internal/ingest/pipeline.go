// Package ingest runs the chunk, dedup, embed and persist pipeline
// that keeps the chunk store in step with a codebase.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/codemap/internal/analyze"
	"github.com/nickcecere/codemap/internal/auth"
	"github.com/nickcecere/codemap/internal/chunk"
	"github.com/nickcecere/codemap/internal/embeddings"
	"github.com/nickcecere/codemap/internal/gitx"
	"github.com/nickcecere/codemap/internal/scan"
	"github.com/nickcecere/codemap/internal/store"
)

// Stats reports the outcome of one ingest run.
type Stats struct {
	FilesProcessed int
	ChunksCreated  int
	ChunksInserted int
	ChunksSkipped  int
	Duration       time.Duration
	Errors         []string
}

// Pipeline chunks files, deduplicates by content hash, embeds only new
// content, and persists chunks with provenance. Re-running over
// unchanged content is a no-op.
type Pipeline struct {
	store     store.Store
	embedder  embeddings.Service
	chunker   *chunk.Chunker
	registry  *analyze.Registry
	batchSize int
	locks     *lockTable
}

// New creates an ingest pipeline.
func New(st store.Store, embedder embeddings.Service, chunker *chunk.Chunker, registry *analyze.Registry, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Pipeline{
		store:     st,
		embedder:  embedder,
		chunker:   chunker,
		registry:  registry,
		batchSize: batchSize,
		locks:     newLockTable(),
	}
}

// IngestDir scans a directory and ingests every code file into the
// named project, owned by the given user. Provenance is taken from the
// enclosing git repository when one exists.
func (p *Pipeline) IngestDir(ctx context.Context, projectName string, user *auth.UserContext, scanOpts scan.Options) (*Stats, error) {
	scanner, err := scan.NewScanner(scanOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", scanOpts.Root, err)
	}
	result, err := scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", scanOpts.Root, err)
	}

	project, err := p.store.EnsureProject(projectName, dominantLanguage(result.Files), user.Owner())
	if err != nil {
		return nil, err
	}

	var relPaths []string
	for _, f := range result.Files {
		relPaths = append(relPaths, f.RelPath)
	}

	meta := headMeta(scanOpts.Root)
	return p.IngestFiles(ctx, project.ID, scanOpts.Root, relPaths, meta, user)
}

// Lock takes the project's advisory lock without blocking. The
// returned release function must be called once the run ends. Another
// run already holding the lock fails fast with ErrBusy.
func (p *Pipeline) Lock(projectID int64) (func(), error) {
	return p.locks.acquire(projectID)
}

// IngestFiles ingests the given project-relative paths. Each file is
// persisted in its own transaction, so a failure part-way leaves the
// completed files intact and the failed file absent. Holds the
// project's advisory lock for the duration; a concurrent ingest of the
// same project fails fast with ErrBusy.
func (p *Pipeline) IngestFiles(ctx context.Context, projectID int64, root string, relPaths []string, meta *gitx.CommitMeta, user *auth.UserContext) (*Stats, error) {
	release, err := p.Lock(projectID)
	if err != nil {
		return nil, err
	}
	defer release()
	return p.IngestFilesLocked(ctx, projectID, root, relPaths, meta, user)
}

// IngestFilesLocked runs an ingest for a caller that already holds the
// project's lock via Lock, such as a delta sync wrapping the ingest
// together with its own store mutations.
func (p *Pipeline) IngestFilesLocked(ctx context.Context, projectID int64, root string, relPaths []string, meta *gitx.CommitMeta, user *auth.UserContext) (*Stats, error) {
	if user != nil && !user.Can(auth.PermIngest) {
		return nil, fmt.Errorf("user %s: %w", user.Email, auth.ErrPermissionDenied)
	}

	start := time.Now()
	stats := &Stats{}

	for _, relPath := range relPaths {
		if err := ctx.Err(); err != nil {
			// Completed files stay committed; report what was done.
			stats.Duration = time.Since(start)
			return stats, err
		}
		if err := p.ingestFile(ctx, projectID, root, relPath, meta, stats); err != nil {
			log.Warn("Failed to ingest file", "path", relPath, "error", err)
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", relPath, err))
			continue
		}
		stats.FilesProcessed++
	}

	stats.Duration = time.Since(start)
	log.Debug("Ingest complete",
		"files", stats.FilesProcessed,
		"inserted", stats.ChunksInserted,
		"skipped", stats.ChunksSkipped,
		"duration", stats.Duration)
	return stats, nil
}

// ChunkFile reads a file from disk and returns its chunks without
// touching the store. The delta engine uses it to decide which stored
// chunks a modified file still accounts for.
func (p *Pipeline) ChunkFile(root, relPath string) ([]chunk.Chunk, error) {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	language := scan.DetectLanguage(relPath)
	analysis := p.registry.Analyze(relPath, content)
	return p.chunker.Chunk(relPath, string(content), language, analysis), nil
}

// ingestFile runs one file through chunk, dedup, embed and persist.
func (p *Pipeline) ingestFile(ctx context.Context, projectID int64, root, relPath string, meta *gitx.CommitMeta, stats *Stats) error {
	content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(relPath)))
	if err != nil {
		return fmt.Errorf("failed to read: %w", err)
	}

	language := scan.DetectLanguage(relPath)
	analysis := p.registry.Analyze(relPath, content)
	chunks := p.chunker.Chunk(relPath, string(content), language, analysis)
	if len(chunks) == 0 {
		return nil
	}
	stats.ChunksCreated += len(chunks)

	// Embed only content the store has not seen for this project.
	hashes := make([]string, len(chunks))
	for i, c := range chunks {
		hashes[i] = c.ContentHash
	}
	existing, err := p.store.ExistingHashes(projectID, hashes)
	if err != nil {
		return err
	}

	var fresh []chunk.Chunk
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		if existing[c.ContentHash] || seen[c.ContentHash] {
			stats.ChunksSkipped++
			continue
		}
		seen[c.ContentHash] = true
		fresh = append(fresh, c)
	}
	if len(fresh) == 0 {
		return nil
	}

	embedded, vectors := p.embedChunks(ctx, fresh, stats)
	if len(embedded) == 0 {
		return ctx.Err()
	}

	inputs := make([]store.ChunkInput, len(embedded))
	for i, c := range embedded {
		inputs[i] = store.ChunkInput{
			FilePath:    c.FilePath,
			ChunkType:   string(c.Type),
			SymbolName:  c.Name,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Content:     c.Content,
			ContentHash: c.ContentHash,
			Language:    c.Language,
			Provenance:  provenance(meta),
		}
	}

	inserted, skipped, err := p.store.InsertChunks(projectID, inputs, vectors)
	if err != nil {
		return err
	}
	stats.ChunksInserted += inserted
	stats.ChunksSkipped += skipped
	return nil
}

// embedChunks embeds chunk content in batches. A batch that fails
// after retries drops only its own chunks: the failure is recorded and
// the remaining batches still run. Returns the chunks that embedded
// and their vectors, index-aligned.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []chunk.Chunk, stats *Stats) ([]chunk.Chunk, [][]float32) {
	embedded := make([]chunk.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		batch, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			stats.Errors = append(stats.Errors,
				fmt.Sprintf("%s: failed to embed batch of %d chunks: %v", chunks[start].FilePath, end-start, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		embedded = append(embedded, chunks[start:end]...)
		vectors = append(vectors, batch...)
	}
	return embedded, vectors
}

func provenance(meta *gitx.CommitMeta) store.Provenance {
	if meta == nil {
		return store.Provenance{}
	}
	return store.Provenance{
		CommitHash:      meta.CommitHash,
		BranchName:      meta.BranchName,
		AuthorName:      meta.AuthorName,
		CommitTimestamp: meta.CommitTimestamp,
	}
}

// headMeta reads HEAD provenance, or nil outside a repository.
func headMeta(root string) *gitx.CommitMeta {
	repo, err := gitx.Open(root)
	if err != nil {
		return nil
	}
	meta, err := repo.Head()
	if err != nil {
		return nil
	}
	return meta
}

// dominantLanguage picks the most common detected language.
func dominantLanguage(files []scan.FileInfo) string {
	counts := make(map[string]int)
	for _, f := range files {
		if f.Language != "" {
			counts[f.Language]++
		}
	}
	best := ""
	for lang, n := range counts {
		if n > counts[best] || (best == "" && n > 0) {
			best = lang
		}
	}
	return best
}

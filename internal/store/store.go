// Package store persists code chunks and their embeddings in SQLite,
// with vector search provided by the sqlite-vec extension.
package store

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSchemaTooNew indicates the database was written by a newer
	// version of this tool.
	ErrSchemaTooNew = errors.New("database schema is newer than this version supports")
)

// Store is the persistence interface for projects, chunks, vectors and
// users.
type Store interface {
	// EnsureProject returns the owner's project with the given name,
	// creating it if missing. Names are scoped per owner.
	EnsureProject(name, language, owner string) (*Project, error)

	// GetProject retrieves the owner's project by name. Returns
	// ErrNotFound when absent.
	GetProject(name, owner string) (*Project, error)

	// ListProjects returns all projects ordered by name.
	ListProjects() ([]Project, error)

	// DeleteProject removes the owner's project and all of its chunks
	// and vectors.
	DeleteProject(name, owner string) error

	// ExistingHashes reports which of the given content hashes are
	// already stored for the project.
	ExistingHashes(projectID int64, hashes []string) (map[string]bool, error)

	// InsertChunks persists chunks and their embeddings in one
	// transaction. A chunk whose (project, content hash) already exists
	// is skipped without error. Returns inserted and skipped counts.
	InsertChunks(projectID int64, chunks []ChunkInput, embeddings [][]float32) (inserted, skipped int, err error)

	// UpdateChunkPath moves all chunks under oldPath to newPath.
	// Returns the number of rows updated.
	UpdateChunkPath(projectID int64, oldPath, newPath string) (int64, error)

	// UpdateChunkPathByHash re-points the chunk with the given content
	// hash at a new file path. Returns the number of rows updated.
	UpdateChunkPathByHash(projectID int64, contentHash, newPath string) (int64, error)

	// DeleteChunksByPath removes all chunks (and vectors) for a file.
	// Returns the number of chunks deleted.
	DeleteChunksByPath(projectID int64, path string) (int64, error)

	// DeleteStaleChunks removes a file's chunks whose content hash is
	// not in keepHashes. Used after re-ingesting a modified file to
	// drop superseded chunks. Returns the number deleted.
	DeleteStaleChunks(projectID int64, path string, keepHashes []string) (int64, error)

	// ListChunks returns chunks for a project, optionally filtered by
	// file path, ordered by path then start line.
	ListChunks(projectID int64, pathFilter string) ([]ChunkRecord, error)

	// Search returns the topK nearest chunks to the query embedding.
	Search(projectID int64, queryEmbedding []float32, topK int) ([]SearchResult, error)

	// Stats summarizes a project's stored contents.
	Stats(projectID int64) (*ProjectStats, error)

	// CreateUser registers an account.
	CreateUser(email, apiKeyHash string, storageQuota int64) (*User, error)

	// GetUserByEmail retrieves a user. Returns ErrNotFound when absent.
	GetUserByEmail(email string) (*User, error)

	// SetUserActive toggles an account.
	SetUserActive(email string, active bool) error

	// Close releases the underlying database.
	Close() error
}

package store

import "time"

// Project is a registered codebase whose chunks live in the store.
type Project struct {
	ID        int64
	Name      string
	Language  string
	Owner     string
	CreatedAt time.Time
}

// Provenance records the git context a chunk was ingested from.
type Provenance struct {
	CommitHash      string
	BranchName      string
	AuthorName      string
	CommitTimestamp time.Time
}

// ChunkInput is a chunk ready for persistence.
type ChunkInput struct {
	FilePath    string
	ChunkType   string
	SymbolName  string
	StartLine   int
	EndLine     int
	Content     string
	ContentHash string
	Language    string
	Provenance  Provenance
}

// ChunkRecord is a persisted chunk.
type ChunkRecord struct {
	ID          int64
	ProjectID   int64
	FilePath    string
	ChunkType   string
	SymbolName  string
	StartLine   int
	EndLine     int
	Content     string
	ContentHash string
	Language    string
	Provenance  Provenance
	CreatedAt   time.Time
}

// SearchResult is a chunk returned from vector search.
type SearchResult struct {
	Chunk    ChunkRecord
	Distance float64
	Score    float64
}

// User is an account allowed to ingest and query.
type User struct {
	ID           int64
	Email        string
	APIKeyHash   string
	StorageQuota int64
	IsActive     bool
	CreatedAt    time.Time
}

// ProjectStats summarizes a project's stored contents.
type ProjectStats struct {
	ProjectID   int64
	ProjectName string
	FileCount   int64
	ChunkCount  int64
}

package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	// Register sqlite-vec extension
	sqlite_vec.Auto()
}

// SQLiteStore implements the Store interface using SQLite and
// sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) a store at the given path. The
// vector table is created with the given embedding dimensions.
func NewSQLiteStore(dbPath string, dimensions int) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := createVectorTable(db, dimensions); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vector table: %w", err)
	}

	log.Debug("Opened SQLite store", "path", dbPath, "dimensions", dimensions)

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// EnsureProject returns the owner's project with the given name,
// creating it if missing. Project names are scoped per owner, so two
// owners can use the same name without seeing each other's chunks.
func (s *SQLiteStore) EnsureProject(name, language, owner string) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO projects (project_name, language, owner)
		VALUES (?, ?, ?)
		ON CONFLICT(project_name, owner) DO NOTHING
	`, name, language, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return s.getProject(name, owner)
}

// GetProject retrieves the owner's project by name.
func (s *SQLiteStore) GetProject(name, owner string) (*Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProject(name, owner)
}

func (s *SQLiteStore) getProject(name, owner string) (*Project, error) {
	var p Project
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, project_name, language, owner, created_at
		FROM projects WHERE project_name = ? AND owner = ?
	`, name, owner).Scan(&p.ID, &p.Name, &p.Language, &p.Owner, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	p.CreatedAt = parseSQLiteTime(createdAt)
	return &p, nil
}

// ListProjects returns all projects ordered by name.
func (s *SQLiteStore) ListProjects() ([]Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, project_name, language, owner, created_at
		FROM projects ORDER BY project_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Language, &p.Owner, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		p.CreatedAt = parseSQLiteTime(createdAt)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// DeleteProject removes the owner's project and all of its chunks and
// vectors.
func (s *SQLiteStore) DeleteProject(name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.getProject(name, owner)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		DELETE FROM chunk_vectors WHERE chunk_id IN (
			SELECT id FROM code_chunks WHERE project_id = ?
		)
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to delete vectors: %w", err)
	}

	// Chunks cascade from the project row.
	if _, err := s.db.Exec("DELETE FROM projects WHERE id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

// ExistingHashes reports which content hashes are already stored for
// the project.
func (s *SQLiteStore) ExistingHashes(projectID int64, hashes []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing := make(map[string]bool, len(hashes))
	if len(hashes) == 0 {
		return existing, nil
	}

	// SQLite caps bound parameters, so query in batches.
	const batchSize = 500
	for start := 0; start < len(hashes); start += batchSize {
		end := start + batchSize
		if end > len(hashes) {
			end = len(hashes)
		}
		batch := hashes[start:end]

		placeholders := strings.Repeat("?,", len(batch))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, 0, len(batch)+1)
		args = append(args, projectID)
		for _, h := range batch {
			args = append(args, h)
		}

		rows, err := s.db.Query(
			"SELECT content_hash FROM code_chunks WHERE project_id = ? AND content_hash IN ("+placeholders+")",
			args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query hashes: %w", err)
		}
		for rows.Next() {
			var h string
			if err := rows.Scan(&h); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan hash: %w", err)
			}
			existing[h] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return existing, nil
}

// InsertChunks persists chunks and embeddings in one transaction.
// Duplicate (project, content hash) rows are skipped without error, so
// re-running an ingest is idempotent.
func (s *SQLiteStore) InsertChunks(projectID int64, chunks []ChunkInput, embeddings [][]float32) (int, int, error) {
	if len(chunks) != len(embeddings) {
		return 0, 0, fmt.Errorf("chunks and embeddings count mismatch: %d != %d", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var inserted, skipped int
	for i, chunk := range chunks {
		result, err := tx.Exec(`
			INSERT INTO code_chunks (
				project_id, file_path, chunk_type, symbol_name,
				start_line, end_line, content, content_hash, language,
				commit_hash, branch_name, author_name, commit_timestamp
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(project_id, content_hash) DO NOTHING
		`, projectID, chunk.FilePath, chunk.ChunkType, chunk.SymbolName,
			chunk.StartLine, chunk.EndLine, chunk.Content, chunk.ContentHash, chunk.Language,
			chunk.Provenance.CommitHash, chunk.Provenance.BranchName, chunk.Provenance.AuthorName,
			formatCommitTime(chunk.Provenance.CommitTimestamp))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			skipped++
			continue
		}
		inserted++

		chunkID, _ := result.LastInsertId()
		_, err = tx.Exec(`
			INSERT INTO chunk_vectors (chunk_id, embedding)
			VALUES (?, ?)
		`, chunkID, serializeEmbedding(embeddings[i]))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert vector for chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit: %w", err)
	}
	return inserted, skipped, nil
}

// UpdateChunkPath moves all chunks under oldPath to newPath. Vectors
// are untouched because chunk identity is the content hash.
func (s *SQLiteStore) UpdateChunkPath(projectID int64, oldPath, newPath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE code_chunks SET file_path = ?
		WHERE project_id = ? AND file_path = ?
	`, newPath, projectID, oldPath)
	if err != nil {
		return 0, fmt.Errorf("failed to update chunk paths: %w", err)
	}
	return result.RowsAffected()
}

// UpdateChunkPathByHash re-points the stored chunk with the given
// content hash at a new file path. The delta engine uses it when a
// chunk's content moves from one changed file to another within a
// sync, where the insert under the new path was dedup-skipped.
func (s *SQLiteStore) UpdateChunkPathByHash(projectID int64, contentHash, newPath string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		UPDATE code_chunks SET file_path = ?
		WHERE project_id = ? AND content_hash = ?
	`, newPath, projectID, contentHash)
	if err != nil {
		return 0, fmt.Errorf("failed to update chunk path: %w", err)
	}
	return result.RowsAffected()
}

// DeleteChunksByPath removes all chunks and vectors for a file.
func (s *SQLiteStore) DeleteChunksByPath(projectID int64, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		DELETE FROM chunk_vectors WHERE chunk_id IN (
			SELECT id FROM code_chunks WHERE project_id = ? AND file_path = ?
		)
	`, projectID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}

	result, err := tx.Exec(
		"DELETE FROM code_chunks WHERE project_id = ? AND file_path = ?",
		projectID, path)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return deleted, nil
}

// DeleteStaleChunks removes a file's chunks whose content hash is not
// in keepHashes.
func (s *SQLiteStore) DeleteStaleChunks(projectID int64, path string, keepHashes []string) (int64, error) {
	if len(keepHashes) == 0 {
		return s.DeleteChunksByPath(projectID, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := strings.Repeat("?,", len(keepHashes))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(keepHashes)+2)
	args = append(args, projectID, path)
	for _, h := range keepHashes {
		args = append(args, h)
	}

	_, err = tx.Exec(`
		DELETE FROM chunk_vectors WHERE chunk_id IN (
			SELECT id FROM code_chunks
			WHERE project_id = ? AND file_path = ? AND content_hash NOT IN (`+placeholders+`)
		)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale vectors: %w", err)
	}

	result, err := tx.Exec(`
		DELETE FROM code_chunks
		WHERE project_id = ? AND file_path = ? AND content_hash NOT IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return deleted, nil
}

// ListChunks returns a project's chunks, optionally filtered by path.
func (s *SQLiteStore) ListChunks(projectID int64, pathFilter string) ([]ChunkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, project_id, file_path, chunk_type, symbol_name,
			start_line, end_line, content, content_hash, language,
			commit_hash, branch_name, author_name, commit_timestamp, created_at
		FROM code_chunks WHERE project_id = ?`
	args := []any{projectID}
	if pathFilter != "" {
		query += " AND file_path = ?"
		args = append(args, pathFilter)
	}
	query += " ORDER BY file_path, start_line"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var records []ChunkRecord
	for rows.Next() {
		rec, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Search returns the topK nearest chunks for a project.
func (s *SQLiteStore) Search(projectID int64, queryEmbedding []float32, topK int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queryBlob := serializeEmbedding(queryEmbedding)

	// sqlite-vec applies filters after selecting k rows from the
	// vector index, so request extra and let LIMIT enforce topK.
	kForVec := topK * 10
	if kForVec > 1000 {
		kForVec = 1000
	}

	rows, err := s.db.Query(`
		SELECT
			c.id, c.project_id, c.file_path, c.chunk_type, c.symbol_name,
			c.start_line, c.end_line, c.content, c.content_hash, c.language,
			c.commit_hash, c.branch_name, c.author_name, c.commit_timestamp, c.created_at,
			cv.distance
		FROM chunk_vectors cv
		JOIN code_chunks c ON c.id = cv.chunk_id
		WHERE c.project_id = ?
			AND cv.embedding MATCH ?
			AND k = ?
		ORDER BY cv.distance ASC
		LIMIT ?
	`, projectID, queryBlob, kForVec, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var result SearchResult
		var commitTime, createdAt string
		if err := rows.Scan(
			&result.Chunk.ID, &result.Chunk.ProjectID, &result.Chunk.FilePath,
			&result.Chunk.ChunkType, &result.Chunk.SymbolName,
			&result.Chunk.StartLine, &result.Chunk.EndLine,
			&result.Chunk.Content, &result.Chunk.ContentHash, &result.Chunk.Language,
			&result.Chunk.Provenance.CommitHash, &result.Chunk.Provenance.BranchName,
			&result.Chunk.Provenance.AuthorName, &commitTime, &createdAt,
			&result.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		result.Chunk.Provenance.CommitTimestamp = parseSQLiteTime(commitTime)
		result.Chunk.CreatedAt = parseSQLiteTime(createdAt)
		result.Score = 1 - result.Distance
		results = append(results, result)
	}
	return results, rows.Err()
}

// Stats summarizes a project's stored contents.
func (s *SQLiteStore) Stats(projectID int64) (*ProjectStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := ProjectStats{ProjectID: projectID}

	err := s.db.QueryRow("SELECT project_name FROM projects WHERE id = ?", projectID).Scan(&stats.ProjectName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project name: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(DISTINCT file_path), COUNT(*)
		FROM code_chunks WHERE project_id = ?
	`, projectID).Scan(&stats.FileCount, &stats.ChunkCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunk stats: %w", err)
	}
	return &stats, nil
}

// CreateUser registers an account.
func (s *SQLiteStore) CreateUser(email, apiKeyHash string, storageQuota int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec(`
		INSERT INTO users (email, api_key_hash, storage_quota, is_active)
		VALUES (?, ?, ?, 1)
	`, email, apiKeyHash, storageQuota)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, _ := result.LastInsertId()
	return &User{
		ID:           id,
		Email:        email,
		APIKeyHash:   apiKeyHash,
		StorageQuota: storageQuota,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u User
	var active int
	var createdAt string
	err := s.db.QueryRow(`
		SELECT user_id, email, api_key_hash, storage_quota, is_active, created_at
		FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.APIKeyHash, &u.StorageQuota, &active, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.IsActive = active != 0
	u.CreatedAt = parseSQLiteTime(createdAt)
	return &u, nil
}

// SetUserActive toggles an account.
func (s *SQLiteStore) SetUserActive(email string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	val := 0
	if active {
		val = 1
	}
	result, err := s.db.Exec("UPDATE users SET is_active = ? WHERE email = ?", val, email)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (ChunkRecord, error) {
	var rec ChunkRecord
	var commitTime, createdAt string
	if err := row.Scan(
		&rec.ID, &rec.ProjectID, &rec.FilePath, &rec.ChunkType, &rec.SymbolName,
		&rec.StartLine, &rec.EndLine, &rec.Content, &rec.ContentHash, &rec.Language,
		&rec.Provenance.CommitHash, &rec.Provenance.BranchName,
		&rec.Provenance.AuthorName, &commitTime, &createdAt,
	); err != nil {
		return rec, fmt.Errorf("failed to scan chunk: %w", err)
	}
	rec.Provenance.CommitTimestamp = parseSQLiteTime(commitTime)
	rec.CreatedAt = parseSQLiteTime(createdAt)
	return rec, nil
}

func formatCommitTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseSQLiteTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// serializeEmbedding converts a float32 slice to bytes for sqlite-vec.
func serializeEmbedding(embedding []float32) []byte {
	buf := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

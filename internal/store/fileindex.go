package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// HashContent returns the canonical content hash used by the file index.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// UpsertFile stores or refreshes one (project, relative path) snapshot.
// Unchanged files (same content hash) are left untouched so bulk re-scans
// stay cheap. Returns true when a row was written.
func (s *Store) UpsertFile(ctx context.Context, f *FileEntry) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	if f.ProjectID == "" || f.RelativePath == "" {
		return false, fmt.Errorf("project ID and relative path required")
	}
	if f.ContentHash == "" {
		f.ContentHash = HashContent(f.Content)
	}

	var existingHash string
	err := s.db.QueryRowContext(ctx,
		`SELECT content_hash FROM file_index WHERE project_id = ? AND relative_path = ?`,
		f.ProjectID, f.RelativePath).Scan(&existingHash)
	if err == nil && existingHash == f.ContentHash {
		return false, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.IndexedAt.IsZero() {
		f.IndexedAt = time.Now().UTC()
	}
	if f.Size == 0 {
		f.Size = int64(len(f.Content))
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO file_index
		 (id, project_id, relative_path, content, language, size, content_hash, modified_at, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(project_id, relative_path) DO UPDATE SET
			content = excluded.content,
			language = excluded.language,
			size = excluded.size,
			content_hash = excluded.content_hash,
			modified_at = excluded.modified_at,
			indexed_at = excluded.indexed_at`,
		f.ID, f.ProjectID, f.RelativePath, f.Content, nullable(f.Language),
		f.Size, f.ContentHash, formatTime(f.ModifiedAt), formatTime(f.IndexedAt))
	if err != nil {
		return false, fmt.Errorf("upserting file: %w", err)
	}
	return true, nil
}

// GetFile retrieves one indexed file by project and relative path.
func (s *Store) GetFile(ctx context.Context, projectID, relativePath string) (*FileEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, relative_path, content, language, size, content_hash, modified_at, indexed_at
		 FROM file_index WHERE project_id = ? AND relative_path = ?`,
		projectID, relativePath)
	return scanFile(row)
}

// SearchFiles performs a substring search over indexed file contents and
// paths for a project. This is codebase-wide search, distinct from context
// search.
func (s *Store) SearchFiles(ctx context.Context, projectID, query string, limit int) ([]*FileEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + escapeLike(query) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, relative_path, content, language, size, content_hash, modified_at, indexed_at
		 FROM file_index
		 WHERE project_id = ? AND (content LIKE ? ESCAPE '\' OR relative_path LIKE ? ESCAPE '\')
		 ORDER BY relative_path LIMIT ?`,
		projectID, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*FileEntry
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes one indexed file.
func (s *Store) DeleteFile(ctx context.Context, projectID, relativePath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM file_index WHERE project_id = ? AND relative_path = ?`,
		projectID, relativePath)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func scanFile(row rowScanner) (*FileEntry, error) {
	var f FileEntry
	var language sql.NullString
	var modified, indexed string

	err := row.Scan(&f.ID, &f.ProjectID, &f.RelativePath, &f.Content, &language,
		&f.Size, &f.ContentHash, &modified, &indexed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	f.Language = language.String
	f.ModifiedAt = parseTime(modified)
	f.IndexedAt = parseTime(indexed)
	return &f, nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

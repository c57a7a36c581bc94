package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateContext inserts a context row and mirrors it into the FTS index
// via the insert trigger.
//
// Dedup-on-write: a create matching an existing row with identical
// (session, type, content) created within the trailing dedup window
// returns the existing row instead of inserting. This check runs on every
// create call; under the single-writer model it substitutes for a per-key
// lock against near-simultaneous identical writes.
func (s *Store) CreateContext(ctx context.Context, c *Context) (*Context, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if c.SessionID == "" {
		return nil, ErrEmptySessionID
	}
	if c.Content == "" {
		return nil, ErrEmptyContent
	}

	cutoff := time.Now().UTC().Add(-s.dedupWindow)
	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM contexts
		 WHERE session_id = ? AND type = ? AND content = ? AND created_at > ?
		 ORDER BY created_at DESC LIMIT 1`,
		c.SessionID, string(c.Type), c.Content, formatTime(cutoff)).Scan(&existingID)
	if err == nil {
		return s.GetContext(ctx, existingID)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dedup check: %w", err)
	}

	if c.ID == "" {
		fresh, err := NewContext(c.SessionID, c.Type, c.Content)
		if err != nil {
			return nil, err
		}
		c.ID = fresh.ID
		c.CreatedAt = fresh.CreatedAt
		c.UpdatedAt = fresh.UpdatedAt
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	var embBlob []byte
	var embSource, embModel interface{}
	if c.Embedding != nil {
		embBlob = encodeVector(c.Embedding.Vector)
		embSource = c.Embedding.Source
		embModel = c.Embedding.Model
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contexts
		 (id, session_id, type, content, file_path, line_start, line_end, language,
		  tags, quality_score, embedding, embedding_source, embedding_model,
		  metadata, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, string(c.Type), c.Content,
		nullable(c.FilePath), c.LineStart, c.LineEnd, nullable(c.Language),
		marshalTags(c.Tags), c.QualityScore, embBlob, embSource, embModel,
		marshalMetadata(c.Metadata), boolToInt(c.Archived),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting context: %w", err)
	}
	return c, nil
}

// GetContext retrieves a context by ID.
func (s *Store) GetContext(ctx context.Context, id string) (*Context, error) {
	row := s.db.QueryRowContext(ctx, selectContext+` WHERE id = ?`, id)
	return scanContext(row)
}

// UpdateContext rewrites the mutable fields of a context. The FTS index
// follows through the update trigger.
func (s *Store) UpdateContext(ctx context.Context, c *Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var embBlob []byte
	var embSource, embModel interface{}
	if c.Embedding != nil {
		embBlob = encodeVector(c.Embedding.Vector)
		embSource = c.Embedding.Source
		embModel = c.Embedding.Model
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET
		 type = ?, content = ?, file_path = ?, line_start = ?, line_end = ?,
		 language = ?, tags = ?, quality_score = ?, embedding = ?,
		 embedding_source = ?, embedding_model = ?, metadata = ?, archived = ?,
		 updated_at = ?
		 WHERE id = ?`,
		string(c.Type), c.Content, nullable(c.FilePath), c.LineStart, c.LineEnd,
		nullable(c.Language), marshalTags(c.Tags), c.QualityScore, embBlob,
		embSource, embModel, marshalMetadata(c.Metadata), boolToInt(c.Archived),
		formatTime(time.Now()), c.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateContextQuality adjusts only the quality score.
func (s *Store) UpdateContextQuality(ctx context.Context, id string, score float64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET quality_score = ?, updated_at = ? WHERE id = ?`,
		score, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SetContextArchived flags or unflags a context as archived.
func (s *Store) SetContextArchived(ctx context.Context, id string, archived bool) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE contexts SET archived = ?, updated_at = ? WHERE id = ?`,
		boolToInt(archived), formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteContext removes a context. Relationships and file associations
// cascade; the FTS entry is removed by the delete trigger.
func (s *Store) DeleteContext(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM contexts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.noteDelete(1)
	return nil
}

// DeleteContexts removes a batch of contexts in one transaction.
// Returns the number of rows actually removed.
func (s *Store) DeleteContexts(ctx context.Context, ids []string) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	deleted := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM contexts WHERE id = ?`, id)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		deleted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.noteDelete(deleted)
	return deleted, nil
}

// ContextFilter narrows context listings.
type ContextFilter struct {
	SessionID       string
	ProjectID       string
	Type            ContextType
	IncludeArchived bool

	// WithEmbedding limits results to vector-eligible contexts.
	WithEmbedding bool

	// Limit bounds the result set; 0 means unbounded.
	Limit int
}

// ListContexts returns contexts matching the filter, newest first.
func (s *Store) ListContexts(ctx context.Context, filter ContextFilter) ([]*Context, error) {
	var conditions []string
	var args []interface{}

	if filter.SessionID != "" {
		conditions = append(conditions, "c.session_id = ?")
		args = append(args, filter.SessionID)
	}
	if filter.ProjectID != "" {
		conditions = append(conditions, "c.session_id IN (SELECT id FROM sessions WHERE project_id = ?)")
		args = append(args, filter.ProjectID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "c.type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.WithEmbedding {
		conditions = append(conditions, "c.embedding IS NOT NULL")
	}
	if !filter.IncludeArchived {
		conditions = append(conditions, "c.archived = 0")
	}

	query := selectContext
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contexts []*Context
	for rows.Next() {
		c, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		contexts = append(contexts, c)
	}
	return contexts, rows.Err()
}

// AssociateFile links a context to a file path. Idempotent.
func (s *Store) AssociateFile(ctx context.Context, contextID, filePath string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO context_files (context_id, file_path) VALUES (?, ?)`,
		contextID, filePath)
	return err
}

// ContextFiles returns the file paths associated with a context.
func (s *Store) ContextFiles(ctx context.Context, contextID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_path FROM context_files WHERE context_id = ? ORDER BY file_path`,
		contextID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

const selectContext = `SELECT c.id, c.session_id, c.type, c.content, c.file_path,
 c.line_start, c.line_end, c.language, c.tags, c.quality_score,
 c.embedding, c.embedding_source, c.embedding_model, c.metadata, c.archived,
 c.created_at, c.updated_at
 FROM contexts c`

func scanContext(row rowScanner) (*Context, error) {
	var c Context
	var filePath, language, tags, embSource, embModel, metadata sql.NullString
	var lineStart, lineEnd sql.NullInt64
	var embBlob []byte
	var archived int
	var created, updated string

	err := row.Scan(&c.ID, &c.SessionID, (*string)(&c.Type), &c.Content, &filePath,
		&lineStart, &lineEnd, &language, &tags, &c.QualityScore,
		&embBlob, &embSource, &embModel, &metadata, &archived,
		&created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	c.FilePath = filePath.String
	c.LineStart = int(lineStart.Int64)
	c.LineEnd = int(lineEnd.Int64)
	c.Language = language.String
	c.Tags = unmarshalTags(tags.String)
	c.Metadata = unmarshalMetadata(metadata.String)
	c.Archived = archived != 0
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)

	if len(embBlob) > 0 {
		c.Embedding = &Embedding{
			Vector: decodeVector(embBlob),
			Source: embSource.String,
			Model:  embModel.String,
		}
	}
	return &c, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

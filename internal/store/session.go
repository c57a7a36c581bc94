package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateSession inserts a new session for a project.
func (s *Store) CreateSession(ctx context.Context, sess *Session) (*Session, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if sess.ProjectID == "" {
		return nil, fmt.Errorf("project ID required")
	}
	if sess.ID == "" {
		sess.ID = uuid.New().String()
	}
	if sess.Status == "" {
		sess.Status = SessionActive
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}

	var ended interface{}
	if sess.EndedAt != nil {
		ended = formatTime(*sess.EndedAt)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project_id, tool_used, status, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ProjectID, sess.ToolUsed, string(sess.Status),
		formatTime(sess.StartedAt), ended)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, tool_used, status, started_at, ended_at
		 FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// GetOrCreateIndexSession returns the singleton active indexing session
// for a project, creating it when absent. Keyed by
// (project_id, tool_used='codebase-indexer', status='active').
func (s *Store) GetOrCreateIndexSession(ctx context.Context, projectID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, tool_used, status, started_at, ended_at
		 FROM sessions
		 WHERE project_id = ? AND tool_used = ? AND status = ?
		 ORDER BY started_at LIMIT 1`,
		projectID, IndexerTool, string(SessionActive))
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return s.CreateSession(ctx, &Session{
		ProjectID: projectID,
		ToolUsed:  IndexerTool,
		Status:    SessionActive,
	})
}

// UpdateSessionStatus moves a session between lifecycle states. Completing
// or pausing a session stamps ended_at; reactivating clears it.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status SessionStatus) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var ended interface{}
	if status == SessionCompleted || status == SessionPaused {
		ended = formatTime(time.Now())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		string(status), ended, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteSession removes a session. All of its contexts cascade, and each
// context's relationships and file associations cascade in turn.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	var contexts int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contexts WHERE session_id = ?`, id).Scan(&contexts); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	s.noteDelete(contexts)
	return nil
}

// ListSessions returns sessions for a project, newest first.
func (s *Store) ListSessions(ctx context.Context, projectID string) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, tool_used, status, started_at, ended_at
		 FROM sessions WHERE project_id = ? ORDER BY started_at DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var status, started string
	var ended sql.NullString

	err := row.Scan(&sess.ID, &sess.ProjectID, &sess.ToolUsed, &status, &started, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	sess.Status = SessionStatus(status)
	sess.StartedAt = parseTime(started)
	if ended.Valid {
		t := parseTime(ended.String)
		sess.EndedAt = &t
	}
	return &sess, nil
}

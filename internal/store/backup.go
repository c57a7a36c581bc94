package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// BackupVersion identifies the backup document shape.
const BackupVersion = "1.0"

// BackupData holds the four entity arrays of a backup document. Pointer
// slices distinguish a present-but-empty array from a missing one, which
// restore validation depends on.
type BackupData struct {
	Projects      *[]*Project      `json:"projects"`
	Sessions      *[]*Session      `json:"sessions"`
	Contexts      *[]*Context      `json:"contexts"`
	Relationships *[]*Relationship `json:"relationships"`
}

// BackupDocument is the portable snapshot produced by Backup and consumed
// by Restore.
type BackupDocument struct {
	Version      string         `json:"version"`
	Timestamp    time.Time      `json:"timestamp"`
	DatabasePath string         `json:"database_path"`
	Data         BackupData     `json:"data"`
	Stats        map[string]int `json:"stats"`
}

// Backup snapshots projects, sessions, contexts and relationships into a
// portable document.
func (s *Store) Backup(ctx context.Context, databasePath string) (*BackupDocument, error) {
	projects, err := s.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("backing up projects: %w", err)
	}

	var sessions []*Session
	for _, p := range projects {
		ss, err := s.ListSessions(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("backing up sessions: %w", err)
		}
		sessions = append(sessions, ss...)
	}

	contexts, err := s.ListContexts(ctx, ContextFilter{IncludeArchived: true})
	if err != nil {
		return nil, fmt.Errorf("backing up contexts: %w", err)
	}

	relationships, err := s.allRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("backing up relationships: %w", err)
	}

	if projects == nil {
		projects = []*Project{}
	}
	if sessions == nil {
		sessions = []*Session{}
	}
	if contexts == nil {
		contexts = []*Context{}
	}
	if relationships == nil {
		relationships = []*Relationship{}
	}

	return &BackupDocument{
		Version:      BackupVersion,
		Timestamp:    time.Now().UTC(),
		DatabasePath: databasePath,
		Data: BackupData{
			Projects:      &projects,
			Sessions:      &sessions,
			Contexts:      &contexts,
			Relationships: &relationships,
		},
		Stats: map[string]int{
			"projects":      len(projects),
			"sessions":      len(sessions),
			"contexts":      len(contexts),
			"relationships": len(relationships),
		},
	}, nil
}

// ParseBackup decodes and validates a backup document. All four data
// arrays must be present; anything else is rejected before any mutation.
func ParseBackup(raw []byte) (*BackupDocument, error) {
	var doc BackupDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural requirements for restore.
func (d *BackupDocument) Validate() error {
	if d.Version == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidBackup)
	}
	if d.Data.Projects == nil {
		return fmt.Errorf("%w: missing data.projects", ErrInvalidBackup)
	}
	if d.Data.Sessions == nil {
		return fmt.Errorf("%w: missing data.sessions", ErrInvalidBackup)
	}
	if d.Data.Contexts == nil {
		return fmt.Errorf("%w: missing data.contexts", ErrInvalidBackup)
	}
	if d.Data.Relationships == nil {
		return fmt.Errorf("%w: missing data.relationships", ErrInvalidBackup)
	}
	return nil
}

// Restore validates the document, clears all four tables in one
// transaction, and re-inserts every row preserving original identifiers
// and timestamps. The FTS index rebuilds through the insert triggers. On
// validation failure nothing is mutated.
func (s *Store) Restore(ctx context.Context, doc *BackupDocument) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Dependents first so cascade order never matters.
	for _, table := range []string{"relationships", "context_files", "contexts", "sessions", "projects"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, p := range *doc.Data.Projects {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, path, language, framework, git_remote, created_at, last_accessed)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Path, p.Language, p.Framework, p.GitRemote,
			formatTime(p.CreatedAt), formatTime(p.LastAccessed)); err != nil {
			return fmt.Errorf("restoring project %s: %w", p.ID, err)
		}
	}

	for _, sess := range *doc.Data.Sessions {
		var ended interface{}
		if sess.EndedAt != nil {
			ended = formatTime(*sess.EndedAt)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions (id, project_id, tool_used, status, started_at, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.ProjectID, sess.ToolUsed, string(sess.Status),
			formatTime(sess.StartedAt), ended); err != nil {
			return fmt.Errorf("restoring session %s: %w", sess.ID, err)
		}
	}

	for _, c := range *doc.Data.Contexts {
		var embBlob []byte
		var embSource, embModel interface{}
		if c.Embedding != nil {
			embBlob = encodeVector(c.Embedding.Vector)
			embSource = c.Embedding.Source
			embModel = c.Embedding.Model
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contexts
			 (id, session_id, type, content, file_path, line_start, line_end, language,
			  tags, quality_score, embedding, embedding_source, embedding_model,
			  metadata, archived, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.SessionID, string(c.Type), c.Content,
			nullable(c.FilePath), c.LineStart, c.LineEnd, nullable(c.Language),
			marshalTags(c.Tags), c.QualityScore, embBlob, embSource, embModel,
			marshalMetadata(c.Metadata), boolToInt(c.Archived),
			formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
			return fmt.Errorf("restoring context %s: %w", c.ID, err)
		}
	}

	for _, r := range *doc.Data.Relationships {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relationships (id, from_id, to_id, type, strength, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, r.FromID, r.ToID, string(r.Type), r.Strength,
			formatTime(r.CreatedAt)); err != nil {
			return fmt.Errorf("restoring relationship %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Info(ctx, "restore complete",
		zap.Int("projects", len(*doc.Data.Projects)),
		zap.Int("sessions", len(*doc.Data.Sessions)),
		zap.Int("contexts", len(*doc.Data.Contexts)),
		zap.Int("relationships", len(*doc.Data.Relationships)))
	return nil
}

func (s *Store) allRelationships(ctx context.Context) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, type, strength, created_at
		 FROM relationships ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []*Relationship
	for rows.Next() {
		var r Relationship
		var typ, created string
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &typ, &r.Strength, &created); err != nil {
			return nil, err
		}
		r.Type = RelationshipType(typ)
		r.CreatedAt = parseTime(created)
		rels = append(rels, &r)
	}
	return rels, rows.Err()
}

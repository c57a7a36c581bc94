package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// CreateProject inserts a new project. The path must be unique; creating a
// project for an already-known path returns the existing row instead.
func (s *Store) CreateProject(ctx context.Context, p *Project) (*Project, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if p.Path == "" {
		return nil, ErrEmptyPath
	}

	if existing, err := s.GetProjectByPath(ctx, p.Path); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Name == "" {
		p.Name = filepath.Base(p.Path)
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = now
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, path, language, framework, git_remote, created_at, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Path, p.Language, p.Framework, p.GitRemote,
		formatTime(p.CreatedAt), formatTime(p.LastAccessed))
	if err != nil {
		return nil, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// GetProject retrieves a project by ID.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, language, framework, git_remote, created_at, last_accessed
		 FROM projects WHERE id = ?`, id)
	return scanProject(row)
}

// GetProjectByPath retrieves a project by its unique filesystem path.
func (s *Store) GetProjectByPath(ctx context.Context, path string) (*Project, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, path, language, framework, git_remote, created_at, last_accessed
		 FROM projects WHERE path = ?`, path)
	return scanProject(row)
}

// GetOrCreateProject returns the project for path, creating it on first
// encounter and touching last_accessed either way.
func (s *Store) GetOrCreateProject(ctx context.Context, path string) (*Project, error) {
	p, err := s.GetProjectByPath(ctx, path)
	if errors.Is(err, ErrNotFound) {
		return s.CreateProject(ctx, &Project{Path: path})
	}
	if err != nil {
		return nil, err
	}
	if err := s.TouchProject(ctx, p.ID); err != nil {
		return nil, err
	}
	p.LastAccessed = time.Now().UTC()
	return p, nil
}

// TouchProject updates last_accessed to now.
func (s *Store) TouchProject(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET last_accessed = ? WHERE id = ?`,
		formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// UpdateProject rewrites the mutable fields of a project.
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, language = ?, framework = ?, git_remote = ?, last_accessed = ?
		 WHERE id = ?`,
		p.Name, p.Language, p.Framework, p.GitRemote, formatTime(time.Now()), p.ID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteProject removes a project. Sessions, contexts, relationships and
// file index rows cascade.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ListProjects returns all projects ordered by most recent access.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, path, language, framework, git_remote, created_at, last_accessed
		 FROM projects ORDER BY last_accessed DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var language, framework, gitRemote sql.NullString
	var created, accessed string

	err := row.Scan(&p.ID, &p.Name, &p.Path, &language, &framework, &gitRemote, &created, &accessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Language = language.String
	p.Framework = framework.String
	p.GitRemote = gitRemote.String
	p.CreatedAt = parseTime(created)
	p.LastAccessed = parseTime(accessed)
	return &p, nil
}

// requireAffected maps a zero-row update/delete to ErrNotFound.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

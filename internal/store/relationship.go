package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRelationship inserts a directed edge between two contexts.
// Strength defaults by type when zero. The (from, to, type) triple is
// unique; re-creating an existing edge updates its strength instead.
func (s *Store) CreateRelationship(ctx context.Context, r *Relationship) (*Relationship, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if r.FromID == "" || r.ToID == "" {
		return nil, fmt.Errorf("relationship endpoints required")
	}
	if r.FromID == r.ToID {
		return nil, fmt.Errorf("relationship cannot be self-referential")
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Strength == 0 {
		r.Strength = DefaultStrength(r.Type)
	}
	if r.Strength < 0 || r.Strength > 1 {
		return nil, fmt.Errorf("strength must be in [0,1], got %v", r.Strength)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO relationships (id, from_id, to_id, type, strength, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, type) DO UPDATE SET strength = excluded.strength`,
		r.ID, r.FromID, r.ToID, string(r.Type), r.Strength, formatTime(r.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting relationship: %w", err)
	}
	return r, nil
}

// GetRelationships returns edges touching a context, outgoing first.
func (s *Store) GetRelationships(ctx context.Context, contextID string) ([]*Relationship, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, type, strength, created_at
		 FROM relationships
		 WHERE from_id = ? OR to_id = ?
		 ORDER BY from_id = ? DESC, created_at`,
		contextID, contextID, contextID)
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

// DeleteRelationship removes an edge by ID.
func (s *Store) DeleteRelationship(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); errors.Is(err, ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

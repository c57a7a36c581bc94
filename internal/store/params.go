package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default learning parameters seeded at first startup. Weights feed the
// scorer; thresholds feed the decision engine.
var defaultParameters = []LearningParameter{
	{Name: "weight_code_significance", Kind: ParamWeight, Value: 0.25},
	{Name: "weight_problem_complexity", Kind: ParamWeight, Value: 0.25},
	{Name: "weight_solution_importance", Kind: ParamWeight, Value: 0.3},
	{Name: "weight_reusability", Kind: ParamWeight, Value: 0.2},
	{Name: "threshold_high", Kind: ParamThreshold, Value: 80},
	{Name: "threshold_medium", Kind: ParamThreshold, Value: 50},
	{Name: "threshold_low", Kind: ParamThreshold, Value: 30},
}

// SeedParameters inserts the default learning parameters where absent.
// Existing values are never overwritten.
func (s *Store) SeedParameters(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for _, p := range defaultParameters {
		_, err := s.db.ExecContext(ctx,
			`INSERT OR IGNORE INTO learning_parameters
			 (name, kind, value, previous_value, update_reason, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			p.Name, string(p.Kind), p.Value, p.Value, "default", formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("seeding parameter %s: %w", p.Name, err)
		}
	}
	return nil
}

// GetParameter retrieves a learning parameter by name.
func (s *Store) GetParameter(ctx context.Context, name string) (*LearningParameter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT name, kind, value, previous_value, update_reason, updated_at
		 FROM learning_parameters WHERE name = ?`, name)
	return scanParameter(row)
}

// ListParameters returns all learning parameters.
func (s *Store) ListParameters(ctx context.Context) ([]*LearningParameter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, value, previous_value, update_reason, updated_at
		 FROM learning_parameters ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var params []*LearningParameter
	for rows.Next() {
		p, err := scanParameter(rows)
		if err != nil {
			return nil, err
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// SetParameter updates a parameter in place, recording the previous value
// and the reason for the change. The write is immediately visible to the
// next reader; no in-process cache exists to diverge from it.
func (s *Store) SetParameter(ctx context.Context, name string, value float64, reason string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE learning_parameters
		 SET previous_value = value, value = ?, update_reason = ?, updated_at = ?
		 WHERE name = ?`,
		value, reason, formatTime(time.Now()), name)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ResetParameters restores every parameter to its seed default.
func (s *Store) ResetParameters(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	for _, p := range defaultParameters {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO learning_parameters
			 (name, kind, value, previous_value, update_reason, updated_at)
			 VALUES (?, ?, ?, ?, 'reset', ?)
			 ON CONFLICT(name) DO UPDATE SET
				previous_value = learning_parameters.value,
				value = excluded.value,
				update_reason = 'reset',
				updated_at = excluded.updated_at`,
			p.Name, string(p.Kind), p.Value, p.Value, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("resetting parameter %s: %w", p.Name, err)
		}
	}
	return nil
}

func scanParameter(row rowScanner) (*LearningParameter, error) {
	var p LearningParameter
	var kind, updated string
	var reason sql.NullString

	err := row.Scan(&p.Name, &kind, &p.Value, &p.PreviousValue, &reason, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Kind = ParameterKind(kind)
	p.UpdateReason = reason.String
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// RecordFeedback appends an immutable feedback log entry.
func (s *Store) RecordFeedback(ctx context.Context, f *UserFeedback) (*UserFeedback, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if f.ContextID == "" {
		return nil, fmt.Errorf("context ID required")
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_feedback (id, context_id, action, process_type, score, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.ContextID, string(f.Action), nullable(f.ProcessType), f.Score,
		formatTime(f.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("recording feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns feedback entries, newest first. A zero limit
// returns everything.
func (s *Store) ListFeedback(ctx context.Context, limit int) ([]*UserFeedback, error) {
	query := `SELECT id, context_id, action, process_type, score, created_at
		 FROM user_feedback ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feedback []*UserFeedback
	for rows.Next() {
		var f UserFeedback
		var action, created string
		var processType sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.ContextID, &action, &processType, &score, &created); err != nil {
			return nil, err
		}
		f.Action = FeedbackAction(action)
		f.ProcessType = processType.String
		f.Score = score.Float64
		f.CreatedAt = parseTime(created)
		feedback = append(feedback, &f)
	}
	return feedback, rows.Err()
}

package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/sanitize"
)

// SearchContexts runs a full-text query over context content and tags.
//
// The raw query is sanitized before it reaches FTS5. When sanitization
// leaves nothing searchable, or when the index itself rejects the
// expression, the search degrades to an unfiltered recency-ordered listing
// instead of returning an error.
func (s *Store) SearchContexts(ctx context.Context, query string, limit int) ([]*Context, error) {
	if limit <= 0 {
		limit = 20
	}

	match := sanitize.Query(query)
	if match == "" {
		return s.recentContexts(ctx, limit)
	}

	rows, err := s.db.QueryContext(ctx,
		selectContext+`
		 JOIN contexts_fts f ON f.rowid = c.rowid
		 WHERE contexts_fts MATCH ? AND c.archived = 0
		 ORDER BY rank
		 LIMIT ?`,
		match, limit)
	if err != nil {
		// A query that still fails at the index layer falls back to the
		// unfiltered listing rather than erroring.
		s.log.Warn(ctx, "fts query failed, falling back to recency listing",
			zap.String("query", query), zap.Error(err))
		return s.recentContexts(ctx, limit)
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

// recentContexts is the degraded search path: newest non-archived
// contexts, no filtering.
func (s *Store) recentContexts(ctx context.Context, limit int) ([]*Context, error) {
	return s.ListContexts(ctx, ContextFilter{Limit: limit})
}

// Package store provides SQLite persistence for engramd.
//
// The schema holds seven core tables (projects, sessions, contexts,
// relationships, file_index, learning_parameters, user_feedback) plus a
// trigger-synchronized FTS5 index over context content and tags and a
// context_files association side-table. Embeddings are stored as float32
// little-endian BLOBs next to their context row.
//
// Concurrency model: single writer, synchronous calls. The only hazard
// handled explicitly is near-simultaneous identical writes, collapsed by a
// trailing dedup window on create. Space reclamation runs on a background
// worker fed by an explicit task queue and never blocks the deleting
// caller.
//
// The FTS5 index requires mattn/go-sqlite3 to be compiled with the
// sqlite_fts5 build tag; build and test with -tags sqlite_fts5 or Open
// fails during migration with "no such module: fts5".
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/logging"
)

const (
	// DefaultDedupWindow is the trailing interval during which identical
	// (session, type, content) writes collapse to one row.
	DefaultDedupWindow = 5 * time.Second

	// DefaultVacuumEvery triggers an asynchronous vacuum after every Nth
	// context deletion.
	DefaultVacuumEvery = 10
)

// Options configures a Store.
type Options struct {
	// Path is the SQLite database file. ":memory:" is valid for tests.
	Path string

	// DedupWindow overrides DefaultDedupWindow when > 0.
	DedupWindow time.Duration

	// VacuumEvery overrides DefaultVacuumEvery when > 0.
	VacuumEvery int

	// Logger receives store diagnostics. Defaults to a nop logger.
	Logger *logging.Logger

	// OnDelete, when set, is invoked with the number of context rows
	// removed by each delete call.
	OnDelete func(n int)

	// OnVacuum, when set, is invoked after each completed background
	// vacuum.
	OnVacuum func()
}

// Store wraps the SQLite database and the background vacuum worker.
type Store struct {
	db  *sql.DB
	log *logging.Logger

	dedupWindow time.Duration
	vacuumEvery int
	onDelete    func(n int)
	onVacuum    func()

	mu          sync.Mutex
	deleteCount int

	vacuumCh chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	closed   bool
}

// schema is the authoritative table layout. Everything is IF NOT EXISTS so
// reopening an existing database is a no-op; older databases gain missing
// columns through ensureColumns.
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	path TEXT NOT NULL UNIQUE,
	language TEXT,
	framework TEXT,
	git_remote TEXT,
	created_at TEXT NOT NULL,
	last_accessed TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	tool_used TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	started_at TEXT NOT NULL,
	ended_at TEXT,
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(project_id, tool_used, status);

CREATE TABLE IF NOT EXISTS contexts (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	type TEXT NOT NULL,
	content TEXT NOT NULL,
	file_path TEXT,
	line_start INTEGER,
	line_end INTEGER,
	language TEXT,
	tags TEXT, -- JSON array
	quality_score REAL NOT NULL DEFAULT 0,
	embedding BLOB, -- float32 array, little-endian
	embedding_source TEXT,
	embedding_model TEXT,
	metadata TEXT, -- JSON object
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_contexts_session ON contexts(session_id);
CREATE INDEX IF NOT EXISTS idx_contexts_type ON contexts(type);
CREATE INDEX IF NOT EXISTS idx_contexts_created ON contexts(created_at);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	from_id TEXT NOT NULL,
	to_id TEXT NOT NULL,
	type TEXT NOT NULL,
	strength REAL NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (from_id, to_id, type),
	FOREIGN KEY (from_id) REFERENCES contexts(id) ON DELETE CASCADE,
	FOREIGN KEY (to_id) REFERENCES contexts(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_id);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_id);

CREATE TABLE IF NOT EXISTS context_files (
	context_id TEXT NOT NULL,
	file_path TEXT NOT NULL,
	PRIMARY KEY (context_id, file_path),
	FOREIGN KEY (context_id) REFERENCES contexts(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS file_index (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	relative_path TEXT NOT NULL,
	content TEXT NOT NULL,
	language TEXT,
	size INTEGER NOT NULL DEFAULT 0,
	content_hash TEXT NOT NULL,
	modified_at TEXT NOT NULL,
	indexed_at TEXT NOT NULL,
	UNIQUE (project_id, relative_path),
	FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS learning_parameters (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	value REAL NOT NULL,
	previous_value REAL NOT NULL DEFAULT 0,
	update_reason TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_feedback (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL,
	action TEXT NOT NULL,
	process_type TEXT,
	score REAL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_context ON user_feedback(context_id);

CREATE VIRTUAL TABLE IF NOT EXISTS contexts_fts USING fts5(
	content,
	tags,
	content=contexts,
	content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS contexts_ai AFTER INSERT ON contexts BEGIN
	INSERT INTO contexts_fts(rowid, content, tags)
	VALUES (new.rowid, new.content, new.tags);
END;

CREATE TRIGGER IF NOT EXISTS contexts_ad AFTER DELETE ON contexts BEGIN
	INSERT INTO contexts_fts(contexts_fts, rowid, content, tags)
	VALUES ('delete', old.rowid, old.content, old.tags);
END;

CREATE TRIGGER IF NOT EXISTS contexts_au AFTER UPDATE ON contexts BEGIN
	INSERT INTO contexts_fts(contexts_fts, rowid, content, tags)
	VALUES ('delete', old.rowid, old.content, old.tags);
	INSERT INTO contexts_fts(rowid, content, tags)
	VALUES (new.rowid, new.content, new.tags);
END;
`

// Open opens (or creates) the database at opts.Path and runs migrations.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("database path required")
	}

	log := opts.Logger
	if log == nil {
		log = logging.NewNop()
	}
	log = log.Named("store")

	// recursive_triggers makes session-cascade deletes fire the FTS sync
	// triggers on each removed context row.
	conn, err := sql.Open("sqlite3", opts.Path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_recursive_triggers=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single-writer model: one connection avoids SQLITE_BUSY between the
	// caller and the vacuum worker.
	conn.SetMaxOpenConns(1)

	s := &Store{
		db:          conn,
		log:         log,
		dedupWindow: opts.DedupWindow,
		vacuumEvery: opts.VacuumEvery,
		onDelete:    opts.OnDelete,
		onVacuum:    opts.OnVacuum,
		vacuumCh:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
	if s.dedupWindow <= 0 {
		s.dedupWindow = DefaultDedupWindow
	}
	if s.vacuumEvery <= 0 {
		s.vacuumEvery = DefaultVacuumEvery
	}

	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	s.wg.Add(1)
	go s.vacuumWorker()

	return s, nil
}

// Close stops the vacuum worker and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

// checkOpen gates every mutating entry point so that writes after Close
// fail with ErrClosed instead of a driver error.
func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// migrate creates the schema and applies additive evolution steps.
// Migration failures beyond the base schema are logged and skipped; the
// store must remain usable.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Additive columns for databases created before the column existed.
	s.ensureColumn(ctx, "contexts", "embedding_source", "TEXT")
	s.ensureColumn(ctx, "contexts", "embedding_model", "TEXT")
	s.ensureColumn(ctx, "contexts", "archived", "INTEGER NOT NULL DEFAULT 0")
	s.ensureColumn(ctx, "learning_parameters", "update_reason", "TEXT")

	// One-time flattening of metadata file lists into context_files rows.
	if err := s.migrateFileAssociations(ctx); err != nil {
		s.log.Warn(ctx, "file association migration failed, continuing",
			zap.Error(err))
	}

	return nil
}

// ensureColumn adds a column when a previously-stored database predates it.
// Failures are logged, not fatal.
func (s *Store) ensureColumn(ctx context.Context, table, column, decl string) {
	if s.columnExists(ctx, table, column) {
		return
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		s.log.Warn(ctx, "failed to add column, continuing",
			zap.String("table", table),
			zap.String("column", column),
			zap.Error(err))
	}
}

// columnExists reports whether table has the named column.
func (s *Store) columnExists(ctx context.Context, table, column string) bool {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name, typ string
			notnull   int
			dflt      sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false
		}
		if strings.EqualFold(name, column) {
			return true
		}
	}
	return false
}

// migrateFileAssociations flattens metadata-embedded file lists into
// first-class context_files rows. Guarded by a cheap existence check so it
// runs at most once per database.
func (s *Store) migrateFileAssociations(ctx context.Context) error {
	var migrated int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM context_files").Scan(&migrated)
	if err != nil {
		return err
	}
	if migrated > 0 {
		return nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, metadata FROM contexts
		 WHERE metadata IS NOT NULL AND metadata LIKE '%"files"%'`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type assoc struct {
		contextID string
		path      string
	}
	var assocs []assoc
	for rows.Next() {
		var id, meta string
		if err := rows.Scan(&id, &meta); err != nil {
			return err
		}
		for _, p := range metadataFileList(meta) {
			assocs = append(assocs, assoc{contextID: id, path: p})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(assocs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, a := range assocs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO context_files (context_id, file_path) VALUES (?, ?)`,
			a.contextID, a.path); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.log.Info(ctx, "flattened metadata file lists into context_files",
		zap.Int("associations", len(assocs)))
	return nil
}

// noteDelete bumps the delete counter and enqueues a vacuum after every
// vacuumEvery-th deletion. The send is non-blocking: a vacuum already
// queued covers this deletion too.
func (s *Store) noteDelete(n int) {
	if n <= 0 {
		return
	}
	if s.onDelete != nil {
		s.onDelete(n)
	}
	s.mu.Lock()
	s.deleteCount += n
	trigger := s.deleteCount >= s.vacuumEvery
	if trigger {
		s.deleteCount = 0
	}
	s.mu.Unlock()

	if trigger {
		select {
		case s.vacuumCh <- struct{}{}:
		default:
		}
	}
}

// vacuumWorker consumes the vacuum queue. Failures are swallowed: space
// reclamation must never surface to the deleting caller.
func (s *Store) vacuumWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case <-s.vacuumCh:
			ctx := context.Background()
			if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
				s.log.Warn(ctx, "background vacuum failed", zap.Error(err))
				continue
			}
			if s.onVacuum != nil {
				s.onVacuum()
			}
			s.log.Debug(ctx, "background vacuum complete")
		}
	}
}

// Vacuum reclaims space synchronously. Exposed for explicit maintenance
// calls; the background path goes through the queue instead.
func (s *Store) Vacuum(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts for every core table.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{
		"projects", "sessions", "contexts", "relationships",
		"file_index", "learning_parameters", "user_feedback",
	} {
		var count int
		if err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore opens a store on a fresh temp database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreWindow(t, DefaultDedupWindow)
}

func newTestStoreWindow(t *testing.T, dedupWindow time.Duration) *Store {
	t.Helper()
	st, err := Open(context.Background(), Options{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		DedupWindow: dedupWindow,
	})
	require.NoError(t, err, "store should open on a fresh database")
	t.Cleanup(func() { st.Close() })
	return st
}

// seedSession creates a project and an active session, returning both.
func seedSession(t *testing.T, st *Store) (*Project, *Session) {
	t.Helper()
	ctx := context.Background()
	project, err := st.CreateProject(ctx, &Project{Path: filepath.Join(t.TempDir(), "proj")})
	require.NoError(t, err)
	session, err := st.CreateSession(ctx, &Session{ProjectID: project.ID, ToolUsed: "test"})
	require.NoError(t, err)
	return project, session
}

func mustCreateContext(t *testing.T, st *Store, sessionID string, typ ContextType, content string) *Context {
	t.Helper()
	c, err := st.CreateContext(context.Background(), &Context{
		SessionID: sessionID,
		Type:      typ,
		Content:   content,
	})
	require.NoError(t, err)
	return c
}

func TestOpenCreatesSchema(t *testing.T) {
	st := newTestStore(t)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)

	for _, table := range []string{"projects", "sessions", "contexts", "relationships", "file_index", "learning_parameters", "user_feedback"} {
		count, ok := stats[table]
		assert.True(t, ok, "stats should report table %s", table)
		assert.Zero(t, count, "fresh store should have no %s rows", table)
	}
}

func TestOpenExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	st, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	project, err := st.CreateProject(ctx, &Project{Path: "/tmp/reopen-project"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st2, err := Open(ctx, Options{Path: path})
	require.NoError(t, err, "reopening should run migrations idempotently")
	defer st2.Close()

	got, err := st2.GetProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Equal(t, project.Path, got.Path)
}

func TestVacuum(t *testing.T) {
	st := newTestStore(t)
	_, session := seedSession(t, st)
	mustCreateContext(t, st, session.ID, TypeCode, "func main() {}")

	assert.NoError(t, st.Vacuum(context.Background()), "explicit vacuum should succeed")
}

func TestCloseRejectsFurtherWrites(t *testing.T) {
	st := newTestStore(t)
	_, session := seedSession(t, st)
	require.NoError(t, st.Close())

	ctx := context.Background()
	_, err := st.CreateContext(ctx, &Context{
		SessionID: session.ID, Type: TypeCode, Content: "x",
	})
	assert.ErrorIs(t, err, ErrClosed, "writes after close should report the closed store")

	assert.ErrorIs(t, st.DeleteContext(ctx, session.ID), ErrClosed)
	assert.ErrorIs(t, st.SetParameter(ctx, "weight_code_significance", 0.3, "manual"), ErrClosed)
	assert.ErrorIs(t, st.Vacuum(ctx), ErrClosed)
}

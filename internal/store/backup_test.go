package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	project, session := seedSession(t, src)

	a := mustCreateContext(t, src, session.ID, TypeError, "deadlock in worker pool")
	b := mustCreateContext(t, src, session.ID, TypeSolution, "acquire locks in a fixed order")
	_, err := src.CreateRelationship(ctx, &Relationship{FromID: b.ID, ToID: a.ID, Type: RelFixes})
	require.NoError(t, err)

	doc, err := src.Backup(ctx, "src.db")
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, doc.Version)
	assert.Equal(t, 1, doc.Stats["projects"])
	assert.Equal(t, 1, doc.Stats["sessions"])
	assert.Equal(t, 2, doc.Stats["contexts"])
	assert.Equal(t, 1, doc.Stats["relationships"])

	// Round-trip through JSON like the CLI does.
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	parsed, err := ParseBackup(raw)
	require.NoError(t, err)

	dst, err := Open(ctx, Options{Path: filepath.Join(t.TempDir(), "dst.db")})
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, dst.Restore(ctx, parsed))

	gotProject, err := dst.GetProject(ctx, project.ID)
	require.NoError(t, err, "restore preserves project identifiers")
	assert.Equal(t, project.Path, gotProject.Path)

	gotSession, err := dst.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, project.ID, gotSession.ProjectID)

	gotA, err := dst.GetContext(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Content, gotA.Content)
	assert.Equal(t, a.CreatedAt.Unix(), gotA.CreatedAt.Unix(), "restore preserves timestamps")

	rels, err := dst.GetRelationships(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, RelFixes, rels[0].Type)

	stats, err := dst.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats["contexts"])

	// Restored contexts are searchable again.
	results, err := dst.SearchContexts(ctx, "deadlock", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.ID, results[0].ID)
}

func TestRestoreReplacesExistingData(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	_, session := seedSession(t, src)
	mustCreateContext(t, src, session.ID, TypeCode, "kept through restore")

	doc, err := src.Backup(ctx, "src.db")
	require.NoError(t, err)

	dst := newTestStore(t)
	_, dstSession := seedSession(t, dst)
	stale := mustCreateContext(t, dst, dstSession.ID, TypeCode, "should be cleared")

	require.NoError(t, dst.Restore(ctx, doc))

	_, err = dst.GetContext(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound, "restore clears pre-existing rows")
}

func TestRestoreRejectsMissingArrays(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	_, session := seedSession(t, st)
	keep := mustCreateContext(t, st, session.ID, TypeCode, "must survive a rejected restore")

	for _, tc := range []struct {
		name string
		raw  string
	}{
		{"missing relationships", `{"version":"1.0","data":{"projects":[],"sessions":[],"contexts":[]}}`},
		{"missing data", `{"version":"1.0"}`},
		{"empty document", `{}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := ParseBackup([]byte(tc.raw))
			if err == nil {
				err = st.Restore(ctx, doc)
			}
			assert.ErrorIs(t, err, ErrInvalidBackup)
		})
	}

	_, err := st.GetContext(ctx, keep.ID)
	assert.NoError(t, err, "a rejected restore mutates nothing")
}

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFile(t *testing.T) {
	st := newTestStore(t)
	project, _ := seedSession(t, st)
	ctx := context.Background()

	written, err := st.UpsertFile(ctx, &FileEntry{
		ProjectID:    project.ID,
		RelativePath: "internal/parse/parse.go",
		Content:      "package parse",
		Language:     "go",
	})
	require.NoError(t, err)
	assert.True(t, written)

	// Same content hash: the re-scan is a no-op.
	written, err = st.UpsertFile(ctx, &FileEntry{
		ProjectID:    project.ID,
		RelativePath: "internal/parse/parse.go",
		Content:      "package parse",
	})
	require.NoError(t, err)
	assert.False(t, written, "unchanged files are not rewritten")

	// Changed content replaces the snapshot.
	written, err = st.UpsertFile(ctx, &FileEntry{
		ProjectID:    project.ID,
		RelativePath: "internal/parse/parse.go",
		Content:      "package parse\n\nfunc Parse() {}",
	})
	require.NoError(t, err)
	assert.True(t, written)

	got, err := st.GetFile(ctx, project.ID, "internal/parse/parse.go")
	require.NoError(t, err)
	assert.Contains(t, got.Content, "func Parse()")
	assert.Equal(t, HashContent(got.Content), got.ContentHash)
	assert.Equal(t, int64(len(got.Content)), got.Size)
}

func TestSearchFiles(t *testing.T) {
	st := newTestStore(t)
	project, _ := seedSession(t, st)
	ctx := context.Background()

	for path, content := range map[string]string{
		"cmd/main.go":        "package main\nfunc main() { run() }",
		"internal/run.go":    "package internal\nfunc run() error { return nil }",
		"docs/README.md":     "usage notes",
		"internal/run_50.go": "contains 50% literal",
	} {
		_, err := st.UpsertFile(ctx, &FileEntry{ProjectID: project.ID, RelativePath: path, Content: content})
		require.NoError(t, err)
	}

	byContent, err := st.SearchFiles(ctx, project.ID, "func run", 10)
	require.NoError(t, err)
	assert.Len(t, byContent, 1)

	byPath, err := st.SearchFiles(ctx, project.ID, "README", 10)
	require.NoError(t, err)
	assert.Len(t, byPath, 1)

	// LIKE metacharacters in the query are literals, not wildcards.
	escaped, err := st.SearchFiles(ctx, project.ID, "50%", 10)
	require.NoError(t, err)
	require.Len(t, escaped, 1)
	assert.Equal(t, "internal/run_50.go", escaped[0].RelativePath)
}

func TestDeleteFile(t *testing.T) {
	st := newTestStore(t)
	project, _ := seedSession(t, st)
	ctx := context.Background()

	_, err := st.UpsertFile(ctx, &FileEntry{ProjectID: project.ID, RelativePath: "a.go", Content: "package a"})
	require.NoError(t, err)

	require.NoError(t, st.DeleteFile(ctx, project.ID, "a.go"))
	_, err = st.GetFile(ctx, project.ID, "a.go")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteFile(ctx, project.ID, "a.go"), ErrNotFound)
}

package optimize

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

func ctxWith(id, content string, quality float64) *store.Context {
	return &store.Context{
		ID:           id,
		Type:         store.TypeCode,
		Content:      content,
		QualityScore: quality,
		CreatedAt:    time.Now().UTC(),
	}
}

func embedded(id, content string, vector []float32) *store.Context {
	c := ctxWith(id, content, 0.5)
	c.Embedding = &store.Embedding{Vector: vector, Source: "test", Model: "test-model"}
	return c
}

func TestDedupGroupsNormalizedContent(t *testing.T) {
	o := New(nil, nil, nil)

	contexts := []*store.Context{
		ctxWith("short", "func main() {}", 0.9),
		ctxWith("long", "Func   Main()   {}", 0.5),
		ctxWith("other", "completely different content", 0.9),
	}

	report := o.dedup(contexts, DefaultSimilarityThreshold)
	require.Len(t, report.Groups, 1)

	group := report.Groups[0]
	assert.Equal(t, "long", group.MasterID, "longest member should be master")
	assert.Equal(t, []string{"short"}, group.RemovableIDs)
	assert.Equal(t, 2, group.Size)
	assert.Equal(t, 1, report.Removable)
}

func TestDedupEqualLengthPrefersHigherQuality(t *testing.T) {
	o := New(nil, nil, nil)

	contexts := []*store.Context{
		ctxWith("low", "func main() {}", 0.4),
		ctxWith("high", "FUNC MAIN() {}", 0.9),
	}

	report := o.dedup(contexts, DefaultSimilarityThreshold)
	require.Len(t, report.Groups, 1)
	assert.Equal(t, "high", report.Groups[0].MasterID)
	assert.Equal(t, []string{"low"}, report.Groups[0].RemovableIDs)
}

func TestDedupSimilarityThreshold(t *testing.T) {
	o := New(nil, nil, nil)

	t.Run("dissimilar embeddings veto the hash group", func(t *testing.T) {
		contexts := []*store.Context{
			embedded("a", "same text", []float32{1, 0}),
			embedded("b", "SAME TEXT", []float32{0, 1}),
		}
		report := o.dedup(contexts, DefaultSimilarityThreshold)
		assert.Empty(t, report.Groups)
		assert.Zero(t, report.Removable)
	})

	t.Run("similar embeddings confirm it", func(t *testing.T) {
		contexts := []*store.Context{
			embedded("a", "same text", []float32{1, 0}),
			embedded("b", "SAME TEXT", []float32{1, 0}),
		}
		report := o.dedup(contexts, DefaultSimilarityThreshold)
		require.Len(t, report.Groups, 1)
		assert.InDelta(t, 1.0, report.Groups[0].MeanSimilarity, 1e-6)
	})
}

func TestClusterNoEmbeddings(t *testing.T) {
	o := New(nil, nil, nil)

	report := o.cluster(nil, 0, DefaultMinClusterSize)
	assert.Empty(t, report.Clusters)
	assert.Zero(t, report.Iterations)

	report = o.cluster([]*store.Context{ctxWith("a", "no vector here", 0.5)}, 0, DefaultMinClusterSize)
	assert.Empty(t, report.Clusters)
	assert.Empty(t, report.Outliers)
}

func TestClusterSeparatesDirections(t *testing.T) {
	o := New(nil, nil, nil)

	contexts := []*store.Context{
		embedded("a1", "alpha one", []float32{1, 0}),
		embedded("a2", "alpha two", []float32{1, 0}),
		embedded("b1", "beta one", []float32{0, 1}),
		embedded("b2", "beta two", []float32{0, 1}),
	}

	report := o.cluster(contexts, 2, 2)
	require.Len(t, report.Clusters, 2)
	assert.Empty(t, report.Outliers)
	assert.GreaterOrEqual(t, report.Iterations, 1)

	var members [][]string
	for _, c := range report.Clusters {
		members = append(members, c.Members)
	}
	assert.ElementsMatch(t, []string{"a1", "a2"}, members[0])
	assert.ElementsMatch(t, []string{"b1", "b2"}, members[1])
}

func TestClusterSmallClustersBecomeOutliers(t *testing.T) {
	o := New(nil, nil, nil)

	contexts := []*store.Context{
		embedded("a1", "alpha one", []float32{1, 0}),
		embedded("b", "beta singleton", []float32{0, 1}),
		embedded("a2", "alpha two", []float32{1, 0}),
	}

	report := o.cluster(contexts, 2, 2)
	require.Len(t, report.Clusters, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, report.Clusters[0].Members)
	assert.Equal(t, []string{"b"}, report.Outliers)
}

func TestCompress(t *testing.T) {
	o := New(nil, nil, nil)

	code := "// package header\n\nfunc main() {\n    // inner comment\n    run()\n}\n"
	contexts := []*store.Context{
		ctxWith("code", code, 0.5),
		ctxWith("prose", "a single dense line of prose", 0.5),
	}

	report := o.compress(contexts, DefaultMinReduction)
	assert.Equal(t, 2, report.TotalExamined)
	require.Len(t, report.Candidates, 1)

	cand := report.Candidates[0]
	assert.Equal(t, "code", cand.ContextID)
	assert.Greater(t, cand.Reduction, DefaultMinReduction)
	assert.Less(t, cand.StrippedBytes, cand.OriginalBytes)
	assert.Equal(t, int64(cand.OriginalBytes-cand.StrippedBytes), report.SavableBytes)
}

func TestStripContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"comments and blanks", "// a\n\nx := 1\n# b\ny := 2", "x := 1\ny := 2"},
		{"indentation trimmed", "    if ok {\n        go on\n    }", "if ok {\ngo on\n}"},
		{"all comments", "// only\n# comments", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripContent(tt.in))
		})
	}
}

func TestRank(t *testing.T) {
	o := New(nil, nil, nil)
	now := time.Now().UTC()

	fresh := ctxWith("fresh-solution", "solved it", 0.5)
	fresh.Type = store.TypeSolution

	stale := ctxWith("stale-solution", "solved it long ago", 0.5)
	stale.Type = store.TypeSolution
	stale.CreatedAt = now.Add(-200 * 24 * time.Hour)

	chat := ctxWith("old-chat", "we talked", 0.5)
	chat.Type = store.TypeConversation
	chat.CreatedAt = now.Add(-200 * 24 * time.Hour)

	odd := ctxWith("odd", "unclassifiable", 0.5)
	odd.Type = store.ContextType("weird")
	odd.CreatedAt = now.Add(-30 * 24 * time.Hour)

	report := o.rank([]*store.Context{chat, odd, stale, fresh})
	require.Len(t, report.Entries, 4)

	// Descending relevance: boosted solution, decayed solution, unknown
	// type at the neutral base, decayed conversation.
	assert.Equal(t, "fresh-solution", report.Entries[0].ContextID)
	assert.InDelta(t, 1.0, report.Entries[0].Relevance, 1e-9)
	assert.Equal(t, "stale-solution", report.Entries[1].ContextID)
	assert.InDelta(t, 0.7, report.Entries[1].Relevance, 1e-9)
	assert.Equal(t, "odd", report.Entries[2].ContextID)
	assert.InDelta(t, 0.5, report.Entries[2].Relevance, 1e-9)
	assert.Equal(t, "old-chat", report.Entries[3].ContextID)
	assert.InDelta(t, 0.1, report.Entries[3].Relevance, 1e-9)
}

func TestArchiveCutoff(t *testing.T) {
	o := New(nil, nil, nil)

	old := ctxWith("old", "ancient context body", 0.5)
	old.CreatedAt = time.Now().UTC().Add(-100 * 24 * time.Hour)
	recent := ctxWith("recent", "still warm", 0.5)

	report := o.archive([]*store.Context{old, recent}, DefaultArchiveAfterDays*24*time.Hour)
	assert.Equal(t, []string{"old"}, report.ContextIDs)
	assert.Equal(t, int64(len(old.Content)), report.ReclaimableBytes)
}

// Integration coverage for Run and the apply steps against a real store.

func newTestOptimizer(t *testing.T) (*Optimizer, *store.Store, *store.Project, *store.Session) {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{
		Path: filepath.Join(t.TempDir(), "optimize.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	project, err := st.CreateProject(ctx, &store.Project{Path: filepath.Join(t.TempDir(), "proj")})
	require.NoError(t, err)
	session, err := st.CreateSession(ctx, &store.Session{ProjectID: project.ID, ToolUsed: "test"})
	require.NoError(t, err)

	return New(st, nil, nil), st, project, session
}

func storeContext(t *testing.T, st *store.Store, sessionID, content string) *store.Context {
	t.Helper()
	c, err := st.CreateContext(context.Background(), &store.Context{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      store.TypeCode,
		Content:   content,
	})
	require.NoError(t, err)
	return c
}

func TestRunAllStrategies(t *testing.T) {
	o, st, project, session := newTestOptimizer(t)
	ctx := context.Background()

	storeContext(t, st, session.ID, "first stored context")
	storeContext(t, st, session.ID, "second stored context")

	report, err := o.Run(ctx, Options{ProjectID: project.ID})
	require.NoError(t, err)

	assert.Equal(t, project.ID, report.ProjectID)
	assert.Equal(t, 2, report.ContextCount)
	assert.NotNil(t, report.Dedup)
	assert.NotNil(t, report.Clustering)
	assert.NotNil(t, report.Compression)
	assert.NotNil(t, report.Ranking)
	assert.NotNil(t, report.Archive)
	assert.Len(t, report.Ranking.Entries, 2)
}

func TestRunValidation(t *testing.T) {
	o, _, project, _ := newTestOptimizer(t)
	ctx := context.Background()

	_, err := o.Run(ctx, Options{})
	require.Error(t, err, "project ID is required")

	_, err = o.Run(ctx, Options{ProjectID: project.ID, Strategies: []Strategy{"bogus"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestApplyArchive(t *testing.T) {
	o, st, _, session := newTestOptimizer(t)
	ctx := context.Background()

	c := storeContext(t, st, session.ID, "soon to be archived")

	applied, err := o.ApplyArchive(ctx, &ArchiveReport{ContextIDs: []string{c.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	got, err := st.GetContext(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived)

	applied, err = o.ApplyArchive(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, applied)
}

func TestApplyDedup(t *testing.T) {
	o, st, _, session := newTestOptimizer(t)
	ctx := context.Background()

	master := storeContext(t, st, session.ID, "the canonical copy")
	dup := storeContext(t, st, session.ID, "the   CANONICAL copy")

	deleted, err := o.ApplyDedup(ctx, &DedupReport{
		Groups: []DedupGroup{{MasterID: master.ID, RemovableIDs: []string{dup.ID}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = st.GetContext(ctx, dup.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetContext(ctx, master.ID)
	require.NoError(t, err)
}

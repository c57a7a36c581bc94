// Package optimize runs batch maintenance passes over a project's stored
// contexts: deduplication, clustering, compression estimation, relevance
// ranking, and age-based archiving.
//
// Every strategy only reports; nothing is deleted or rewritten here.
// Applying a report is a separate caller-confirmed step through the store
// APIs, which keeps long runs restartable.
package optimize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/engramd/internal/embeddings"
	"github.com/fyrsmithlabs/engramd/internal/logging"
	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

// Optimizer runs maintenance strategies over one project at a time.
type Optimizer struct {
	store   *store.Store
	metrics *metrics.Metrics
	log     *logging.Logger
}

// New creates an optimizer over the given store. Metrics may be nil.
func New(st *store.Store, m *metrics.Metrics, log *logging.Logger) *Optimizer {
	if log == nil {
		log = logging.NewNop()
	}
	return &Optimizer{store: st, metrics: m, log: log}
}

// Run executes the selected strategies for a project and returns the
// combined report.
func (o *Optimizer) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.ProjectID == "" {
		return nil, fmt.Errorf("project ID required")
	}
	opts = opts.withDefaults()

	contexts, err := o.store.ListContexts(ctx, store.ContextFilter{ProjectID: opts.ProjectID})
	if err != nil {
		return nil, fmt.Errorf("listing contexts: %w", err)
	}

	report := &Report{
		ProjectID:    opts.ProjectID,
		GeneratedAt:  time.Now().UTC(),
		ContextCount: len(contexts),
	}

	for _, s := range opts.Strategies {
		started := time.Now()
		switch s {
		case StrategyDedup:
			report.Dedup = o.dedup(contexts, opts.SimilarityThreshold)
		case StrategyCluster:
			report.Clustering = o.cluster(contexts, opts.ClusterCount, opts.MinClusterSize)
		case StrategyCompress:
			report.Compression = o.compress(contexts, opts.MinReduction)
		case StrategyRank:
			report.Ranking = o.rank(contexts)
		case StrategyArchive:
			report.Archive = o.archive(contexts, opts.ArchiveAfter)
		default:
			return nil, fmt.Errorf("unknown strategy %q", s)
		}
		if o.metrics != nil {
			o.metrics.OptimizerRunsTotal.WithLabelValues(string(s)).Inc()
			o.metrics.OptimizerDuration.WithLabelValues(string(s)).Observe(time.Since(started).Seconds())
		}
	}

	o.log.Info(ctx, "optimizer run complete",
		zap.String("project_id", opts.ProjectID),
		zap.Int("contexts", len(contexts)),
		zap.Int("strategies", len(opts.Strategies)))
	return report, nil
}

// dedup groups contexts by normalized-content hash, then confirms each
// multi-member group by mean pairwise embedding similarity. Groups whose
// members lack embeddings stand on hash identity alone.
func (o *Optimizer) dedup(contexts []*store.Context, threshold float64) *DedupReport {
	groups := make(map[string][]*store.Context)
	var order []string
	for _, c := range contexts {
		h := normalizedHash(c.Content)
		if _, ok := groups[h]; !ok {
			order = append(order, h)
		}
		groups[h] = append(groups[h], c)
	}

	report := &DedupReport{}
	for _, h := range order {
		members := groups[h]
		if len(members) < 2 {
			continue
		}

		sim, measured := meanPairwiseSimilarity(members)
		if measured && sim < threshold {
			continue
		}

		// Longest content wins mastership; on ties the higher quality
		// score does, so the lower-quality duplicate is removable.
		sort.SliceStable(members, func(i, j int) bool {
			if len(members[i].Content) != len(members[j].Content) {
				return len(members[i].Content) > len(members[j].Content)
			}
			return members[i].QualityScore > members[j].QualityScore
		})

		group := DedupGroup{
			MasterID:       members[0].ID,
			Size:           len(members),
			MeanSimilarity: sim,
		}
		for _, m := range members[1:] {
			group.RemovableIDs = append(group.RemovableIDs, m.ID)
		}
		report.Groups = append(report.Groups, group)
		report.Removable += len(group.RemovableIDs)
	}
	return report
}

// meanPairwiseSimilarity averages cosine similarity over all embedding
// pairs in the group. The second return is false when fewer than two
// members carry embeddings.
func meanPairwiseSimilarity(members []*store.Context) (float64, bool) {
	var vectors [][]float32
	for _, m := range members {
		if m.Embedding != nil && len(m.Embedding.Vector) > 0 {
			vectors = append(vectors, m.Embedding.Vector)
		}
	}
	if len(vectors) < 2 {
		return 0, false
	}

	var sum float64
	pairs := 0
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += embeddings.Cosine(vectors[i], vectors[j])
			pairs++
		}
	}
	return sum / float64(pairs), true
}

// normalizedHash hashes content with case folded and runs of whitespace
// collapsed, so formatting-only variants land in the same group.
func normalizedHash(content string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// compress estimates per-context savings from whitespace and comment
// stripping. Only reductions above the ratio floor are reported.
func (o *Optimizer) compress(contexts []*store.Context, minReduction float64) *CompressionReport {
	report := &CompressionReport{TotalExamined: len(contexts)}
	for _, c := range contexts {
		original := len(c.Content)
		if original == 0 {
			continue
		}
		stripped := len(stripContent(c.Content))
		reduction := 1 - float64(stripped)/float64(original)
		if reduction <= minReduction {
			continue
		}
		report.Candidates = append(report.Candidates, CompressionCandidate{
			ContextID:     c.ID,
			OriginalBytes: original,
			StrippedBytes: stripped,
			Reduction:     reduction,
		})
		report.SavableBytes += int64(original - stripped)
	}
	return report
}

// stripContent drops blank lines, line comments, and leading/trailing
// whitespace per line.
func stripContent(content string) string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(trimmed)
	}
	return b.String()
}

// Static relevance per type; recency adjusts around it.
var typeRelevance = map[store.ContextType]float64{
	store.TypeSolution:      0.9,
	store.TypeBugFix:        0.85,
	store.TypeError:         0.8,
	store.TypeCode:          0.7,
	store.TypeFeature:       0.7,
	store.TypeOptimization:  0.65,
	store.TypeRefactor:      0.6,
	store.TypeTest:          0.6,
	store.TypeDocumentation: 0.5,
	store.TypeConfiguration: 0.5,
	store.TypeCommit:        0.4,
	store.TypeConversation:  0.3,
}

const (
	recencyBoostWindow = 7 * 24 * time.Hour
	recencyDecayWindow = 180 * 24 * time.Hour
	recencyBoost       = 0.1
	recencyDecay       = 0.2
)

// rank scores contexts by static type relevance adjusted for recency,
// clamped to [0,1], descending.
func (o *Optimizer) rank(contexts []*store.Context) *RankReport {
	now := time.Now()
	report := &RankReport{}
	for _, c := range contexts {
		relevance, ok := typeRelevance[c.Type]
		if !ok {
			relevance = 0.5
		}
		age := now.Sub(c.CreatedAt)
		if age < recencyBoostWindow {
			relevance += recencyBoost
		} else if age > recencyDecayWindow {
			relevance -= recencyDecay
		}
		if relevance < 0 {
			relevance = 0
		} else if relevance > 1 {
			relevance = 1
		}
		report.Entries = append(report.Entries, RankEntry{
			ContextID: c.ID,
			Type:      c.Type,
			Relevance: relevance,
		})
	}
	sort.SliceStable(report.Entries, func(i, j int) bool {
		return report.Entries[i].Relevance > report.Entries[j].Relevance
	})
	return report
}

// archive flags contexts older than the cutoff and totals their content
// size.
func (o *Optimizer) archive(contexts []*store.Context, after time.Duration) *ArchiveReport {
	cutoff := time.Now().Add(-after)
	report := &ArchiveReport{}
	for _, c := range contexts {
		if c.CreatedAt.After(cutoff) {
			continue
		}
		report.ContextIDs = append(report.ContextIDs, c.ID)
		report.ReclaimableBytes += int64(len(c.Content))
	}
	return report
}

// ApplyArchive marks every context in an archive report as archived.
// It is the explicit second step after a read-only run.
func (o *Optimizer) ApplyArchive(ctx context.Context, report *ArchiveReport) (int, error) {
	if report == nil {
		return 0, nil
	}
	applied := 0
	for _, id := range report.ContextIDs {
		if err := o.store.SetContextArchived(ctx, id, true); err != nil {
			return applied, fmt.Errorf("archiving context %s: %w", id, err)
		}
		applied++
	}
	return applied, nil
}

// ApplyDedup deletes every removable context in a dedup report.
func (o *Optimizer) ApplyDedup(ctx context.Context, report *DedupReport) (int, error) {
	if report == nil {
		return 0, nil
	}
	var ids []string
	for _, g := range report.Groups {
		ids = append(ids, g.RemovableIDs...)
	}
	return o.store.DeleteContexts(ctx, ids)
}

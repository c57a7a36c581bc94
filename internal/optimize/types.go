package optimize

import (
	"time"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

// Strategy names one optimizer pass.
type Strategy string

const (
	StrategyDedup    Strategy = "dedup"
	StrategyCluster  Strategy = "cluster"
	StrategyCompress Strategy = "compress"
	StrategyRank     Strategy = "rank"
	StrategyArchive  Strategy = "archive"
)

// AllStrategies in execution order.
var AllStrategies = []Strategy{
	StrategyDedup,
	StrategyCluster,
	StrategyCompress,
	StrategyRank,
	StrategyArchive,
}

// Defaults for optimizer options.
const (
	DefaultSimilarityThreshold = 0.95
	DefaultMinClusterSize      = 2
	DefaultMinReduction        = 0.2
	DefaultArchiveAfterDays    = 90
)

// Options configures one optimizer run. Zero values fall back to the
// documented defaults.
type Options struct {
	ProjectID string

	// Strategies selects which passes to run; empty means all.
	Strategies []Strategy

	// SimilarityThreshold is the minimum mean pairwise cosine similarity
	// for a hash group to count as near-duplicates.
	SimilarityThreshold float64

	// ClusterCount fixes k for the clustering pass; 0 derives it from the
	// input size.
	ClusterCount int

	// MinClusterSize is the smallest cluster kept; smaller ones are
	// reported as outliers.
	MinClusterSize int

	// MinReduction is the byte-size reduction ratio a context must exceed
	// to be reported as compressible.
	MinReduction float64

	// ArchiveAfter flags contexts older than this; zero means 90 days.
	ArchiveAfter time.Duration
}

func (o Options) withDefaults() Options {
	if o.SimilarityThreshold == 0 {
		o.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if o.MinClusterSize == 0 {
		o.MinClusterSize = DefaultMinClusterSize
	}
	if o.MinReduction == 0 {
		o.MinReduction = DefaultMinReduction
	}
	if o.ArchiveAfter == 0 {
		o.ArchiveAfter = DefaultArchiveAfterDays * 24 * time.Hour
	}
	if len(o.Strategies) == 0 {
		o.Strategies = AllStrategies
	}
	return o
}

// DedupGroup is one set of near-duplicate contexts. The master is the
// longest member; on equal length the higher quality score wins, so the
// lower-quality duplicate is the removable one.
type DedupGroup struct {
	MasterID       string   `json:"master_id"`
	RemovableIDs   []string `json:"removable_ids"`
	Size           int      `json:"size"`
	MeanSimilarity float64  `json:"mean_similarity"`
}

// DedupReport lists confirmed duplicate groups.
type DedupReport struct {
	Groups    []DedupGroup `json:"groups"`
	Removable int          `json:"removable"`
}

// Cluster is one k-means cluster of context IDs.
type Cluster struct {
	Members []string `json:"members"`
}

// ClusterReport holds the clustering outcome. Contexts without embeddings
// are ignored; clusters below the minimum size surface as outliers.
type ClusterReport struct {
	Clusters   []Cluster `json:"clusters"`
	Outliers   []string  `json:"outliers,omitempty"`
	Iterations int       `json:"iterations"`
}

// CompressionCandidate is one context whose whitespace/comment-stripped
// form is meaningfully smaller than the original.
type CompressionCandidate struct {
	ContextID     string  `json:"context_id"`
	OriginalBytes int     `json:"original_bytes"`
	StrippedBytes int     `json:"stripped_bytes"`
	Reduction     float64 `json:"reduction"`
}

// CompressionReport lists compression candidates and the total bytes the
// caller could reclaim by applying them.
type CompressionReport struct {
	Candidates    []CompressionCandidate `json:"candidates"`
	SavableBytes  int64                  `json:"savable_bytes"`
	TotalExamined int                    `json:"total_examined"`
}

// RankEntry is one context's relevance score.
type RankEntry struct {
	ContextID string            `json:"context_id"`
	Type      store.ContextType `json:"type"`
	Relevance float64           `json:"relevance"`
}

// RankReport lists contexts by descending relevance.
type RankReport struct {
	Entries []RankEntry `json:"entries"`
}

// ArchiveReport lists contexts past the age cutoff and the bytes their
// content occupies.
type ArchiveReport struct {
	ContextIDs       []string `json:"context_ids"`
	ReclaimableBytes int64    `json:"reclaimable_bytes"`
}

// Report is the combined read-only output of one optimizer run. Acting on
// it (deletion, archiving, rewriting) is a separate, explicit step.
type Report struct {
	ProjectID    string    `json:"project_id"`
	GeneratedAt  time.Time `json:"generated_at"`
	ContextCount int       `json:"context_count"`

	Dedup       *DedupReport       `json:"dedup,omitempty"`
	Clustering  *ClusterReport     `json:"clustering,omitempty"`
	Compression *CompressionReport `json:"compression,omitempty"`
	Ranking     *RankReport        `json:"ranking,omitempty"`
	Archive     *ArchiveReport     `json:"archive,omitempty"`
}

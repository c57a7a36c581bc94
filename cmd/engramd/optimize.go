package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/optimize"
)

var (
	optProjectPath  string
	optStrategies   []string
	optClusterCount int
	optApplyArchive bool
	optApplyDedup   bool
)

func init() {
	rootCmd.AddCommand(optimizeCmd)

	optimizeCmd.Flags().StringVar(&optProjectPath, "project-path", "", "project path (defaults to current directory)")
	optimizeCmd.Flags().StringSliceVar(&optStrategies, "strategy", nil, "strategies to run: dedup, cluster, compress, rank, archive (default all)")
	optimizeCmd.Flags().IntVar(&optClusterCount, "clusters", 0, "fixed cluster count (0 derives from input size)")
	optimizeCmd.Flags().BoolVar(&optApplyArchive, "apply-archive", false, "archive the contexts the report flags")
	optimizeCmd.Flags().BoolVar(&optApplyDedup, "apply-dedup", false, "delete the removable duplicates the report flags")
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run maintenance strategies over a project's contexts",
	Long: `Optimize runs deduplication, clustering, compression estimation,
relevance ranking, and age-based archiving over a project's stored
contexts. By default it only reports; pass --apply-archive or
--apply-dedup to act on the findings.

Examples:
  # Full report for the current project
  engramd optimize

  # Dedup only, and delete what it finds
  engramd optimize --strategy dedup --apply-dedup`,
	RunE: runOptimize,
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	path := optProjectPath
	if path == "" {
		if path, err = os.Getwd(); err != nil {
			return err
		}
	}
	project, err := st.GetOrCreateProject(ctx, path)
	if err != nil {
		return fmt.Errorf("resolving project: %w", err)
	}

	var strategies []optimize.Strategy
	for _, s := range optStrategies {
		strategies = append(strategies, optimize.Strategy(s))
	}

	o := optimize.New(st, metrics.New(), log)
	report, err := o.Run(ctx, optimize.Options{
		ProjectID:           project.ID,
		Strategies:          strategies,
		SimilarityThreshold: cfg.Optimizer.SimilarityThreshold,
		ClusterCount:        optClusterCount,
		MinClusterSize:      cfg.Optimizer.MinClusterSize,
		MinReduction:        cfg.Optimizer.MinReduction,
		ArchiveAfter:        time.Duration(cfg.Optimizer.ArchiveAfterDays) * 24 * time.Hour,
	})
	if err != nil {
		return err
	}

	if optApplyDedup {
		n, err := o.ApplyDedup(ctx, report.Dedup)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d duplicate contexts.\n", n)
	}
	if optApplyArchive {
		n, err := o.ApplyArchive(ctx, report.Archive)
		if err != nil {
			return err
		}
		fmt.Printf("Archived %d contexts.\n", n)
	}

	if outputJSON {
		return printJSON(report)
	}

	fmt.Printf("Examined %d contexts.\n", report.ContextCount)
	if report.Dedup != nil {
		fmt.Printf("Dedup:       %d groups, %d removable\n", len(report.Dedup.Groups), report.Dedup.Removable)
	}
	if report.Clustering != nil {
		fmt.Printf("Clustering:  %d clusters, %d outliers (%d iterations)\n",
			len(report.Clustering.Clusters), len(report.Clustering.Outliers), report.Clustering.Iterations)
	}
	if report.Compression != nil {
		fmt.Printf("Compression: %d candidates, %d bytes savable\n",
			len(report.Compression.Candidates), report.Compression.SavableBytes)
	}
	if report.Ranking != nil && len(report.Ranking.Entries) > 0 {
		top := report.Ranking.Entries[0]
		fmt.Printf("Ranking:     %d entries, top %s (%.2f)\n",
			len(report.Ranking.Entries), top.ContextID[:8], top.Relevance)
	}
	if report.Archive != nil {
		fmt.Printf("Archive:     %d contexts past cutoff, %d bytes reclaimable\n",
			len(report.Archive.ContextIDs), report.Archive.ReclaimableBytes)
	}
	return nil
}

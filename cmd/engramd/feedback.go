package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/pipeline"
	"github.com/fyrsmithlabs/engramd/internal/store"
)

var (
	fbProcessType string
	fbScore       float64
)

func init() {
	rootCmd.AddCommand(feedbackCmd)

	feedbackCmd.Flags().StringVar(&fbProcessType, "process-type", "", "process type the decision came from")
	feedbackCmd.Flags().Float64Var(&fbScore, "score", 0, "score at decision time")
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback <context-id> <accept|reject|modify>",
	Short: "Record a verdict on a stored context",
	Long: `Feedback records whether a stored context was worth keeping. Once
enough feedback accumulates, the learner adjusts scorer weights and
decision thresholds within their bounds.

Examples:
  engramd feedback 4f1c9a2e accept --process-type bug_fix --score 85
  engramd feedback 4f1c9a2e reject`,
	Args: cobra.ExactArgs(2),
	RunE: runFeedback,
}

func runFeedback(cmd *cobra.Command, args []string) error {
	action := store.FeedbackAction(args[1])
	switch action {
	case store.FeedbackAccept, store.FeedbackReject, store.FeedbackModify:
	default:
		return fmt.Errorf("action must be accept, reject, or modify, got %q", args[1])
	}

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

	p := pipeline.New(st, nil, metrics.New(), log)
	report, err := p.Feedback(ctx, args[0], action, fbProcessType, fbScore)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(report)
	}

	fmt.Printf("Recorded %s (%d feedback samples total).\n", action, report.Samples)
	if !report.Applied {
		return nil
	}
	if report.WeightsAdjusted {
		fmt.Printf("Weights nudged %s: significance=%.3f complexity=%.3f importance=%.3f reusability=%.3f\n",
			report.WeightDirection,
			report.Weights.CodeSignificance, report.Weights.ProblemComplexity,
			report.Weights.SolutionImportance, report.Weights.Reusability)
	}
	for _, tc := range report.ThresholdChanges {
		fmt.Printf("High threshold %.0f -> %.0f (%s acceptance %.0f%% over %d samples)\n",
			tc.From, tc.To, tc.ProcessType, tc.AcceptanceRate*100, tc.Samples)
	}
	return nil
}

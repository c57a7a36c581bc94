package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/engramd/internal/classify"
	"github.com/fyrsmithlabs/engramd/internal/metrics"
	"github.com/fyrsmithlabs/engramd/internal/pipeline"
)

var (
	evalProjectPath string
	evalSessionID   string
	evalFilePath    string
	evalLanguage    string
	evalChangeKind  string
	evalForce       bool
)

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&evalProjectPath, "project-path", "", "project path (defaults to current directory)")
	evaluateCmd.Flags().StringVar(&evalSessionID, "session-id", "", "session to attach stored content to (defaults to the project's indexing session)")
	evaluateCmd.Flags().StringVar(&evalFilePath, "file-path", "", "source file the content came from")
	evaluateCmd.Flags().StringVar(&evalLanguage, "language", "", "content language")
	evaluateCmd.Flags().StringVar(&evalChangeKind, "change-kind", "", "externally known change kind (feature, bug_fix, refactor, ...)")
	evaluateCmd.Flags().BoolVar(&evalForce, "force", false, "store the content regardless of the decision")
}

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [file]",
	Short: "Classify, score, and decide whether to remember content",
	Long: `Evaluate runs content through the classification, scoring, and decision
pipeline. Content retained by the decision (or --force) is stored under
the project's session.

Examples:
  # Evaluate a file
  engramd evaluate error.log

  # Evaluate from stdin
  git log -1 --format=%B | engramd evaluate -

  # Force storage with a known change kind
  engramd evaluate --change-kind bug_fix --force patch.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEvaluate,
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	content, err := readContent(args)
	if err != nil {
		return err
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

	sessionID := evalSessionID
	if sessionID == "" {
		path := evalProjectPath
		if path == "" {
			if path, err = os.Getwd(); err != nil {
				return err
			}
		}
		project, err := st.GetOrCreateProject(ctx, path)
		if err != nil {
			return fmt.Errorf("resolving project: %w", err)
		}
		session, err := st.GetOrCreateIndexSession(ctx, project.ID)
		if err != nil {
			return fmt.Errorf("resolving session: %w", err)
		}
		sessionID = session.ID
	}

	p := pipeline.New(st, nil, metrics.New(), log)
	eval, err := p.Evaluate(ctx, content, pipeline.Options{
		SessionID:  sessionID,
		FilePath:   evalFilePath,
		Language:   evalLanguage,
		ChangeKind: classify.ChangeType(evalChangeKind),
		Force:      evalForce,
	})
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(eval)
	}

	fmt.Printf("Type:       %s (confidence %.2f)\n", eval.Classification.Type, eval.Classification.Confidence)
	fmt.Printf("Score:      %d\n", eval.Scores.Total)
	fmt.Printf("Decision:   %s (confidence %.2f, priority %s)\n",
		eval.Decision.Action, eval.Decision.Confidence, eval.Decision.Priority)
	if len(eval.Decision.Tags) > 0 {
		fmt.Printf("Tags:       %s\n", strings.Join(eval.Decision.Tags, ", "))
	}
	for _, line := range eval.Decision.AuditTrail {
		fmt.Printf("  - %s\n", line)
	}
	if eval.Stored {
		fmt.Printf("Stored as:  %s\n", eval.ContextID)
	}
	return nil
}

// readContent reads from the named file, or stdin for "-" or no argument.
func readContent(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", args[0], err)
	}
	return string(data), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

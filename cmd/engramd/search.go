package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over stored contexts",
	Long: `Search stored contexts by content and tags. Queries are sanitized for
the full-text index; a query that cannot be expressed falls back to a
recency-ordered listing.

Examples:
  engramd search "null pointer parseConfig"
  engramd search --limit 5 --json "connection timeout"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	results, err := st.SearchContexts(ctx, strings.Join(args, " "), searchLimit)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(results)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tCREATED\tCONTENT")
	for _, c := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID[:8], c.Type, c.CreatedAt.Format("2006-01-02"), snippet(c.Content, 60))
	}
	return w.Flush()
}

// snippet returns the first line of content, truncated.
func snippet(content string, max int) string {
	line := content
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > max {
		line = line[:max-3] + "..."
	}
	return line
}

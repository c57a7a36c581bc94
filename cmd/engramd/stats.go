package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var paramsReset bool

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().BoolVar(&paramsReset, "reset", false, "restore every parameter to its seed default")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	RunE:  runStats,
}

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Show (or reset) the learned weights and thresholds",
	Long: `Params lists the live scorer weights and decision thresholds with their
previous values and the reason for the last change.

Examples:
  engramd params
  engramd params --reset`,
	RunE: runParams,
}

func runStats(cmd *cobra.Command, args []string) error {
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

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(stats)
	}

	var names []string
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, name := range names {
		fmt.Fprintf(w, "%s\t%d\n", name, stats[name])
	}
	return w.Flush()
}

func runParams(cmd *cobra.Command, args []string) error {
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

	if paramsReset {
		if err := st.ResetParameters(ctx); err != nil {
			return err
		}
		fmt.Println("Parameters reset to defaults.")
	}

	params, err := st.ListParameters(ctx)
	if err != nil {
		return err
	}

	if outputJSON {
		return printJSON(params)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tVALUE\tPREVIOUS\tREASON")
	for _, p := range params {
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%s\n",
			p.Name, p.Kind, p.Value, p.PreviousValue, p.UpdateReason)
	}
	return w.Flush()
}

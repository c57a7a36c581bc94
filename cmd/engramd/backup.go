package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/engramd/internal/store"
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup <file>",
	Short: "Snapshot the store to a portable JSON document",
	Long: `Backup writes every project, session, context, and relationship to a
single JSON document that restore can replay into an empty store.

Examples:
  engramd backup engram-backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file>",
	Short: "Replace the store's contents with a backup document",
	Long: `Restore validates the backup document, then clears all tables and
re-inserts the backed-up rows, preserving original identifiers and
timestamps. On validation failure nothing is mutated.

Examples:
  engramd restore engram-backup.json`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func runBackup(cmd *cobra.Command, args []string) error {
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

	doc, err := st.Backup(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(args[0], data, 0600); err != nil {
		return fmt.Errorf("writing backup: %w", err)
	}

	fmt.Printf("Backed up %d projects, %d sessions, %d contexts, %d relationships to %s\n",
		doc.Stats["projects"], doc.Stats["sessions"], doc.Stats["contexts"],
		doc.Stats["relationships"], args[0])
	return nil
}

func runRestore(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading backup: %w", err)
	}
	doc, err := store.ParseBackup(raw)
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

	if err := st.Restore(ctx, doc); err != nil {
		return fmt.Errorf("restoring backup: %w", err)
	}
	fmt.Printf("Restored backup from %s\n", args[0])
	return nil
}

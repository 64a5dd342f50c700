package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webtide/changelog-go/internal/errors"
	"github.com/webtide/changelog-go/internal/storage"
)

var historySQLitePath string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List changelog runs stored in the SQLite database",
	Long: `List the runs that generate stored with --sqlite (or output.sqlite_path),
newest first.

Examples:
  changelog history --sqlite target/changelog.db
  changelog history show 3f1c2a9e-...`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.Runs(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs stored")
			return nil
		}
		for _, run := range runs {
			fmt.Fprintf(out, "%s  %s  %s/%s %s..%s  commits=%d issues=%d changes=%d\n",
				run.ID, run.StartedAt.Format("2006-01-02 15:04"), run.Owner, run.Repo,
				run.OldRef, run.NewRef, run.CommitCount, run.IssueCount, run.ChangeCount)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the changes and commits of one stored run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openHistory()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		runID := args[0]

		changes, err := db.Changes(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to load changes: %w", err)
		}
		commits, err := db.Commits(ctx, runID)
		if err != nil {
			return fmt.Errorf("failed to load commits: %w", err)
		}
		if len(changes) == 0 && len(commits) == 0 {
			return fmt.Errorf("no run %s in %s", runID, historySQLitePath)
		}

		out := cmd.OutOrStdout()
		for _, c := range changes {
			members, err := db.Members(ctx, runID, c.ID)
			if err != nil {
				return fmt.Errorf("failed to load members of change %d: %w", c.ID, err)
			}

			status := ""
			if c.Skip {
				status = " [skipped]"
			}
			fmt.Fprintf(out, "%d. #%d %s - %s%s\n", c.ID, c.RefNumber, c.RefType, c.RefTitle, status)

			byKind := make(map[string][]string)
			var kinds []string
			for _, m := range members {
				if _, ok := byKind[m.Kind]; !ok {
					kinds = append(kinds, m.Kind)
				}
				byKind[m.Kind] = append(byKind[m.Kind], m.Member)
			}
			for _, kind := range kinds {
				fmt.Fprintf(out, "     %s: %s\n", kind, strings.Join(byKind[kind], ", "))
			}
		}

		skipped := 0
		for _, c := range commits {
			if c.Skip != "" {
				skipped++
			}
		}
		fmt.Fprintf(out, "\n%d changes, %d commits (%d skipped)\n", len(changes), len(commits), skipped)
		return nil
	},
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historySQLitePath, "sqlite", "", "SQLite database (default: output.sqlite_path)")
	historyCmd.AddCommand(historyShowCmd)
}

func openHistory() (*storage.SQLExporter, error) {
	if historySQLitePath == "" {
		historySQLitePath = cfg.Output.SQLitePath
	}
	if historySQLitePath == "" {
		return nil, errors.ConfigError("no SQLite database: pass --sqlite or set output.sqlite_path")
	}
	return storage.NewSQLiteExporter(historySQLitePath, logger.WithField("component", "sqlite"))
}

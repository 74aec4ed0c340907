package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/journalhealth/pkg/store/sqlite"
)

// HistoryOptions holds command-line options for the history command.
type HistoryOptions struct {
	SQLite string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	opts := &HistoryOptions{}

	cmd := &cobra.Command{
		Use:   "history --sqlite <db> [run-id]",
		Short: "Show runs stored in a SQLite database",
		Long: `List the runs recorded by run or aggregate with --sqlite, newest first.

With a run ID, print that run's record count and daily health scores.`,
		Example: `  journalhealth history --sqlite runs.db
  journalhealth history --sqlite runs.db 0b5c3c1e-8d1f-4c55-9f0e-0d6c3a0f5e11`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.SQLite, "sqlite", "", "SQLite database written by run or aggregate (required)")
	_ = cmd.MarkFlagRequired("sqlite")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string, opts *HistoryOptions) error {
	// Open would create an empty database; a typo should fail instead.
	if _, err := os.Stat(opts.SQLite); err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	ctx := contextOf(cmd)
	store, err := sqlite.Open(ctx, opts.SQLite)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}

	w := stdout(cmd)
	if len(args) == 0 {
		fmt.Fprintf(w, "%d run(s) in %s\n\n", len(runs), store.Path())
		if len(runs) == 0 {
			return nil
		}
		fmt.Fprintf(w, "%-36s  %-25s  %8s  %6s  %s\n", "RUN ID", "STARTED", "RECORDS", "LOWEST", "SOURCES")
		for _, r := range runs {
			lowest := "-"
			if r.LowestScore.Valid {
				lowest = fmt.Sprintf("%.1f", r.LowestScore.Float64)
			}
			fmt.Fprintf(w, "%-36s  %-25s  %8d  %6s  %s\n",
				r.ID, r.StartedAt.Format(time.RFC3339), r.Records, lowest, strings.Join(r.Sources, ","))
		}
		return nil
	}

	id := args[0]
	found := false
	for _, r := range runs {
		if r.ID == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("run %s: %w", id, errRunNotFound)
	}

	n, err := store.CountRecords(ctx, id)
	if err != nil {
		return err
	}
	scores, err := store.HealthScores(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Run %s: %d record(s)\n\n", id, n)
	fmt.Fprintf(w, "%-10s  %6s  %s\n", "DATE", "SCORE", "STATE")
	for _, h := range scores {
		fmt.Fprintf(w, "%-10s  %6.1f  %s\n", h.Date, h.Score, h.State)
	}
	return nil
}

var errRunNotFound = errors.New("not found in database")

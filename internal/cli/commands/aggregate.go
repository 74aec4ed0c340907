package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// AggregateOptions holds command-line options for the aggregate command.
type AggregateOptions struct {
	pipelineOptions
}

// NewAggregateCommand creates the aggregate command.
func NewAggregateCommand() *cobra.Command {
	opts := &AggregateOptions{}

	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Compute metric tables from parsed records",
		Long: `Read parsed.jsonl (plain, .gz or .zst) from --io-dir and write the metric
tables next to it:

  metrics_daily.csv, metrics_hourly.csv, top_messages.csv,
  co_occurrence_hourly.csv, health_score.csv, summary_last_days.csv

Every table is computed before any file is renamed into place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd, opts)
		},
	}

	addRulesFlag(cmd, &opts.pipelineOptions)
	addAggregateFlags(cmd, &opts.pipelineOptions)
	cmd.Flags().StringVar(&opts.OutputDir, "io-dir", DefaultOutputDir, "Directory holding parsed.jsonl; tables are written here")

	return cmd
}

func runAggregate(cmd *cobra.Command, opts *AggregateOptions) error {
	ctx := contextOf(cmd)

	cfg, defaulted, err := loadConfig(ctx, cmd, &opts.pipelineOptions)
	if err != nil {
		return err
	}

	records, path, err := loadParsed(opts.OutputDir)
	if err != nil {
		return err
	}

	state := newRunState(cfg, defaulted, opts.Rules)
	state.records = records
	state.sources = []string{path}

	if err := state.aggregate(); err != nil {
		return err
	}
	if err := state.writeOutputs(ctx, opts.OutputDir, &opts.pipelineOptions, outputs{tables: true}); err != nil {
		return err
	}

	report := state.report()
	setExitCode(report)

	fmt.Fprintf(stdout(cmd), "Aggregated %d record(s) over %d day(s) into %s\n",
		len(records), report.Summary.Days, opts.OutputDir)
	return nil
}

package commands

import (
	"context"

	"github.com/spf13/cobra"
)

// RunOptions holds command-line options for the run command.
type RunOptions struct {
	pipelineOptions
	ReportOptions
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run <log-file|glob|-> [...]",
		Short: "Parse logs, compute metrics and report health",
		Long: `Run the whole pipeline: parse and classify journal lines, compute the
metric tables and daily health scores, then print a report.

With --output-dir every record file and metric table is written there as well.

Exit codes:
  0 - Every day scored at or above health.alert_below
  1 - At least one day scored below health.alert_below
  2 - Configuration or runtime error`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	addRulesFlag(cmd, &opts.pipelineOptions)
	addParseFlags(cmd, &opts.pipelineOptions)
	addAggregateFlags(cmd, &opts.pipelineOptions)
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Also write records and metric tables to this directory")
	addReportFlags(cmd, &opts.ReportOptions)

	return cmd
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	return runPipeline(contextOf(cmd), cmd, args, opts)
}

// runPipeline executes one full run. watch calls it once per change.
func runPipeline(ctx context.Context, cmd *cobra.Command, args []string, opts *RunOptions) error {
	if err := opts.ReportOptions.validate(); err != nil {
		return err
	}
	formatter, err := createFormatter(&opts.ReportOptions)
	if err != nil {
		return err
	}

	cfg, defaulted, err := loadConfig(ctx, cmd, &opts.pipelineOptions)
	if err != nil {
		return err
	}

	result, err := ingestInputs(ctx, cfg, args)
	if err != nil {
		return err
	}

	state := newRunState(cfg, defaulted, opts.Rules)
	state.sources = result.Sources
	state.records = result.Records
	state.stats = &result.Stats

	if err := state.aggregate(); err != nil {
		return err
	}

	if err := state.writeOutputs(ctx, opts.OutputDir, &opts.pipelineOptions, outputs{parsed: true, tables: true}); err != nil {
		return err
	}

	return emitReport(ctx, cmd, state, formatter, &opts.ReportOptions)
}

package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// DefaultOutputDir is where parse writes and aggregate reads.
const DefaultOutputDir = "out"

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	pipelineOptions
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <log-file|glob|-> [...]",
		Short: "Parse and classify journal logs into records",
		Long: `Parse journal text, normalize timestamps to UTC, classify each message,
tag boot sessions and merge consecutive duplicates.

Writes parsed.jsonl (optionally compressed) and parsed.csv to --output-dir.
Inputs ending .gz or .zst are decompressed transparently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	addRulesFlag(cmd, &opts.pipelineOptions)
	addParseFlags(cmd, &opts.pipelineOptions)
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", DefaultOutputDir, "Directory for parsed.jsonl and parsed.csv")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	ctx := contextOf(cmd)

	cfg, defaulted, err := loadConfig(ctx, cmd, &opts.pipelineOptions)
	if err != nil {
		return err
	}

	result, err := ingestInputs(ctx, cfg, args)
	if err != nil {
		return err
	}

	state := newRunState(cfg, defaulted, opts.Rules)
	state.records = result.Records
	state.stats = &result.Stats

	if err := state.writeOutputs(ctx, opts.OutputDir, &opts.pipelineOptions, outputs{parsed: true}); err != nil {
		return err
	}

	state.log().WithFields(logrus.Fields{
		"records": result.Stats.Records,
		"merged":  result.Stats.MergedDuplicates,
	}).Debug("parse complete")

	fmt.Fprintf(stdout(cmd), "Parsed %d record(s) from %d line(s) into %s\n",
		result.Stats.Records, result.Stats.LinesRead, opts.OutputDir)
	return nil
}

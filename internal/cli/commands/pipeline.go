package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/export/promfile"
	"github.com/ccollicutt/journalhealth/pkg/fileio"
	"github.com/ccollicutt/journalhealth/pkg/ingest"
	"github.com/ccollicutt/journalhealth/pkg/logger"
	"github.com/ccollicutt/journalhealth/pkg/metrics"
	"github.com/ccollicutt/journalhealth/pkg/output"
	"github.com/ccollicutt/journalhealth/pkg/parser"
	"github.com/ccollicutt/journalhealth/pkg/record"
	"github.com/ccollicutt/journalhealth/pkg/store/sqlite"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// DefaultRulesFile is read when --rules is not given.
const DefaultRulesFile = "rules.yaml"

// pipelineOptions holds the flags shared by parse, aggregate, run and watch.
type pipelineOptions struct {
	Rules string
	TZ    string

	// Sinks
	OutputDir    string
	Compress     string
	PromTextfile string
	SQLite       string

	// Aggregation overrides
	TopK       int
	WindowDays int
}

func addRulesFlag(cmd *cobra.Command, opts *pipelineOptions) {
	cmd.Flags().StringVar(&opts.Rules, "rules", DefaultRulesFile, "Rules and weights YAML file (built-in defaults if missing)")
}

func addParseFlags(cmd *cobra.Command, opts *pipelineOptions) {
	cmd.Flags().StringVar(&opts.TZ, "tz", "", "Fallback timezone offset for lines with an unusable offset (e.g. +0900)")
	cmd.Flags().StringVar(&opts.Compress, "compress", "", "Compress parsed.jsonl (gz|zst)")
}

func addAggregateFlags(cmd *cobra.Command, opts *pipelineOptions) {
	cmd.Flags().IntVar(&opts.TopK, "top-k", config.DefaultTopK, "Number of top messages to rank (0 = all)")
	cmd.Flags().IntVar(&opts.WindowDays, "window-days", config.DefaultWindowDays, "Days covered by the summary window")
	cmd.Flags().StringVar(&opts.PromTextfile, "prom-textfile", "", "Write Prometheus textfile metrics to this path")
	cmd.Flags().StringVar(&opts.SQLite, "sqlite", "", "Record the run in this SQLite database")
}

// loadConfig loads the rules file, falling back to built-in rules when it is
// missing, and applies command-line overrides.
func loadConfig(ctx context.Context, cmd *cobra.Command, opts *pipelineOptions) (*config.Config, bool, error) {
	cfg, defaulted, err := config.LoadOrDefault(ctx, opts.Rules)
	if err != nil {
		return nil, false, fmt.Errorf("loading rules: %w", err)
	}
	if defaulted {
		logger.WithField("path", opts.Rules).Warn("rules file not found, using built-in rules and weights")
	}

	flags := cmd.Flags()
	if f := flags.Lookup("tz"); f != nil && f.Changed {
		cfg.DefaultTZ = opts.TZ
	}
	if f := flags.Lookup("top-k"); f != nil && f.Changed {
		cfg.TopK = opts.TopK
	}
	if f := flags.Lookup("window-days"); f != nil && f.Changed {
		cfg.WindowDays = opts.WindowDays
	}
	if err := config.Validate(cfg); err != nil {
		return nil, false, fmt.Errorf("invalid options: %w", err)
	}
	return cfg, defaulted, nil
}

// ingestInputs expands the input patterns and runs the ingestion driver.
func ingestInputs(ctx context.Context, cfg *config.Config, patterns []string) (*ingest.Result, error) {
	files, err := parser.ExpandInputs(patterns)
	if err != nil {
		return nil, fmt.Errorf("expanding inputs: %w", err)
	}

	driver, err := ingest.NewDriver(cfg)
	if err != nil {
		return nil, err
	}

	source := parser.NewFileSource(files)
	defer source.Close()

	result, err := driver.Run(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("ingesting %d input(s): %w", len(files), err)
	}
	return result, nil
}

// findParsed locates parsed.jsonl (plain, .gz or .zst) in dir.
func findParsed(dir string) (string, error) {
	for _, c := range []fileio.Compression{fileio.None, fileio.Gzip, fileio.Zstd} {
		path := filepath.Join(dir, output.ParsedJSONL+c.Ext())
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s not found in %s (run parse first): %w", output.ParsedJSONL, dir, os.ErrNotExist)
}

// loadParsed reads records written by a previous parse.
func loadParsed(dir string) ([]record.LogRecord, string, error) {
	path, err := findParsed(dir)
	if err != nil {
		return nil, "", err
	}
	rc, err := fileio.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	records, err := output.ReadJSONL(rc)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, "", fmt.Errorf("%s: %w", path, ingest.ErrNoRecords)
	}
	return records, path, nil
}

// runState carries one run through aggregation and its sinks.
type runState struct {
	id        string
	started   time.Time
	cfg       *config.Config
	defaulted bool
	rules     string
	sources   []string
	records   []record.LogRecord
	stats     *ingest.Stats
	tables    *metrics.Tables
}

func newRunState(cfg *config.Config, defaulted bool, rules string) *runState {
	return &runState{
		id:        uuid.NewString(),
		started:   time.Now(),
		cfg:       cfg,
		defaulted: defaulted,
		rules:     rules,
	}
}

func (r *runState) log() *logrus.Entry {
	return logger.WithField("run_id", r.id)
}

func (r *runState) aggregate() error {
	tables, err := metrics.Aggregate(r.records, metrics.OptionsFromConfig(r.cfg))
	if err != nil {
		return fmt.Errorf("aggregating metrics: %w", err)
	}
	r.tables = tables
	return nil
}

func (r *runState) events() int {
	n := 0
	for i := range r.records {
		n += r.records[i].RepeatCount
	}
	return n
}

func (r *runState) report() *output.Report {
	return output.NewReport(r.tables, r.stats, r.events(), r.cfg.Health.AlertBelow, output.Metadata{
		RunID:           r.id,
		ConfigFile:      r.rules,
		ConfigDefaulted: r.defaulted,
		Sources:         r.sources,
		AnalyzedAt:      time.Now(),
		Duration:        time.Since(r.started),
	})
}

// outputs selects which file groups a command writes.
type outputs struct {
	parsed bool
	tables bool
}

// writeOutputs stages every file sink (the record and table files in dir,
// the Prometheus textfile), saves the SQLite run, and only then renames the
// staged files into place. Any failure before the rename removes the staged
// files, so no partial output is left behind.
func (r *runState) writeOutputs(ctx context.Context, dir string, opts *pipelineOptions, which outputs) error {
	if dir == "" && opts.PromTextfile == "" && opts.SQLite == "" {
		return nil
	}

	comp, err := fileio.ParseCompression(opts.Compress)
	if err != nil {
		return err
	}

	stage, err := output.NewStaging(dir)
	if err != nil {
		return err
	}
	if err := r.stageFiles(stage, comp, opts, which); err != nil {
		return errors.Join(err, stage.Abort())
	}
	if err := r.saveRun(ctx, opts.SQLite); err != nil {
		return errors.Join(err, stage.Abort())
	}

	paths := stage.Paths()
	if err := stage.Commit(); err != nil {
		return err
	}
	if len(paths) > 0 {
		r.log().WithFields(logrus.Fields{"dir": stage.Dir(), "files": len(paths)}).Info("outputs written")
	}
	return nil
}

func (r *runState) stageFiles(stage *output.Staging, comp fileio.Compression, opts *pipelineOptions, which outputs) error {
	if stage.Dir() != "" {
		if which.parsed {
			if err := output.WriteParsed(stage, r.records, comp.Ext()); err != nil {
				return err
			}
		}
		if which.tables {
			if err := output.WriteTables(stage, r.tables); err != nil {
				return err
			}
		}
	}

	if opts.PromTextfile != "" {
		fams := promfile.Families(r.tables, r.stats)
		if err := stage.WritePath(opts.PromTextfile, func(w io.Writer) error {
			return promfile.Write(w, fams)
		}); err != nil {
			return fmt.Errorf("writing prometheus textfile: %w", err)
		}
	}
	return nil
}

// saveRun records the run in the SQLite database at path, if set.
func (r *runState) saveRun(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveRun(ctx, &sqlite.Run{
		ID:         r.id,
		StartedAt:  r.started,
		FinishedAt: time.Now(),
		ConfigFile: r.rules,
		Sources:    r.sources,
		Records:    r.records,
		Tables:     r.tables,
		Stats:      r.stats,
	}); err != nil {
		return fmt.Errorf("saving run to %s: %w", path, err)
	}
	r.log().WithField("path", store.Path()).Info("run saved to sqlite")
	return nil
}

// setExitCode flags a run that has a day below the alert threshold.
func setExitCode(report *output.Report) {
	if report.HasIssues() {
		ExitCode = 1
	}
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func stdout(cmd *cobra.Command) io.Writer {
	return cmd.OutOrStdout()
}

package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/journalhealth/pkg/fileio"
	"github.com/ccollicutt/journalhealth/pkg/logger"
)

// DefaultDebounce is how long watch waits for file events to settle.
const DefaultDebounce = 500 * time.Millisecond

// WatchOptions holds command-line options for the watch command.
type WatchOptions struct {
	RunOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	opts := &WatchOptions{}

	cmd := &cobra.Command{
		Use:   "watch <log-file|glob> [...]",
		Short: "Re-run the pipeline whenever inputs or rules change",
		Long: `Run the whole pipeline once, then again every time a matching input file
or the rules file is written, created or renamed. Events arriving during a
run are coalesced into one follow-up run. Stops on interrupt.

A failed run is logged and watching continues. The exit code reflects the
last completed run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, args, opts)
		},
	}

	addRulesFlag(cmd, &opts.pipelineOptions)
	addParseFlags(cmd, &opts.pipelineOptions)
	addAggregateFlags(cmd, &opts.pipelineOptions)
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Also write records and metric tables to this directory")
	addReportFlags(cmd, &opts.ReportOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", DefaultDebounce, "Quiet period before re-running after a change")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string, opts *WatchOptions) error {
	for _, a := range args {
		if a == fileio.Stdin {
			return errors.New("watch cannot read from stdin")
		}
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	targets := newWatchTargets(args, opts.Rules)
	for _, dir := range targets.dirs() {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	logger.WithField("dirs", targets.dirs()).Info("watching for changes")

	run := func() {
		ExitCode = 0
		if err := runPipeline(ctx, cmd, args, &opts.RunOptions); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.WithError(err).Error("run failed")
		}
	}

	return watchLoop(ctx, watcher.Events, watcher.Errors, targets.matches, opts.Debounce, run)
}

// watchLoop calls run once, then again after each burst of matching events
// has been quiet for debounce. It returns when ctx is done or the event
// channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, match func(string) bool, debounce time.Duration, run func()) error {
	run()

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !match(event.Name) {
				continue
			}
			logger.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("change detected")
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(debounce)
			pending = true

		case <-timer.C:
			pending = false
			run()

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("watcher error")
		}
	}
}

// watchTargets decides which file events trigger a run.
type watchTargets struct {
	patterns []string
	rules    string
}

func newWatchTargets(patterns []string, rules string) *watchTargets {
	t := &watchTargets{}
	for _, p := range patterns {
		t.patterns = append(t.patterns, filepath.Clean(p))
	}
	if rules != "" {
		t.rules = filepath.Clean(rules)
	}
	return t
}

// dirs returns the distinct parent directories to watch.
func (t *watchTargets) dirs() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		d := filepath.Dir(p)
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, p := range t.patterns {
		add(p)
	}
	if t.rules != "" {
		add(t.rules)
	}
	return out
}

func (t *watchTargets) matches(name string) bool {
	name = filepath.Clean(name)
	if t.rules != "" && name == t.rules {
		return true
	}
	for _, p := range t.patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Package ingest turns raw journal lines into deduplicated, classified records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccollicutt/journalhealth/pkg/classifier"
	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/logger"
	"github.com/ccollicutt/journalhealth/pkg/parser"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

// ErrNoRecords is returned when a run produces no records.
var ErrNoRecords = errors.New("no records parsed from input")

// Stats tallies what happened to each input line.
type Stats struct {
	LinesRead        int `json:"lines_read"`
	Blank            int `json:"blank"`
	BootMarkers      int `json:"boot_markers"`
	Unparseable      int `json:"unparseable"`
	BadTimestamps    int `json:"bad_timestamps"`
	Parsed           int `json:"parsed"`
	Records          int `json:"records"`
	MergedDuplicates int `json:"merged_duplicates"`
}

// Result is the output of one ingestion run.
type Result struct {
	Records []record.LogRecord

	// Sources lists the inputs in the order they were first read.
	Sources []string

	Stats Stats

	StartTime time.Time
	EndTime   time.Time
}

// Driver runs the ingestion pipeline: read, skip blanks, track boot markers,
// parse, normalize, classify, deduplicate.
type Driver struct {
	parser     *parser.LineParser
	normalizer *parser.Normalizer
	classifier *classifier.Classifier
	bootMarker string
	log        logrus.FieldLogger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The global logger is used by default.
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) {
		d.log = l
	}
}

// WithBootMarker overrides the boot-marker substring.
func WithBootMarker(marker string) Option {
	return func(d *Driver) {
		d.bootMarker = marker
	}
}

// WithDefaultTZ overrides the fallback offset used for unusable line offsets.
func WithDefaultTZ(tz string) Option {
	return func(d *Driver) {
		d.normalizer = parser.NewNormalizer(tz)
	}
}

// NewDriver creates a driver from configuration.
func NewDriver(cfg *config.Config, opts ...Option) (*Driver, error) {
	c, err := classifier.New(cfg.Categories, cfg.FallbackCategory)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}

	d := &Driver{
		parser:     parser.NewLineParser(),
		normalizer: parser.NewNormalizer(cfg.DefaultTZ),
		classifier: c,
		bootMarker: cfg.BootMarker,
		log:        logger.Get(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run consumes source to exhaustion. Per-line problems are counted and
// skipped. A read error aborts the run. ErrNoRecords is returned, together
// with the result, when nothing survived.
func (d *Driver) Run(ctx context.Context, source parser.LineSource) (*Result, error) {
	result := &Result{StartTime: time.Now()}
	stats := &result.Stats
	boot := NewBootTracker(d.bootMarker)
	dedup := NewDeduplicator()
	seen := make(map[string]bool)

	emit := func(rec record.LogRecord) {
		stats.Records++
		stats.MergedDuplicates += rec.RepeatCount - 1
		result.Records = append(result.Records, rec)
	}

	for {
		line, err := source.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		stats.LinesRead++

		if !seen[line.Source] {
			seen[line.Source] = true
			result.Sources = append(result.Sources, line.Source)
		}

		if line.Oversized {
			stats.Unparseable++
			d.log.WithFields(logrus.Fields{
				"source": line.Source,
				"line":   line.LineNum,
			}).Debug("skipping oversized line")
			continue
		}

		if line.Content == "" {
			stats.Blank++
			continue
		}

		if boot.Observe(line.Content) {
			stats.BootMarkers++
			continue
		}

		fields, ok := d.parser.Parse(line.Content)
		if !ok {
			stats.Unparseable++
			d.log.WithFields(logrus.Fields{
				"source": line.Source,
				"line":   line.LineNum,
			}).Debug("skipping unparseable line")
			continue
		}

		utc, local, err := d.normalizer.Normalize(fields.Timestamp, fields.TZ)
		if err != nil {
			stats.BadTimestamps++
			d.log.WithFields(logrus.Fields{
				"source": line.Source,
				"line":   line.LineNum,
			}).WithError(err).Debug("skipping line with bad timestamp")
			continue
		}
		stats.Parsed++

		rec := record.New(utc, local, fields.TZ, fields.Host, fields.Unit, fields.PID, fields.Message, line.Content)
		rec.Category = d.classifier.Classify(rec.Message)
		rec.BootSeq = boot.Current()

		if out, ok := dedup.Push(rec); ok {
			emit(out)
		}
	}

	if out, ok := dedup.Flush(); ok {
		emit(out)
	}
	result.EndTime = time.Now()

	d.log.WithFields(logrus.Fields{
		"lines":          stats.LinesRead,
		"blank":          stats.Blank,
		"boot_markers":   stats.BootMarkers,
		"unparseable":    stats.Unparseable,
		"bad_timestamps": stats.BadTimestamps,
		"records":        stats.Records,
		"merged":         stats.MergedDuplicates,
	}).Info("ingestion complete")

	if len(result.Records) == 0 {
		return result, ErrNoRecords
	}
	return result, nil
}

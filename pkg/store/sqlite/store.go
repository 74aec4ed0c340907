// Package sqlite persists run results to a SQLite database so that health
// can be tracked across runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/ccollicutt/journalhealth/pkg/ingest"
	"github.com/ccollicutt/journalhealth/pkg/metrics"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Run is everything persisted for one run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	ConfigFile string
	Sources    []string

	Records []record.LogRecord
	Tables  *metrics.Tables

	// Stats is nil when records were loaded from a previous parse.
	Stats *ingest.Stats
}

// RunInfo is a stored run's summary row.
type RunInfo struct {
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time
	ConfigFile  string
	Sources     []string
	Records     int
	LowestScore sql.NullFloat64
}

// Store is a SQLite-backed run store.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.Mutex
	closed bool
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	log.WithField("path", path).Debug("run store opened")
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		config_file TEXT NOT NULL DEFAULT '',
		sources TEXT NOT NULL DEFAULT '',
		records INTEGER NOT NULL DEFAULT 0,
		lines_read INTEGER,
		unparseable INTEGER,
		bad_timestamps INTEGER,
		merged_duplicates INTEGER
	);

	CREATE TABLE IF NOT EXISTS records (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		ts_utc TEXT NOT NULL,
		ts_local TEXT NOT NULL,
		tz_offset TEXT NOT NULL,
		host TEXT NOT NULL,
		unit TEXT NOT NULL,
		pid INTEGER,
		message TEXT NOT NULL,
		raw TEXT NOT NULL,
		date TEXT NOT NULL,
		hour INTEGER NOT NULL,
		weekday TEXT NOT NULL,
		boot_seq INTEGER NOT NULL,
		category TEXT NOT NULL,
		repeat_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_records_category ON records(category, date);

	CREATE TABLE IF NOT EXISTS daily_counts (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		category TEXT NOT NULL,
		count INTEGER NOT NULL,
		PRIMARY KEY (run_id, date, category)
	);

	CREATE TABLE IF NOT EXISTS health_scores (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		score REAL NOT NULL,
		state TEXT NOT NULL,
		PRIMARY KEY (run_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_health_scores_date ON health_scores(date);

	CREATE TABLE IF NOT EXISTS summary_metrics (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		metric TEXT NOT NULL,
		value INTEGER NOT NULL,
		window_start TEXT NOT NULL DEFAULT '',
		window_end TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, metric)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveRun writes the run and all of its tables in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *Run) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var linesRead, unparseable, badTS, merged sql.NullInt64
	if run.Stats != nil {
		linesRead = sql.NullInt64{Int64: int64(run.Stats.LinesRead), Valid: true}
		unparseable = sql.NullInt64{Int64: int64(run.Stats.Unparseable), Valid: true}
		badTS = sql.NullInt64{Int64: int64(run.Stats.BadTimestamps), Valid: true}
		merged = sql.NullInt64{Int64: int64(run.Stats.MergedDuplicates), Valid: true}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, config_file, sources, records,
			lines_read, unparseable, bad_timestamps, merged_duplicates)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
		run.ConfigFile,
		strings.Join(run.Sources, "\n"),
		len(run.Records),
		linesRead, unparseable, badTS, merged,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err = insertRecords(ctx, tx, run.ID, run.Records); err != nil {
		return err
	}
	if run.Tables != nil {
		if err = insertTables(ctx, tx, run.ID, run.Tables); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, runID string, records []record.LogRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (run_id, seq, ts_utc, ts_local, tz_offset, host, unit, pid,
			message, raw, date, hour, weekday, boot_seq, category, repeat_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var pid sql.NullInt64
		if r.PID != nil {
			pid = sql.NullInt64{Int64: int64(*r.PID), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, i,
			r.TSUTC.Format(record.TimeLayout), r.TSLocal.Format(record.TimeLayout), r.TZOffset,
			r.Host, r.Unit, pid, r.Message, r.Raw,
			r.Date, r.Hour, r.Weekday, r.BootSeq, r.Category, r.RepeatCount,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return nil
}

func insertTables(ctx context.Context, tx *sql.Tx, runID string, t *metrics.Tables) error {
	for _, d := range t.Daily {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO daily_counts (run_id, date, category, count) VALUES (?, ?, ?, ?)`,
			runID, d.Date, d.Category, d.Count); err != nil {
			return fmt.Errorf("insert daily count: %w", err)
		}
	}

	for _, h := range t.Health {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO health_scores (run_id, date, score, state) VALUES (?, ?, ?, ?)`,
			runID, h.Date, h.Score, h.State); err != nil {
			return fmt.Errorf("insert health score: %w", err)
		}
	}

	if w := t.Window; w != nil {
		for _, m := range w.Metrics {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO summary_metrics (run_id, metric, value, window_start, window_end)
				 VALUES (?, ?, ?, ?, ?)`,
				runID, m.Name, m.Value, w.Start, w.End); err != nil {
				return fmt.Errorf("insert summary metric: %w", err)
			}
		}
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.finished_at, r.config_file, r.sources, r.records,
			(SELECT MIN(score) FROM health_scores h WHERE h.run_id = r.id)
		 FROM runs r ORDER BY r.started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var (
			info            RunInfo
			started, finish string
			sources         string
		)
		if err := rows.Scan(&info.ID, &started, &finish, &info.ConfigFile, &sources, &info.Records, &info.LowestScore); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		info.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		info.FinishedAt, _ = time.Parse(time.RFC3339Nano, finish)
		if sources != "" {
			info.Sources = strings.Split(sources, "\n")
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// HealthScores returns the stored scores of one run in date order.
func (s *Store) HealthScores(ctx context.Context, runID string) ([]metrics.HealthScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT date, score, state FROM health_scores WHERE run_id = ? ORDER BY date`, runID)
	if err != nil {
		return nil, fmt.Errorf("query health scores: %w", err)
	}
	defer rows.Close()

	var out []metrics.HealthScore
	for rows.Next() {
		var h metrics.HealthScore
		if err := rows.Scan(&h.Date, &h.Score, &h.State); err != nil {
			return nil, fmt.Errorf("scan health score: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// CountRecords returns the number of records stored for a run.
func (s *Store) CountRecords(ctx context.Context, runID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE run_id = ?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

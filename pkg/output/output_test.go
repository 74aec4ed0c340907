package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/fileio"
	"github.com/ccollicutt/journalhealth/pkg/ingest"
	"github.com/ccollicutt/journalhealth/pkg/metrics"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

func sampleRecords() []record.LogRecord {
	loc := time.FixedZone("", 9*3600)
	local := time.Date(2025, 7, 5, 10, 28, 40, 0, loc)
	pid := 812
	a := record.New(local.UTC(), local, "+0900", "nas", "kernel", nil,
		"megaraid_sas: FW in FAULT state", "2025-07-05T10:28:40+0900 nas kernel: megaraid_sas: FW in FAULT state")
	a.Category = "RAID_FW"
	a.RepeatCount = 3
	a.BootSeq = 1

	local2 := local.Add(2 * time.Hour)
	b := record.New(local2.UTC(), local2, "+0900", "nas", "smartd", &pid,
		`mail "failed" <&>`, "2025-07-05T12:28:40+0900 nas smartd[812]: mail \"failed\" <&>")
	b.Category = "SMARTD_NOTIFY"
	b.BootSeq = 1
	return []record.LogRecord{a, b}
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	records := sampleRecords()
	tables, err := metrics.Aggregate(records, metrics.OptionsFromConfig(config.DefaultConfig()))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	stats := &ingest.Stats{LinesRead: 1500, Parsed: 4, Records: 2, MergedDuplicates: 2}
	return NewReport(tables, stats, 4, 60, Metadata{RunID: "run-1", ConfigFile: "rules.yaml"})
}

func TestNewReport(t *testing.T) {
	r := sampleReport(t)
	if r.Summary.Records != 2 || r.Summary.Events != 4 || r.Summary.Days != 1 {
		t.Errorf("Summary = %+v", r.Summary)
	}
	// 100 - 40·ln2 - 5·ln2
	if r.Summary.LowestDate != "2025-07-05" || r.Summary.LowestScore > 70 || r.Summary.LowestScore < 68 {
		t.Errorf("lowest = %v on %s", r.Summary.LowestScore, r.Summary.LowestDate)
	}
	if r.HasIssues() {
		t.Error("HasIssues() = true, want false above threshold")
	}

	r2 := NewReport(r.Tables, nil, 4, 80, Metadata{})
	if !r2.HasIssues() || r2.Summary.DaysBelow != 1 {
		t.Errorf("threshold 80: HasIssues=%v DaysBelow=%d", r2.HasIssues(), r2.Summary.DaysBelow)
	}
}

func TestNewReport_Empty(t *testing.T) {
	tables, err := metrics.Aggregate(nil, metrics.OptionsFromConfig(config.DefaultConfig()))
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	r := NewReport(tables, nil, 0, 60, Metadata{})
	if r.Summary.LowestScore != 100 || r.Summary.State != metrics.StateHealthy || r.HasIssues() {
		t.Errorf("Summary = %+v", r.Summary)
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(FormatOptions{Verbose: true})
	if err := f.Format(context.Background(), sampleReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"=== Journal Health Report ===",
		"[HEALTH]",
		"2025-07-05",
		"raid_fw_fault_count",
		"RAID_FW",
		"megaraid_sas: FW in FAULT state",
		"lines read: 1,500",
		"Run: run-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTextFormatter_Localized(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(FormatOptions{Verbose: true, Language: language.German})
	if err := f.Format(context.Background(), sampleReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if !strings.Contains(buf.String(), "lines read: 1.500") {
		t.Errorf("expected German grouping:\n%s", buf.String())
	}
}

func TestTextFormatter_Quiet(t *testing.T) {
	var buf bytes.Buffer
	f := NewTextFormatter(FormatOptions{Quiet: true})
	if err := f.Format(context.Background(), sampleReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Errorf("quiet output has %d lines, want 1: %q", lines, buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONFormatter(FormatOptions{}).Format(context.Background(), sampleReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"summary", "ingest", "tables", "metadata"} {
		if _, ok := got[key]; !ok {
			t.Errorf("JSON missing %q", key)
		}
	}

	buf.Reset()
	if err := NewJSONFormatter(FormatOptions{Quiet: true}).Format(context.Background(), sampleReport(t), &buf); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	var quiet struct {
		RunID   string  `json:"run_id"`
		Summary Summary `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &quiet); err != nil || quiet.Summary.Records != 2 {
		t.Errorf("quiet JSON = %s (%v)", buf.String(), err)
	}
	if quiet.RunID != "run-1" {
		t.Errorf("quiet run_id = %q, want run-1", quiet.RunID)
	}
	if lines := strings.Count(buf.String(), "\n"); lines != 1 {
		t.Errorf("quiet JSON has %d lines, want 1: %q", lines, buf.String())
	}
}

func TestNewFormatter(t *testing.T) {
	for _, name := range []string{"text", "json", ""} {
		if _, err := NewFormatter(name, FormatOptions{}); err != nil {
			t.Errorf("NewFormatter(%q) error = %v", name, err)
		}
	}
	_, err := NewFormatter("yaml", FormatOptions{})
	var ufe *UnknownFormatError
	if !errors.As(err, &ufe) || ufe.Name != "yaml" {
		t.Errorf("NewFormatter(yaml) error = %v", err)
	}
}

func TestJSONL_RoundTrip(t *testing.T) {
	records := sampleRecords()
	var buf bytes.Buffer
	if err := WriteJSONL(&buf, records); err != nil {
		t.Fatalf("WriteJSONL() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"ts_utc":"2025-07-05T01:28:40+00:00"`) {
		t.Errorf("unexpected encoding: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"pid":null`) {
		t.Errorf("missing null pid: %s", buf.String())
	}

	got, err := ReadJSONL(&buf)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		want, have := records[i], got[i]
		if !want.TSUTC.Equal(have.TSUTC) || !want.TSLocal.Equal(have.TSLocal) {
			t.Errorf("record %d timestamps differ", i)
		}
		if _, off := have.TSLocal.Zone(); off != 9*3600 {
			t.Errorf("record %d local offset = %d", i, off)
		}
		want.TSUTC, want.TSLocal = time.Time{}, time.Time{}
		have.TSUTC, have.TSLocal = time.Time{}, time.Time{}
		if !reflect.DeepEqual(want, have) {
			t.Errorf("record %d = %+v, want %+v", i, have, want)
		}
	}
}

func TestReadJSONL_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed", "{not json}\n"},
		{"bad timestamp", `{"ts_utc":"yesterday","ts_local":"yesterday","category":"X"}` + "\n"},
		{"no category", `{"ts_utc":"2025-07-05T01:28:40+00:00","ts_local":"2025-07-05T01:28:40+00:00"}` + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadJSONL(strings.NewReader(tt.input)); err == nil {
				t.Error("ReadJSONL() expected error")
			}
		})
	}
}

func TestWriteTables_CSV(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStaging(dir)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	r := sampleReport(t)
	if err := WriteParsed(s, sampleRecords(), ""); err != nil {
		t.Fatalf("WriteParsed() error = %v", err)
	}
	if err := WriteTables(s, r.Tables); err != nil {
		t.Fatalf("WriteTables() error = %v", err)
	}

	// Nothing visible before commit.
	if _, err := os.Stat(filepath.Join(dir, DailyCSV)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("table visible before Commit: %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	daily := readCSV(t, filepath.Join(dir, DailyCSV))
	want := [][]string{
		{"date", "category", "count"},
		{"2025-07-05", "RAID_FW", "1"},
		{"2025-07-05", "SMARTD_NOTIFY", "1"},
	}
	if !reflect.DeepEqual(daily, want) {
		t.Errorf("daily = %v, want %v", daily, want)
	}

	parsed := readCSV(t, filepath.Join(dir, ParsedCSV))
	if len(parsed) != 3 || !reflect.DeepEqual(parsed[0], record.Columns) {
		t.Errorf("parsed.csv header = %v", parsed[0])
	}

	co := readCSV(t, filepath.Join(dir, CoOccurrenceCSV))
	if !reflect.DeepEqual(co[0], []string{"category", "RAID_FW", "SMARTD_NOTIFY"}) {
		t.Errorf("co-occurrence header = %v", co[0])
	}

	health := readCSV(t, filepath.Join(dir, HealthCSV))
	if len(health) != 2 || health[1][2] != metrics.StateDegraded {
		t.Errorf("health = %v", health)
	}

	summary := readCSV(t, filepath.Join(dir, SummaryCSV))
	if len(summary) != 9 {
		t.Errorf("summary rows = %d, want 9", len(summary))
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestStaging_Abort(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStaging(dir)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	_ = s.Write(DailyCSV, func(w io.Writer) error {
		_, err := io.WriteString(w, "partial")
		return err
	})
	failErr := errors.New("boom")
	if err := s.Write(HourlyCSV, func(io.Writer) error { return failErr }); !errors.Is(err, failErr) {
		t.Fatalf("Write() error = %v, want boom", err)
	}
	if err := s.Abort(); err != nil {
		t.Fatalf("Abort() error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("directory not empty after Abort: %v", entries)
	}
}

func TestWriteParsed_Compressed(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStaging(dir)
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	if err := WriteParsed(s, sampleRecords(), fileio.Zstd.Ext()); err != nil {
		t.Fatalf("WriteParsed() error = %v", err)
	}
	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	rc, err := fileio.Open(filepath.Join(dir, "parsed.jsonl.zst"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	got, err := ReadJSONL(rc)
	if err != nil {
		t.Fatalf("ReadJSONL() error = %v", err)
	}
	if len(got) != 2 || got[0].RepeatCount != 3 {
		t.Errorf("records = %+v", got)
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestStaging_WritePath(t *testing.T) {
	dir := t.TempDir()
	elsewhere := filepath.Join(t.TempDir(), "journalhealth.prom")

	s, err := NewStaging("")
	if err != nil {
		t.Fatalf("NewStaging() error = %v", err)
	}
	if s.Dir() != "" {
		t.Errorf("Dir() = %q, want empty", s.Dir())
	}
	if err := s.Write(DailyCSV, func(io.Writer) error { return nil }); !errors.Is(err, ErrNoOutputDir) {
		t.Errorf("Write() without dir error = %v, want ErrNoOutputDir", err)
	}

	if err := s.WritePath(elsewhere, func(w io.Writer) error {
		_, err := io.WriteString(w, "journalhealth_events 1\n")
		return err
	}); err != nil {
		t.Fatalf("WritePath() error = %v", err)
	}
	if _, err := os.Stat(elsewhere); !os.IsNotExist(err) {
		t.Error("file visible before Commit")
	}
	if got := s.Paths(); len(got) != 1 || got[0] != elsewhere {
		t.Errorf("Paths() = %v", got)
	}

	if err := s.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	info, err := os.Stat(elsewhere)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}
	if entries, _ := os.ReadDir(dir); len(entries) != 0 {
		t.Errorf("unrelated dir touched: %v", entries)
	}
}

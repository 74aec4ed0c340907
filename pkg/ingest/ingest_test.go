package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ccollicutt/journalhealth/pkg/config"
	"github.com/ccollicutt/journalhealth/pkg/logger"
	"github.com/ccollicutt/journalhealth/pkg/parser"
	"github.com/ccollicutt/journalhealth/pkg/record"
)

const raidLine = "2025-07-05T10:28:40+0900 nas kernel: megaraid_sas 0000:01:00.0: FW in FAULT state"

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	cfg := config.DefaultConfig()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	d, err := NewDriver(cfg, WithLogger(logger.Discard()))
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	return d
}

func runText(t *testing.T, d *Driver, text string) (*Result, error) {
	t.Helper()
	return d.Run(context.Background(), parser.NewReaderSource("test", strings.NewReader(text)))
}

func TestBootTracker(t *testing.T) {
	b := NewBootTracker(config.DefaultBootMarker)
	if b.Current() != 0 {
		t.Fatalf("Current() = %d, want 0", b.Current())
	}
	if b.Observe("2025-07-05T10:28:40+0900 host unit: hi") {
		t.Error("Observe() true for ordinary line")
	}
	for i := 1; i <= 3; i++ {
		if !b.Observe("-- Boot 0d1e2f --") {
			t.Fatal("Observe() false for boot marker")
		}
		if b.Current() != i {
			t.Errorf("Current() = %d, want %d", b.Current(), i)
		}
	}
}

func mkRecord(sec int, nanos int, unit, msg string) record.LogRecord {
	ts := time.Date(2025, 7, 5, 1, 28, sec, nanos, time.UTC)
	return record.New(ts, ts, "+0000", "h", unit, nil, msg, msg)
}

func TestDeduplicator(t *testing.T) {
	long := strings.Repeat("x", record.MessageKeyLen)
	tests := []struct {
		name    string
		in      []record.LogRecord
		repeats []int
	}{
		{"empty", nil, nil},
		{"single", []record.LogRecord{mkRecord(0, 0, "u", "a")}, []int{1}},
		{"identical run", []record.LogRecord{
			mkRecord(0, 0, "u", "a"), mkRecord(0, 0, "u", "a"), mkRecord(0, 0, "u", "a"),
		}, []int{3}},
		{"same second different subsecond", []record.LogRecord{
			mkRecord(0, 100, "u", "a"), mkRecord(0, 900_000_000, "u", "a"),
		}, []int{2}},
		{"different second", []record.LogRecord{
			mkRecord(0, 0, "u", "a"), mkRecord(1, 0, "u", "a"),
		}, []int{1, 1}},
		{"different unit", []record.LogRecord{
			mkRecord(0, 0, "u", "a"), mkRecord(0, 0, "v", "a"),
		}, []int{1, 1}},
		{"same key beyond prefix", []record.LogRecord{
			mkRecord(0, 0, "u", long+"tail1"), mkRecord(0, 0, "u", long+"tail2"),
		}, []int{2}},
		{"non-consecutive duplicates stay separate", []record.LogRecord{
			mkRecord(0, 0, "u", "a"), mkRecord(0, 0, "u", "b"), mkRecord(0, 0, "u", "a"),
		}, []int{1, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDeduplicator()
			var out []record.LogRecord
			for _, r := range tt.in {
				if f, ok := d.Push(r); ok {
					out = append(out, f)
				}
			}
			if f, ok := d.Flush(); ok {
				out = append(out, f)
			}

			if len(out) != len(tt.repeats) {
				t.Fatalf("got %d records, want %d", len(out), len(tt.repeats))
			}
			sum := 0
			for i, r := range out {
				if r.RepeatCount != tt.repeats[i] {
					t.Errorf("record %d RepeatCount = %d, want %d", i, r.RepeatCount, tt.repeats[i])
				}
				sum += r.RepeatCount
			}
			if sum != len(tt.in) {
				t.Errorf("sum of RepeatCount = %d, want %d", sum, len(tt.in))
			}
		})
	}
}

func TestDeduplicator_KeepsFirstRepresentative(t *testing.T) {
	d := NewDeduplicator()
	first := mkRecord(0, 1, "u", "a")
	first.Raw = "first"
	second := mkRecord(0, 2, "u", "a")
	second.Raw = "second"
	d.Push(first)
	d.Push(second)
	out, ok := d.Flush()
	if !ok || out.Raw != "first" {
		t.Errorf("Flush() = %q, %v; want first", out.Raw, ok)
	}
	if _, ok := d.Flush(); ok {
		t.Error("second Flush() emitted a record")
	}
}

func TestRun_RaidDuplicates(t *testing.T) {
	d := newTestDriver(t)
	res, err := runText(t, d, strings.Repeat(raidLine+"\n", 3))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if rec.RepeatCount != 3 {
		t.Errorf("RepeatCount = %d, want 3", rec.RepeatCount)
	}
	if rec.Category != "RAID_FW" {
		t.Errorf("Category = %q, want RAID_FW", rec.Category)
	}
	if got := rec.TSUTC.Format(record.TimeLayout); got != "2025-07-05T01:28:40+00:00" {
		t.Errorf("TSUTC = %s", got)
	}
	if rec.Unit != "kernel" || rec.PID != nil {
		t.Errorf("Unit/PID = %q/%v", rec.Unit, rec.PID)
	}
	if rec.Date != "2025-07-05" || rec.Hour != 1 || rec.Weekday != "Saturday" {
		t.Errorf("Date/Hour/Weekday = %s/%d/%s", rec.Date, rec.Hour, rec.Weekday)
	}
	if res.Stats.LinesRead != 3 || res.Stats.Parsed != 3 || res.Stats.Records != 1 || res.Stats.MergedDuplicates != 2 {
		t.Errorf("Stats = %+v", res.Stats)
	}
}

func TestRun_BootSessionsAndSkips(t *testing.T) {
	input := strings.Join([]string{
		"-- Boot aaa --",
		"2025-07-05T10:00:00+0900 nas systemd[1]: Started A.",
		"",
		"   ",
		"garbage line without structure",
		"2025-13-45T99:00:00+0900 nas systemd[1]: impossible date",
		"-- Boot bbb --",
		"2025-07-05T11:00:00+0900 nas sshd[42]: Accepted publickey",
	}, "\n")

	res, err := runText(t, newTestDriver(t), input)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := Stats{
		LinesRead:     8,
		Blank:         2,
		BootMarkers:   2,
		Unparseable:   1,
		BadTimestamps: 1,
		Parsed:        2,
		Records:       2,
	}
	if res.Stats != want {
		t.Errorf("Stats = %+v, want %+v", res.Stats, want)
	}
	if res.Records[0].BootSeq != 1 || res.Records[1].BootSeq != 2 {
		t.Errorf("BootSeq = %d, %d; want 1, 2", res.Records[0].BootSeq, res.Records[1].BootSeq)
	}
	if res.Records[1].PID == nil || *res.Records[1].PID != 42 {
		t.Errorf("PID = %v, want 42", res.Records[1].PID)
	}
}

func TestRun_CategoryAlwaysAssigned(t *testing.T) {
	res, err := runText(t, newTestDriver(t), "2025-07-05T10:00:00+0900 nas cron[9]: (root) CMD (true)\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Records[0].Category != "OTHER" {
		t.Errorf("Category = %q, want OTHER", res.Records[0].Category)
	}
}

func TestRun_NoRecords(t *testing.T) {
	res, err := runText(t, newTestDriver(t), "\n-- Boot x --\nnot a journal line\n")
	if !errors.Is(err, ErrNoRecords) {
		t.Fatalf("Run() error = %v, want ErrNoRecords", err)
	}
	if res == nil || res.Stats.LinesRead != 3 {
		t.Errorf("result = %+v, want stats for 3 lines", res)
	}
}

func TestRun_MissingFile(t *testing.T) {
	src := parser.NewFileSource([]string{filepath.Join(t.TempDir(), "absent.log")})
	defer src.Close()
	_, err := newTestDriver(t).Run(context.Background(), src)
	if err == nil || errors.Is(err, ErrNoRecords) {
		t.Errorf("Run() error = %v, want read error", err)
	}
}

func TestRun_FilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.log")
	b := filepath.Join(dir, "b.log")
	writeFile(t, a, "2025-07-05T10:00:00+0900 nas unit: one\n")
	writeFile(t, b, "2025-07-04T10:00:00+0900 nas unit: two\n")

	src := parser.NewFileSource([]string{a, b})
	defer src.Close()
	res, err := newTestDriver(t).Run(context.Background(), src)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Records) != 2 || res.Records[0].Message != "one" || res.Records[1].Message != "two" {
		t.Errorf("records out of input order: %+v", res.Records)
	}
	if len(res.Sources) != 2 || res.Sources[0] != a {
		t.Errorf("Sources = %v", res.Sources)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestDriver(t).Run(ctx, parser.NewReaderSource("test", strings.NewReader(raidLine)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestNewDriver_Options(t *testing.T) {
	cfg := config.DefaultConfig()
	d, err := NewDriver(cfg, WithLogger(logger.Discard()), WithBootMarker("== reboot =="), WithDefaultTZ("+0100"))
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	res, err := runText(t, d, "== reboot ==\n-- Boot x --\n2025-07-05T10:00:00+9999 nas unit: hello\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stats.BootMarkers != 1 || res.Stats.Unparseable != 1 {
		t.Errorf("Stats = %+v", res.Stats)
	}
	if got := res.Records[0].TSUTC.Hour(); got != 9 {
		t.Errorf("TSUTC hour = %d, want 9 (default +0100 applied)", got)
	}
}

func TestRun_DefaultTZKeepsLineOffset(t *testing.T) {
	cfg := config.DefaultConfig()
	d, err := NewDriver(cfg, WithLogger(logger.Discard()), WithDefaultTZ("+0100"))
	if err != nil {
		t.Fatalf("NewDriver() error = %v", err)
	}
	res, err := runText(t, d, "2025-07-05T10:00:00+9999 nas unit: hello\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(res.Records))
	}
	rec := res.Records[0]
	if rec.TZOffset != "+9999" {
		t.Errorf("TZOffset = %q, want the line's +9999", rec.TZOffset)
	}
	if got := rec.TSLocal.Format("-0700"); got != "+0100" {
		t.Errorf("TSLocal offset = %s, want +0100", got)
	}
	if rec.TSLocal.Hour() != 10 {
		t.Errorf("TSLocal hour = %d, want 10", rec.TSLocal.Hour())
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRun_OversizedLineSkipped(t *testing.T) {
	long := "2025-07-05T10:28:41+0900 nas app[7]: " + strings.Repeat("x", 2<<20)
	later := "2025-07-05T10:29:00+0900 nas kernel: megaraid_sas FW in FAULT state"
	res, err := runText(t, newTestDriver(t), raidLine+"\n"+long+"\n"+later+"\n")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if res.Stats.LinesRead != 3 || res.Stats.Unparseable != 1 {
		t.Errorf("stats = %+v, want 3 read with 1 unparseable", res.Stats)
	}
	if len(res.Records) != 2 {
		t.Fatalf("got %d records, want 2", len(res.Records))
	}
	if res.Records[1].Raw != later {
		t.Errorf("second record raw = %q", res.Records[1].Raw)
	}
}

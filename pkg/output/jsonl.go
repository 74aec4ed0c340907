package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/valyala/fastjson"

	"github.com/ccollicutt/journalhealth/pkg/record"
)

// ParsedJSONL is the base name of the line-delimited record file.
const ParsedJSONL = "parsed.jsonl"

// maxJSONLine bounds one encoded record. A record embeds its raw line twice
// (raw and message), each up to 1 MiB.
const maxJSONLine = 4 * 1024 * 1024

var jsonParsers fastjson.ParserPool

// WriteJSONL writes one JSON object per record.
func WriteJSONL(w io.Writer, records []record.LogRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(records[i]); err != nil {
			return fmt.Errorf("encoding record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL decodes records written by WriteJSONL. Blank lines are skipped.
func ReadJSONL(r io.Reader) ([]record.LogRecord, error) {
	p := jsonParsers.Get()
	defer jsonParsers.Put(p)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxJSONLine)

	var records []record.LogRecord
	lineNum := 0
	for sc.Scan() {
		lineNum++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		v, err := p.ParseBytes(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		rec, err := decodeRecord(v)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	return records, nil
}

func decodeRecord(v *fastjson.Value) (record.LogRecord, error) {
	utc, err := time.Parse(record.TimeLayout, string(v.GetStringBytes("ts_utc")))
	if err != nil {
		return record.LogRecord{}, fmt.Errorf("ts_utc: %w", err)
	}
	local, err := time.Parse(record.TimeLayout, string(v.GetStringBytes("ts_local")))
	if err != nil {
		return record.LogRecord{}, fmt.Errorf("ts_local: %w", err)
	}

	var pid *int
	if pv := v.Get("pid"); pv != nil && pv.Type() == fastjson.TypeNumber {
		n, err := pv.Int()
		if err != nil {
			return record.LogRecord{}, fmt.Errorf("pid: %w", err)
		}
		pid = &n
	}

	rec := record.LogRecord{
		TSUTC:       utc.UTC(),
		TSLocal:     local,
		TZOffset:    string(v.GetStringBytes("tz_offset")),
		Host:        string(v.GetStringBytes("host")),
		Unit:        string(v.GetStringBytes("unit")),
		PID:         pid,
		Message:     string(v.GetStringBytes("message")),
		Raw:         string(v.GetStringBytes("raw")),
		Date:        string(v.GetStringBytes("date")),
		Hour:        v.GetInt("hour"),
		Weekday:     string(v.GetStringBytes("weekday")),
		BootSeq:     v.GetInt("boot_seq"),
		Category:    string(v.GetStringBytes("category")),
		RepeatCount: v.GetInt("repeat_count"),
	}
	if rec.Category == "" {
		return record.LogRecord{}, fmt.Errorf("record at %s has no category", rec.TSUTC.Format(record.TimeLayout))
	}
	if rec.RepeatCount < 1 {
		rec.RepeatCount = 1
	}
	return rec, nil
}

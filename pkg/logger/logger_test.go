package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json debug", "debug", "json", false},
		{"text info", "info", "text", false},
		{"empty format is text", "warn", "", false},
		{"invalid level", "loud", "text", true},
		{"invalid format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.level, tt.format, &bytes.Buffer{})
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInitialize_JSONFields(t *testing.T) {
	t.Cleanup(func() { _ = Initialize("info", "text", nil) })

	var buf bytes.Buffer
	if err := Initialize("debug", "json", &buf); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if Get().GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", Get().GetLevel())
	}

	WithFields(logrus.Fields{"component": "ingest", "records": 3}).Info("run complete")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "run complete" || entry["component"] != "ingest" {
		t.Errorf("entry = %v", entry)
	}
}

func TestInitialize_InvalidKeepsPrevious(t *testing.T) {
	before := Get()
	if err := Initialize("nope", "text", nil); err == nil {
		t.Fatal("Initialize() expected error")
	}
	if Get() != before {
		t.Error("failed Initialize replaced the global logger")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("output = %q", buf.String())
	}
}

// Package logger provides structured logging for journalhealth using Logrus.
// Logs go to stderr so that reports written to stdout stay machine-readable.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	log = newDefault()
	mu  sync.RWMutex
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	return l
}

// New creates a logger with the given level (debug, info, warn, error)
// and format (text, json) writing to w.
func New(level, format string, w io.Writer) (*logrus.Logger, error) {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be json or text", format)
	}

	if w == nil {
		w = os.Stderr
	}
	l.SetOutput(w)
	return l, nil
}

// Initialize replaces the global logger. Safe to call more than once.
func Initialize(level, format string, w io.Writer) error {
	l, err := New(level, format, w)
	if err != nil {
		return err
	}

	mu.Lock()
	log = l
	mu.Unlock()
	return nil
}

// Get returns the global logger instance.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// WithFields returns a global logger entry with structured fields.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Get().WithFields(fields)
}

// WithField returns a global logger entry with a single structured field.
func WithField(key string, value interface{}) *logrus.Entry {
	return Get().WithField(key, value)
}

// WithError returns a global logger entry with an error field.
func WithError(err error) *logrus.Entry {
	return Get().WithError(err)
}

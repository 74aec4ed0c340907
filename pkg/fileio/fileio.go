// Package fileio opens and creates files with transparent gzip/zstd compression.
package fileio

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression identifies a stream encoding.
type Compression string

const (
	None Compression = ""
	Gzip Compression = "gz"
	Zstd Compression = "zst"
)

// Stdin is the path that selects standard input.
const Stdin = "-"

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// ParseCompression maps a flag value to a Compression.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "none":
		return None, nil
	case "gz", "gzip":
		return Gzip, nil
	case "zst", "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("unknown compression %q (use gz or zst)", s)
	}
}

// Ext returns the file suffix for the compression, including the dot.
func (c Compression) Ext() string {
	if c == None {
		return ""
	}
	return "." + string(c)
}

// FromPath infers compression from a file suffix.
func FromPath(path string) Compression {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return Gzip
	case ".zst", ".zstd":
		return Zstd
	default:
		return None
	}
}

// Open opens path for reading, decompressing gzip or zstd content detected
// from the leading magic bytes. Path "-" reads standard input.
func Open(path string) (io.ReadCloser, error) {
	var f *os.File
	if path == Stdin {
		f = os.Stdin
	} else {
		var err error
		f, err = os.Open(path) // #nosec G304 -- user-provided paths are expected
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", path, err)
		}
	}

	rc, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return rc, nil
}

// NewReader wraps rc with a decompressor chosen by sniffing its first bytes.
// Closing the returned reader closes rc.
func NewReader(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, _ := br.Peek(len(zstdMagic))

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("gzip header: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{zr.Close, rc.Close}}, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("zstd header: %w", err)
		}
		return &stackedReader{Reader: zr, closers: []func() error{
			func() error { zr.Close(); return nil },
			rc.Close,
		}}, nil
	default:
		return &stackedReader{Reader: br, closers: []func() error{rc.Close}}, nil
	}
}

// Create creates path for writing, compressing according to its suffix.
func Create(path string) (io.WriteCloser, error) {
	f, err := os.Create(path) // #nosec G304 -- output path chosen by the user
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	wc, err := NewWriter(f, FromPath(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	return wc, nil
}

// NewWriter wraps wc with a compressor. Closing the returned writer flushes
// the compressor and closes wc.
func NewWriter(wc io.WriteCloser, c Compression) (io.WriteCloser, error) {
	switch c {
	case Gzip:
		zw := gzip.NewWriter(wc)
		return &stackedWriter{Writer: zw, closers: []func() error{zw.Close, wc.Close}}, nil
	case Zstd:
		zw, err := zstd.NewWriter(wc)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		return &stackedWriter{Writer: zw, closers: []func() error{zw.Close, wc.Close}}, nil
	default:
		return wc, nil
	}
}

type stackedReader struct {
	io.Reader
	closers []func() error
}

func (s *stackedReader) Close() error {
	return closeAll(s.closers)
}

type stackedWriter struct {
	io.Writer
	closers []func() error
}

func (s *stackedWriter) Close() error {
	return closeAll(s.closers)
}

// closeAll runs every closer in order and returns the first error.
func closeAll(closers []func() error) error {
	var firstErr error
	for _, c := range closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

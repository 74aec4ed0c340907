package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ccollicutt/journalhealth/pkg/fileio"
)

// maxLineSize bounds a single journal line. Longer lines are drained and
// returned with Oversized set instead of failing the read.
const maxLineSize = 1024 * 1024

// FileSource implements LineSource over one or more journal files, read in
// order as a single stream. Compressed files are decompressed transparently.
type FileSource struct {
	files []string

	current       io.ReadCloser
	currentReader *lineReader
	currentSource string
	currentLine   int
	fileIndex     int
}

// NewFileSource creates a LineSource that reads the given files in order.
func NewFileSource(files []string) *FileSource {
	return &FileSource{
		files:     files,
		fileIndex: -1,
	}
}

// Next returns the next line with surrounding whitespace trimmed.
// Blank lines are returned too; the caller decides what to skip.
// Returns io.EOF when all files have been exhausted.
func (s *FileSource) Next(ctx context.Context) (*LogLine, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if s.currentReader == nil {
			if err := s.openNextFile(); err != nil {
				return nil, err
			}
		}

		text, oversized, err := s.currentReader.next()
		if err == nil {
			s.currentLine++
			return &LogLine{
				Content:   strings.TrimSpace(text),
				Source:    s.currentSource,
				LineNum:   s.currentLine,
				Oversized: oversized,
			}, nil
		}
		if err != io.EOF {
			return nil, fmt.Errorf("reading %s: %w", s.currentSource, err)
		}

		// Current file exhausted, try next
		if err := s.closeCurrentFile(); err != nil {
			return nil, err
		}
	}
}

// Close releases resources.
func (s *FileSource) Close() error {
	return s.closeCurrentFile()
}

func (s *FileSource) openNextFile() error {
	s.fileIndex++
	if s.fileIndex >= len(s.files) {
		return io.EOF
	}

	path := s.files[s.fileIndex]
	rc, err := fileio.Open(path)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	s.current = rc
	s.currentReader = newLineReader(rc)
	s.currentSource = path
	s.currentLine = 0

	return nil
}

func (s *FileSource) closeCurrentFile() error {
	if s.current != nil {
		err := s.current.Close()
		s.current = nil
		s.currentReader = nil
		return err
	}
	return nil
}

// ReaderSource implements LineSource over an in-memory or piped reader.
type ReaderSource struct {
	name    string
	reader  *lineReader
	lineNum int
}

// NewReaderSource creates a LineSource reading r. name labels the lines.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, reader: newLineReader(r)}
}

// Next returns the next trimmed line or io.EOF.
func (s *ReaderSource) Next(ctx context.Context) (*LogLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, oversized, err := s.reader.next()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.name, err)
	}
	s.lineNum++
	return &LogLine{
		Content:   strings.TrimSpace(text),
		Source:    s.name,
		LineNum:   s.lineNum,
		Oversized: oversized,
	}, nil
}

// Close is a no-op; the caller owns the reader.
func (s *ReaderSource) Close() error {
	return nil
}

// lineReader splits a stream into lines of any length, keeping at most
// maxLineSize bytes of each.
type lineReader struct {
	br  *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{br: bufio.NewReaderSize(r, 64*1024)}
}

// next returns the next line without its terminator. A line longer than
// maxLineSize is consumed whole and returned empty with oversized true.
// io.EOF is returned only when no bytes remain.
func (r *lineReader) next() (line string, oversized bool, err error) {
	r.buf = r.buf[:0]
	read := 0
	for {
		chunk, err := r.br.ReadSlice('\n')
		read += len(chunk)
		if !oversized {
			if len(r.buf)+len(chunk) > maxLineSize+1 {
				oversized = true
				r.buf = r.buf[:0]
			} else {
				r.buf = append(r.buf, chunk...)
			}
		}

		switch {
		case err == nil:
			return strings.TrimSuffix(string(r.buf), "\n"), oversized, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if read == 0 {
				return "", false, io.EOF
			}
			return string(r.buf), oversized, nil
		default:
			return "", false, err
		}
	}
}

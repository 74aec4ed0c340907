package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ccollicutt/journalhealth/pkg/fileio"
)

// Staging collects output files as temporaries next to their final paths
// and moves them into place together on Commit. Abort removes them, so a
// run that fails before Commit leaves no partial output.
//
// Commit renames one file at a time. If a rename fails, files already renamed
// stay in place and the remaining temporaries are removed.
type Staging struct {
	dir   string
	files []stagedFile
}

type stagedFile struct {
	tmp   string
	final string
}

// ErrNoOutputDir is returned by Write when the staging has no directory.
var ErrNoOutputDir = errors.New("no output directory")

// NewStaging prepares dir (creating it if needed) for staged writes. An
// empty dir stages only files given by full path through WritePath.
func NewStaging(dir string) (*Staging, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	return &Staging{dir: dir}, nil
}

// Dir returns the target directory.
func (s *Staging) Dir() string {
	return s.dir
}

// Write stages name in the target directory by calling fn with a writer.
// Content is compressed according to the suffix of name.
func (s *Staging) Write(name string, fn func(io.Writer) error) error {
	if s.dir == "" {
		return fmt.Errorf("staging %s: %w", name, ErrNoOutputDir)
	}
	return s.WritePath(filepath.Join(s.dir, name), fn)
}

// WritePath stages a file at an arbitrary path. The temporary is created in
// the path's directory so that Commit is a same-filesystem rename.
func (s *Staging) WritePath(path string, fn func(io.Writer) error) (err error) {
	name := filepath.Base(path)
	f, err := os.CreateTemp(filepath.Dir(path), "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("staging %s: %w", name, err)
	}
	s.files = append(s.files, stagedFile{tmp: f.Name(), final: path})

	// Collectors such as node_exporter read the file as another user.
	if err := f.Chmod(0o644); err != nil {
		f.Close()
		return fmt.Errorf("staging %s: %w", name, err)
	}

	wc, err := fileio.NewWriter(f, fileio.FromPath(name))
	if err != nil {
		f.Close()
		return fmt.Errorf("staging %s: %w", name, err)
	}

	if err := fn(wc); err != nil {
		wc.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	return nil
}

// Commit renames every staged file into place.
func (s *Staging) Commit() error {
	for i, f := range s.files {
		if err := os.Rename(f.tmp, f.final); err != nil {
			s.files = s.files[i:]
			return errors.Join(fmt.Errorf("committing %s: %w", filepath.Base(f.final), err), s.Abort())
		}
	}
	s.files = nil
	return nil
}

// Abort removes any staged files that were not committed.
func (s *Staging) Abort() error {
	var errs []error
	for _, f := range s.files {
		if err := os.Remove(f.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.files = nil
	return errors.Join(errs...)
}

// Paths returns the final paths of the staged files.
func (s *Staging) Paths() []string {
	paths := make([]string, len(s.files))
	for i, f := range s.files {
		paths[i] = f.final
	}
	return paths
}

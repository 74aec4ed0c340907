package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ccollicutt/journalhealth/pkg/fileio"
)

// ErrNoInput is returned when no input path was given.
var ErrNoInput = errors.New("no input files")

// ExpandInputs expands file paths and glob patterns into a deduplicated,
// sorted list of existing files. Each argument's matches are sorted with
// digit runs compared by value, so rotated journals read journal.2.gz
// before journal.10.gz. That is rotation order, which logrotate numbers
// newest first; pass the files explicitly to read them oldest first.
// Arguments keep the order given. A literal path that does not exist
// is an error wrapping fs.ErrNotExist. "-" (stdin) is passed through.
func ExpandInputs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, ErrNoInput
	}

	seen := make(map[string]bool)
	var result []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	for _, pattern := range patterns {
		if pattern == fileio.Stdin {
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}

		if len(matches) == 0 {
			if _, err := os.Stat(pattern); err != nil {
				return nil, fmt.Errorf("input %q: %w", pattern, fs.ErrNotExist)
			}
			add(pattern)
			continue
		}

		sort.Slice(matches, func(i, j int) bool {
			return naturalLess(matches[i], matches[j])
		})
		for _, m := range matches {
			add(m)
		}
	}

	return result, nil
}

// naturalLess orders strings lexically except that runs of ASCII digits
// compare by numeric value. Equal values with different zero padding fall
// back to plain comparison.
func naturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na := strings.TrimLeft(a[si:i], "0")
			nb := strings.TrimLeft(b[sj:j], "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	if len(a)-i != len(b)-j {
		return len(a)-i < len(b)-j
	}
	return a < b
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// Package sourcedir discovers spec sources in a directory tree.
package sourcedir

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tonistiigi/fsutil"

	"github.com/ndisidore/mixup/pkg/parser"
)

// ErrNoIgnoreFile indicates no .mixupignore was found.
var ErrNoIgnoreFile = errors.New("no ignore file found")

// ErrNoSources is returned when a directory holds no spec sources.
var ErrNoSources = errors.New("no spec sources found")

const _ignoreFile = ".mixupignore"

// DefaultExcludes are always applied on top of the ignore file.
var DefaultExcludes = []string{".git", "node_modules"}

// LoadIgnorePatterns reads .mixupignore from dir.
// Returns ErrNoIgnoreFile when it does not exist.
func LoadIgnorePatterns(dir string) ([]string, error) {
	patterns, err := readPatternFile(filepath.Join(dir, _ignoreFile))
	if err == nil {
		return patterns, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoIgnoreFile
	}
	return nil, fmt.Errorf("reading %s: %w", _ignoreFile, err)
}

// readPatternFile parses a newline-delimited ignore file.
// Blank lines and comments (lines starting with #) are skipped.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	patterns := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning ignore file: %w", err)
	}
	return patterns, nil
}

// Discover walks dir and returns the slash-separated relative paths of every
// file the parser understands, sorted. Paths matching the ignore file,
// DefaultExcludes or the extra excludes are skipped, as is the ignore file.
func Discover(ctx context.Context, dir string, excludes ...string) ([]string, error) {
	patterns, err := LoadIgnorePatterns(dir)
	if err != nil && !errors.Is(err, ErrNoIgnoreFile) {
		return nil, err
	}
	patterns = slices.Concat(DefaultExcludes, patterns, excludes)

	base, err := fsutil.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("opening source directory %s: %w", dir, err)
	}
	filtered, err := fsutil.NewFilterFS(base, &fsutil.FilterOpt{ExcludePatterns: patterns})
	if err != nil {
		return nil, fmt.Errorf("applying ignore patterns: %w", err)
	}

	var files []string
	err = filtered.Walk(ctx, "", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ferr := parser.FormatOf(path); ferr != nil {
			return nil //nolint:nilerr // not a spec source
		}
		files = append(files, filepath.ToSlash(path))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSources)
	}
	slices.Sort(files)
	return files, nil
}

package parser

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/containerd/errdefs"
)

// Resolver opens include sources for reading. Implementations return the
// content reader, the resolved absolute path (used for cycle detection,
// format detection and relative include resolution), and any error.
type Resolver interface {
	Resolve(source string, basePath string) (io.ReadCloser, string, error)
}

// FileResolver resolves includes from the local filesystem.
type FileResolver struct{}

// Resolve opens a local file relative to basePath. Missing files match
// errdefs.ErrNotFound.
func (*FileResolver) Resolve(source string, basePath string) (io.ReadCloser, string, error) {
	abs := source
	if !filepath.IsAbs(source) {
		abs = filepath.Join(basePath, source)
	}
	abs = filepath.Clean(abs)

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", errdefs.ErrNotFound, err)
		}
		return nil, "", fmt.Errorf("resolving %q from %s: %w", source, basePath, err)
	}
	return f, abs, nil
}

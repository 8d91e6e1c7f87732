// Package cache tracks digests of rendered outputs and per-run build
// statistics.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/opencontainers/go-digest"
)

// IndexFile is the name of the digest index kept in the output directory.
const IndexFile = ".mixup-digests"

// Index maps output paths to the digest of their last written content.
// It is safe for concurrent use.
type Index struct {
	mu      sync.Mutex
	path    string
	digests map[string]digest.Digest
	dirty   bool
}

// LoadIndex reads the index in dir. A missing index yields an empty one.
func LoadIndex(dir string) (*Index, error) {
	idx := &Index{
		path:    filepath.Join(dir, IndexFile),
		digests: make(map[string]digest.Digest),
	}
	data, err := os.ReadFile(idx.path)
	if errors.Is(err, fs.ErrNotExist) {
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading digest index: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding digest index %s: %w", idx.path, err)
	}
	for out, d := range raw {
		dgst, err := digest.Parse(d)
		if err != nil {
			// A corrupt entry only costs a rewrite of that output.
			continue
		}
		idx.digests[out] = dgst
	}
	return idx, nil
}

// Unchanged reports whether out was last written with content digest d and
// still exists on disk.
func (i *Index) Unchanged(out string, d digest.Digest) bool {
	i.mu.Lock()
	prev, ok := i.digests[out]
	i.mu.Unlock()
	if !ok || prev != d {
		return false
	}
	_, err := os.Stat(out)
	return err == nil
}

// Update records d as the digest of out.
func (i *Index) Update(out string, d digest.Digest) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.digests[out] == d {
		return
	}
	i.digests[out] = d
	i.dirty = true
}

// Len returns the number of recorded outputs.
func (i *Index) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.digests)
}

// Save writes the index back when it changed.
func (i *Index) Save() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.dirty {
		return nil
	}

	keys := make([]string, 0, len(i.digests))
	for k := range i.digests {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	ms := make(yaml.MapSlice, 0, len(keys))
	for _, k := range keys {
		ms = append(ms, yaml.MapItem{Key: k, Value: i.digests[k].String()})
	}

	data, err := yaml.Marshal(ms)
	if err != nil {
		return fmt.Errorf("encoding digest index: %w", err)
	}
	if err := os.WriteFile(i.path, data, 0o644); err != nil {
		return fmt.Errorf("writing digest index: %w", err)
	}
	i.dirty = false
	return nil
}

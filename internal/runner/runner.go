// Package runner builds many spec sources concurrently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ndisidore/mixup/internal/builder"
	"github.com/ndisidore/mixup/internal/cache"
	"github.com/ndisidore/mixup/internal/progress"
	"github.com/ndisidore/mixup/pkg/slogctx"
)

// Sentinel errors for invalid run input.
var (
	ErrNilDisplay = errors.New("display must not be nil")
	ErrNoFiles    = errors.New("no files to build")
)

// OutputExt is the extension of rendered documents.
const OutputExt = ".xml"

// RunInput holds parameters for a batch build.
type RunInput struct {
	// Dir is the source root that Files are relative to.
	Dir string
	// Files are slash-separated source paths relative to Dir.
	Files []string
	// OutDir receives the outputs, mirroring the source layout. Empty writes
	// each output next to its source.
	OutDir string
	// Display renders build progress. It must already be started.
	Display progress.Display
	// Index skips writes whose content digest is unchanged. Optional.
	Index *cache.Index
	// Collector records per-file statistics. Optional.
	Collector *cache.Collector
	// Parallelism bounds concurrent builds; zero or less means unbounded.
	Parallelism int
	// Build is passed to every builder.Build call.
	Build builder.Options
}

// OutputPath returns where the document built from file is written.
func OutputPath(dir, outDir, file string) string {
	base := outDir
	if base == "" {
		base = dir
	}
	rel := filepath.FromSlash(file)
	return filepath.Join(base, strings.TrimSuffix(rel, filepath.Ext(rel))+OutputExt)
}

// Run builds every file. Documents are independent, so one failure does not
// stop the others; all failures are joined into the returned error.
func Run(ctx context.Context, in RunInput) error {
	if in.Display == nil {
		return ErrNilDisplay
	}
	if len(in.Files) == 0 {
		return ErrNoFiles
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g := new(errgroup.Group)
	if in.Parallelism > 0 {
		g.SetLimit(in.Parallelism)
	}
	for _, file := range in.Files {
		g.Go(func() error {
			if err := buildOne(ctx, in, file); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", file, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if in.Index != nil {
		if err := in.Index.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildOne(ctx context.Context, in RunInput, file string) error {
	fail := func(err error) error {
		in.Display.Send(progress.Event{File: file, Status: progress.StatusFailed, Err: err})
		observe(in.Collector, cache.FileStat{File: file, Outcome: cache.OutcomeFailed})
		return err
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	ctx = slogctx.With(ctx, slog.String("file", file))
	in.Display.Send(progress.Event{File: file, Status: progress.StatusCompiling})

	src := filepath.Join(in.Dir, filepath.FromSlash(file))
	res, err := builder.Build(ctx, src, in.Build)
	if err != nil {
		return fail(err)
	}

	st := cache.FileStat{
		File:     file,
		Outcome:  cache.OutcomeWritten,
		Nodes:    res.Counts.Total(),
		Bytes:    len(res.Bytes),
		Duration: res.Duration,
	}
	out := OutputPath(in.Dir, in.OutDir, file)
	if in.Index != nil && in.Index.Unchanged(out, res.Digest) {
		st.Outcome = cache.OutcomeUnchanged
		observe(in.Collector, st)
		in.Display.Send(progress.Event{File: file, Status: progress.StatusUnchanged, Nodes: st.Nodes, Duration: st.Duration})
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fail(fmt.Errorf("creating output directory: %w", err))
	}
	if err := os.WriteFile(out, res.Bytes, 0o644); err != nil {
		return fail(fmt.Errorf("writing %s: %w", out, err))
	}
	if in.Index != nil {
		in.Index.Update(out, res.Digest)
	}
	observe(in.Collector, st)
	in.Display.Send(progress.Event{File: file, Status: progress.StatusWritten, Nodes: st.Nodes, Duration: st.Duration})
	return nil
}

func observe(c *cache.Collector, st cache.FileStat) {
	if c != nil {
		c.Observe(st)
	}
}

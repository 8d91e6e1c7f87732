// Package builder turns one spec source into a serialized XML document.
package builder

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/beevik/etree"
	"github.com/opencontainers/go-digest"

	"github.com/ndisidore/mixup/pkg/dom"
	"github.com/ndisidore/mixup/pkg/markup"
	"github.com/ndisidore/mixup/pkg/parser"
	"github.com/ndisidore/mixup/pkg/slogctx"
)

// Options controls a single build.
type Options struct {
	// Parser reads the source. A nil Parser resolves includes from disk.
	Parser *parser.Parser
	// Args are passed to every callable in the spec.
	Args []any
	// Indent re-indents the output with this many spaces when positive.
	Indent int
	// MaxDepth bounds compile recursion; zero keeps the markup default.
	MaxDepth int
}

// Result holds the compiled document and its serialized form.
type Result struct {
	Doc      *etree.Document
	Bytes    []byte
	Digest   digest.Digest
	Counts   dom.Counts
	Duration time.Duration
}

// Build parses the source at path and compiles it into a document.
func Build(ctx context.Context, path string, opts Options) (Result, error) {
	start := time.Now()
	p := opts.Parser
	if p == nil {
		p = parser.New()
	}
	spec, err := p.ParseFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	res, err := BuildSpec(slogctx.With(ctx, slog.String("file", path)), spec, opts)
	if err != nil {
		return Result{}, fmt.Errorf("building %s: %w", path, err)
	}
	res.Duration = time.Since(start)
	return res, nil
}

// BuildSpec compiles an already parsed spec into a document.
func BuildSpec(ctx context.Context, spec any, opts Options) (Result, error) {
	start := time.Now()
	copts := []markup.Option{markup.WithArgs(opts.Args...)}
	if opts.MaxDepth > 0 {
		copts = append(copts, markup.WithMaxDepth(opts.MaxDepth))
	}
	doc, err := markup.Document(ctx, spec, copts...)
	if err != nil {
		return Result{}, fmt.Errorf("compiling: %w", err)
	}

	var buf bytes.Buffer
	if err := dom.WriteDocument(&buf, doc, opts.Indent); err != nil {
		return Result{}, err
	}
	res := Result{
		Doc:      doc,
		Bytes:    buf.Bytes(),
		Digest:   digest.FromBytes(buf.Bytes()),
		Counts:   dom.Tally(dom.DocumentNode(doc)),
		Duration: time.Since(start),
	}
	slogctx.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "document built",
		slog.Int("nodes", res.Counts.Total()),
		slog.Int("bytes", len(res.Bytes)),
		slog.String("digest", res.Digest.String()),
	)
	return res, nil
}

// Package main provides the CLI entry point for mixup.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/ndisidore/mixup/internal/builder"
	"github.com/ndisidore/mixup/internal/cache"
	"github.com/ndisidore/mixup/internal/profile"
	"github.com/ndisidore/mixup/internal/progress"
	"github.com/ndisidore/mixup/internal/runner"
	"github.com/ndisidore/mixup/internal/sourcedir"
	"github.com/ndisidore/mixup/pkg/dom"
	"github.com/ndisidore/mixup/pkg/markup"
	"github.com/ndisidore/mixup/pkg/parser"
	"github.com/ndisidore/mixup/pkg/slogctx"
)

// errUsage wraps usage mistakes that are not flag parse errors.
var errUsage = errors.New("usage")

// errInvalidParam indicates a --param value without a "=".
var errInvalidParam = errors.New("invalid --param, want name=value")

// app bundles dependencies so CLI action handlers become testable methods.
type app struct {
	newParser func(params map[string]string) *parser.Parser
	stdout    io.Writer
	stderr    io.Writer
	isTTY     bool
	format    string // resolved output format (pretty, json, text)
	profiler  profile.Stopper
}

func main() {
	a := &app{
		newParser: defaultParser,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		isTTY:     term.IsTerminal(int(os.Stderr.Fd())) && os.Getenv("CI") == "",
	}

	cmd := a.command()
	cmd.ExitErrHandler = func(_ context.Context, _ *cli.Command, err error) {
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		os.Exit(1)
	}
}

func defaultParser(params map[string]string) *parser.Parser {
	return &parser.Parser{Resolver: &parser.FileResolver{}, Params: params}
}

// command assembles the CLI.
func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "mixup",
		Usage: "compile declarative markup specs into XML documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Usage:   "log format (auto, pretty, json, text)",
				Value:   progress.FormatAuto,
				Sources: cli.EnvVars("MIXUP_FORMAT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("MIXUP_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:  "pprof",
				Usage: "profile the run (" + strings.Join(profile.Modes(), ", ") + ")",
			},
			&cli.StringFlag{
				Name:  "pprof-dir",
				Usage: "directory for profile output",
			},
		},
		Before: a.before,
		After:  a.after,
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "compile a spec file to XML",
				ArgsUsage: "<file>",
				Flags: append(compileFlags(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "write to this file instead of stdout",
					},
					&cli.StringSliceFlag{
						Name:  "arg",
						Usage: "value passed to callables in the spec (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "digest",
						Usage: "print the digest of the output",
					},
				),
				Action: a.compileAction,
			},
			{
				Name:      "validate",
				Usage:     "check that a spec file compiles",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "top-level #param value as name=value (repeatable)",
					},
				},
				Action: a.validateAction,
			},
			{
				Name:      "inspect",
				Usage:     "print the classified outline of a spec file as YAML",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "param",
						Usage: "top-level #param value as name=value (repeatable)",
					},
				},
				Action: a.inspectAction,
			},
			{
				Name:      "build",
				Usage:     "compile every spec under a directory",
				ArgsUsage: "<dir>",
				Flags: append(compileFlags(),
					&cli.StringFlag{
						Name:  "out-dir",
						Usage: "write outputs here, mirroring the source layout",
					},
					&cli.StringSliceFlag{
						Name:  "exclude",
						Usage: "extra exclude pattern (repeatable)",
					},
					&cli.IntFlag{
						Name:    "parallelism",
						Aliases: []string{"j"},
						Usage:   "max concurrent builds (0 = unlimited)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "rewrite outputs even when unchanged",
					},
					&cli.StringFlag{
						Name:  "progress",
						Usage: "progress output mode (auto, tui, plain, quiet)",
						Value: "auto",
					},
					&cli.BoolFlag{
						Name:  "boring",
						Usage: "use ASCII instead of emoji in TUI output",
					},
					&cli.BoolFlag{
						Name:  "stats",
						Usage: "print a build summary",
					},
				),
				Action: a.buildAction,
			},
			{
				Name:  "stub",
				Usage: "emit an XHTML skeleton",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "document title"},
					&cli.StringFlag{Name: "lang", Usage: "document language"},
					&cli.StringFlag{Name: "base", Usage: "base href"},
					&cli.StringFlag{Name: "vocab", Usage: "RDFa vocabulary"},
					&cli.StringFlag{Name: "transform", Usage: "XSLT stylesheet href"},
					&cli.StringSliceFlag{Name: "css", Usage: "stylesheet href (repeatable)"},
					&cli.StringSliceFlag{Name: "script", Usage: "script src (repeatable)"},
					&cli.BoolFlag{Name: "no-dtd", Usage: "omit the doctype"},
					&cli.BoolFlag{Name: "no-xmlns", Usage: "omit the XHTML namespace"},
					&cli.IntFlag{Name: "indent", Usage: "indent output with this many spaces"},
				},
				Action: a.stubAction,
			},
		},
	}
}

// compileFlags returns the flags shared by commands that compile specs.
func compileFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "indent",
			Usage: "indent output with this many spaces",
		},
		&cli.StringSliceFlag{
			Name:  "param",
			Usage: "top-level #param value as name=value (repeatable)",
		},
	}
}

func (a *app) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	a.format = progress.ResolveFormat(cmd.String("format"), a.isTTY)
	var level slog.Level
	if err := level.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
		return ctx, fmt.Errorf("invalid log level %q: %w", cmd.String("log-level"), err)
	}
	logger, err := progress.NewLogger(a.stderr, a.format, level)
	if err != nil {
		return ctx, fmt.Errorf("initializing logger: %w", err)
	}
	slog.SetDefault(logger)

	a.profiler, err = profile.Start(cmd.String("pprof"), cmd.String("pprof-dir"))
	if err != nil {
		return ctx, fmt.Errorf("starting profiler: %w", err)
	}
	return slogctx.ContextWithLogger(ctx, logger), nil
}

func (a *app) after(context.Context, *cli.Command) error {
	if a.profiler != nil {
		a.profiler.Stop()
	}
	return nil
}

// parseParams turns name=value flags into a map.
func parseParams(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	params := make(map[string]string, len(values))
	for _, v := range values {
		name, value, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%w: %q", errInvalidParam, v)
		}
		params[name] = value
	}
	return params, nil
}

func (a *app) parser(cmd *cli.Command) (*parser.Parser, error) {
	params, err := parseParams(cmd.StringSlice("param"))
	if err != nil {
		return nil, err
	}
	return a.newParser(params), nil
}

func (a *app) compileAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: mixup compile <file>", errUsage)
	}
	p, err := a.parser(cmd)
	if err != nil {
		return err
	}

	var args []any
	for _, v := range cmd.StringSlice("arg") {
		args = append(args, v)
	}
	res, err := builder.Build(ctx, path, builder.Options{
		Parser: p,
		Args:   args,
		Indent: int(cmd.Int("indent")),
	})
	if err != nil {
		return err
	}

	digestOut := a.stderr
	if out := cmd.String("output"); out != "" {
		if err := os.WriteFile(out, res.Bytes, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", out, err)
		}
		digestOut = a.stdout
	} else if _, err := a.stdout.Write(res.Bytes); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	if cmd.Bool("digest") {
		_, _ = fmt.Fprintln(digestOut, res.Digest)
	}
	return nil
}

func (a *app) validateAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: mixup validate <file>", errUsage)
	}
	p, err := a.parser(cmd)
	if err != nil {
		return err
	}

	res, err := builder.Build(ctx, path, builder.Options{Parser: p})
	if err != nil {
		return err
	}
	a.printSummary(path, res.Counts)
	return nil
}

func (a *app) printSummary(path string, c dom.Counts) {
	_, _ = fmt.Fprintf(a.stdout, "Spec '%s' is valid\n", path)
	_, _ = fmt.Fprintf(a.stdout, "  Nodes: %d\n", c.Total())
	for _, row := range []struct {
		kind string
		n    int
	}{
		{"elements", c.Elements},
		{"text", c.Text},
		{"cdata", c.CData},
		{"comments", c.Comments},
		{"processing instructions", c.ProcInsts},
		{"doctypes", c.Directives},
	} {
		if row.n > 0 {
			_, _ = fmt.Fprintf(a.stdout, "    - %s: %d\n", row.kind, row.n)
		}
	}
}

func (a *app) inspectAction(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("%w: mixup inspect <file>", errUsage)
	}
	p, err := a.parser(cmd)
	if err != nil {
		return err
	}

	spec, err := p.ParseFile(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	outline, err := markup.Outline(spec)
	if err != nil {
		return fmt.Errorf("classifying %s: %w", path, err)
	}
	data, err := yaml.Marshal(outline)
	if err != nil {
		return fmt.Errorf("encoding outline: %w", err)
	}
	_, err = a.stdout.Write(data)
	return err
}

func (a *app) buildAction(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		return fmt.Errorf("%w: mixup build <dir>", errUsage)
	}
	if cmd.Int("parallelism") < 0 {
		return fmt.Errorf("invalid value %d for flag --parallelism: must be >= 0", cmd.Int("parallelism"))
	}
	p, err := a.parser(cmd)
	if err != nil {
		return err
	}

	files, err := sourcedir.Discover(ctx, dir, cmd.StringSlice("exclude")...)
	if err != nil {
		return fmt.Errorf("discovering sources: %w", err)
	}

	outDir := cmd.String("out-dir")
	indexDir := outDir
	if indexDir == "" {
		indexDir = dir
	}
	var index *cache.Index
	if !cmd.Bool("force") {
		if err := os.MkdirAll(indexDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", indexDir, err)
		}
		index, err = cache.LoadIndex(indexDir)
		if err != nil {
			return err
		}
	}
	var collector *cache.Collector
	if cmd.Bool("stats") {
		collector = cache.NewCollector()
	}

	display, err := a.selectDisplay(cmd.String("progress"), cmd.Bool("boring"))
	if err != nil {
		return err
	}
	if err := display.Start(ctx, files); err != nil {
		return fmt.Errorf("starting display: %w", err)
	}
	defer display.Seal()

	runErr := runner.Run(ctx, runner.RunInput{
		Dir:         dir,
		Files:       files,
		OutDir:      outDir,
		Display:     display,
		Index:       index,
		Collector:   collector,
		Parallelism: int(cmd.Int("parallelism")),
		Build: builder.Options{
			Parser: p,
			Indent: int(cmd.Int("indent")),
		},
	})

	display.Seal()
	waitErr := display.Wait()

	if collector != nil {
		cache.PrintReport(a.stdout, collector.Report())
	}
	return errors.Join(runErr, waitErr)
}

func (a *app) stubAction(ctx context.Context, cmd *cli.Command) error {
	o := markup.StubOptions{
		Title:     cmd.String("title"),
		Lang:      cmd.String("lang"),
		Base:      cmd.String("base"),
		Vocab:     cmd.String("vocab"),
		Transform: cmd.String("transform"),
		NoDTD:     cmd.Bool("no-dtd"),
		NoXMLNS:   cmd.Bool("no-xmlns"),
	}
	for _, href := range cmd.StringSlice("css") {
		o.Link = append(o.Link, markup.M(nil, "link", "rel", "stylesheet", "type", "text/css", "href", href))
	}
	for _, src := range cmd.StringSlice("script") {
		o.Script = append(o.Script, markup.M(nil, "script", "type", "text/javascript", "src", src))
	}

	res, err := builder.BuildSpec(ctx, markup.StubSpec(o), builder.Options{Indent: int(cmd.Int("indent"))})
	if err != nil {
		return fmt.Errorf("building stub: %w", err)
	}
	_, err = a.stdout.Write(res.Bytes)
	return err
}

func (a *app) selectDisplay(mode string, boring bool) (progress.Display, error) {
	switch mode {
	case "auto":
		if a.isTTY && a.format == progress.FormatPretty {
			return &progress.TUI{Boring: boring}, nil
		}
		return &progress.Plain{}, nil
	case "tui":
		return &progress.TUI{Boring: boring}, nil
	case "plain":
		return &progress.Plain{}, nil
	case "quiet":
		return &progress.Quiet{}, nil
	default:
		return nil, fmt.Errorf("unknown progress mode %q (valid: auto, tui, plain, quiet)", mode)
	}
}

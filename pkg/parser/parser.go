// Package parser turns KDL, YAML and JSON documents into markup specs.
package parser

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ndisidore/mixup/pkg/markup"
)

// Sentinel errors for parse failures.
var (
	ErrUnknownFormat   = errors.New("unknown document format")
	ErrMissingArgument = errors.New("missing required argument")
	ErrTypeMismatch    = errors.New("value type mismatch")
	ErrMisplacedParam  = errors.New("param declarations must be top-level")
	ErrDuplicateParam  = errors.New("duplicate param")
	ErrMissingParam    = errors.New("missing required param")
	ErrUnknownParam    = errors.New("unknown param")
	ErrCircularInclude = errors.New("circular include")
	ErrIncludeDepth    = errors.New("include depth exceeded")
)

// Format identifies a document syntax.
type Format string

// Supported formats.
const (
	FormatKDL  Format = "kdl"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from a file extension.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".kdl":
		return FormatKDL, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%s: %w", filename, ErrUnknownFormat)
	}
}

// Parser reads spec documents and resolves their includes.
type Parser struct {
	Resolver Resolver
	// Params are the values for the "#param" declarations of the top-level
	// document.
	Params map[string]string
}

// New returns a Parser that resolves includes from the filesystem.
func New() *Parser {
	return &Parser{Resolver: &FileResolver{}}
}

// ParseFile reads and parses the document at path.
func (p *Parser) ParseFile(path string) (spec markup.Seq, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()

	return p.Parse(f, abs)
}

// Parse parses the document read from r. filename selects the format and
// anchors relative includes.
func (p *Parser) Parse(r io.Reader, filename string) (markup.Seq, error) {
	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	return p.parse(r, filename, format)
}

// ParseString parses content in the given format.
func (p *Parser) ParseString(content string, format Format) (markup.Seq, error) {
	return p.parse(strings.NewReader(content), "<string>", format)
}

func (p *Parser) parse(r io.Reader, filename string, format Format) (markup.Seq, error) {
	l := &loader{resolver: p.Resolver, state: newIncludeState()}
	if l.resolver == nil {
		l.resolver = &FileResolver{}
	}
	if err := l.state.push(filename); err != nil {
		return nil, err
	}
	defer l.state.pop()

	specs, err := l.load(r, filename, format, p.Params)
	if err != nil {
		return nil, err
	}
	return markup.Seq(specs), nil
}

// loader carries the state of one top-level parse across includes.
type loader struct {
	resolver Resolver
	state    *includeState
}

func (l *loader) load(r io.Reader, filename string, format Format, params map[string]string) ([]any, error) {
	switch format {
	case FormatKDL:
		return l.loadKDL(r, filename, params)
	case FormatYAML, FormatJSON:
		return l.loadYAML(r, filename, params)
	default:
		return nil, fmt.Errorf("%s: %w: %q", filename, ErrUnknownFormat, format)
	}
}

// frame is the per-file conversion context.
type frame struct {
	file string
	sub  func(string) string
}

func newFrame(file string, defs []ParamDef, provided map[string]string) (*frame, error) {
	vals, err := ResolveParams(defs, provided)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return &frame{file: file, sub: substituter(vals)}, nil
}

// text substitutes params in s and turns "{{ source }}" templates into
// expression callables.
func (f *frame) text(s string) (any, error) {
	s = f.sub(s)
	e, ok, err := markup.ParseTemplate(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.file, err)
	}
	if ok {
		return e, nil
	}
	return s, nil
}

// scalar applies text to strings and passes other values through.
func (f *frame) scalar(v any) (any, error) {
	if s, ok := v.(string); ok {
		return f.text(s)
	}
	return v, nil
}

func dirOf(filename string) string {
	if strings.HasPrefix(filename, "<") {
		return "."
	}
	return filepath.Dir(filename)
}

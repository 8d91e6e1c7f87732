package parser

import (
	"fmt"
	"net/url"
	"strings"
)

// _maxIncludeDepth prevents runaway transitive includes.
const _maxIncludeDepth = 64

// includeState tracks ancestry for cycle detection and caches converted
// documents so diamond includes resolve once.
type includeState struct {
	ancestors   []string
	ancestorSet map[string]struct{}
	cache       map[string][]any
}

func newIncludeState() *includeState {
	return &includeState{
		ancestorSet: make(map[string]struct{}),
		cache:       make(map[string][]any),
	}
}

// push adds a path to the ancestry stack, returning an error on cycles or
// depth overflow.
func (s *includeState) push(absPath string) error {
	if _, ok := s.ancestorSet[absPath]; ok {
		cycle := make([]string, len(s.ancestors)+1)
		copy(cycle, s.ancestors)
		cycle[len(s.ancestors)] = absPath
		return fmt.Errorf("%w: %s", ErrCircularInclude, strings.Join(cycle, " -> "))
	}
	if len(s.ancestors) >= _maxIncludeDepth {
		return fmt.Errorf("%w: depth %d at %s", ErrIncludeDepth, len(s.ancestors), absPath)
	}
	s.ancestors = append(s.ancestors, absPath)
	s.ancestorSet[absPath] = struct{}{}
	return nil
}

func (s *includeState) pop() {
	last := s.ancestors[len(s.ancestors)-1]
	s.ancestors = s.ancestors[:len(s.ancestors)-1]
	delete(s.ancestorSet, last)
}

// cacheKey produces a dedup key from absolute path and sorted, percent-encoded
// param values.
func cacheKey(absPath string, params map[string]string) string {
	if len(params) == 0 {
		return absPath
	}
	vals := make(url.Values, len(params))
	for k, v := range params {
		vals.Set(k, v)
	}
	return absPath + "?" + vals.Encode()
}

// includeDirective is a parsed "#include".
type includeDirective struct {
	source string
	params map[string]string
}

func (d *includeDirective) setParam(name, value string) error {
	if _, dup := d.params[name]; dup {
		return fmt.Errorf("include %q: param %q: %w", d.source, name, ErrDuplicateParam)
	}
	d.params[name] = value
	return nil
}

// include resolves inc relative to the including file and returns the specs
// of the included document, to be spliced in place.
func (l *loader) include(inc includeDirective, fromFile string) ([]any, error) {
	rc, absPath, err := l.resolver.Resolve(inc.source, dirOf(fromFile))
	if err != nil {
		return nil, fmt.Errorf("%s: include %q: %w", fromFile, inc.source, err)
	}
	defer func() { _ = rc.Close() }()

	if err := l.state.push(absPath); err != nil {
		return nil, fmt.Errorf("%s: %w", fromFile, err)
	}
	defer l.state.pop()

	key := cacheKey(absPath, inc.params)
	if cached, ok := l.state.cache[key]; ok {
		return cached, nil
	}

	format, err := FormatOf(absPath)
	if err != nil {
		return nil, fmt.Errorf("%s: include %q: %w", fromFile, inc.source, err)
	}
	specs, err := l.load(rc, absPath, format, inc.params)
	if err != nil {
		return nil, fmt.Errorf("%s: include %q: %w", fromFile, inc.source, err)
	}
	l.state.cache[key] = specs
	return specs, nil
}

package markup

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/ndisidore/mixup/pkg/dom"
)

// _maxFlattenDepth bounds nested values and callables returning callables.
const _maxFlattenDepth = 256

// Flatten coerces v into a single string. ok is false when the value is
// absent: nil, the empty string, or a map or sequence that flattens to
// nothing. Maps render as "key: value" pairs ordered by key, sequences join
// their surviving elements with a space, and callables are invoked with args
// before their result is flattened.
func Flatten(v any, args ...any) (s string, ok bool, err error) {
	return flatten(v, args, 0)
}

func flatten(v any, args []any, depth int) (string, bool, error) {
	if depth > _maxFlattenDepth {
		return "", false, fmt.Errorf("flattening: %w", ErrMaxDepthExceeded)
	}
	if isNil(v) {
		return "", false, nil
	}
	if s, ok := scalarString(v); ok {
		return s, s != "", nil
	}
	if es, ok := entries(v); ok {
		return flattenEntries(es, args, depth)
	}
	if fn, ok := callable(v); ok {
		out, err := invoke(fn, args)
		if err != nil {
			return "", false, err
		}
		return flatten(out, args, depth+1)
	}
	if seq, ok := sequence(v); ok {
		return flattenSequence(seq, args, depth)
	}
	if tok, ok := v.(etree.Token); ok {
		s := dom.String(tok)
		return s, s != "", nil
	}
	s := fmt.Sprint(v)
	return s, s != "", nil
}

func flattenEntries(es []Pair, args []any, depth int) (string, bool, error) {
	sorted := make([]Pair, len(es))
	copy(sorted, es)
	sortPairs(sorted)

	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		s, ok, err := flatten(p.Value, args, depth+1)
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}
		parts = append(parts, keyString(p.Key)+": "+s)
	}
	if len(parts) == 0 {
		return "", false, nil
	}
	return strings.Join(parts, " "), true, nil
}

func flattenSequence(seq []any, args []any, depth int) (string, bool, error) {
	parts := make([]string, 0, len(seq))
	for _, item := range seq {
		s, ok, err := flatten(item, args, depth+1)
		if err != nil {
			return "", false, err
		}
		if !ok || s == "" {
			continue
		}
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return "", false, nil
	}
	return strings.Join(parts, " "), true, nil
}

// flattenString is Flatten with absence mapped to "".
func flattenString(v any, args []any) (string, error) {
	s, _, err := flatten(v, args, 0)
	return s, err
}

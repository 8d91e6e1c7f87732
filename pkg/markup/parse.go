package markup

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/beevik/etree"
	"github.com/sahilm/fuzzy"

	"github.com/ndisidore/mixup/pkg/dom"
)

// Reserved marker keys. Keys starting with MarkerPrefix are never attributes.
const (
	MarkerPrefix                = "#"
	MarkerComment               = "#comment"
	MarkerCData                 = "#cdata"
	MarkerDoctype               = "#doctype"
	MarkerDTD                   = "#dtd"
	MarkerElem                  = "#elem"
	MarkerElement               = "#element"
	MarkerPI                    = "#pi"
	MarkerProcessingInstruction = "#processing-instruction"
	MarkerTag                   = "#tag"
)

var (
	_reserved = []string{
		MarkerCData, MarkerComment, MarkerDoctype, MarkerDTD, MarkerElem,
		MarkerElement, MarkerPI, MarkerProcessingInstruction, MarkerTag,
	}
	// _aliases read the element name from the value and take no children.
	_aliases = []string{MarkerPrefix, MarkerElem, MarkerElement, MarkerTag}
)

// IsReserved reports whether key is one of the reserved marker keys.
func IsReserved(key string) bool {
	return slices.Contains(_reserved, key)
}

// Parse classifies one level of spec. Absent specs (nil, "", empty
// sequences and maps) return a nil Node and no error.
func Parse(spec any) (Node, error) {
	if isEmpty(spec) {
		return nil, nil
	}
	switch v := spec.(type) {
	case Node:
		return v, nil
	case etree.Token:
		return Raw{Token: v}, nil
	case *etree.Document:
		return Raw{Token: dom.DocumentNode(v)}, nil
	}
	if s, ok := scalarString(spec); ok {
		return Text{Value: s}, nil
	}
	if es, ok := entries(spec); ok {
		return parseMap(es)
	}
	if fn, ok := callable(spec); ok {
		return Call{Fn: fn}, nil
	}
	if seq, ok := sequence(spec); ok {
		return Seq(seq), nil
	}
	switch reflect.ValueOf(spec).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, fmt.Errorf("%T: %w", spec, ErrUnsupportedValue)
	default:
		return Text{Value: fmt.Sprint(spec)}, nil
	}
}

func parseMap(es []Pair) (Node, error) {
	var (
		name     any
		children []any
		marker   string
	)

	compact, special := classifyKeys(es)
	switch nameSlot, hasNameSlot := lookupNil(es); {
	case hasNameSlot:
		if seq, ok := sequence(nameSlot); ok {
			if len(seq) > 0 {
				name, children = seq[0], seq[1:]
			}
		} else {
			name = nameSlot
		}
	case len(compact) > 1:
		return nil, fmt.Errorf("%w: %d compact keys", ErrAmbiguousStructuralMap, len(compact))
	case len(compact) == 1:
		name = compact[0].Value
		if seq, ok := sequence(compact[0].Key); ok {
			children = seq
		} else {
			children = []any{compact[0].Key}
		}
	case len(special) > 1:
		keys := make([]string, len(special))
		for i := range special {
			keys[i] = keyString(special[i].Key)
		}
		return nil, fmt.Errorf("%w: marker keys %s", ErrAmbiguousStructuralMap, strings.Join(keys, ", "))
	case len(special) == 1:
		key := keyString(special[0].Key)
		switch {
		case slices.Contains(_aliases, key):
			name = special[0].Value
		case IsReserved(key):
			name, children = key, asChildren(special[0].Value)
		default:
			name, children, marker = key[len(MarkerPrefix):], asChildren(special[0].Value), key
		}
	}

	attrs := attributes(es)
	nameStr, _ := nameOf(name)

	switch nameStr {
	case MarkerComment:
		return Comment{Text: children}, nil
	case MarkerCData:
		return CData{Text: children}, nil
	case MarkerPI, MarkerProcessingInstruction:
		if len(children) == 0 {
			return nil, fmt.Errorf("%s: %w: target", nameStr, ErrMissingRequiredChildren)
		}
		return ProcInst{Target: children[0], Content: children[1:], Attrs: attrs}, nil
	case MarkerDoctype, MarkerDTD:
		if len(children) == 0 {
			return nil, fmt.Errorf("%s: %w: root name", nameStr, ErrMissingRequiredChildren)
		}
		return parseDoctype(children, attrs), nil
	case "":
		return nil, ErrMissingElementName
	default:
		return Element{Name: nameStr, Attrs: attrs, Children: children, Marker: marker}, nil
	}
}

// lookupNil finds a non-nil value stored under the nil key.
func lookupNil(es []Pair) (any, bool) {
	for _, p := range es {
		if p.Key == nil && !isNil(p.Value) {
			return p.Value, true
		}
	}
	return nil, false
}

// classifyKeys splits out compact keys (sequences, maps or nodes used as
// keys) and marker keys.
func classifyKeys(es []Pair) (compact, special []Pair) {
	for _, p := range es {
		if isNil(p.Key) {
			continue
		}
		if _, ok := p.Key.(etree.Token); ok {
			compact = append(compact, p)
			continue
		}
		if _, ok := sequence(p.Key); ok {
			compact = append(compact, p)
			continue
		}
		if _, ok := p.Key.(Map); ok {
			compact = append(compact, p)
			continue
		}
		if k, ok := stringKey(p.Key); ok && strings.HasPrefix(k, MarkerPrefix) {
			special = append(special, p)
		}
	}
	return compact, special
}

// attributes returns the string keys that are not markers, in order.
func attributes(es []Pair) []Attr {
	var out []Attr
	for _, p := range es {
		k, ok := stringKey(p.Key)
		if !ok || k == "" || strings.HasPrefix(k, MarkerPrefix) {
			continue
		}
		out = append(out, Attr{Key: k, Value: p.Value})
	}
	return out
}

func stringKey(k any) (string, bool) {
	if s, ok := k.(string); ok {
		return s, true
	}
	rv := reflect.ValueOf(k)
	if rv.IsValid() && rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

func asChildren(v any) []any {
	if isNil(v) {
		return nil
	}
	if seq, ok := sequence(v); ok {
		return seq
	}
	return []any{v}
}

// nameOf renders an element name. Sequences are joined as prefix:local.
func nameOf(v any) (string, bool) {
	if isNil(v) {
		return "", false
	}
	if s, ok := scalarString(v); ok {
		return s, s != ""
	}
	if seq, ok := sequence(v); ok {
		parts := make([]string, 0, len(seq))
		for _, p := range seq {
			if s, ok := nameOf(p); ok {
				parts = append(parts, s)
			}
		}
		s := strings.Join(parts, ":")
		return s, s != ""
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String(), s.String() != ""
	}
	return "", false
}

func parseDoctype(children []any, attrs []Attr) Doctype {
	d := Doctype{Root: children[0]}
	if len(children) > 1 {
		d.Public = children[1]
	}
	if len(children) > 2 {
		d.System = children[2]
	}
	for _, a := range attrs {
		switch a.Key {
		case "public":
			if isEmpty(d.Public) {
				d.Public = a.Value
			}
		case "system":
			if isEmpty(d.System) {
				d.System = a.Value
			}
		}
	}
	return d
}

// suggestMarker returns the reserved marker that key most likely misspells,
// or "" when nothing is close.
func suggestMarker(key string) string {
	if len(key) < 4 || IsReserved(key) {
		return ""
	}
	for _, m := range fuzzy.Find(key, _reserved) {
		if d := len(m.Str) - len(key); d >= -2 && d <= 2 {
			return m.Str
		}
	}
	return ""
}

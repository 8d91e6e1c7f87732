package markup

import (
	"cmp"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	"github.com/beevik/etree"
)

// Pair is one entry of an ordered Map.
type Pair struct {
	Key   any
	Value any
}

// Map is an ordered key/value mapping. Unlike Go maps it can carry nil
// keys and sequence keys, which the structural grammar relies on.
type Map []Pair

// M builds a Map from alternating keys and values. A trailing key without
// a value maps to nil.
func M(kv ...any) Map {
	m := make(Map, 0, (len(kv)+1)/2)
	for i := 0; i < len(kv); i += 2 {
		p := Pair{Key: kv[i]}
		if i+1 < len(kv) {
			p.Value = kv[i+1]
		}
		m = append(m, p)
	}
	return m
}

// Get returns the value of the first entry whose key equals key.
func (m Map) Get(key any) (any, bool) {
	for _, p := range m {
		if keyEqual(p.Key, key) {
			return p.Value, true
		}
	}
	return nil, false
}

func keyEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := scalarString(a)
	bs, bok := scalarString(b)
	return aok && bok && as == bs
}

// entries returns the pairs of a map-like value. Go maps are ordered by the
// string form of their keys so classification stays deterministic.
func entries(v any) ([]Pair, bool) {
	switch m := v.(type) {
	case Map:
		return m, true
	case map[string]any:
		out := make([]Pair, 0, len(m))
		for _, k := range slices.Sorted(maps.Keys(m)) {
			out = append(out, Pair{Key: k, Value: m[k]})
		}
		return out, true
	case map[any]any:
		out := make([]Pair, 0, len(m))
		for k, val := range m {
			out = append(out, Pair{Key: k, Value: val})
		}
		sortPairs(out)
		return out, true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map {
		return nil, false
	}
	out := make([]Pair, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out = append(out, Pair{Key: iter.Key().Interface(), Value: iter.Value().Interface()})
	}
	sortPairs(out)
	return out, true
}

func sortPairs(ps []Pair) {
	slices.SortStableFunc(ps, func(a, b Pair) int {
		return cmp.Compare(keyString(a.Key), keyString(b.Key))
	})
}

func keyString(k any) string {
	if k == nil {
		return ""
	}
	if s, ok := scalarString(k); ok {
		return s
	}
	return fmt.Sprint(k)
}

// sequence returns the elements of a sequence-like value. Strings, byte
// slices and Maps are not sequences.
func sequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case nil, Map, []byte, string:
		return nil, false
	case []any:
		return s, true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []Map:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	case []etree.Token:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	default:
		return nil, false
	}
}

// scalarString renders strings, booleans and numbers (including named
// types built on them).
func scalarString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case bool:
		return strconv.FormatBool(s), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case uint64:
		return strconv.FormatUint(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), true
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	default:
		return "", false
	}
}

// isNil reports nil interfaces and typed nil pointers, maps, slices and funcs.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// isEmpty reports values that compile to nothing: nil, "", and empty
// sequences or maps.
func isEmpty(v any) bool {
	if isNil(v) {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	if seq, ok := sequence(v); ok {
		return len(seq) == 0
	}
	if es, ok := entries(v); ok {
		return len(es) == 0
	}
	return false
}

package parser

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ndisidore/mixup/pkg/markup"
)

const (
	_yamlNullTag  = "!!null"
	_yamlMergeTag = "!!merge"
)

// loadYAML converts a YAML or JSON document. Mappings keep their key order;
// a null key (or the empty key, for JSON) is the element name slot, and
// sequence keys are compact-form keys. A string key spelled "null" is an
// ordinary attribute.
func (l *loader) loadYAML(r io.Reader, filename string, params map[string]string) ([]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	raw, err := decodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	var items []any
	switch v := raw.(type) {
	case nil:
	case []any:
		items = v
	default:
		items = []any{v}
	}

	var (
		defs []ParamDef
		rest = make([]any, 0, len(items))
	)
	for _, item := range items {
		ms, ok := item.(yaml.MapSlice)
		if !ok || !hasKey(ms, NodeParam) {
			rest = append(rest, item)
			continue
		}
		pd, err := parseParamMap(ms, filename)
		if err != nil {
			return nil, err
		}
		defs = append(defs, pd)
	}

	f, err := newFrame(filename, defs, params)
	if err != nil {
		return nil, err
	}
	return l.yamlSeq(rest, f)
}

// decodeYAML decodes the first document of data into ordered maps, slices
// and scalars. It walks the node tree rather than unmarshaling into a map
// because keys must keep their YAML type: a `~` key is the nil name slot
// while a quoted "null" is an attribute, and a sequence or mapping key is a
// compact-form key.
func decodeYAML(data []byte) (any, error) {
	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yamlv3.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	d := yamlDecoder{expanding: make(map[*yamlv3.Node]bool)}
	return d.value(doc.Content[0])
}

type yamlDecoder struct {
	expanding map[*yamlv3.Node]bool
}

func (d *yamlDecoder) value(n *yamlv3.Node) (any, error) {
	switch n.Kind {
	case yamlv3.MappingNode:
		ms := make(yaml.MapSlice, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			items, err := d.pair(n.Content[i], n.Content[i+1])
			if err != nil {
				return nil, err
			}
			ms = append(ms, items...)
		}
		return ms, nil
	case yamlv3.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := d.value(item)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yamlv3.AliasNode:
		if d.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: alias %q refers to itself: %w", n.Line, n.Value, ErrTypeMismatch)
		}
		d.expanding[n.Alias] = true
		defer delete(d.expanding, n.Alias)
		return d.value(n.Alias)
	case yamlv3.ScalarNode:
		if n.ShortTag() == _yamlNullTag {
			return nil, nil
		}
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unexpected YAML node kind %d: %w", n.Line, n.Kind, ErrTypeMismatch)
	}
}

// pair converts one mapping entry. A merge key (`<<`) splices the merged
// mapping's entries in place.
func (d *yamlDecoder) pair(k, v *yamlv3.Node) ([]yaml.MapItem, error) {
	val, err := d.value(v)
	if err != nil {
		return nil, err
	}
	if k.Kind == yamlv3.ScalarNode && k.ShortTag() == _yamlMergeTag {
		switch val := val.(type) {
		case yaml.MapSlice:
			return val, nil
		case []any:
			var items []yaml.MapItem
			for _, m := range val {
				ms, ok := m.(yaml.MapSlice)
				if !ok {
					return nil, fmt.Errorf("line %d: merge value %v: %w", k.Line, m, ErrTypeMismatch)
				}
				items = append(items, ms...)
			}
			return items, nil
		default:
			return nil, fmt.Errorf("line %d: merge value %v: %w", k.Line, val, ErrTypeMismatch)
		}
	}
	key, err := d.value(k)
	if err != nil {
		return nil, err
	}
	return []yaml.MapItem{{Key: key, Value: val}}, nil
}

// yamlSeq converts sequence items, splicing included documents in place.
func (l *loader) yamlSeq(items []any, f *frame) ([]any, error) {
	out := make([]any, 0, len(items))
	for i, item := range items {
		if ms, ok := item.(yaml.MapSlice); ok && hasKey(ms, NodeInclude) {
			specs, err := l.yamlInclude(ms, f)
			if err != nil {
				return nil, err
			}
			out = append(out, specs...)
			continue
		}
		v, err := l.yamlValue(item, f)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (l *loader) yamlValue(v any, f *frame) (any, error) {
	switch v := v.(type) {
	case yaml.MapSlice:
		return l.yamlMap(v, f)
	case []any:
		return l.yamlSeq(v, f)
	default:
		return f.scalar(v)
	}
}

func (l *loader) yamlMap(ms yaml.MapSlice, f *frame) (any, error) {
	switch {
	case hasKey(ms, NodeParam):
		return nil, fmt.Errorf("%s: %w", f.file, ErrMisplacedParam)
	case hasKey(ms, NodeInclude):
		specs, err := l.yamlInclude(ms, f)
		if err != nil {
			return nil, err
		}
		return specs, nil
	case len(ms) == 1 && ms[0].Key == NodeText:
		return l.yamlValue(ms[0].Value, f)
	}

	m := make(markup.Map, 0, len(ms))
	for _, item := range ms {
		key, err := l.yamlKey(item.Key, f)
		if err != nil {
			return nil, err
		}
		val, err := l.yamlValue(item.Value, f)
		if err != nil {
			return nil, fmt.Errorf("key %v: %w", item.Key, err)
		}
		m = append(m, markup.Pair{Key: key, Value: val})
	}
	return m, nil
}

func (l *loader) yamlKey(k any, f *frame) (any, error) {
	switch k := k.(type) {
	case nil:
		return nil, nil
	case string:
		if k == _nullKey {
			return nil, nil
		}
		return f.sub(k), nil
	case yaml.MapSlice, []any:
		return l.yamlValue(k, f)
	default:
		return k, nil
	}
}

// yamlInclude handles `{"#include": path, "with": {name: value}}`.
func (l *loader) yamlInclude(ms yaml.MapSlice, f *frame) ([]any, error) {
	source, ok := lookup(ms, NodeInclude).(string)
	if !ok {
		return nil, fmt.Errorf("%s: %s: %w", f.file, NodeInclude, ErrTypeMismatch)
	}
	inc := includeDirective{source: f.sub(source), params: make(map[string]string)}

	switch with := lookup(ms, PropWith).(type) {
	case nil:
	case yaml.MapSlice:
		for _, item := range with {
			name, ok := item.Key.(string)
			if !ok {
				return nil, fmt.Errorf("%s: include %q: param %v: %w", f.file, inc.source, item.Key, ErrTypeMismatch)
			}
			if err := inc.setParam(name, f.sub(fmt.Sprint(item.Value))); err != nil {
				return nil, fmt.Errorf("%s: %w", f.file, err)
			}
		}
	default:
		return nil, fmt.Errorf("%s: include %q: %s: %w", f.file, inc.source, PropWith, ErrTypeMismatch)
	}
	return l.include(inc, f.file)
}

// parseParamMap parses `{"#param": name, "default": value}`.
func parseParamMap(ms yaml.MapSlice, filename string) (ParamDef, error) {
	name, ok := lookup(ms, NodeParam).(string)
	if !ok || name == "" {
		return ParamDef{}, fmt.Errorf("%s: %s: %w", filename, NodeParam, ErrMissingArgument)
	}
	pd := ParamDef{Name: name, Required: true}
	if hasKey(ms, PropDefault) {
		def := lookup(ms, PropDefault)
		if def != nil {
			pd.Default = fmt.Sprint(def)
		}
		pd.Required = false
	}
	return pd, nil
}

func hasKey(ms yaml.MapSlice, key string) bool {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == key {
			return true
		}
	}
	return false
}

func lookup(ms yaml.MapSlice, key string) any {
	for _, item := range ms {
		if k, ok := item.Key.(string); ok && k == key {
			return item.Value
		}
	}
	return nil
}

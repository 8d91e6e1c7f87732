package markup

import (
	"fmt"

	"github.com/ndisidore/mixup/pkg/dom"
)

// Outline classifies spec recursively and returns it as plain maps and
// slices. Callables are not invoked.
func Outline(spec any) (any, error) {
	return outline(spec, 0)
}

func outline(spec any, depth int) (any, error) {
	if depth > DefaultMaxDepth {
		return nil, ErrMaxDepthExceeded
	}
	n, err := Parse(spec)
	if err != nil {
		return nil, err
	}

	switch v := n.(type) {
	case nil:
		return nil, nil
	case Seq:
		return outlineList(v, depth)
	case Call:
		return map[string]any{"callable": describeCallable(spec)}, nil
	case Element:
		out := map[string]any{"element": v.Name}
		if len(v.Attrs) > 0 {
			attrs := make(map[string]any, len(v.Attrs))
			for _, a := range v.Attrs {
				attrs[a.Key] = outlineValue(a.Value)
			}
			out["attrs"] = attrs
		}
		if len(v.Children) > 0 {
			kids, err := outlineList(v.Children, depth)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", v.Name, err)
			}
			out["children"] = kids
		}
		return out, nil
	case Comment:
		return map[string]any{"comment": outlineValue(v.Text)}, nil
	case CData:
		return map[string]any{"cdata": outlineValue(v.Text)}, nil
	case ProcInst:
		out := map[string]any{"pi": outlineValue(v.Target)}
		if len(v.Content) > 0 {
			out["content"] = outlineValue(v.Content)
		}
		return out, nil
	case Doctype:
		out := map[string]any{"doctype": outlineValue(v.Root)}
		if !isEmpty(v.Public) {
			out["public"] = outlineValue(v.Public)
		}
		if !isEmpty(v.System) {
			out["system"] = outlineValue(v.System)
		}
		return out, nil
	case Raw:
		return map[string]any{"node": dom.String(v.Token)}, nil
	case Text:
		return v.Value, nil
	default:
		return nil, fmt.Errorf("%T: %w", n, ErrUnsupportedValue)
	}
}

func outlineList(items []any, depth int) ([]any, error) {
	out := make([]any, 0, len(items))
	for _, item := range items {
		o, err := outline(item, depth+1)
		if err != nil {
			return nil, err
		}
		if o != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

// outlineValue renders an attribute or text value without invoking
// callables.
func outlineValue(v any) any {
	if _, ok := callable(v); ok {
		return describeCallable(v)
	}
	if seq, ok := sequence(v); ok {
		out := make([]any, len(seq))
		for i := range seq {
			out[i] = outlineValue(seq[i])
		}
		return out
	}
	if es, ok := entries(v); ok {
		out := make(map[string]any, len(es))
		for _, p := range es {
			out[keyString(p.Key)] = outlineValue(p.Value)
		}
		return out
	}
	if s, ok := scalarString(v); ok {
		return s
	}
	if v == nil {
		return nil
	}
	return fmt.Sprint(v)
}

func describeCallable(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", v)
}

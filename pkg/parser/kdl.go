package parser

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	"github.com/ndisidore/mixup/pkg/markup"
)

// loadKDL converts a KDL document. Every node becomes one structural map:
// the node name is the element name, arguments and child nodes are its
// children, properties are its attributes.
func (l *loader) loadKDL(r io.Reader, filename string, params map[string]string) ([]any, error) {
	doc, err := kdl.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	var (
		defs []ParamDef
		rest = make([]*document.Node, 0, len(doc.Nodes))
	)
	for _, node := range doc.Nodes {
		if node.Name.ValueString() != NodeParam {
			rest = append(rest, node)
			continue
		}
		pd, err := parseParamNode(node, filename)
		if err != nil {
			return nil, err
		}
		defs = append(defs, pd)
	}

	f, err := newFrame(filename, defs, params)
	if err != nil {
		return nil, err
	}
	return l.kdlNodes(rest, f)
}

func (l *loader) kdlNodes(nodes []*document.Node, f *frame) ([]any, error) {
	out := make([]any, 0, len(nodes))
	for _, node := range nodes {
		switch name := f.sub(node.Name.ValueString()); name {
		case NodeParam:
			return nil, fmt.Errorf("%s: %w", f.file, ErrMisplacedParam)
		case NodeInclude:
			inc, err := parseIncludeNode(node, f)
			if err != nil {
				return nil, err
			}
			specs, err := l.include(inc, f.file)
			if err != nil {
				return nil, err
			}
			out = append(out, specs...)
		case NodeText:
			args, err := kdlArguments(node, f)
			if err != nil {
				return nil, err
			}
			out = append(out, args...)
		default:
			spec, err := l.kdlNode(node, name, f)
			if err != nil {
				return nil, err
			}
			out = append(out, spec)
		}
	}
	return out, nil
}

func (l *loader) kdlNode(node *document.Node, name string, f *frame) (markup.Map, error) {
	children, err := kdlArguments(node, f)
	if err != nil {
		return nil, err
	}
	kids, err := l.kdlNodes(node.Children, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	children = append(children, kids...)

	m := make(markup.Map, 0, len(node.Properties)+1)
	if strings.HasPrefix(name, markup.MarkerPrefix) {
		m = append(m, markup.Pair{Key: name, Value: children})
	} else {
		m = append(m, markup.Pair{Key: nil, Value: append([]any{name}, children...)})
	}
	for _, k := range slices.Sorted(maps.Keys(node.Properties)) {
		v, err := f.scalar(node.Properties[k].ResolvedValue())
		if err != nil {
			return nil, fmt.Errorf("%s: property %q: %w", name, k, err)
		}
		m = append(m, markup.Pair{Key: f.sub(k), Value: v})
	}
	return m, nil
}

func kdlArguments(node *document.Node, f *frame) ([]any, error) {
	out := make([]any, 0, len(node.Arguments))
	for i, arg := range node.Arguments {
		v, err := f.scalar(arg.ResolvedValue())
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", node.Name.ValueString(), i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseParamNode parses `"#param" "name" default="value"`. A param without a
// default is required.
func parseParamNode(node *document.Node, filename string) (ParamDef, error) {
	name, err := stringArg(node, 0)
	if err != nil {
		return ParamDef{}, fmt.Errorf("%s: %s: %w", filename, NodeParam, err)
	}
	pd := ParamDef{Name: name, Required: true}
	if v, ok := node.Properties[PropDefault]; ok {
		def, ok := v.ResolvedValue().(string)
		if !ok {
			return ParamDef{}, fmt.Errorf("%s: param %q: default: %w", filename, name, ErrTypeMismatch)
		}
		pd.Default, pd.Required = def, false
	}
	return pd, nil
}

// parseIncludeNode parses `"#include" "path" key="value" { key "value"; }`.
// Properties and child nodes both pass params.
func parseIncludeNode(node *document.Node, f *frame) (includeDirective, error) {
	source, err := stringArg(node, 0)
	if err != nil {
		return includeDirective{}, fmt.Errorf("%s: %s: %w", f.file, NodeInclude, err)
	}
	inc := includeDirective{
		source: f.sub(source),
		params: make(map[string]string, len(node.Properties)+len(node.Children)),
	}

	for _, k := range slices.Sorted(maps.Keys(node.Properties)) {
		v, err := kdlString(node.Properties[k])
		if err != nil {
			return includeDirective{}, fmt.Errorf("%s: include %q: param %q: %w", f.file, inc.source, k, err)
		}
		if err := inc.setParam(k, f.sub(v)); err != nil {
			return includeDirective{}, fmt.Errorf("%s: %w", f.file, err)
		}
	}
	for _, child := range node.Children {
		name := child.Name.ValueString()
		v, err := stringArg(child, 0)
		if err != nil {
			return includeDirective{}, fmt.Errorf("%s: include %q: param %q: %w", f.file, inc.source, name, err)
		}
		if err := inc.setParam(name, f.sub(v)); err != nil {
			return includeDirective{}, fmt.Errorf("%s: %w", f.file, err)
		}
	}
	return inc, nil
}

// stringArg returns the string value at the given argument index.
func stringArg(node *document.Node, idx int) (string, error) {
	if idx >= len(node.Arguments) {
		return "", fmt.Errorf("argument %d: %w", idx, ErrMissingArgument)
	}
	v, err := kdlString(node.Arguments[idx])
	if err != nil {
		return "", fmt.Errorf("argument %d: %w", idx, err)
	}
	return v, nil
}

func kdlString(v *document.Value) (string, error) {
	s, ok := v.ResolvedValue().(string)
	if !ok {
		return "", fmt.Errorf("%v is not a string: %w", v.ResolvedValue(), ErrTypeMismatch)
	}
	return s, nil
}

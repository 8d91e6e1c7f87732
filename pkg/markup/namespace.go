package markup

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
)

var _xmlnsPattern = regexp.MustCompile(`(?i)^xmlns(?::(.*))?$`)

// QName is an element or attribute name split on its first colon.
type QName struct {
	Prefix string
	Local  string
}

// String joins the name back together.
func (q QName) String() string {
	if q.Prefix == "" {
		return q.Local
	}
	return q.Prefix + ":" + q.Local
}

// SplitQName splits name on its first colon. A leading or trailing colon
// leaves the whole name as the local part.
func SplitQName(name string) QName {
	i := strings.IndexByte(name, ':')
	if i <= 0 || i == len(name)-1 {
		return QName{Local: name}
	}
	return QName{Prefix: name[:i], Local: name[i+1:]}
}

// Resolution is the outcome of namespace resolution for one element.
type Resolution struct {
	Name QName
	// Namespaces maps prefix ("" for the default namespace) to URI for the
	// declarations the element itself carries.
	Namespaces map[string]string
	// Attrs holds the flattened plain attributes.
	Attrs map[string]string
}

// Prefixes returns the declared prefixes in emission order.
func (r Resolution) Prefixes() []string {
	return slices.Sorted(maps.Keys(r.Namespaces))
}

// AttrKeys returns the attribute keys in emission order.
func (r Resolution) AttrKeys() []string {
	return slices.Sorted(maps.Keys(r.Attrs))
}

// ResolveNamespaces computes the declarations and attributes of a new
// element. inScope holds the declarations visible at the pseudo-parent,
// keyed "xmlns" or "xmlns:<prefix>". Every prefix used by the element name
// or an attribute key must end up bound, either declared here or inherited.
// Inherited bindings are checked but not declared again.
func ResolveNamespaces(name string, attrs []Attr, inScope map[string]string, args []any) (Resolution, error) {
	res := Resolution{
		Name:       SplitQName(name),
		Namespaces: make(map[string]string),
		Attrs:      make(map[string]string),
	}
	pending := make(map[string]struct{})

	for _, a := range attrs {
		v, ok, err := flatten(a.Value, args, 0)
		if err != nil {
			return Resolution{}, fmt.Errorf("attribute %q: %w", a.Key, err)
		}
		if !ok {
			continue
		}
		if m := _xmlnsPattern.FindStringSubmatch(a.Key); m != nil {
			res.Namespaces[m[1]] = v
			continue
		}
		res.Attrs[a.Key] = v
	}

	for k := range res.Attrs {
		if p := SplitQName(k).Prefix; p != "" {
			if _, ok := res.Namespaces[p]; !ok {
				pending[p] = struct{}{}
			}
		}
	}
	if p := res.Name.Prefix; p != "" {
		if _, ok := res.Namespaces[p]; !ok {
			pending[p] = struct{}{}
		}
	}

	delete(res.Namespaces, "xml")
	delete(pending, "xml")

	for p := range pending {
		key := "xmlns"
		if p != "" {
			key += ":" + p
		}
		if _, ok := inScope[key]; ok {
			delete(pending, p)
		}
	}
	delete(pending, "")

	if len(pending) > 0 {
		unbound := slices.Sorted(maps.Keys(pending))
		return Resolution{}, fmt.Errorf("%w: %s on %q", ErrUnresolvableNamespacePrefix, strings.Join(unbound, ", "), name)
	}
	return res, nil
}

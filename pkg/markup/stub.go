package markup

import (
	"context"
	"maps"
	"slices"

	"github.com/beevik/etree"
)

// XHTML namespace declared on stub roots.
const XHTMLNamespace = "http://www.w3.org/1999/xhtml"

// StubOptions describes an XHTML skeleton.
type StubOptions struct {
	// Transform is the href of an XSLT stylesheet PI placed first.
	Transform string
	// DTD holds optional public and system ids for the html doctype.
	DTD   []string
	NoDTD bool

	Title string
	Base  string
	Lang  string
	Vocab string
	// Prefix maps RDFa prefixes to URIs.
	Prefix map[string]string
	// NS adds xmlns:<prefix> declarations to the root.
	NS      map[string]string
	NoXMLNS bool
	// Attrs adds extra attributes to the root.
	Attrs map[string]any

	Link   []any
	Meta   []any
	Style  []any
	Script []any
	// Head and Body replace the generated head and body specs.
	Head any
	Body any
	// Content is the body content.
	Content []any
}

// StubSpec assembles the spec for an XHTML skeleton.
func StubSpec(o StubOptions) Seq {
	var spec Seq

	if o.Transform != "" {
		spec = append(spec, M(nil, []any{MarkerPI, "xml-stylesheet"}, "type", "text/xsl", "href", o.Transform))
	}
	if !o.NoDTD {
		dtd := []any{MarkerDTD, "html"}
		for _, id := range o.DTD {
			dtd = append(dtd, id)
		}
		spec = append(spec, M(nil, dtd))
	}

	head := o.Head
	if isEmpty(head) {
		kids := []any{"head"}
		if o.Title != "" {
			kids = append(kids, M("#title", o.Title))
		}
		if o.Base != "" {
			kids = append(kids, M(nil, "base", "href", o.Base))
		}
		kids = append(kids, o.Link, o.Meta, o.Style, o.Script)
		head = M(nil, kids)
	}
	body := o.Body
	if isEmpty(body) {
		body = M(nil, append([]any{"body"}, o.Content...))
	}

	root := M(nil, []any{"html", head, body})
	if o.Vocab != "" {
		root = append(root, Pair{Key: "vocab", Value: o.Vocab})
	}
	if o.Lang != "" {
		root = append(root, Pair{Key: "lang", Value: o.Lang})
	}
	if len(o.Prefix) > 0 {
		root = append(root, Pair{Key: "prefix", Value: o.Prefix})
	}
	for _, p := range slices.Sorted(maps.Keys(o.NS)) {
		root = append(root, Pair{Key: "xmlns:" + p, Value: o.NS[p]})
	}
	if !o.NoXMLNS {
		root = append(root, Pair{Key: "xmlns", Value: XHTMLNamespace})
		if o.Lang != "" {
			root = append(root, Pair{Key: "xml:lang", Value: o.Lang})
		}
	}
	for _, k := range slices.Sorted(maps.Keys(o.Attrs)) {
		root = append(root, Pair{Key: k, Value: o.Attrs[k]})
	}

	return append(spec, root)
}

// XHTMLStub compiles an XHTML skeleton and returns the last node created.
func XHTMLStub(ctx context.Context, o StubOptions, opts ...Option) (etree.Token, error) {
	return Compile(ctx, StubSpec(o), opts...)
}

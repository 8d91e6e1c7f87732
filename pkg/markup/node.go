// Package markup compiles declarative spec values into document nodes.
//
// A spec is a nested value built from maps, sequences, callables, scalars and
// existing nodes. Parse classifies one level of it into a Node; Compile walks
// the classified tree, creating nodes through package dom and attaching each
// at the requested adjacency target.
package markup

import "github.com/beevik/etree"

// Node is one classified level of a spec. Children are kept as raw spec
// values and classified when they are compiled, since callables may return
// fresh specs at compile time.
type Node interface {
	node()
}

// Attr is one raw attribute of a structural map, in declaration order.
type Attr struct {
	Key   string
	Value any
}

type (
	// Seq is an ordered list of specs compiled side by side.
	Seq []any

	// Call is a spec produced on demand.
	Call struct {
		Fn Func
	}

	// Element creates an element named Name (optionally prefix:local).
	Element struct {
		Name     string
		Attrs    []Attr
		Children []any
		// Marker is the non-reserved "#name" key the element came from, if any.
		Marker string
	}

	// Comment creates a comment whose text is the flattened Text.
	Comment struct {
		Text any
	}

	// ProcInst creates a processing instruction. Without Content, the
	// content is rendered from Attrs.
	ProcInst struct {
		Target  any
		Content []any
		Attrs   []Attr
	}

	// Doctype declares the document type on the owning document.
	Doctype struct {
		Root   any
		Public any
		System any
	}

	// CData creates a CDATA section whose text is the flattened Text.
	CData struct {
		Text any
	}

	// Raw attaches a deep copy of an existing node.
	Raw struct {
		Token etree.Token
	}

	// Text creates a text node.
	Text struct {
		Value string
	}
)

func (Seq) node()      {}
func (Call) node()     {}
func (Element) node()  {}
func (Comment) node()  {}
func (ProcInst) node() {}
func (Doctype) node()  {}
func (CData) node()    {}
func (Raw) node()      {}
func (Text) node()     {}

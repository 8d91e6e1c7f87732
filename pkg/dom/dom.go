// Package dom adapts etree documents to the node operations the markup
// compiler needs: allocation, attachment, namespace lookup and copying.
//
// A document is represented by the embedded root container of an
// *etree.Document (parentless, empty tag). A fragment is a detached element
// tagged FragmentTag; attaching a fragment moves its children, never the
// fragment itself.
package dom

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// Sentinel errors for tree mutations.
var (
	ErrNilNode     = errors.New("nil node")
	ErrNoParent    = errors.New("node has no parent")
	ErrNotElement  = errors.New("node is not an element")
	ErrNotDocument = errors.New("node is not a document")
)

// FragmentTag is the tag carried by detached fragment containers.
const FragmentTag = "#document-fragment"

const _doctypePrefix = "DOCTYPE "

// NewDocument returns an empty document. A non-empty version adds an XML
// declaration as the first child.
func NewDocument(version string) *etree.Document {
	doc := etree.NewDocument()
	if version != "" {
		doc.CreateProcInst("xml", fmt.Sprintf(`version="%s" encoding="UTF-8"`, version))
	}
	return doc
}

// DocumentNode returns the node that stands for doc in tree operations.
func DocumentNode(doc *etree.Document) *etree.Element {
	return &doc.Element
}

// NewFragment returns a detached container for batching siblings.
func NewFragment() *etree.Element {
	return etree.NewElement(FragmentTag)
}

// IsDocument reports whether t is a document node.
func IsDocument(t etree.Token) bool {
	e, ok := asElement(t)
	return ok && e.Parent() == nil && e.Space == "" && e.Tag == ""
}

// IsFragment reports whether t is a detached fragment.
func IsFragment(t etree.Token) bool {
	e, ok := asElement(t)
	return ok && e.Parent() == nil && e.Space == "" && e.Tag == FragmentTag
}

// IsElement reports whether t is a real element (not a document or fragment).
func IsElement(t etree.Token) bool {
	_, ok := asElement(t)
	return ok && !IsDocument(t) && !IsFragment(t)
}

// IsText reports whether t is a text node. CDATA sections are not text.
func IsText(t etree.Token) bool {
	cd, ok := t.(*etree.CharData)
	return ok && !cd.IsCData()
}

// IsDoctype reports whether t is a doctype declaration.
func IsDoctype(t etree.Token) bool {
	d, ok := t.(*etree.Directive)
	return ok && strings.HasPrefix(d.Data, _doctypePrefix)
}

func asElement(t etree.Token) (*etree.Element, bool) {
	e, ok := t.(*etree.Element)
	return e, ok && e != nil
}

// AsElement returns t as an element container.
func AsElement(t etree.Token) (*etree.Element, error) {
	e, ok := asElement(t)
	if !ok {
		return nil, fmt.Errorf("%T: %w", t, ErrNotElement)
	}
	return e, nil
}

// NewElement creates a detached element from a qualified name.
func NewElement(qname string) *etree.Element {
	return etree.NewElement(qname)
}

// NewText creates a detached text node.
func NewText(text string) *etree.CharData {
	return etree.NewText(text)
}

// NewCData creates a detached CDATA section.
func NewCData(text string) *etree.CharData {
	return etree.NewCData(text)
}

// NewComment creates a detached comment.
func NewComment(text string) *etree.Comment {
	return etree.NewComment(text)
}

// NewProcInst creates a detached processing instruction.
func NewProcInst(target, content string) *etree.ProcInst {
	return etree.NewProcInst(target, content)
}

// SetAttr sets (or overwrites) an attribute on el.
func SetAttr(el *etree.Element, key, value string) {
	el.CreateAttr(key, value)
}

// AddNamespace declares prefix on el. An empty prefix declares the default
// namespace.
func AddNamespace(el *etree.Element, prefix, uri string) {
	if prefix == "" {
		el.CreateAttr("xmlns", uri)
		return
	}
	el.CreateAttr("xmlns:"+prefix, uri)
}

// Namespaces returns the declarations in scope at t, keyed "xmlns" or
// "xmlns:<prefix>". The nearest declaration wins.
func Namespaces(t etree.Token) map[string]string {
	out := make(map[string]string)
	e, ok := asElement(t)
	if !ok {
		e = t.Parent()
	}
	for ; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			var key string
			switch {
			case a.Space == "" && a.Key == "xmlns":
				key = "xmlns"
			case a.Space == "xmlns":
				key = "xmlns:" + a.Key
			default:
				continue
			}
			if _, seen := out[key]; !seen {
				out[key] = a.Value
			}
		}
	}
	return out
}

// ParentOf returns the parent of t, or nil for detached nodes.
func ParentOf(t etree.Token) *etree.Element {
	if t == nil {
		return nil
	}
	return t.Parent()
}

// ChildrenOf returns a snapshot of the children of t.
func ChildrenOf(t etree.Token) []etree.Token {
	e, ok := asElement(t)
	if !ok {
		return nil
	}
	return slices.Clone(e.Child)
}

// Top returns the outermost ancestor of t (t itself when t is a detached
// element), or nil for a detached leaf.
func Top(t etree.Token) *etree.Element {
	e, ok := asElement(t)
	if !ok {
		e = t.Parent()
	}
	if e == nil {
		return nil
	}
	for e.Parent() != nil {
		e = e.Parent()
	}
	return e
}

// Duplicate returns a deep, detached copy of t. Documents duplicate into a
// fragment holding copies of their children.
func Duplicate(t etree.Token) etree.Token {
	switch v := t.(type) {
	case *etree.Element:
		if IsDocument(v) {
			frag := NewFragment()
			for _, c := range v.Child {
				frag.AddChild(Duplicate(c))
			}
			return frag
		}
		return v.Copy()
	case *etree.CharData:
		if v.IsCData() {
			return etree.NewCData(v.Data)
		}
		return etree.NewText(v.Data)
	case *etree.Comment:
		return etree.NewComment(v.Data)
	case *etree.ProcInst:
		return etree.NewProcInst(v.Target, v.Inst)
	case *etree.Directive:
		return etree.NewDirective(v.Data)
	default:
		return nil
	}
}

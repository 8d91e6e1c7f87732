package dom

import (
	"fmt"

	"github.com/beevik/etree"
)

// AppendChild appends node as the last child of parent. Fragments are
// spliced: their children move over in order and the fragment stays empty.
func AppendChild(parent *etree.Element, node etree.Token) error {
	if parent == nil || node == nil {
		return ErrNilNode
	}
	if frag, ok := node.(*etree.Element); ok && IsFragment(frag) {
		for len(frag.Child) > 0 {
			parent.AddChild(frag.RemoveChildAt(0))
		}
		return nil
	}
	parent.AddChild(node)
	return nil
}

// SetRoot makes el the root element of the document node docNode, replacing
// any existing root element in place.
func SetRoot(docNode *etree.Element, el *etree.Element) error {
	if !IsDocument(docNode) {
		return ErrNotDocument
	}
	if el == nil {
		return ErrNilNode
	}
	if p := el.Parent(); p != nil {
		p.RemoveChild(el)
	}
	for i, c := range docNode.Child {
		if _, ok := c.(*etree.Element); ok {
			docNode.RemoveChildAt(i)
			docNode.InsertChildAt(i, el)
			return nil
		}
	}
	docNode.AddChild(el)
	return nil
}

// InsertBefore inserts node as the preceding sibling of ref.
func InsertBefore(ref, node etree.Token) error {
	p, err := parentForSibling(ref, node)
	if err != nil {
		return err
	}
	return insertAt(p, ref.Index(), node)
}

// InsertAfter inserts node as the following sibling of ref.
func InsertAfter(ref, node etree.Token) error {
	p, err := parentForSibling(ref, node)
	if err != nil {
		return err
	}
	return insertAt(p, ref.Index()+1, node)
}

// Replace puts node at the exact position of ref and detaches ref.
func Replace(ref, node etree.Token) error {
	p, err := parentForSibling(ref, node)
	if err != nil {
		return err
	}
	i := ref.Index()
	p.RemoveChildAt(i)
	return insertAt(p, i, node)
}

func parentForSibling(ref, node etree.Token) (*etree.Element, error) {
	if ref == nil || node == nil {
		return nil, ErrNilNode
	}
	p := ref.Parent()
	if p == nil {
		return nil, fmt.Errorf("%T: %w", ref, ErrNoParent)
	}
	return p, nil
}

func insertAt(p *etree.Element, i int, node etree.Token) error {
	if frag, ok := node.(*etree.Element); ok && IsFragment(frag) {
		for len(frag.Child) > 0 {
			p.InsertChildAt(i, frag.RemoveChildAt(0))
			i++
		}
		return nil
	}
	if old := node.Parent(); old != nil {
		if old == p && node.Index() < i {
			i--
		}
		old.RemoveChild(node)
	}
	p.InsertChildAt(i, node)
	return nil
}

// SetDoctype declares the document type on docNode. An existing declaration
// is replaced in place; otherwise it goes right before the root element, or
// last when there is no root yet.
func SetDoctype(docNode *etree.Element, root, public, system string) (*etree.Directive, error) {
	if !IsDocument(docNode) {
		return nil, ErrNotDocument
	}
	d := NewDoctype(root, public, system)
	for i, c := range docNode.Child {
		if IsDoctype(c) {
			docNode.RemoveChildAt(i)
			docNode.InsertChildAt(i, d)
			return d, nil
		}
	}
	for i, c := range docNode.Child {
		if _, ok := c.(*etree.Element); ok {
			docNode.InsertChildAt(i, d)
			return d, nil
		}
	}
	docNode.AddChild(d)
	return d, nil
}

// NewDoctype creates a detached doctype declaration.
func NewDoctype(root, public, system string) *etree.Directive {
	data := _doctypePrefix + root
	switch {
	case public != "" && system != "":
		data += fmt.Sprintf(` PUBLIC "%s" "%s"`, public, system)
	case public != "":
		data += fmt.Sprintf(` PUBLIC "%s"`, public)
	case system != "":
		data += fmt.Sprintf(` SYSTEM "%s"`, system)
	}
	return etree.NewDirective(data)
}

// Doctype returns the doctype declaration of docNode, if any.
func Doctype(docNode *etree.Element) *etree.Directive {
	for _, c := range docNode.Child {
		if IsDoctype(c) {
			d, _ := c.(*etree.Directive)
			return d
		}
	}
	return nil
}

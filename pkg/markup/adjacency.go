package markup

import (
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/ndisidore/mixup/pkg/dom"
)

// Mode says where a compiled node goes relative to its reference node.
type Mode int

// Adjacency modes.
const (
	Parent Mode = iota
	Before
	After
	Replace
)

func (m Mode) String() string {
	switch m {
	case Parent:
		return "parent"
	case Before:
		return "before"
	case After:
		return "after"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Target is an adjacency mode paired with its reference node.
type Target struct {
	Mode Mode
	Node etree.Token
}

var _dispatch = [...]func(node, ref etree.Token) error{
	Parent:  attachParent,
	Before:  func(node, ref etree.Token) error { return dom.InsertBefore(ref, node) },
	After:   func(node, ref etree.Token) error { return dom.InsertAfter(ref, node) },
	Replace: func(node, ref etree.Token) error { return dom.Replace(ref, node) },
}

// Attach puts node at the position mode describes relative to ref. Fragments
// are spliced. Sibling modes fail with ErrInvalidAdjacencyReference when ref
// has no parent.
func Attach(mode Mode, node, ref etree.Token) error {
	if mode < Parent || int(mode) >= len(_dispatch) {
		return fmt.Errorf("%w: unknown mode %s", ErrInvalidAdjacencyReference, mode)
	}
	if isNil(node) || isNil(ref) {
		return fmt.Errorf("%w: nil node", ErrInvalidAdjacencyReference)
	}
	if err := _dispatch[mode](node, ref); err != nil {
		if errors.Is(err, dom.ErrNoParent) || errors.Is(err, dom.ErrNotElement) {
			return fmt.Errorf("%w: %s: %w", ErrInvalidAdjacencyReference, mode, err)
		}
		return fmt.Errorf("attaching %s: %w", mode, err)
	}
	return nil
}

func attachParent(node, ref etree.Token) error {
	parent, err := dom.AsElement(ref)
	if err != nil {
		return err
	}
	if dom.IsDocument(parent) && dom.IsElement(node) {
		el, _ := node.(*etree.Element)
		return dom.SetRoot(parent, el)
	}
	return dom.AppendChild(parent, node)
}

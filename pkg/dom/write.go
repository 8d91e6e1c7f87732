package dom

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"
)

// Counts tallies nodes by kind.
type Counts struct {
	Elements   int
	Text       int
	CData      int
	Comments   int
	ProcInsts  int
	Directives int
}

// Total returns the number of counted nodes.
func (c Counts) Total() int {
	return c.Elements + c.Text + c.CData + c.Comments + c.ProcInsts + c.Directives
}

// Tally counts t and its descendants. Document and fragment containers are
// not counted themselves.
func Tally(t etree.Token) Counts {
	var c Counts
	tally(t, &c)
	return c
}

func tally(t etree.Token, c *Counts) {
	switch v := t.(type) {
	case *etree.Element:
		if IsElement(v) {
			c.Elements++
		}
		for _, ch := range v.Child {
			tally(ch, c)
		}
	case *etree.CharData:
		if v.IsCData() {
			c.CData++
		} else {
			c.Text++
		}
	case *etree.Comment:
		c.Comments++
	case *etree.ProcInst:
		c.ProcInsts++
	case *etree.Directive:
		c.Directives++
	}
}

// WriteDocument serializes doc to w. A positive indent re-indents the
// document with that many spaces first.
func WriteDocument(w io.Writer, doc *etree.Document, indent int) error {
	if indent > 0 {
		doc.Indent(indent)
	}
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	return nil
}

// WriteToken serializes any node to w. Documents and fragments write their
// children.
func WriteToken(w io.Writer, t etree.Token) error {
	bw := bufio.NewWriter(w)
	s := &etree.WriteSettings{}
	if IsDocument(t) || IsFragment(t) {
		e, _ := asElement(t)
		for _, c := range e.Child {
			c.WriteTo(bw, s)
		}
	} else {
		t.WriteTo(bw, s)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing node: %w", err)
	}
	return nil
}

// String serializes t, ignoring write errors.
func String(t etree.Token) string {
	var b strings.Builder
	_ = WriteToken(&b, t)
	return b.String()
}

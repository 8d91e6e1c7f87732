package markup

import (
	"context"
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndisidore/mixup/pkg/dom"
)

func render(doc *etree.Document) string {
	return dom.String(dom.DocumentNode(doc))
}

func TestCompileDocument(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec any
		want string
	}{
		{
			name: "nil key name",
			spec: M(nil, "foo"),
			want: "<foo/>",
		},
		{
			name: "nil key with children",
			spec: M(nil, []any{"foo", "hi", M(nil, "bar")}),
			want: "<foo>hi<bar/></foo>",
		},
		{
			name: "default namespace",
			spec: M(nil, "foo", "xmlns", "urn:x-dummy"),
			want: `<foo xmlns="urn:x-dummy"/>`,
		},
		{
			name: "compact key supplies children",
			spec: M([]any{"hi"}, "foo", "xmlns", "urn:x-dummy"),
			want: `<foo xmlns="urn:x-dummy">hi</foo>`,
		},
		{
			name: "non-reserved marker",
			spec: M("#foo", "lol"),
			want: "<foo>lol</foo>",
		},
		{
			name: "element alias",
			spec: M("#", "br"),
			want: "<br/>",
		},
		{
			name: "element alias with prefix sequence",
			spec: M("#elem", []any{"svg", "rect"}, "xmlns:svg", "urn:svg"),
			want: `<svg:rect xmlns:svg="urn:svg"/>`,
		},
		{
			name: "go map spec",
			spec: map[any]any{nil: []any{"p", "text"}, "class": "lead"},
			want: `<p class="lead">text</p>`,
		},
		{
			name: "attributes flattened and absent dropped",
			spec: M(nil, "a",
				"class", []any{"x", nil, "", "y"},
				"style", M("margin", nil, "color", "red"),
				"hidden", nil,
				"data-n", 3,
			),
			want: `<a class="x y" data-n="3" style="color: red"/>`,
		},
		{
			name: "comment",
			spec: M(nil, []any{"root", M(MarkerComment, []any{"hello", "world"})}),
			want: "<root><!--hello world--></root>",
		},
		{
			name: "cdata",
			spec: M(nil, []any{"root", M(MarkerCData, "<x/>")}),
			want: "<root><![CDATA[<x/>]]></root>",
		},
		{
			name: "processing instruction from attributes",
			spec: []any{
				M(nil, []any{MarkerPI, "xml-stylesheet"}, "type", "text/xsl", "href", "style.xsl", "media", nil),
				M(nil, "root"),
			},
			want: `<?xml-stylesheet href="style.xsl" type="text/xsl"?><root/>`,
		},
		{
			name: "processing instruction with content",
			spec: []any{M(MarkerProcessingInstruction, []any{"php", "echo", "1;"}), M(nil, "root")},
			want: `<?php echo 1;?><root/>`,
		},
		{
			name: "doctype before root",
			spec: []any{M(MarkerDoctype, []any{"html"}), M(nil, "html")},
			want: "<!DOCTYPE html><html/>",
		},
		{
			name: "doctype after root still precedes it",
			spec: []any{M(nil, "html"), M(MarkerDTD, "html", "public", "-//W3C//DTD XHTML 1.0 Strict//EN", "system", "strict.dtd")},
			want: `<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "strict.dtd"><html/>`,
		},
		{
			name: "second root replaces the first",
			spec: []any{M(nil, "a"), M(nil, "b")},
			want: "<b/>",
		},
		{
			name: "text escaping",
			spec: M(nil, []any{"p", "a < b & c"}),
			want: "<p>a &lt; b &amp; c</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc, err := Document(context.Background(), tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, render(doc))
		})
	}
}

func TestCompileReturnsLastNode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("absent spec returns the document", func(t *testing.T) {
		t.Parallel()
		tok, err := Compile(ctx, nil)
		require.NoError(t, err)
		assert.True(t, dom.IsDocument(tok))
	})

	t.Run("element becomes the root", func(t *testing.T) {
		t.Parallel()
		doc := dom.NewDocument("")
		tok, err := Compile(ctx, M(nil, "foo"), WithDocument(doc))
		require.NoError(t, err)
		require.NotNil(t, doc.Root())
		assert.Same(t, doc.Root(), tok)
		assert.Same(t, dom.DocumentNode(doc), dom.Top(tok))
	})

	t.Run("second root replaces the first", func(t *testing.T) {
		t.Parallel()
		doc := dom.NewDocument("")
		tok, err := Compile(ctx, []any{M(nil, "a"), M(nil, "b")}, WithDocument(doc))
		require.NoError(t, err)
		require.NotNil(t, doc.Root())
		assert.Equal(t, "b", doc.Root().Tag)
		assert.Same(t, doc.Root(), tok)
		assert.Len(t, doc.ChildElements(), 1)
	})

	t.Run("text child bubbles up", func(t *testing.T) {
		t.Parallel()
		tok, err := Compile(ctx, []any{M(nil, []any{"foo", "hi"})})
		require.NoError(t, err)
		require.True(t, dom.IsText(tok))
		assert.Equal(t, "hi", tok.(*etree.CharData).Data)
		assert.Equal(t, "foo", tok.Parent().Tag)
	})

	t.Run("sequence returns its last result", func(t *testing.T) {
		t.Parallel()
		p := dom.NewElement("p")
		tok, err := Compile(ctx, []any{M(nil, "a"), M(nil, "b"), nil}, WithParent(p))
		require.NoError(t, err)
		require.Len(t, p.ChildElements(), 2)
		assert.Equal(t, "a", p.ChildElements()[0].Tag)
		assert.Same(t, p.ChildElements()[1], tok)
	})

	t.Run("empty sequence results return the adjacency node", func(t *testing.T) {
		t.Parallel()
		p := dom.NewElement("p")
		tok, err := Compile(ctx, []any{nil, ""}, WithParent(p))
		require.NoError(t, err)
		assert.Same(t, p, tok)
	})

	t.Run("element without children returns itself", func(t *testing.T) {
		t.Parallel()
		p := dom.NewElement("p")
		tok, err := Compile(ctx, M(nil, []any{"a", nil}), WithParent(p))
		require.NoError(t, err)
		assert.Same(t, p.ChildElements()[0], tok)
	})
}

func TestCompileAdjacency(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("replace", func(t *testing.T) {
		t.Parallel()
		doc := dom.NewDocument("")
		last, err := Compile(ctx, M(nil, []any{"foo", M(nil, "bar"), M(nil, "baz")}), WithDocument(doc))
		require.NoError(t, err)
		require.Equal(t, "baz", last.(*etree.Element).Tag)
		bar := doc.Root().ChildElements()[0]

		lol, err := Compile(ctx, M(nil, "lol"), WithReplace(bar))
		require.NoError(t, err)
		assert.Same(t, doc.Root().ChildElements()[0], lol)
		assert.Equal(t, "<foo><lol/><baz/></foo>", render(doc))
		assert.Nil(t, bar.Parent())
	})

	t.Run("before and after", func(t *testing.T) {
		t.Parallel()
		root := dom.NewElement("root")
		mid := root.CreateElement("mid")

		_, err := Compile(ctx, M(nil, "first"), WithBefore(mid))
		require.NoError(t, err)
		last, err := Compile(ctx, []any{M(nil, "x"), M(nil, "y")}, WithAfter(mid))
		require.NoError(t, err)

		assert.Equal(t, "<root><first/><mid/><x/><y/></root>", dom.String(root))
		assert.Equal(t, "y", last.(*etree.Element).Tag)
	})

	t.Run("sequence in sibling mode inherits through the fragment", func(t *testing.T) {
		t.Parallel()
		root := dom.NewElement("root")
		dom.AddNamespace(root, "x", "urn:x")
		a := root.CreateElement("a")

		last, err := Compile(ctx, []any{
			M(nil, "x:one"),
			M(nil, []any{"two", M(nil, []any{"x:three", "t"})}),
		}, WithAfter(a))
		require.NoError(t, err)

		assert.Equal(t,
			`<root xmlns:x="urn:x"><a/><x:one/><two><x:three>t</x:three></two></root>`,
			dom.String(root))
		assert.True(t, dom.IsText(last))
	})

	t.Run("existing node is copied", func(t *testing.T) {
		t.Parallel()
		orig := dom.NewElement("orig")
		orig.CreateText("keep")
		p := dom.NewElement("p")

		tok, err := Compile(ctx, []any{orig, orig}, WithParent(p))
		require.NoError(t, err)
		assert.NotSame(t, orig, tok)
		assert.Nil(t, orig.Parent())
		assert.Equal(t, "<p><orig>keep</orig><orig>keep</orig></p>", dom.String(p))
	})

	t.Run("existing node as compact key", func(t *testing.T) {
		t.Parallel()
		b := dom.NewElement("b")
		b.CreateText("bold")
		p := dom.NewElement("p")

		_, err := Compile(ctx, M(b, "em"), WithParent(p))
		require.NoError(t, err)
		assert.Equal(t, "<p><em><b>bold</b></em></p>", dom.String(p))
		assert.Nil(t, b.Parent())
	})

	t.Run("existing document splices its children", func(t *testing.T) {
		t.Parallel()
		src := dom.NewDocument("")
		_, err := Compile(ctx, []any{M(MarkerComment, "c"), M(nil, "r")}, WithDocument(src))
		require.NoError(t, err)

		p := dom.NewElement("p")
		tok, err := Compile(ctx, src, WithParent(p))
		require.NoError(t, err)
		assert.Equal(t, "<p><!--c--><r/></p>", dom.String(p))
		assert.Equal(t, "r", tok.(*etree.Element).Tag)
	})

	t.Run("doctype on a detached tree is attached in place", func(t *testing.T) {
		t.Parallel()
		p := dom.NewElement("p")
		tok, err := Compile(ctx, M(MarkerDoctype, "svg"), WithParent(p))
		require.NoError(t, err)
		assert.True(t, dom.IsDoctype(tok))
		assert.Equal(t, "<p><!DOCTYPE svg></p>", dom.String(p))
	})
}

func TestCompileNamespaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("descendant inherits prefix", func(t *testing.T) {
		t.Parallel()
		tok, err := Compile(ctx, M(nil, []any{"svg:svg", M(nil, []any{"g", M(nil, "svg:shape")})}, "xmlns:svg", "urn:svg"))
		require.NoError(t, err)
		shape, ok := tok.(*etree.Element)
		require.True(t, ok)
		assert.Equal(t, "shape", shape.Tag)
		assert.Equal(t, "urn:svg", shape.NamespaceURI())
		assert.Nil(t, shape.SelectAttr("xmlns:svg"))
	})

	t.Run("prefixed attribute inherits", func(t *testing.T) {
		t.Parallel()
		doc, err := Document(ctx, M(nil, []any{"root", M(nil, "a", "xlink:href", "#x")}, "xmlns:xlink", "http://www.w3.org/1999/xlink"))
		require.NoError(t, err)
		assert.Equal(t,
			`<root xmlns:xlink="http://www.w3.org/1999/xlink"><a xlink:href="#x"/></root>`,
			render(doc))
	})

	t.Run("xml prefix is never declared", func(t *testing.T) {
		t.Parallel()
		doc, err := Document(ctx, M(nil, "html", "xml:lang", "en"))
		require.NoError(t, err)
		assert.Equal(t, `<html xml:lang="en"/>`, render(doc))
	})

	t.Run("namespace from callable", func(t *testing.T) {
		t.Parallel()
		uri := Func(func(args ...any) (any, error) { return args[0], nil })
		doc, err := Document(ctx, M(nil, "x:root", "xmlns:x", uri), WithArgs("urn:from-args"))
		require.NoError(t, err)
		assert.Equal(t, `<x:root xmlns:x="urn:from-args"/>`, render(doc))
	})

	t.Run("unresolvable prefix", func(t *testing.T) {
		t.Parallel()
		_, err := Compile(ctx, M(nil, "svg:shape"))
		require.ErrorIs(t, err, ErrUnresolvableNamespacePrefix)
		assert.True(t, errdefs.IsInvalidArgument(err))
	})
}

func TestCompileCallables(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("args are passed through", func(t *testing.T) {
		t.Parallel()
		spec := Func(func(args ...any) (any, error) {
			return M(nil, []any{args[0], args[1]}), nil
		})
		doc, err := Document(ctx, spec, WithArgs("item", "value"))
		require.NoError(t, err)
		assert.Equal(t, "<item>value</item>", render(doc))
	})

	t.Run("plain function shapes", func(t *testing.T) {
		t.Parallel()
		p := dom.NewElement("p")
		_, err := Compile(ctx, []any{
			func() string { return "a" },
			func() any { return M(nil, "b") },
			func(args ...any) any { return args },
		}, WithParent(p), WithArgs("c"))
		require.NoError(t, err)
		assert.Equal(t, "<p>a<b/>c</p>", dom.String(p))
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		_, err := Compile(ctx, Func(func(...any) (any, error) { return nil, boom }))
		require.ErrorIs(t, err, ErrCallableFailed)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("runaway recursion is bounded", func(t *testing.T) {
		t.Parallel()
		var loop Func
		loop = func(...any) (any, error) { return loop, nil }
		_, err := Compile(ctx, loop, WithMaxDepth(16))
		assert.ErrorIs(t, err, ErrMaxDepthExceeded)
	})
}

func TestCompileErrors(t *testing.T) {
	t.Parallel()

	orphan := dom.NewElement("orphan")
	p := dom.NewElement("p")
	child := p.CreateElement("child")

	tests := []struct {
		name    string
		spec    any
		opts    []Option
		wantErr error
	}{
		{
			name:    "multiple adjacency targets",
			spec:    M(nil, "x"),
			opts:    []Option{WithParent(p), WithAfter(child)},
			wantErr: ErrMultipleAdjacencyTargets,
		},
		{
			name:    "sibling without parent",
			spec:    M(nil, "x"),
			opts:    []Option{WithBefore(orphan)},
			wantErr: ErrInvalidAdjacencyReference,
		},
		{
			name:    "nil reference",
			spec:    M(nil, "x"),
			opts:    []Option{WithReplace(nil)},
			wantErr: ErrInvalidAdjacencyReference,
		},
		{
			name:    "text node as parent",
			spec:    M(nil, "x"),
			opts:    []Option{WithParent(etree.NewText("t"))},
			wantErr: ErrInvalidAdjacencyReference,
		},
		{
			name:    "two compact keys",
			spec:    M([]any{"a"}, "x", []any{"b"}, "y"),
			wantErr: ErrAmbiguousStructuralMap,
		},
		{
			name:    "two marker keys",
			spec:    M("#foo", "a", "#bar", "b"),
			wantErr: ErrAmbiguousStructuralMap,
		},
		{
			name:    "pi without target",
			spec:    M(MarkerPI, nil),
			wantErr: ErrMissingRequiredChildren,
		},
		{
			name:    "doctype without root",
			spec:    M(MarkerDoctype, []any{}),
			wantErr: ErrMissingRequiredChildren,
		},
		{
			name:    "attributes only",
			spec:    M("class", "x"),
			wantErr: ErrMissingElementName,
		},
		{
			name:    "unsupported value",
			spec:    make(chan int),
			wantErr: ErrUnsupportedValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compile(context.Background(), tt.spec, tt.opts...)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, errdefs.IsInvalidArgument(err))
		})
	}
}

func TestCompilePartialTreeRemains(t *testing.T) {
	t.Parallel()

	p := dom.NewElement("p")
	_, err := Compile(context.Background(), []any{M(nil, "ok"), M(nil, "bad:x")}, WithParent(p))
	require.ErrorIs(t, err, ErrUnresolvableNamespacePrefix)
	assert.Equal(t, "<p><ok/></p>", dom.String(p))
}

package markup

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/beevik/etree"

	"github.com/ndisidore/mixup/pkg/dom"
	"github.com/ndisidore/mixup/pkg/slogctx"
)

// DefaultMaxDepth bounds spec nesting when WithMaxDepth is not given.
const DefaultMaxDepth = 512

// Option configures a Compile call.
type Option func(*config)

type config struct {
	targets  []Target
	doc      *etree.Document
	args     []any
	maxDepth int
}

func withTarget(mode Mode, node etree.Token) Option {
	return func(c *config) {
		c.targets = append(c.targets, Target{Mode: mode, Node: node})
	}
}

// WithParent appends the result as the last child of node. A document node
// receives a compiled element as its root element; since a document has only
// one root, a second element compiled into it replaces the first rather than
// becoming its sibling.
func WithParent(node etree.Token) Option { return withTarget(Parent, node) }

// WithBefore inserts the result right before node.
func WithBefore(node etree.Token) Option { return withTarget(Before, node) }

// WithAfter inserts the result right after node.
func WithAfter(node etree.Token) Option { return withTarget(After, node) }

// WithReplace puts the result where node is and detaches node.
func WithReplace(node etree.Token) Option { return withTarget(Replace, node) }

// WithDocument compiles into doc when no adjacency target is given. Root
// elements follow the WithParent rule for document nodes.
func WithDocument(doc *etree.Document) Option {
	return func(c *config) { c.doc = doc }
}

// WithArgs sets the arguments passed to every callable.
func WithArgs(args ...any) Option {
	return func(c *config) { c.args = args }
}

// WithMaxDepth bounds spec nesting. Non-positive values keep the default.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// Compile builds spec into the document at the configured adjacency target
// and returns the last node created in document order. When spec is absent
// it returns the adjacency node itself (the document node by default).
//
// With the default document target, a spec with two root elements keeps
// only the last: each root replaces the one before it. Wrap them in a parent
// element, or target an element with WithParent, to keep both.
//
// Construction mutates the tree directly; on error, nodes attached before the
// failure stay in place.
func Compile(ctx context.Context, spec any, opts ...Option) (etree.Token, error) {
	cfg := config{maxDepth: DefaultMaxDepth}
	for _, o := range opts {
		o(&cfg)
	}

	at, parent, err := establish(&cfg)
	if err != nil {
		return nil, err
	}

	c := &compiler{
		ctx:      ctx,
		log:      slogctx.FromContext(ctx),
		args:     cfg.args,
		maxDepth: cfg.maxDepth,
		contexts: make(map[*etree.Element]*etree.Element),
	}
	c.doc = ownerDocument(parent, cfg.doc)

	out, err := c.compile(spec, at, parent, nil, 0)
	if err != nil {
		return nil, err
	}
	c.log.LogAttrs(ctx, slog.LevelDebug, "compiled spec",
		slog.String("mode", at.Mode.String()),
		slog.Int("nodes", c.created),
	)
	if out == nil {
		return at.Node, nil
	}
	return out, nil
}

// Document compiles spec into a fresh document and returns the document.
func Document(ctx context.Context, spec any, opts ...Option) (*etree.Document, error) {
	doc := dom.NewDocument("")
	opts = append(opts, WithDocument(doc))
	if _, err := Compile(ctx, spec, opts...); err != nil {
		return nil, err
	}
	return doc, nil
}

// establish validates the adjacency options and derives the implicit parent.
func establish(cfg *config) (Target, *etree.Element, error) {
	switch len(cfg.targets) {
	case 0:
		if cfg.doc == nil {
			cfg.doc = dom.NewDocument("")
		}
		node := dom.DocumentNode(cfg.doc)
		return Target{Mode: Parent, Node: node}, node, nil
	case 1:
	default:
		modes := make([]string, len(cfg.targets))
		for i, t := range cfg.targets {
			modes[i] = t.Mode.String()
		}
		return Target{}, nil, fmt.Errorf("%w: %v", ErrMultipleAdjacencyTargets, modes)
	}

	at := cfg.targets[0]
	if isNil(at.Node) {
		return Target{}, nil, fmt.Errorf("%w: %s: nil node", ErrInvalidAdjacencyReference, at.Mode)
	}
	if at.Mode == Parent {
		parent, err := dom.AsElement(at.Node)
		if err != nil {
			return Target{}, nil, fmt.Errorf("%w: %s: %w", ErrInvalidAdjacencyReference, at.Mode, err)
		}
		return at, parent, nil
	}
	parent := at.Node.Parent()
	if parent == nil {
		return Target{}, nil, fmt.Errorf("%w: %s: %w", ErrInvalidAdjacencyReference, at.Mode, dom.ErrNoParent)
	}
	return at, parent, nil
}

// ownerDocument returns the document node the tree under n belongs to,
// falling back to fallback when n is detached.
func ownerDocument(n *etree.Element, fallback *etree.Document) *etree.Element {
	if top := dom.Top(n); top != nil && dom.IsDocument(top) {
		return top
	}
	if fallback != nil {
		return dom.DocumentNode(fallback)
	}
	return nil
}

// compiler carries the per-call state threaded through the recursion.
type compiler struct {
	ctx      context.Context
	log      *slog.Logger
	doc      *etree.Element
	args     []any
	maxDepth int
	created  int
	// contexts maps detached fragments to the element they will be attached
	// under, so namespace lookups can see past them.
	contexts map[*etree.Element]*etree.Element
}

// compile builds spec at the adjacency target. It returns the last node
// created, or nil when nothing was created. parent is the implicit parent of
// the target and pseudo, when set, overrides it for namespace inheritance.
func (c *compiler) compile(spec any, at Target, parent, pseudo *etree.Element, depth int) (etree.Token, error) {
	if depth > c.maxDepth {
		return nil, fmt.Errorf("depth %d: %w", depth, ErrMaxDepthExceeded)
	}
	n, err := Parse(spec)
	if err != nil {
		return nil, err
	}

	switch v := n.(type) {
	case nil:
		return nil, nil
	case Seq:
		return c.compileSeq(v, at, parent, pseudo, depth)
	case Call:
		out, err := invoke(v.Fn, c.args)
		if err != nil {
			return nil, err
		}
		return c.compile(out, at, parent, pseudo, depth+1)
	case Element:
		return c.compileElement(v, at, parent, pseudo, depth)
	case Comment:
		text, err := flattenString(v.Text, c.args)
		if err != nil {
			return nil, fmt.Errorf("comment: %w", err)
		}
		return c.attach(at, dom.NewComment(text))
	case CData:
		text, err := flattenString(v.Text, c.args)
		if err != nil {
			return nil, fmt.Errorf("cdata: %w", err)
		}
		return c.attach(at, dom.NewCData(text))
	case ProcInst:
		return c.compileProcInst(v, at)
	case Doctype:
		return c.compileDoctype(v, at)
	case Raw:
		return c.compileRaw(v, at)
	case Text:
		return c.attach(at, dom.NewText(v.Value))
	default:
		return nil, fmt.Errorf("%T: %w", n, ErrUnsupportedValue)
	}
}

func (c *compiler) compileSeq(seq Seq, at Target, parent, pseudo *etree.Element, depth int) (etree.Token, error) {
	container := parent
	if at.Mode != Parent {
		container = dom.NewFragment()
		c.contexts[container] = parent
	}
	if pseudo == nil {
		pseudo = parent
	}

	into := Target{Mode: Parent, Node: container}
	var last etree.Token
	for i, item := range seq {
		out, err := c.compile(item, into, container, pseudo, depth+1)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if out != nil {
			last = out
		}
	}

	if at.Mode != Parent {
		delete(c.contexts, container)
		if last != nil {
			if err := Attach(at.Mode, container, at.Node); err != nil {
				return nil, err
			}
		}
	}
	return last, nil
}

func (c *compiler) compileElement(e Element, at Target, parent, pseudo *etree.Element, depth int) (etree.Token, error) {
	if e.Marker != "" {
		if s := suggestMarker(e.Marker); s != "" {
			c.log.LogAttrs(c.ctx, slog.LevelWarn, "marker compiles as an element",
				slog.String("marker", e.Marker),
				slog.String("suggestion", s),
			)
		}
	}

	scope := pseudo
	if scope == nil {
		scope = parent
	}
	res, err := ResolveNamespaces(e.Name, e.Attrs, c.namespaces(scope), c.args)
	if err != nil {
		return nil, err
	}

	el := dom.NewElement(e.Name)
	for _, p := range res.Prefixes() {
		dom.AddNamespace(el, p, res.Namespaces[p])
	}
	for _, k := range res.AttrKeys() {
		dom.SetAttr(el, k, res.Attrs[k])
	}
	if _, err := c.attach(at, el); err != nil {
		return nil, err
	}

	if len(e.Children) == 0 {
		return el, nil
	}
	out, err := c.compile([]any(e.Children), Target{Mode: Parent, Node: el}, el, nil, depth+1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name, err)
	}
	if out == nil {
		return el, nil
	}
	return out, nil
}

func (c *compiler) compileProcInst(pi ProcInst, at Target) (etree.Token, error) {
	target, ok, err := flatten(pi.Target, c.args, 0)
	if err != nil {
		return nil, fmt.Errorf("processing instruction target: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("processing instruction: %w: target", ErrMissingRequiredChildren)
	}

	var content string
	if len(pi.Content) > 0 {
		if content, err = flattenString(pi.Content, c.args); err != nil {
			return nil, fmt.Errorf("processing instruction %s: %w", target, err)
		}
	} else if content, err = pseudoAttributes(pi.Attrs, c.args); err != nil {
		return nil, fmt.Errorf("processing instruction %s: %w", target, err)
	}
	return c.attach(at, dom.NewProcInst(target, content))
}

// pseudoAttributes renders key="value" pairs sorted by key, skipping absent
// values.
func pseudoAttributes(attrs []Attr, args []any) (string, error) {
	sorted := slices.Clone(attrs)
	slices.SortStableFunc(sorted, func(a, b Attr) int { return cmp.Compare(a.Key, b.Key) })

	var b strings.Builder
	for _, a := range sorted {
		v, ok, err := flatten(a.Value, args, 0)
		if err != nil {
			return "", fmt.Errorf("attribute %q: %w", a.Key, err)
		}
		if !ok {
			continue
		}
		if b.Len() > 0 {
			_ = b.WriteByte(' ')
		}
		_, _ = fmt.Fprintf(&b, `%s="%s"`, a.Key, v)
	}
	return b.String(), nil
}

func (c *compiler) compileDoctype(d Doctype, at Target) (etree.Token, error) {
	var ids [3]string
	for i, v := range []any{d.Root, d.Public, d.System} {
		s, err := flattenString(v, c.args)
		if err != nil {
			return nil, fmt.Errorf("doctype: %w", err)
		}
		ids[i] = s
	}
	if ids[0] == "" {
		return nil, fmt.Errorf("doctype: %w: root name", ErrMissingRequiredChildren)
	}

	if c.doc == nil {
		// Detached trees have no document to own the declaration.
		return c.attach(at, dom.NewDoctype(ids[0], ids[1], ids[2]))
	}
	decl, err := dom.SetDoctype(c.doc, ids[0], ids[1], ids[2])
	if err != nil {
		return nil, fmt.Errorf("doctype: %w", err)
	}
	c.created++
	return decl, nil
}

func (c *compiler) compileRaw(r Raw, at Target) (etree.Token, error) {
	dup := dom.Duplicate(r.Token)
	if dup == nil {
		return nil, fmt.Errorf("%T: %w", r.Token, ErrUnsupportedValue)
	}
	if !dom.IsFragment(dup) {
		return c.attach(at, dup)
	}
	kids := dom.ChildrenOf(dup)
	if len(kids) == 0 {
		return nil, nil
	}
	if _, err := c.attach(at, dup); err != nil {
		return nil, err
	}
	return kids[len(kids)-1], nil
}

func (c *compiler) attach(at Target, node etree.Token) (etree.Token, error) {
	if err := Attach(at.Mode, node, at.Node); err != nil {
		return nil, err
	}
	c.created++
	return node, nil
}

// namespaces returns the declarations in scope at e, following detached
// fragments to the element they are compiled for.
func (c *compiler) namespaces(e *etree.Element) map[string]string {
	out := make(map[string]string)
	for e != nil {
		for k, v := range dom.Namespaces(e) {
			if _, ok := out[k]; !ok {
				out[k] = v
			}
		}
		e = c.contexts[dom.Top(e)]
	}
	return out
}

package markup

import (
	"fmt"
	"strings"

	"github.com/ardnew/mung"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Expr is a callable backed by an expr-lang program. The program sees the
// compile arguments as args (and arg(i)), plus helper functions.
type Expr struct {
	source  string
	program *vm.Program
}

// NewExpr compiles source into a callable.
func NewExpr(source string) (*Expr, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("compiling expression: %w: empty source", ErrUnsupportedValue)
	}
	program, err := expr.Compile(source, expr.Env(exprEnv(nil)))
	if err != nil {
		return nil, fmt.Errorf("compiling expression %q: %w", source, err)
	}
	return &Expr{source: source, program: program}, nil
}

// MustExpr is like NewExpr but panics on error.
func MustExpr(source string) *Expr {
	e, err := NewExpr(source)
	if err != nil {
		panic(err)
	}
	return e
}

// Call evaluates the program against args.
func (e *Expr) Call(args ...any) (any, error) {
	out, err := expr.Run(e.program, exprEnv(args))
	if err != nil {
		return nil, fmt.Errorf("evaluating expression %q: %w", e.source, err)
	}
	return out, nil
}

// Source returns the expression text.
func (e *Expr) Source() string { return e.source }

// String renders the expression in template form.
func (e *Expr) String() string { return "{{ " + e.source + " }}" }

// ParseTemplate turns "{{ source }}" into an Expr. ok is false when s is not
// a template.
func ParseTemplate(s string) (e *Expr, ok bool, err error) {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "{{") || !strings.HasSuffix(t, "}}") || len(t) < 4 {
		return nil, false, nil
	}
	e, err = NewExpr(t[2 : len(t)-2])
	if err != nil {
		return nil, true, err
	}
	return e, true, nil
}

func exprEnv(args []any) map[string]any {
	if args == nil {
		args = []any{}
	}
	return map[string]any{
		"args": args,
		"arg": func(i int) any {
			if i < 0 || i >= len(args) {
				return nil
			}
			return args[i]
		},
		"classes": classes,
	}
}

// classes prepends tokens to a space-delimited token list.
func classes(base string, add ...string) string {
	return mung.Make(
		mung.WithSubjectItems(base),
		mung.WithDelim(" "),
		mung.WithPrefixItems(add...),
	).String()
}

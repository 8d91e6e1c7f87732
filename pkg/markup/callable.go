package markup

import "fmt"

// Func is the callable variant of a spec. It receives the argument list given
// to Compile and returns a new spec (or an attribute value when flattened).
type Func func(args ...any) (any, error)

// Callable is implemented by values that behave like a Func.
type Callable interface {
	Call(args ...any) (any, error)
}

// Call invokes f.
func (f Func) Call(args ...any) (any, error) {
	return f(args...)
}

// callable normalizes the function shapes accepted as callables.
func callable(v any) (Func, bool) {
	switch fn := v.(type) {
	case Func:
		return fn, fn != nil
	case Callable:
		if isNil(fn) {
			return nil, false
		}
		return fn.Call, true
	case func(...any) (any, error):
		return fn, fn != nil
	case func(...any) any:
		if fn == nil {
			return nil, false
		}
		return func(args ...any) (any, error) { return fn(args...), nil }, true
	case func() (any, error):
		if fn == nil {
			return nil, false
		}
		return func(...any) (any, error) { return fn() }, true
	case func() any:
		if fn == nil {
			return nil, false
		}
		return func(...any) (any, error) { return fn(), nil }, true
	case func() string:
		if fn == nil {
			return nil, false
		}
		return func(...any) (any, error) { return fn(), nil }, true
	default:
		return nil, false
	}
}

func invoke(fn Func, args []any) (any, error) {
	out, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCallableFailed, err)
	}
	return out, nil
}

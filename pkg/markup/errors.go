package markup

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Sentinel errors for compile failures. Contract violations also match
// errdefs.ErrInvalidArgument.
var (
	ErrMultipleAdjacencyTargets    = invalid("multiple adjacency targets")
	ErrInvalidAdjacencyReference   = invalid("invalid adjacency reference")
	ErrAmbiguousStructuralMap      = invalid("ambiguous structural map")
	ErrMissingRequiredChildren     = invalid("missing required children")
	ErrMissingElementName          = invalid("missing element name")
	ErrUnresolvableNamespacePrefix = invalid("unresolvable namespace prefix")
	ErrMaxDepthExceeded            = invalid("maximum spec depth exceeded")
	ErrUnsupportedValue            = invalid("unsupported spec value")

	ErrCallableFailed = errors.New("callable failed")
)

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, errdefs.ErrInvalidArgument)
}

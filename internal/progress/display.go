// Package progress reports batch build progress and builds the CLI loggers.
package progress

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotStarted is returned when a display is used before Start.
var ErrNotStarted = errors.New("display not started")

// Status is the build state of one source file.
type Status int

// Build states, in the order a file moves through them.
const (
	StatusQueued Status = iota
	StatusCompiling
	StatusWritten
	StatusUnchanged
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusCompiling:
		return "compiling"
	case StatusWritten:
		return "written"
	case StatusUnchanged:
		return "unchanged"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether no further events are expected for the file.
func (s Status) Terminal() bool {
	return s == StatusWritten || s == StatusUnchanged || s == StatusFailed
}

// Event is one progress update for a source file.
type Event struct {
	File     string
	Status   Status
	Nodes    int
	Duration time.Duration
	Err      error
}

// Display renders build progress. Send may be called from many goroutines
// between Start and Seal.
type Display interface {
	// Start prepares the display for the given files.
	Start(ctx context.Context, files []string) error
	// Send reports one event.
	Send(ev Event)
	// Seal signals that no more events will be sent.
	Seal()
	// Wait blocks until the display has rendered everything.
	Wait() error
}

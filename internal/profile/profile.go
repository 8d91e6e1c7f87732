// Package profile wraps github.com/pkg/profile for the --pprof flag.
package profile

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/pkg/profile"
)

// ErrUnknownMode is returned for a profiling mode not listed by Modes.
var ErrUnknownMode = errors.New("unknown profiling mode")

var _modes = map[string]func(*profile.Profile){
	"block":     profile.BlockProfile,
	"cpu":       profile.CPUProfile,
	"clock":     profile.ClockProfile,
	"goroutine": profile.GoroutineProfile,
	"mem":       profile.MemProfile,
	"allocs":    profile.MemProfileAllocs,
	"heap":      profile.MemProfileHeap,
	"mutex":     profile.MutexProfile,
	"thread":    profile.ThreadcreationProfile,
	"trace":     profile.TraceProfile,
}

// Modes returns the supported profiling modes, sorted.
func Modes() []string {
	return slices.Sorted(maps.Keys(_modes))
}

// Stopper ends a profiling session and flushes its output.
type Stopper interface{ Stop() }

type nop struct{}

func (nop) Stop() {}

// Start begins profiling in the given mode, writing under dir (a temporary
// directory when empty). An empty mode disables profiling.
func Start(mode, dir string) (Stopper, error) {
	if mode == "" {
		return nop{}, nil
	}
	fn, ok := _modes[mode]
	if !ok {
		return nil, fmt.Errorf("%q (want one of %s): %w", mode, strings.Join(Modes(), ", "), ErrUnknownMode)
	}

	opts := []func(*profile.Profile){fn, profile.Quiet, profile.NoShutdownHook}
	if dir != "" {
		opts = append(opts, profile.ProfilePath(dir))
	}
	return profile.Start(opts...), nil
}

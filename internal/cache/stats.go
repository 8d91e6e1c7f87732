package cache

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Outcome is what happened to one source file during a build.
type Outcome int

// Build outcomes.
const (
	OutcomeWritten Outcome = iota
	OutcomeUnchanged
	OutcomeFailed
)

// FileStat records the outcome of building a single source file.
type FileStat struct {
	File     string
	Outcome  Outcome
	Nodes    int
	Bytes    int
	Duration time.Duration
}

// Report aggregates build statistics across all files.
type Report struct {
	Files []FileStat
}

// Count returns how many files ended with outcome o.
func (r Report) Count(o Outcome) int {
	var n int
	for i := range r.Files {
		if r.Files[i].Outcome == o {
			n++
		}
	}
	return n
}

// HitRate returns the share of successful builds whose output was unchanged
// (0.0-1.0). Returns 0 when nothing was built.
func (r Report) HitRate() float64 {
	written, unchanged := r.Count(OutcomeWritten), r.Count(OutcomeUnchanged)
	if written+unchanged == 0 {
		return 0
	}
	return float64(unchanged) / float64(written+unchanged)
}

// Collector accumulates per-file statistics. It is safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	order []string // files in first-observed order
	stats map[string]FileStat
}

// NewCollector returns a new Collector ready for use.
func NewCollector() *Collector {
	return &Collector{stats: make(map[string]FileStat)}
}

// Observe records the stat for st.File, replacing any earlier one.
func (c *Collector) Observe(st FileStat) {
	if st.File == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.stats[st.File]; !ok {
		c.order = append(c.order, st.File)
	}
	c.stats[st.File] = st
}

// Report returns the aggregated statistics in observation order.
// Call after all files complete.
func (c *Collector) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := Report{Files: make([]FileStat, 0, len(c.order))}
	for _, name := range c.order {
		r.Files = append(r.Files, c.stats[name])
	}
	return r
}

func (o Outcome) String() string {
	switch o {
	case OutcomeWritten:
		return "written"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// PrintReport writes a human-readable build summary to w.
func PrintReport(w io.Writer, r Report) {
	_, _ = fmt.Fprintln(w, "Build summary:")
	var total time.Duration
	for _, st := range r.Files {
		total += st.Duration
		_, _ = fmt.Fprintf(w, "  %-24s %-9s %5d nodes %7d bytes  %s\n",
			st.File, st.Outcome, st.Nodes, st.Bytes, st.Duration.Round(time.Millisecond))
	}
	_, _ = fmt.Fprintf(w, "  Overall: %d written, %d unchanged, %d failed (%4.1f%% unchanged)  %s\n",
		r.Count(OutcomeWritten), r.Count(OutcomeUnchanged), r.Count(OutcomeFailed),
		r.HitRate()*100, total.Round(time.Millisecond))
}

package cache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	t.Parallel()

	t.Run("Observe", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			stats     []FileStat
			wantFiles []string
			wantLast  map[string]Outcome
		}{
			{
				name: "keeps observation order",
				stats: []FileStat{
					{File: "b.kdl", Outcome: OutcomeWritten},
					{File: "a.kdl", Outcome: OutcomeUnchanged},
				},
				wantFiles: []string{"b.kdl", "a.kdl"},
			},
			{
				name: "later stat replaces earlier",
				stats: []FileStat{
					{File: "a.kdl", Outcome: OutcomeWritten},
					{File: "a.kdl", Outcome: OutcomeFailed},
				},
				wantFiles: []string{"a.kdl"},
				wantLast:  map[string]Outcome{"a.kdl": OutcomeFailed},
			},
			{
				name:      "empty file name is skipped",
				stats:     []FileStat{{Outcome: OutcomeWritten}},
				wantFiles: []string{},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()

				c := NewCollector()
				for _, st := range tt.stats {
					c.Observe(st)
				}
				r := c.Report()

				files := make([]string, 0, len(r.Files))
				for _, st := range r.Files {
					files = append(files, st.File)
					if want, ok := tt.wantLast[st.File]; ok {
						assert.Equal(t, want, st.Outcome)
					}
				}
				assert.Equal(t, tt.wantFiles, files)
			})
		}
	})

	t.Run("concurrent Observe", func(t *testing.T) {
		t.Parallel()

		c := NewCollector()
		var wg sync.WaitGroup
		for i := range 50 {
			wg.Go(func() {
				c.Observe(FileStat{File: fmt.Sprintf("f%02d.kdl", i), Outcome: OutcomeWritten})
			})
		}
		wg.Wait()

		r := c.Report()
		require.Len(t, r.Files, 50)
		assert.Equal(t, 50, r.Count(OutcomeWritten))
	})
}

func TestReport(t *testing.T) {
	t.Parallel()

	t.Run("HitRate", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name string
			r    Report
			want float64
		}{
			{name: "empty", r: Report{}, want: 0},
			{
				name: "failures excluded",
				r: Report{Files: []FileStat{
					{File: "a", Outcome: OutcomeWritten},
					{File: "b", Outcome: OutcomeUnchanged},
					{File: "c", Outcome: OutcomeUnchanged},
					{File: "d", Outcome: OutcomeUnchanged},
					{File: "e", Outcome: OutcomeFailed},
				}},
				want: 0.75,
			},
			{
				name: "only failures",
				r:    Report{Files: []FileStat{{File: "a", Outcome: OutcomeFailed}}},
				want: 0,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				assert.InDelta(t, tt.want, tt.r.HitRate(), 0.001)
			})
		}
	})

	t.Run("PrintReport", func(t *testing.T) {
		t.Parallel()

		r := Report{Files: []FileStat{
			{File: "index.kdl", Outcome: OutcomeWritten, Nodes: 12, Bytes: 340, Duration: 1500 * time.Millisecond},
			{File: "about.yaml", Outcome: OutcomeUnchanged, Nodes: 4, Bytes: 90, Duration: 500 * time.Millisecond},
		}}

		var buf bytes.Buffer
		PrintReport(&buf, r)
		out := buf.String()

		assert.Contains(t, out, "Build summary:")
		assert.Contains(t, out, "index.kdl")
		assert.Contains(t, out, "written")
		assert.Contains(t, out, "12 nodes")
		assert.Contains(t, out, "340 bytes")
		assert.Contains(t, out, "1 written, 1 unchanged, 0 failed (50.0% unchanged)  2s")
	})
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "written", OutcomeWritten.String())
	assert.Equal(t, "unchanged", OutcomeUnchanged.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}

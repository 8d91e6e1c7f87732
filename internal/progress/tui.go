package progress

import (
	"context"
	"fmt"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// TUI renders progress with an interactive bubbletea display.
type TUI struct {
	Boring bool // use ASCII icons instead of emoji

	opts []tea.ProgramOption

	mu       sync.Mutex
	prog     *tea.Program
	done     chan struct{}
	err      error
	sealOnce sync.Once
}

// Start launches the bubbletea program. Calling Start again is a no-op.
func (t *TUI) Start(ctx context.Context, files []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.prog != nil {
		return nil
	}

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, t.opts...)
	t.prog = tea.NewProgram(newModel(files, t.Boring), opts...)
	t.done = make(chan struct{})

	go func() {
		defer close(t.done)
		if _, err := t.prog.Run(); err != nil {
			t.err = fmt.Errorf("running TUI: %w", err)
		}
	}()
	return nil
}

func (t *TUI) program() *tea.Program {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prog
}

// Send forwards ev to the program. Events sent before Start are dropped.
func (t *TUI) Send(ev Event) {
	if p := t.program(); p != nil {
		p.Send(eventMsg{ev: ev})
	}
}

// Seal tells the program to render its final frame and exit. It is safe to
// call more than once, and before Start.
func (t *TUI) Seal() {
	p := t.program()
	if p == nil {
		return
	}
	t.sealOnce.Do(func() { p.Send(doneMsg{}) })
}

// Wait blocks until the program exits.
func (t *TUI) Wait() error {
	if t.program() == nil {
		return ErrNotStarted
	}
	<-t.done
	return t.err
}

package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"

	tea "github.com/charmbracelet/bubbletea"
)

var _emojiIcons = map[Status]string{
	StatusQueued:    "⏳",
	StatusWritten:   "✅",
	StatusUnchanged: "⚡",
	StatusFailed:    "❌",
}

var _boringIcons = map[Status]string{
	StatusQueued:    "[      ]",
	StatusCompiling: "[build] ",
	StatusWritten:   "[done]  ",
	StatusUnchanged: "[same]  ",
	StatusFailed:    "[FAIL]  ",
}

// fileState tracks a single file's render state.
type fileState struct {
	name     string
	status   Status
	nodes    int
	duration time.Duration
	err      error
}

// model is the bubbletea model for batch build progress.
type model struct {
	files   map[string]*fileState
	order   []string
	spinner spinner.Model
	width   int
	boring  bool
	done    bool
}

func newModel(files []string, boring bool) *model {
	m := &model{
		files:   make(map[string]*fileState, len(files)),
		boring:  boring,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(_cyanStyle)),
	}
	for _, f := range files {
		m.track(f)
	}
	return m
}

// eventMsg carries an Event into the bubbletea event loop.
type eventMsg struct{ ev Event }

// doneMsg signals that the display was sealed.
type doneMsg struct{}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.apply(msg.ev)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *model) track(name string) *fileState {
	st, ok := m.files[name]
	if !ok {
		st = &fileState{name: name}
		m.files[name] = st
		m.order = append(m.order, name)
	}
	return st
}

func (m *model) apply(ev Event) {
	st := m.track(ev.File)
	if st.status.Terminal() {
		return
	}
	st.status = ev.Status
	if ev.Nodes > 0 {
		st.nodes = ev.Nodes
	}
	if ev.Duration > 0 {
		st.duration = ev.Duration.Round(time.Millisecond)
	}
	if ev.Err != nil {
		st.err = ev.Err
	}
}

// counts returns the number of finished and failed files.
func (m *model) counts() (finished, failed int) {
	for _, st := range m.files {
		if st.status.Terminal() {
			finished++
		}
		if st.status == StatusFailed {
			failed++
		}
	}
	return finished, failed
}

var (
	_headerStyle = lipgloss.NewStyle().Bold(true)
	_detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// View implements tea.Model.
func (m *model) View() string {
	var b strings.Builder

	finished, failed := m.counts()
	header := fmt.Sprintf("Building %d documents (%d/%d)", len(m.order), finished, len(m.order))
	if failed > 0 {
		header += fmt.Sprintf(", %d failed", failed)
	}
	_, _ = b.WriteString(_headerStyle.Render(header))
	_ = b.WriteByte('\n')

	for _, name := range m.order {
		st := m.files[name]
		_, _ = fmt.Fprintf(&b, "  %s %s  %s\n", m.icon(st.status), st.name, m.detail(st))
	}
	return b.String()
}

func (m *model) icon(s Status) string {
	if m.boring {
		return _boringIcons[s]
	}
	if s == StatusCompiling {
		return m.spinner.View()
	}
	return _emojiIcons[s]
}

func (*model) detail(st *fileState) string {
	switch st.status {
	case StatusFailed:
		return _errorStyle.Render(fmt.Sprint(st.err))
	case StatusWritten:
		return _detailStyle.Render(fmt.Sprintf("%d nodes, %s", st.nodes, st.duration))
	case StatusUnchanged:
		return _detailStyle.Render("unchanged")
	case StatusCompiling:
		return "..."
	default:
		return "--"
	}
}

package progress

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// ErrUnknownFormat is returned when an unrecognized log format is requested.
var ErrUnknownFormat = errors.New("unknown log format")

// Log formats accepted by NewLogger. FormatAuto is resolved by ResolveFormat.
const (
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatJSON   = "json"
	FormatText   = "text"
)

// Compile-time interface check.
var _ slog.Handler = (*PrettyHandler)(nil)

// PrettyHandler writes colored, human-oriented lines. Attributes added with
// WithAttrs and WithGroup become a "key=val " / "group." prefix on every
// message. Inline record attributes are dropped, except for a few well-known
// keys that are rendered after the message (duration, nodes).
type PrettyHandler struct {
	out    io.Writer
	level  slog.Leveler
	mu     *sync.Mutex
	prefix string
}

// NewPrettyHandler returns a PrettyHandler that writes to out at the given level.
func NewPrettyHandler(out io.Writer, level slog.Leveler) *PrettyHandler {
	return &PrettyHandler{
		out:   out,
		level: level,
		mu:    &sync.Mutex{},
	}
}

var (
	_warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
	_errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red
	_debugStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")) // dim
	_cyanStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")) // cyan
)

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes the record's message with ANSI color based on level.
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	_, _ = b.WriteString(h.prefix)
	_, _ = b.WriteString(r.Message)

	var suffix []string
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "duration":
			suffix = append(suffix, _cyanStyle.Render(a.Value.String()))
		case "nodes":
			suffix = append(suffix, _debugStyle.Render("("+a.Value.String()+" nodes)"))
		}
		return true
	})

	msg := b.String()
	switch {
	case r.Level >= slog.LevelError:
		msg = _errorStyle.Render(msg)
	case r.Level >= slog.LevelWarn:
		msg = _warnStyle.Render(msg)
	case r.Level < slog.LevelInfo:
		msg = _debugStyle.Render(msg)
	}
	if len(suffix) > 0 {
		msg += " " + strings.Join(suffix, " ")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, msg+"\n")
	return err
}

// WithAttrs returns a new handler that prepends the given attributes to messages.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	var b strings.Builder
	_, _ = b.WriteString(h.prefix)
	for _, a := range attrs {
		_, _ = fmt.Fprintf(&b, "%s=%s ", a.Key, a.Value)
	}
	return &PrettyHandler{out: h.out, level: h.level, mu: h.mu, prefix: b.String()}
}

// WithGroup returns a new handler that prepends the group name to messages.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &PrettyHandler{out: h.out, level: h.level, mu: h.mu, prefix: h.prefix + name + "."}
}

// ResolveFormat turns FormatAuto into pretty on terminals and text elsewhere.
func ResolveFormat(format string, isTTY bool) string {
	if format != FormatAuto {
		return format
	}
	if isTTY {
		return FormatPretty
	}
	return FormatText
}

// NewLogger creates a logger for the given format and level.
func NewLogger(out io.Writer, format string, level slog.Level) (*slog.Logger, error) {
	var handler slog.Handler
	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	case FormatText:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	case FormatPretty:
		handler = NewPrettyHandler(out, level)
	default:
		return nil, fmt.Errorf("unknown format %q: %w", format, ErrUnknownFormat)
	}
	return slog.New(handler), nil
}

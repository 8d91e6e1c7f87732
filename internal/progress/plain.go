package progress

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ndisidore/mixup/pkg/slogctx"
)

// Plain emits every event as a slog message. The slog handler (pretty, json
// or text) decides how it looks.
type Plain struct {
	ctx context.Context
	log *slog.Logger
}

// Start logs the size of the batch.
func (p *Plain) Start(ctx context.Context, files []string) error {
	p.ctx, p.log = ctx, slogctx.FromContext(ctx)
	p.log.LogAttrs(ctx, slog.LevelInfo, fmt.Sprintf("building %d documents", len(files)),
		slog.String("event", "build.start"),
		slog.Int("files", len(files)),
	)
	return nil
}

// Send logs ev.
func (p *Plain) Send(ev Event) {
	if p.log == nil {
		return
	}
	logEvent(p.ctx, p.log, ev)
}

// Seal is a no-op for Plain.
func (*Plain) Seal() {}

// Wait returns immediately; Plain renders synchronously.
func (*Plain) Wait() error { return nil }

func logEvent(ctx context.Context, log *slog.Logger, ev Event) {
	base := []slog.Attr{
		slog.String("file", ev.File),
		slog.String("event", "file."+ev.Status.String()),
	}

	switch ev.Status {
	case StatusFailed:
		attrs := append(base, slog.Any("error", ev.Err))
		//nolint:sloglint // dynamic msg encodes user-facing formatted output
		log.LogAttrs(ctx, slog.LevelError, fmt.Sprintf("[%s] FAIL: %v", ev.File, ev.Err), attrs...)
	case StatusWritten:
		attrs := append(base, slog.Int("nodes", ev.Nodes), slog.Duration("duration", ev.Duration))
		//nolint:sloglint // dynamic msg encodes user-facing formatted output
		log.LogAttrs(ctx, slog.LevelInfo, fmt.Sprintf("[%s] written", ev.File), attrs...)
	case StatusUnchanged:
		//nolint:sloglint // dynamic msg encodes user-facing formatted output
		log.LogAttrs(ctx, slog.LevelInfo, fmt.Sprintf("[%s] unchanged", ev.File), base...)
	case StatusCompiling:
		//nolint:sloglint // dynamic msg encodes user-facing formatted output
		log.LogAttrs(ctx, slog.LevelDebug, fmt.Sprintf("[%s] compiling", ev.File), base...)
	default:
	}
}

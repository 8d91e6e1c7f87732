package progress

import (
	"context"
	"log/slog"

	"github.com/ndisidore/mixup/pkg/slogctx"
)

// Quiet only reports failures; all other progress is suppressed.
type Quiet struct {
	ctx context.Context
	log *slog.Logger
}

// Start records the logger failures are reported to.
func (q *Quiet) Start(ctx context.Context, _ []string) error {
	q.ctx, q.log = ctx, slogctx.FromContext(ctx)
	return nil
}

// Send logs ev when it is a failure.
func (q *Quiet) Send(ev Event) {
	if q.log == nil || ev.Status != StatusFailed {
		return
	}
	logEvent(q.ctx, q.log, ev)
}

// Seal is a no-op for Quiet.
func (*Quiet) Seal() {}

// Wait returns immediately.
func (*Quiet) Wait() error { return nil }

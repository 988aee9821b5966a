// internal/driver/devtools/context.go
package devtools

import (
	"context"
	"time"
)

// combine derives a context from tab (which carries the chromedp target)
// that is also canceled when op is done. The cause of an op-triggered
// cancellation is op's own error, so a caller deadline still reads as
// context.DeadlineExceeded through context.Cause.
func combine(tab, op context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(tab)
	stop := context.AfterFunc(op, func() {
		cancel(op.Err())
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// commandContext combines tab and op and bounds the result by timeout.
func commandContext(tab, op context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := combine(tab, op)
	if timeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, timeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

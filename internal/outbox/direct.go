package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/homeroom/internal/remote"
)

// Direct sends each write on its own goroutine and only logs failures.
// Nothing is retried and nothing survives a restart.
type Direct struct {
	caller  remote.Caller
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDirect creates a fire-and-forget dispatcher. timeout bounds each call;
// zero leaves it to the transport.
func NewDirect(caller remote.Caller, timeout time.Duration, logger *slog.Logger) *Direct {
	if logger == nil {
		logger = slog.Default()
	}
	return &Direct{caller: caller, timeout: timeout, logger: logger}
}

// Dispatch starts the call and returns immediately.
func (d *Direct) Dispatch(action remote.Action, payload any, _ any) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx := context.Background()
		if d.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		if err := d.caller.Call(ctx, action, payload, nil); err != nil {
			d.logger.Warn("remote write failed", "action", action, "error", err)
		}
	}()
}

// Wait blocks until every dispatched call has finished.
func (d *Direct) Wait() {
	d.wg.Wait()
}

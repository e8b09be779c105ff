// Package syncer owns the reconciliation state machine.
//
//	IDLE  --Sync-->  SYNCING  --all fetches ok-->  IDLE   (cache replaced)
//	ERROR --Sync-->  SYNCING  --any fetch fails->  ERROR  (cache untouched)
//
// Sync while SYNCING is a no-op. Every transition is published to the hub.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/hub"
	"github.com/roach88/homeroom/internal/remote"
)

// DefaultTimeout bounds one reconciliation, including the wait for the
// outbox and the bulk fetch.
const DefaultTimeout = 45 * time.Second

// Merger re-applies unacknowledged writes onto a fetched snapshot.
// *outbox.Outbox implements it.
type Merger interface {
	// Hold pauses write delivery so no write can be acknowledged (and
	// forgotten) between the fetch and the merge. It fails once ctx is done.
	Hold(ctx context.Context) (release func(), err error)
	MergePending(ctx context.Context, s *cache.Snapshot) error
}

// Controller runs full reconciliations against the backend.
type Controller struct {
	cache   *cache.Cache
	caller  remote.Caller
	hub     *hub.Hub
	merger  Merger
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	// mu guards status and is held while a transition is published, so
	// observers see transitions in the order they happened.
	mu     sync.Mutex
	status hub.Status
}

// Option configures a Controller.
type Option func(*Controller)

// WithMerger enables the outbox merge.
func WithMerger(m Merger) Option {
	return func(c *Controller) { c.merger = m }
}

// WithTimeout bounds one reconciliation.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// WithClock replaces time.Now for the lastSync stamp.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller in the IDLE state and publishes that state.
func New(c *cache.Cache, caller remote.Caller, h *hub.Hub, opts ...Option) *Controller {
	ctrl := &Controller{
		cache:   c,
		caller:  caller,
		hub:     h,
		timeout: DefaultTimeout,
		now:     time.Now,
		logger:  slog.Default(),
		status:  hub.StatusIdle,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	h.Publish(ctrl.stateLocked())
	return ctrl
}

// State returns the current status and last successful sync time.
func (c *Controller) State() hub.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Sync runs one reconciliation. It never reports failure to the caller: the
// outcome is visible only through the hub (or State). Overlapping calls
// return immediately while one is in flight.
func (c *Controller) Sync(ctx context.Context) {
	if !c.begin() {
		c.logger.Debug("sync already in progress")
		return
	}

	start := time.Now()
	err := c.reconcile(ctx)
	if err != nil {
		c.logger.Warn("sync failed", "error", err, "duration", time.Since(start))
		c.transition(hub.StatusError)
		return
	}
	c.logger.Info("sync completed", "duration", time.Since(start))
	c.transition(hub.StatusIdle)
}

func (c *Controller) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == hub.StatusSyncing {
		return false
	}
	c.status = hub.StatusSyncing
	c.hub.Publish(c.stateLocked())
	return true
}

func (c *Controller) transition(to hub.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = to
	c.hub.Publish(c.stateLocked())
}

func (c *Controller) stateLocked() hub.State {
	return hub.State{Status: c.status, LastSync: c.cache.LastSync()}
}

func (c *Controller) reconcile(ctx context.Context) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.merger != nil {
		release, err := c.merger.Hold(ctx)
		if err != nil {
			return fmt.Errorf("wait for outbox: %w", err)
		}
		defer release()
	}

	fetched, err := c.fetchAll(ctx)
	if err != nil {
		return err
	}

	return c.cache.Update(func(s *cache.Snapshot) error {
		if c.merger != nil {
			if err := c.merger.MergePending(ctx, &fetched); err != nil {
				return err
			}
		}
		now := c.now().UTC()
		fetched.LastSync = &now
		*s = fetched
		return nil
	})
}

// fetchAll lists every collection concurrently. The first failure cancels
// the remaining calls; no partial snapshot is ever returned.
func (c *Controller) fetchAll(ctx context.Context) (cache.Snapshot, error) {
	cols := cache.All()
	results := make([]json.RawMessage, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	for i, col := range cols {
		g.Go(func() error {
			var raw json.RawMessage
			action := remote.Of(col.Domain(), remote.VerbList)
			if err := c.caller.Call(gctx, action, nil, &raw); err != nil {
				return fmt.Errorf("fetch %s: %w", col.Kind(), err)
			}
			results[i] = raw
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cache.Snapshot{}, err
	}

	snap := cache.EmptySnapshot()
	for i, col := range cols {
		raw := results[i]
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		if err := col.SetJSON(&snap, raw); err != nil {
			return cache.Snapshot{}, err
		}
	}
	return snap, nil
}

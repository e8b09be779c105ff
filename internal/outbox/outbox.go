package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/homeroom/internal/cache"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/store"
)

// Dispatcher hands an optimistic write to the backend without waiting for
// it. local is the record as written to the cache, or nil when the payload
// already is that record.
type Dispatcher interface {
	Dispatch(action remote.Action, payload any, local any)
}

// Store is the durable queue the outbox is kept in. *store.Store implements it.
type Store interface {
	AppendOutbox(ctx context.Context, e store.OutboxEntry) error
	PendingOutbox(ctx context.Context) ([]store.OutboxEntry, error)
	HeadOutbox(ctx context.Context) (store.OutboxEntry, bool, error)
	DeleteOutbox(ctx context.Context, id string) error
	RescheduleOutbox(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
	CountOutbox(ctx context.Context) (int, error)
}

// Config controls flushing and retry.
type Config struct {
	FlushInterval time.Duration
	BaseBackoff   time.Duration
	MaxBackoff    time.Duration
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		FlushInterval: 10 * time.Second,
		BaseBackoff:   2 * time.Second,
		MaxBackoff:    5 * time.Minute,
	}
}

// Outbox is a durable FIFO of writes waiting for backend acknowledgement.
//
// Entries are sent strictly in order: a failing head entry blocks the ones
// behind it until it succeeds, so a create always lands before its update.
// An entry is deleted only after the backend accepted it, or when the
// backend can never accept it (schema violation).
type Outbox struct {
	store  Store
	caller remote.Caller
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	newID  func() string

	// slot is a one-entry semaphore, held while one entry is being sent
	// and by Hold.
	slot   chan struct{}
	signal chan struct{}
}

// Option configures an Outbox.
type Option func(*Outbox)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Outbox) { o.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

// WithIDs replaces the UUIDv7 entry identifier source.
func WithIDs(newID func() string) Option {
	return func(o *Outbox) { o.newID = newID }
}

// New creates an outbox over st that delivers through caller.
func New(st Store, caller remote.Caller, cfg Config, opts ...Option) *Outbox {
	o := &Outbox{
		store:  st,
		caller: caller,
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.Must(uuid.NewV7()).String() },
		slot:   make(chan struct{}, 1),
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Dispatch appends a write to the outbox and wakes the flusher.
// The entry is durable when Dispatch returns; failures are logged.
func (o *Outbox) Dispatch(action remote.Action, payload any, local any) {
	if err := o.Enqueue(context.Background(), action, payload, local); err != nil {
		o.logger.Error("outbox enqueue failed", "action", action, "error", err)
	}
}

// Enqueue is Dispatch with the error returned.
func (o *Outbox) Enqueue(ctx context.Context, action remote.Action, payload any, local any) error {
	if !remote.Known(action) {
		return fmt.Errorf("%w: %q", remote.ErrUnknownAction, action)
	}

	p, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", action, err)
	}
	var l []byte
	if local != nil {
		if l, err = json.Marshal(local); err != nil {
			return fmt.Errorf("encode %s local record: %w", action, err)
		}
	}

	e := store.OutboxEntry{
		ID:        o.newID(),
		Action:    string(action),
		Payload:   p,
		Local:     l,
		CreatedAt: o.now(),
	}
	if err := o.store.AppendOutbox(ctx, e); err != nil {
		return err
	}

	// Non-blocking: one pending signal is enough to trigger a flush.
	select {
	case o.signal <- struct{}{}:
	default:
	}
	return nil
}

// Flush sends due entries in order until the outbox is empty, the head entry
// is not yet due, or the head entry fails. Returns the number delivered.
//
// The delivery slot is taken per entry, so Hold waits for at most one
// in-flight call.
func (o *Outbox) Flush(ctx context.Context) (int, error) {
	sent := 0
	for {
		delivered, more, err := o.flushHead(ctx)
		if delivered {
			sent++
		}
		if err != nil || !more {
			return sent, err
		}
	}
}

// flushHead sends the head entry if it is due. more reports whether the
// next entry may be tried right away.
func (o *Outbox) flushHead(ctx context.Context) (delivered, more bool, err error) {
	if err := o.acquire(ctx); err != nil {
		return false, false, err
	}
	defer o.release()

	head, ok, err := o.store.HeadOutbox(ctx)
	if err != nil {
		return false, false, err
	}
	if !ok || head.NextAttemptAt.After(o.now()) {
		return false, false, nil
	}

	callErr := o.caller.Call(ctx, remote.Action(head.Action), json.RawMessage(head.Payload), nil)
	switch {
	case callErr == nil:
		if err := o.store.DeleteOutbox(ctx, head.ID); err != nil {
			return false, false, err
		}
		return true, true, nil

	case ctx.Err() != nil:
		// Shutting down; the attempt does not count.
		return false, false, ctx.Err()

	case remote.IsPermanent(callErr):
		o.logger.Error("outbox entry rejected, dropping",
			"id", head.ID, "action", head.Action, "error", callErr)
		if err := o.store.DeleteOutbox(ctx, head.ID); err != nil {
			return false, false, err
		}
		return false, true, nil

	default:
		attempts := head.Attempts + 1
		delay := o.Backoff(attempts)
		o.logger.Warn("outbox delivery failed",
			"id", head.ID, "action", head.Action, "attempts", attempts,
			"retry_in", delay, "error", callErr)
		if err := o.store.RescheduleOutbox(ctx, head.ID, attempts, o.now().Add(delay), callErr.Error()); err != nil {
			return false, false, err
		}
		return false, false, nil
	}
}

func (o *Outbox) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case o.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) release() { <-o.slot }

// Backoff returns the delay before retry number attempts (1-based):
// BaseBackoff * 2^(attempts-1), capped at MaxBackoff. A MaxBackoff <= 0
// means no cap.
func (o *Outbox) Backoff(attempts int) time.Duration {
	d := o.cfg.BaseBackoff
	if d <= 0 {
		return 0
	}
	limit := o.cfg.MaxBackoff
	if limit <= 0 {
		limit = math.MaxInt64
	}
	for i := 1; i < attempts; i++ {
		if d >= limit/2 {
			return limit
		}
		d *= 2
	}
	return min(d, limit)
}

// Run flushes on every tick and whenever a write is dispatched, until ctx
// is done.
func (o *Outbox) Run(ctx context.Context) {
	interval := o.cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultConfig().FlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.flushLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-o.signal:
		}
		o.flushLogged(ctx)
	}
}

func (o *Outbox) flushLogged(ctx context.Context) {
	n, err := o.Flush(ctx)
	if err != nil && ctx.Err() == nil {
		o.logger.Error("outbox flush failed", "error", err)
	}
	if n > 0 {
		o.logger.Debug("outbox flushed", "delivered", n)
	}
}

// Pending returns the undelivered entries, oldest first.
func (o *Outbox) Pending(ctx context.Context) ([]store.OutboxEntry, error) {
	return o.store.PendingOutbox(ctx)
}

// Len returns the number of undelivered entries.
func (o *Outbox) Len(ctx context.Context) (int, error) {
	return o.store.CountOutbox(ctx)
}

// Hold stops deliveries until release is called. It waits for the entry in
// flight, if any, and gives up when ctx is done.
func (o *Outbox) Hold(ctx context.Context) (release func(), err error) {
	if err := o.acquire(ctx); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(o.release) }, nil
}

// MergePending re-applies every undelivered entry, oldest first, on top of s.
// Entries that cannot be applied are logged and skipped.
func (o *Outbox) MergePending(ctx context.Context, s *cache.Snapshot) error {
	entries, err := o.store.PendingOutbox(ctx)
	if err != nil {
		return fmt.Errorf("load pending writes: %w", err)
	}
	for _, e := range entries {
		if err := Replay(s, e); err != nil {
			o.logger.Warn("pending write not merged", "id", e.ID, "action", e.Action, "error", err)
		}
	}
	return nil
}

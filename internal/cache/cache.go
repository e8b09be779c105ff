package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/homeroom/internal/store"
)

// Persister is the durable slot the snapshot is written to.
// store.Slot implements it.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, value []byte) error
}

// Cache is the in-memory working copy of every collection.
//
// Reads never touch the network and never fail. Every mutation is persisted
// before it returns; a persist failure is logged and the in-memory state is
// kept.
type Cache struct {
	mu        sync.RWMutex
	snap      Snapshot
	persister Persister
	logger    *slog.Logger
}

// Load builds a cache from the persisted snapshot. An absent or malformed
// snapshot yields an empty cache; Load never fails.
func Load(ctx context.Context, p Persister, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{snap: EmptySnapshot(), persister: p, logger: logger}
	if p == nil {
		return c
	}

	data, err := p.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Warn("cache load failed, starting empty", "error", err)
		}
		return c
	}

	snap, err := Decode(data)
	if err != nil {
		logger.Warn("cache snapshot malformed, starting empty", "error", err)
		return c
	}
	c.snap = snap
	return c
}

// Snapshot returns a copy of the current contents.
func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

// LastSync returns the time of the last successful reconciliation, or nil.
func (c *Cache) LastSync() *time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap.LastSync == nil {
		return nil
	}
	t := *c.snap.LastSync
	return &t
}

// ReplaceAll swaps in a whole new snapshot atomically and persists it.
func (c *Cache) ReplaceAll(s Snapshot) {
	s = s.Clone()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
	c.persistLocked()
}

// Update runs fn with exclusive access to the live snapshot and persists the
// result. If fn returns an error nothing is persisted and the error is
// returned; fn must not have modified s in that case.
func (c *Cache) Update(fn func(s *Snapshot) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := fn(&c.snap); err != nil {
		return err
	}
	c.snap.normalize()
	c.persistLocked()
	return nil
}

func (c *Cache) persistLocked() {
	if c.persister == nil {
		return
	}
	data, err := Encode(c.snap)
	if err != nil {
		c.logger.Error("cache encode failed", "error", err)
		return
	}
	if err := c.persister.Save(context.Background(), data); err != nil {
		c.logger.Error("cache persist failed", "error", err)
	}
}

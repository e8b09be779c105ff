package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a key has never been written or was deleted.
var ErrNotFound = errors.New("store: not found")

// Get returns the value stored under key.
// Returns ErrNotFound if the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Put replaces the value stored under key. The write is atomic: a reader sees
// either the previous value or the new one, never a torn document.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Slot is a single named document in the kv table.
// The cache keeps its snapshot in one slot and the session its user in another.
type Slot struct {
	store *Store
	key   string
}

// Slot returns a handle to the document stored under key.
func (s *Store) Slot(key string) *Slot {
	return &Slot{store: s, key: key}
}

// Key returns the slot's storage key.
func (sl *Slot) Key() string { return sl.key }

// Load reads the slot. Returns ErrNotFound if it was never saved.
func (sl *Slot) Load(ctx context.Context) ([]byte, error) {
	return sl.store.Get(ctx, sl.key)
}

// Save overwrites the slot.
func (sl *Slot) Save(ctx context.Context, value []byte) error {
	return sl.store.Put(ctx, sl.key, value)
}

// Clear removes the slot.
func (sl *Slot) Clear(ctx context.Context) error {
	return sl.store.Delete(ctx, sl.key)
}

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// OutboxEntry is a write that was applied locally and still has to reach the
// backend. Entries are delivered in Seq order.
type OutboxEntry struct {
	Seq           int64
	ID            string
	Action        string
	Payload       []byte
	Local         []byte // record as applied to the cache, nil when the payload is enough
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
}

// AppendOutbox adds an entry to the tail of the outbox.
// Uses ON CONFLICT(id) DO NOTHING - appending the same ID twice is a no-op.
func (s *Store) AppendOutbox(ctx context.Context, e OutboxEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox
		(id, action, payload, local, attempts, next_attempt_at, last_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Action,
		e.Payload,
		e.Local,
		e.Attempts,
		unixMilli(e.NextAttemptAt),
		e.LastError,
		unixMilli(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append outbox: %w", err)
	}
	return nil
}

// PendingOutbox returns every entry, oldest first.
// Returns an empty slice (not nil) when the outbox is drained.
func (s *Store) PendingOutbox(ctx context.Context) ([]OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, action, payload, local, attempts, next_attempt_at, last_error, created_at
		FROM outbox
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		e, err := scanOutboxEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// HeadOutbox returns the oldest entry. ok is false when the outbox is empty.
func (s *Store) HeadOutbox(ctx context.Context) (e OutboxEntry, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, action, payload, local, attempts, next_attempt_at, last_error, created_at
		FROM outbox
		ORDER BY seq ASC
		LIMIT 1
	`)
	e, err = scanOutboxEntry(row)
	if err == sql.ErrNoRows {
		return OutboxEntry{}, false, nil
	}
	if err != nil {
		return OutboxEntry{}, false, err
	}
	return e, true, nil
}

// DeleteOutbox removes a delivered (or permanently rejected) entry.
func (s *Store) DeleteOutbox(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete outbox %s: %w", id, err)
	}
	return nil
}

// RescheduleOutbox records a failed attempt and when to try again.
func (s *Store) RescheduleOutbox(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = ?, next_attempt_at = ?, last_error = ?
		WHERE id = ?
	`, attempts, unixMilli(next), lastErr, id)
	if err != nil {
		return fmt.Errorf("reschedule outbox %s: %w", id, err)
	}
	return nil
}

// CountOutbox returns the number of undelivered entries.
func (s *Store) CountOutbox(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count outbox: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutboxEntry(row rowScanner) (OutboxEntry, error) {
	var (
		e             OutboxEntry
		local         []byte
		nextAttemptAt int64
		createdAt     int64
	)
	err := row.Scan(&e.Seq, &e.ID, &e.Action, &e.Payload, &local, &e.Attempts, &nextAttemptAt, &e.LastError, &createdAt)
	if err == sql.ErrNoRows {
		return OutboxEntry{}, err
	}
	if err != nil {
		return OutboxEntry{}, fmt.Errorf("scan outbox entry: %w", err)
	}
	if len(local) > 0 {
		e.Local = local
	}
	e.NextAttemptAt = fromUnixMilli(nextAttemptAt)
	e.CreatedAt = fromUnixMilli(createdAt)
	return e, nil
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

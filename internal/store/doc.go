// Package store provides SQLite-backed durable storage for the homeroom client.
//
// Two tables live in one database file:
//   - kv: named documents. The cache snapshot and the signed-in user each
//     occupy one slot, replaced wholesale on every write.
//   - outbox: writes that were applied locally but not yet acknowledged by the
//     backend, delivered strictly in seq order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=FULL: A returned write survives a crash
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Timestamps are stored as Unix milliseconds; zero means unset.
package store

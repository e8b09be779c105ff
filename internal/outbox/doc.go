// Package outbox delivers optimistic writes to the backend.
//
// Outbox keeps every write in SQLite until the backend acknowledges it,
// retrying the head entry with exponential backoff. Before a fetched snapshot
// replaces the cache, MergePending re-applies the writes still waiting, so a
// reconciliation can no longer revert a local change the backend has not seen
// yet.
//
// Direct is the plain fire-and-forget dispatcher used when the outbox is
// disabled.
package outbox

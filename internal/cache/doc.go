// Package cache holds the complete local working copy of every collection.
//
// All reads are answered from memory. Every mutation is followed by a
// synchronous write of the whole snapshot to its Persister, so a crash right
// after a write cannot lose it. Foreign keys are not enforced: filters over a
// dangling reference return an empty slice.
//
// Typed access goes through the Collection values (Classes, Students, ...).
// Composite edits that must be atomic use Cache.Update.
package cache

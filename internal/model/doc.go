// Package model defines the records held by the homeroom cache.
//
// Field names and JSON tags follow the wire shapes exchanged with the remote
// backend, so the same structs are used for the persisted snapshot, the RPC
// payloads and the values returned to callers. Dates are kept as the strings
// the backend produces ("YYYY-MM-DD" for calendar days, RFC 3339 for instants)
// because range filters compare them lexically.
//
// Every cached record implements Record. Foreign-key-like fields (ClassID,
// StudentID, ThreadID, TaskID) are never enforced; readers treat dangling
// references as "no match".
package model

// Package remote is the client side of the backend RPC protocol.
//
// Every call is a single POST of {"action": "<domain>.<verb>", "payload": ...}
// answered by {"ok": true, "data": ...} or {"ok": false, "error": "..."}.
// Actions form a closed catalog; each names a CUE definition for its payload
// and one for its result (schema.cue). With a Validator attached, both sides
// are checked at the client boundary and mismatches surface as SchemaError.
//
// Transport failures, non-2xx statuses and ok:false all surface as
// RemoteError. The client never retries.
package remote

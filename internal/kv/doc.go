// Package kv provides the key-value storage capability the cart and the
// checkout selection persist through.
//
// Three implementations share the Store interface:
//   - Memory: process-local map, used by tests and the "memory" driver
//   - SQLite: durable single-file storage (WAL mode, schema migrations)
//   - Redis: shared storage with native key expiry
//
// Values are opaque bytes; callers own the encoding. Absent keys are reported
// as ErrNotFound so callers can tell "nothing stored" apart from I/O failure.
//
// Expiry is optional. WithTTL wraps a Store so that every Set carries a
// time-to-live, which is how the session-scoped checkout selection is kept
// shorter-lived than the cart.
package kv

package zone

import "errors"

// Sentinel errors surfaced by Zone operations. Most zone failures are
// logged and absorbed rather than returned (see spec.md §7); these
// cover the handful of cases a caller must be able to branch on.
var (
	// ErrNotReady names a zone whose mailbox closed before a reply
	// arrived. No Handle method returns it: a send on a closed
	// mailbox panics instead (see handle.go).
	ErrNotReady = errors.New("zone: closed before reply")
)

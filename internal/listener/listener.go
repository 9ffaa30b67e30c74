// Package listener tracks client subscriptions registered against a
// zone's tree and reclassifies them when the subtree they watch is
// delegated to a new zone. See spec.md §4.4 and
// original_source/src/listener.rs.
package listener

import (
	"github.com/bytedance/sonic"

	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
)

// Sink delivers an already-encoded push message to whatever client
// connection owns a subscription. Implementations live in
// internal/clientproto; Send returning an error means the connection
// is gone and the listener should be dropped.
type Sink interface {
	Send(msg []byte) error
}

// Listener is one client subscription live inside a zone.
type Listener struct {
	// ID identifies the subscription to the owning client connection,
	// echoed back on every push so the client can route it to the
	// right pending call.
	ID uint64
	// Root is the path the client originally subscribed to, stable for
	// the lifetime of the subscription regardless of delegation.
	Root path.Path
	// Relative is Root's position relative to whichever zone currently
	// holds this Listener. It starts equal to Root and shrinks as the
	// subscription follows its data across delegation boundaries.
	Relative path.Path
	Sink     Sink
}

// New registers a fresh subscription at root, not yet delegated
// anywhere, so Relative starts out equal to Root.
func New(id uint64, root path.Path, sink Sink) *Listener {
	return &Listener{ID: id, Root: root, Relative: root.Clone(), Sink: sink}
}

// Notify encodes and delivers update to the listener's sink. It
// reports whether the sink is still usable; the caller should drop the
// listener on false.
func (l *Listener) Notify(update *node.Update) bool {
	if update.IsNoop() {
		return true
	}
	payload, err := sonic.Marshal([]any{l.ID, update})
	if err != nil {
		return false
	}
	return l.Sink.Send(payload) == nil
}

// Delegate reclassifies l against a subtree being handed off at d
// (relative to the zone currently holding l), per path.Path.Delegate.
// kept is non-nil when l should remain registered at the current zone;
// forwarded is non-nil when a copy of l, re-rooted at d, should follow
// the data to its new owning zone. Both can be non-nil at once when a
// wildcard subscription overlaps the delegation boundary.
func (l *Listener) Delegate(d path.Path) (kept, forwarded *Listener) {
	retain, forward := l.Relative.Delegate(d)
	if retain {
		kept = l
	}
	if forward != nil {
		f := *l
		f.Relative = *forward
		forwarded = &f
	}
	return kept, forwarded
}

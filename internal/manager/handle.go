package manager

import (
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// RequestLoad implements zone.Router: a zone transitioning Idle→Init
// asks the manager for an admission slot.
func (h *Handle) RequestLoad(zh *zone.Handle) {
	h.tx <- requestLoadCall{zh: zh}
}

// ZoneHibernated implements zone.Router: a zone reports that it has
// dropped its in-memory data and freed its slot.
func (h *Handle) ZoneHibernated(zh *zone.Handle) {
	h.tx <- zoneHibernatedCall{zh: zh}
}

// RouteExternal implements zone.Router: a zone hands off a subtree
// that just crossed (or already sits across) a delegation boundary.
func (h *Handle) RouteExternal(zonePath path.Path, ext node.External, forwarded []*listener.Listener) {
	h.tx <- routeExternalCall{zonePath: zonePath, ext: ext, forwarded: forwarded}
}

// FindNearest walks p upward until it finds a loaded or known zone,
// per spec.md §4.5. The root always matches.
func (h *Handle) FindNearest(p path.Path) (matched path.Path, handle *zone.Handle) {
	reply := make(chan findNearestReply, 1)
	h.tx <- findNearestCall{path: p, reply: reply}
	r := <-reply
	return r.matched, r.handle
}

// Find is an exact registry lookup.
func (h *Handle) Find(p path.Path) (*zone.Handle, bool) {
	reply := make(chan findReply, 1)
	h.tx <- findCall{path: p, reply: reply}
	r := <-reply
	return r.handle, r.ok
}

// Load is find-or-create.
func (h *Handle) Load(p path.Path) *zone.Handle {
	reply := make(chan *zone.Handle, 1)
	h.tx <- loadCall{path: p, reply: reply}
	return <-reply
}

// Stats reports the registry's current admission state.
func (h *Handle) Stats() Stats {
	reply := make(chan statsReply, 1)
	h.tx <- statsCall{reply: reply}
	r := <-reply
	return Stats{Zones: r.Zones, Loaded: r.Loaded, Waiting: r.Waiting}
}

// ListZones returns every path currently registered, loaded or not.
func (h *Handle) ListZones() []path.Path {
	reply := make(chan []path.Path, 1)
	h.tx <- listZonesCall{reply: reply}
	return <-reply
}

// Dispatch resolves cmd's path to its nearest owning zone and forwards
// the command, relativized to that zone's own root, per spec.md §4.5's
// find_nearest data flow.
func (h *Handle) Dispatch(cmd zone.Command, listenerID uint64, sink listener.Sink) (zone.DispatchResult, error) {
	matched, zh := h.FindNearest(cmd.Path)
	cmd.Path = cmd.Path.Slice(matched.Len())
	return zh.Dispatch(cmd, listenerID, sink)
}

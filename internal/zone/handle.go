package zone

import (
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// Every blocking Handle method follows spec.md §9's "send request with
// one-shot reply channel; await channel" pattern. A send to a zone
// whose goroutine has exited panics on the closed channel, matching
// spec.md §7's "channel send to a missing required component" policy
// — zones are never intentionally torn down in this design.

// Dispatch applies a Bind, Kill, Read, or Write command and returns
// its result. listenerID/sink are only consulted for CommandBind; pass
// zero/nil otherwise.
func (h *Handle) Dispatch(cmd Command, listenerID uint64, sink listener.Sink) (DispatchResult, error) {
	reply := make(chan dispatchReply, 1)
	h.tx <- userCommandCall{command: cmd, listenerID: listenerID, sink: sink, reply: reply}
	r := <-reply
	return r.result, r.err
}

// Merge applies diff to the zone's tree, replicating the diff to the
// cluster if replicate is set.
func (h *Handle) Merge(diff *node.Node, replicate bool) *node.Update {
	reply := make(chan mergeReply, 1)
	h.tx <- mergeCall{diff: diff, replicate: replicate, reply: reply}
	return (<-reply).update
}

// MergeWithListeners applies diff and additionally registers listeners
// that already hold a snapshot from before this data arrived; it must
// be driven with the reverse diff to bring them up to date.
func (h *Handle) MergeWithListeners(diff *node.Node, listeners []*listener.Listener) *node.Update {
	reply := make(chan mergeReply, 1)
	h.tx <- mergeWithListenersCall{diff: diff, listeners: listeners, reply: reply}
	return (<-reply).update
}

// MergeAsync is Merge without waiting for the resulting update,
// for callers (the manager routing an External) that must never block
// on a zone they do not own the lifecycle of.
func (h *Handle) MergeAsync(diff *node.Node, replicate bool) {
	h.tx <- mergeCall{diff: diff, replicate: replicate}
}

// MergeWithListenersAsync is MergeWithListeners without waiting for
// the resulting update.
func (h *Handle) MergeWithListenersAsync(diff *node.Node, listeners []*listener.Listener) {
	h.tx <- mergeWithListenersCall{diff: diff, listeners: listeners}
}

// SeedVis sets the inherited ancestor visibility a newly delegated
// zone's root should use, before the snapshot that follows it merges
// in. Queued like any other data-accessing call, so it always lands
// ahead of the merge the manager sends right after it.
func (h *Handle) SeedVis(v vis.Vis) {
	h.tx <- seedVisCall{vis: v}
}

// Load requests that the zone begin loading from storage. Fire and
// forget: the zone replies asynchronously via Loaded.
func (h *Handle) Load() {
	h.tx <- loadCall{}
}

// Loaded delivers a snapshot (or load error) back to the zone.
func (h *Handle) Loaded(data *node.NodeTree, err error) {
	h.tx <- loadedCall{data: data, err: err}
}

// Save requests that the zone persist its current snapshot.
func (h *Handle) Save() {
	h.tx <- saveCall{}
}

// Saved signals that a requested write finished (or failed).
func (h *Handle) Saved(err error) {
	h.tx <- savedCall{err: err}
}

// Hibernate requests the zone drop its in-memory data if idle-safe.
func (h *Handle) Hibernate() {
	h.tx <- hibernateCall{}
}

// Size returns the zone's current estimated byte size.
func (h *Handle) Size() int {
	reply := make(chan int, 1)
	h.tx <- sizeCall{reply: reply}
	return <-reply
}

// State returns the zone's current lifecycle state.
func (h *Handle) State() State {
	reply := make(chan State, 1)
	h.tx <- stateCall{reply: reply}
	return <-reply
}

// Dump returns a full read of the zone's tree, for the operator shell
// and monitor endpoint.
func (h *Handle) Dump() *node.Update {
	reply := make(chan *node.Update, 1)
	h.tx <- dumpCall{reply: reply}
	return <-reply
}

// Snapshot returns a clone of the zone's raw tree, for cluster.Cluster
// to gossip a complete picture to a peer rather than only diffs.
func (h *Handle) Snapshot() *node.NodeTree {
	reply := make(chan *node.NodeTree, 1)
	h.tx <- snapshotCall{reply: reply}
	return <-reply
}

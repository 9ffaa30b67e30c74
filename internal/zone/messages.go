package zone

import (
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// CommandKind discriminates the four user-facing operations a zone
// dispatches, per spec.md §4.4.
type CommandKind uint8

const (
	CommandBind CommandKind = iota
	CommandKill
	CommandRead
	CommandWrite
)

// Command is a client-issued operation addressed at a path relative to
// the zone handling it.
type Command struct {
	Kind      CommandKind
	Path      path.Path
	Value     any // decoded JSON payload, meaningful for CommandWrite only
	Timestamp uint64
}

// DispatchResult is what a Dispatch call returns: the resulting update
// plus any points where the command's path ran into a subtree owned by
// a different zone.
type DispatchResult struct {
	Update    *node.Update
	Delegated []node.DelegatedMatch
}

// call is the zone mailbox's closed message set. It is unexported and
// dispatched by type switch, since Go has no enum-with-payload: the
// same role the original implementation's ZoneCall enum plays.
type call interface {
	isZoneCall()
}

type dispatchReply struct {
	result DispatchResult
	err    error
}

type userCommandCall struct {
	command    Command
	listenerID uint64
	sink       listener.Sink
	reply      chan dispatchReply
}

type mergeReply struct {
	update *node.Update
}

type mergeCall struct {
	diff      *node.Node
	replicate bool
	reply     chan mergeReply
}

type mergeWithListenersCall struct {
	diff      *node.Node
	listeners []*listener.Listener
	reply     chan mergeReply
}

type loadCall struct{}

type loadedCall struct {
	data *node.NodeTree
	err  error
}

type saveCall struct{}

type savedCall struct {
	err error
}

type hibernateCall struct{}

// seedVisCall sets a freshly delegated zone's inherited ancestor
// visibility before its first merge is applied. Routed through the
// same Ready()-gated queue as every other data-accessing call, so it
// always lands before the merge that follows it.
type seedVisCall struct {
	vis vis.Vis
}

type sizeCall struct {
	reply chan int
}

type stateCall struct {
	reply chan State
}

type dumpCall struct {
	reply chan *node.Update
}

// snapshotCall requests a clone of the zone's full current tree, for
// cluster.Cluster's local sync pass (LocalSync, also run by SyncAll)
// and the operator shell's zone.sync to broadcast a complete picture
// rather than relying solely on gossiped diffs.
type snapshotCall struct {
	reply chan *node.NodeTree
}

func (userCommandCall) isZoneCall()       {}
func (mergeCall) isZoneCall()             {}
func (mergeWithListenersCall) isZoneCall() {}
func (loadCall) isZoneCall()              {}
func (loadedCall) isZoneCall()            {}
func (saveCall) isZoneCall()              {}
func (savedCall) isZoneCall()             {}
func (hibernateCall) isZoneCall()         {}
func (seedVisCall) isZoneCall()           {}
func (sizeCall) isZoneCall()              {}
func (stateCall) isZoneCall()             {}
func (dumpCall) isZoneCall()              {}
func (snapshotCall) isZoneCall()          {}

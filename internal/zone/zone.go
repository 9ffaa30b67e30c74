// Package zone implements the Zone actor: the single-owner execution
// context for one subtree of the global data model, its finite
// lifecycle, and its interaction with listeners, its parent, and any
// children it delegates to. Grounded on original_source/src/zone.rs,
// with spec.md §4.1/§4.2/§9 superseding that file's unfinished
// delegation-handoff and several must-specify behaviors.
package zone

import (
	"log/slog"
	"time"

	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// splitBatchSize is how many user-driven merges accumulate between
// delegation-policy checks, per spec.md §4.4 ("at most one split per
// batch of N writes", default 10).
const splitBatchSize = 10

// Router is the subset of Manager a Zone needs to cooperate with: it
// never holds a Manager directly (spec.md §9's "typed handles, never a
// direct pointer" guidance for the Zone/Manager cyclic ownership).
type Router interface {
	RouteExternal(zonePath path.Path, ext node.External, forwarded []*listener.Listener)
	RequestLoad(h *Handle)
	ZoneHibernated(h *Handle)
}

// Storage is the subset of Store a Zone needs.
type Storage interface {
	Load(h *Handle)
	RequestWrite(h *Handle)
	Write(h *Handle, data *node.NodeTree)
}

// Replicator is the subset of Cluster a Zone needs.
type Replicator interface {
	Replicate(zonePath path.Path, diff *node.Node)
}

// Zone owns one NodeTree, its listeners, and its lifecycle state. It
// is driven exclusively by its own goroutine reading rx; all other
// access goes through Handle.
type Zone struct {
	path      path.Path
	tree      *node.NodeTree
	state     State
	listeners []*listener.Listener
	writes    int
	queued    []call

	manager Router
	store   Storage
	cluster Replicator
	policy  delegatepolicy.Policy

	handle *Handle
	rx     chan call
	log    *slog.Logger
}

// Handle is the send-only endpoint other actors use to talk to a Zone.
type Handle struct {
	Path path.Path
	tx   chan call
}

// Spawn creates and starts a Zone for p, returning its Handle. The
// root zone (empty path) starts with a permanently visible inherited
// Vis; every other zone's inherited Vis arrives later via Loaded or a
// delegation handoff.
func Spawn(p path.Path, manager Router, store Storage, cluster Replicator, policy delegatepolicy.Policy, log *slog.Logger) *Handle {
	z := &Zone{
		path:    p,
		tree:    node.NewNodeTree(p),
		state:   Idle,
		manager: manager,
		store:   store,
		cluster: cluster,
		policy:  policy,
		rx:      make(chan call, 64),
		log:     log.With("zone", p.String()),
	}
	z.handle = &Handle{Path: p, tx: z.rx}
	go z.run()
	return z.handle
}

func (z *Zone) run() {
	for c := range z.rx {
		z.dispatchMailboxCall(c)
	}
}

// dispatchMailboxCall implements the "Init/Loading queue all
// data-accessing calls; observational calls are handled immediately"
// gating from spec.md §4.4.
func (z *Zone) dispatchMailboxCall(c call) {
	switch v := c.(type) {
	case loadCall:
		z.handleLoad()
	case loadedCall:
		z.handleLoaded(v)
	case hibernateCall:
		z.handleHibernate()
	case sizeCall:
		v.reply <- z.tree.Node.ByteSize()
	case stateCall:
		v.reply <- z.state
	case dumpCall:
		upd, _ := z.tree.Read(path.Empty())
		v.reply <- upd
	case snapshotCall:
		v.reply <- &node.NodeTree{Node: z.tree.Node.Clone(), Vis: z.tree.Vis}
	default:
		if !z.state.Ready() {
			z.queued = append(z.queued, c)
			if z.state == Idle {
				z.state = Init
				z.manager.RequestLoad(z.handle)
			}
			return
		}
		z.handleReadyCall(c)
	}
}

func (z *Zone) handleReadyCall(c call) {
	switch v := c.(type) {
	case userCommandCall:
		z.handleUserCommand(v)
	case mergeCall:
		z.handleMerge(v)
	case mergeWithListenersCall:
		z.handleMergeWithListeners(v)
	case saveCall:
		z.handleSave()
	case savedCall:
		z.handleSaved(v)
	case seedVisCall:
		z.tree.Vis = v.vis
	}
}

func (z *Zone) handleLoad() {
	if z.state != Init {
		z.log.Warn("spurious load request", "state", z.state)
		return
	}
	z.state = Loading
	z.store.Load(z.handle)
}

// handleLoaded resolves Open Question 2 (spec.md §9): a persisted path
// that disagrees with this handle's path is treated as a Store read
// error, logged, and the zone proceeds with empty data — never a
// panic, since the mismatch can only arise from files moved around on
// disk, not a protocol violation.
func (z *Zone) handleLoaded(v loadedCall) {
	switch {
	case v.err != nil:
		z.log.Warn("zone load failed, starting empty", "err", v.err)
	case v.data != nil:
		z.tree = v.data
	}

	if z.path.Len() == 0 {
		z.tree.Vis = vis.Permanent()
	}

	z.state = Active

	queued := z.queued
	z.queued = nil
	for _, qc := range queued {
		z.dispatchMailboxCall(qc)
	}
}

func (z *Zone) handleHibernate() {
	if z.state != Active {
		// Defer: dirty or in-flight data must not be dropped silently.
		return
	}
	z.tree = node.NewNodeTree(z.path)
	z.listeners = nil
	z.state = Idle
	z.manager.ZoneHibernated(z.handle)
}

func (z *Zone) handleSave() {
	if z.state != Dirty {
		z.log.Warn("spurious save callback", "state", z.state)
		return
	}
	z.state = Writing
	z.store.Write(z.handle, z.tree)
}

// handleSaved resolves Open Question 1 (spec.md §9): a Saved arriving
// outside Writing/Dirty is logged and dropped rather than panicking,
// since it can race a concurrent Hibernate under spec.md §5's
// no-ordering-across-zones rule.
func (z *Zone) handleSaved(v savedCall) {
	if v.err != nil {
		z.log.Warn("zone write failed", "err", v.err)
	}
	switch z.state {
	case Writing:
		z.state = Active
	case Dirty:
		z.state = Dirty
		z.store.RequestWrite(z.handle)
	default:
		z.log.Warn("saved callback in unexpected state", "state", z.state)
	}
}

func (z *Zone) handleUserCommand(c userCommandCall) {
	var result DispatchResult
	var err error

	switch c.command.Kind {
	case CommandBind:
		result = z.bind(c.command.Path, c.listenerID, c.sink)
	case CommandKill:
		result = z.kill(c.command.Path, c.command.Timestamp)
	case CommandRead:
		upd, matches := z.tree.Read(c.command.Path)
		result = DispatchResult{Update: upd, Delegated: matches}
	case CommandWrite:
		result, err = z.write(c.command.Path, c.command.Value, c.command.Timestamp)
	}

	if c.reply != nil {
		c.reply <- dispatchReply{result: result, err: err}
	}
}

// bind attaches a listener (if a sink was provided) and performs a
// read, per spec.md §4.4's "Bind/Read".
func (z *Zone) bind(p path.Path, listenerID uint64, sink listener.Sink) DispatchResult {
	if sink != nil {
		z.listeners = append(z.listeners, listener.New(listenerID, p, sink))
	}
	upd, matches := z.tree.Read(p)
	return DispatchResult{Update: upd, Delegated: matches}
}

func (z *Zone) write(p path.Path, val any, ts uint64) (DispatchResult, error) {
	diff, err := node.ExpandFrom(p.Segments(), val, ts)
	if err != nil {
		return DispatchResult{}, err
	}
	upd, externals := z.tree.Merge(diff)
	z.afterMerge(diff, upd, externals, true)
	return DispatchResult{Update: upd}, nil
}

func (z *Zone) kill(p path.Path, ts uint64) DispatchResult {
	diff := node.PrependPath(node.Delete(ts), p.Segments())
	upd, externals := z.tree.Merge(diff)
	z.afterMerge(diff, upd, externals, true)
	return DispatchResult{Update: upd}
}

func (z *Zone) handleMerge(v mergeCall) {
	upd, externals := z.tree.Merge(v.diff)
	z.afterMerge(v.diff, upd, externals, v.replicate)
	if v.reply != nil {
		v.reply <- mergeReply{update: upd}
	}
}

// handleMergeWithListeners merges a diff that carries forwarded
// listeners (from the parent zone that just delegated this subtree).
// Per spec.md §4.4, the new listeners must be driven with the reverse
// diff first, so they see exactly the same transition a listener that
// had stayed registered at the parent would have seen.
func (z *Zone) handleMergeWithListeners(v mergeWithListenersCall) {
	preview := &node.NodeTree{Node: z.tree.Node.Clone(), Vis: z.tree.Vis}
	reverseUpdate, _ := preview.Merge(v.diff.Clone())

	for _, l := range v.listeners {
		sub := reverseUpdate.At(l.Relative)
		if sub != nil && !sub.IsNoop() {
			if l.Notify(sub) {
				z.listeners = append(z.listeners, l)
			}
			continue
		}
		z.listeners = append(z.listeners, l)
	}

	upd, externals := z.tree.Merge(v.diff)
	z.afterMerge(v.diff, upd, externals, true)

	if v.reply != nil {
		v.reply <- mergeReply{update: upd}
	}
}

// afterMerge applies the common post-merge bookkeeping shared by
// Write, Kill, Merge, and MergeWithListeners: listener notification,
// external routing, replication, dirty tracking, and the periodic
// split check.
func (z *Zone) afterMerge(diff *node.Node, upd *node.Update, externals []node.External, replicate bool) {
	if !upd.IsNoop() {
		z.notify(upd)
		z.writes++
	}
	z.routeExternals(externals)
	if replicate && z.cluster != nil {
		z.cluster.Replicate(z.path, diff)
	}
	z.markDirty(upd)
	z.splitCheck()
}

func (z *Zone) notify(upd *node.Update) {
	alive := z.listeners[:0]
	for _, l := range z.listeners {
		sub := upd.At(l.Relative)
		if sub.IsNoop() {
			alive = append(alive, l)
			continue
		}
		if l.Notify(sub) {
			alive = append(alive, l)
		}
		// Open Question 3: a failed send just drops the listener here;
		// the zone itself is unaffected.
	}
	z.listeners = alive
}

// routeExternals implements spec.md §4.4's "External routing": the
// first time a subtree crosses a delegation boundary, local listeners
// are reclassified and any that reach into the delegated range ride
// along; later externals for an already-delegated path carry no
// listener payload.
func (z *Zone) routeExternals(externals []node.External) {
	for _, ext := range externals {
		var forwarded []*listener.Listener

		if ext.Initial {
			kept := z.listeners[:0]
			for _, l := range z.listeners {
				k, f := l.Delegate(ext.Path)
				if k != nil {
					kept = append(kept, k)
				}
				if f != nil {
					forwarded = append(forwarded, f)
				}
			}
			z.listeners = kept
		}

		z.manager.RouteExternal(z.path, ext, forwarded)
	}
}

func (z *Zone) markDirty(upd *node.Update) {
	if upd.IsNoop() {
		return
	}
	switch z.state {
	case Active:
		z.state = Dirty
		z.store.RequestWrite(z.handle)
	case Writing:
		z.state = Dirty
	case Dirty:
		// Already pending a write.
	}
}

// splitCheck evaluates the delegation policy after each user-driven
// merge, at most once per splitBatchSize writes (spec.md §4.4).
func (z *Zone) splitCheck() {
	if z.writes < splitBatchSize {
		return
	}
	z.writes = 0

	target, ok := z.policy.Delegate(z.tree.Node)
	if !ok {
		return
	}

	ts := uint64(time.Now().UnixNano())
	diff := node.PrependPath(node.DelegateMark(ts), target.Segments())

	upd, externals := z.tree.Merge(diff)
	if !upd.IsNoop() {
		z.notify(upd)
	}
	z.routeExternals(externals)
	if z.cluster != nil {
		z.cluster.Replicate(z.path, diff)
	}
	z.markDirty(upd)
}

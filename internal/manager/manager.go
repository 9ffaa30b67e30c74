// Package manager implements the path→zone registry together with the
// load-admission and eviction control loops that bound how much of the
// global tree is resident in memory at once. Grounded on
// original_source/src/manager.rs, whose registry and find_nearest were
// left as a BTreeMap and an unimplemented!() stub; spec.md §4.5
// supplies the actual routing, admission, and eviction semantics.
package manager

import (
	"log/slog"
	"math/rand"
	"time"

	"github.com/AnatolyRugalev/go-iradix-generic/v2"
	"github.com/hashicorp/golang-lru/v2"

	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// Config holds the admission thresholds, per spec.md §4.5.
type Config struct {
	Soft int // eviction trigger: loaded+waiting above this starts hibernating zones
	Hard int // admission ceiling: never more than this many zones loaded at once
}

// DefaultConfig matches the design defaults named in spec.md §4.5.
func DefaultConfig() Config {
	return Config{Soft: 600, Hard: 800}
}

// Stats is a snapshot of the registry's admission state, surfaced to
// the operator shell and monitor endpoint.
type Stats struct {
	Zones   int
	Loaded  int
	Waiting int
}

// Manager owns the path→zone registry and the admission/eviction
// bookkeeping. It runs as its own actor, exactly like a Zone, so every
// mutation of the registry or the waiting queue is single-threaded by
// construction.
type Manager struct {
	tree    *iradix.Tree[string, *zone.Handle]
	loaded  *lru.Cache[string, *zone.Handle]
	waiting []*zone.Handle

	cfg     Config
	store   zone.Storage
	cluster zone.Replicator
	policy  delegatepolicy.Policy
	log     *slog.Logger
	rng     *rand.Rand

	rx     chan call
	handle *Handle
}

// Handle is the send-only endpoint other actors (and the client
// protocol layer) use to talk to a Manager. It implements
// zone.Router, so a Zone holds one directly without ever importing
// this package.
type Handle struct {
	tx   chan call
	root *zone.Handle
}

// Root returns the handle for the always-resident root zone.
func (h *Handle) Root() *zone.Handle {
	return h.root
}

// Spawn creates the registry, spawns the root zone (which always
// exists, per spec.md §4.5's routing law), and starts the manager's
// actor goroutine.
func Spawn(store zone.Storage, cluster zone.Replicator, policy delegatepolicy.Policy, cfg Config, log *slog.Logger) *Handle {
	loaded, _ := lru.New[string, *zone.Handle](cfg.Hard)

	m := &Manager{
		tree:    iradix.New[string, *zone.Handle](),
		loaded:  loaded,
		cfg:     cfg,
		store:   store,
		cluster: cluster,
		policy:  policy,
		log:     log,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		rx:      make(chan call, 256),
	}

	h := &Handle{tx: m.rx}
	m.handle = h

	root := zone.Spawn(path.Empty(), h, store, cluster, policy, log)
	t, _, _ := m.tree.Insert(path.Empty().Segments(), root)
	m.tree = t
	h.root = root

	go m.run()
	return h
}

func (m *Manager) run() {
	for c := range m.rx {
		m.dispatch(c)
	}
}

func (m *Manager) dispatch(c call) {
	switch v := c.(type) {
	case requestLoadCall:
		m.handleRequestLoad(v.zh)
	case zoneHibernatedCall:
		m.handleZoneHibernated(v.zh)
	case routeExternalCall:
		m.handleRouteExternal(v)
	case findNearestCall:
		matched, zh := m.findNearest(v.path)
		v.reply <- findNearestReply{matched: matched, handle: zh}
	case findCall:
		zh, ok := m.find(v.path)
		v.reply <- findReply{handle: zh, ok: ok}
	case loadCall:
		v.reply <- m.loadOrCreate(v.path)
	case statsCall:
		v.reply <- statsReply{Zones: m.tree.Len(), Loaded: m.loaded.Len(), Waiting: len(m.waiting)}
	case listZonesCall:
		var paths []path.Path
		m.tree.Root().Walk(func(k []string, _ *zone.Handle) bool {
			paths = append(paths, path.New(append([]string(nil), k...)))
			return false
		})
		v.reply <- paths
	}
}

// find_nearest: walk the path upward, popping one segment at a time,
// returning the first match. Root always matches, so ok is always
// true here and callers need not handle its absence.
func (m *Manager) findNearest(p path.Path) (path.Path, *zone.Handle) {
	matched, zh, ok := m.tree.Root().LongestPrefix(p.Segments())
	if !ok {
		// The root zone is inserted at Spawn and never removed.
		panic("manager: root zone missing from registry")
	}
	return path.New(append([]string(nil), matched...)), zh
}

func (m *Manager) find(p path.Path) (*zone.Handle, bool) {
	return m.tree.Root().Get(p.Segments())
}

// loadOrCreate is the manager's "load": find-or-create. A newly
// created zone starts Idle and requests admission itself on its first
// data-dependent call.
func (m *Manager) loadOrCreate(p path.Path) *zone.Handle {
	if zh, ok := m.find(p); ok {
		return zh
	}
	zh := zone.Spawn(p, m.handle, m.store, m.cluster, m.policy, m.log)
	t, _, _ := m.tree.Insert(p.Segments(), zh)
	m.tree = t
	return zh
}

// handleRequestLoad implements spec.md §4.5's admission gate: the root
// zone is exempt; everyone else is served immediately while the
// loaded set is under HARD, or parked in a FIFO queue otherwise.
func (m *Manager) handleRequestLoad(zh *zone.Handle) {
	if zh.Path.Len() == 0 {
		zh.Load()
		return
	}

	if m.loaded.Len() < m.cfg.Hard {
		m.loaded.Add(zh.Path.String(), zh)
		zh.Load()
	} else {
		m.waiting = append(m.waiting, zh)
	}
	m.evictionCheck()
}

// handleZoneHibernated frees the slot a hibernating zone held and
// admits the next waiter, if any.
func (m *Manager) handleZoneHibernated(zh *zone.Handle) {
	m.loaded.Remove(zh.Path.String())

	if len(m.waiting) > 0 {
		next := m.waiting[0]
		m.waiting = m.waiting[1:]
		m.loaded.Add(next.Path.String(), next)
		next.Load()
	}
	m.evictionCheck()
}

// evictionCheck is the "cooperating component" of spec.md §4.5: when
// loaded+pending exceeds SOFT, it randomly hibernates one loaded zone.
// The chance of a pass doing anything scales with how far over SOFT
// the registry is; precise LRU is explicitly not a goal.
func (m *Manager) evictionCheck() {
	total := m.loaded.Len() + len(m.waiting)
	overflow := total - m.cfg.Soft
	if overflow <= 0 || total == 0 {
		return
	}

	if m.rng.Float64() >= float64(overflow)/float64(total) {
		return
	}

	keys := m.loaded.Keys()
	if len(keys) == 0 {
		return
	}
	victim := keys[m.rng.Intn(len(keys))]
	zh, ok := m.loaded.Peek(victim)
	if !ok {
		return
	}
	zh.Hibernate()
}

// handleRouteExternal dispatches a detached subtree (spec.md §4.4's
// "external") to the zone that should now own it, spawning that zone
// on first arrival. Every External carries a full up-to-date
// snapshot of the subtree (see node.External's doc comment), so
// re-merging it into the owning zone — new or already running — is
// always correct regardless of how many times the same path has
// crossed the delegation boundary.
func (m *Manager) handleRouteExternal(v routeExternalCall) {
	target := v.zonePath.Clone()
	target.Append(v.ext.Path)

	zh, ok := m.find(target)
	if !ok {
		zh = zone.Spawn(target, m.handle, m.store, m.cluster, m.policy, m.log)
		t, _, _ := m.tree.Insert(target.Segments(), zh)
		m.tree = t
	}

	zh.SeedVis(v.ext.ParentVis)
	if len(v.forwarded) > 0 {
		zh.MergeWithListenersAsync(v.ext.Node, v.forwarded)
	} else {
		zh.MergeAsync(v.ext.Node, false)
	}
}

var _ zone.Router = (*Handle)(nil)

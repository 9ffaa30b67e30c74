// Package cluster implements peer-to-peer replication: a listener
// accepting connections from other replicas, one persistent outbound
// connection per configured peer, and the length-prefixed msgpack wire
// format they speak. Grounded on original_source/src/cluster.rs and
// src/replica.rs, whose Replica list and "each_zone then sync" loop
// are generalized here into actual socket plumbing (the Rust file
// never implements the peer socket, only an in-process replica list).
package cluster

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// Registry is the subset of Manager a Cluster needs: enough to route
// an inbound merge to the right zone and to enumerate every zone for
// a full sync pass.
type Registry interface {
	Load(p path.Path) *zone.Handle
	ListZones() []path.Path
}

// Config names the local listen address and the peers to replicate
// with.
type Config struct {
	ListenAddr string
	Peers      []string
}

// Cluster owns the peer set and the inbound listener. Like Zone and
// Manager, it runs as its own actor so peer bookkeeping is never
// touched from more than one goroutine.
type Cluster struct {
	cfg      Config
	registry Registry
	peers    []*Peer
	log      *slog.Logger
	rx       chan call
	ln       net.Listener
}

// Handle is the send-only endpoint other actors use to talk to a
// Cluster. It implements zone.Replicator.
type Handle struct {
	tx chan call
}

// PreSpawn opens the listening socket and returns a usable Handle
// immediately, without yet knowing the Registry it will route inbound
// merges through. Manager and Cluster need handles to each other
// before either can finish constructing (Manager's root zone needs a
// zone.Replicator at spawn time; Cluster needs the Manager to route
// into): original_source/src/cluster.rs solves the same knot with its
// own ClusterPreHandle/ClusterHandle split. Call Start once the
// registry exists to begin dialing peers and servicing the mailbox;
// until then, sends to the returned Handle simply buffer.
func PreSpawn(cfg Config, log *slog.Logger) (*Cluster, *Handle, error) {
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("cluster: listen on %q: %w", cfg.ListenAddr, err)
	}

	c := &Cluster{
		cfg: cfg,
		log: log,
		rx:  make(chan call, 256),
		ln:  ln,
	}
	return c, &Handle{tx: c.rx}, nil
}

// Addr returns the address the cluster is actually listening on, for
// ListenAddr values like "127.0.0.1:0" where the OS picks the port.
func (c *Cluster) Addr() net.Addr {
	return c.ln.Addr()
}

// Start wires in the registry, dials every configured peer, and begins
// accepting inbound connections and servicing the mailbox.
func (c *Cluster) Start(registry Registry) {
	c.registry = registry
	for _, addr := range c.cfg.Peers {
		c.peers = append(c.peers, newPeer(addr, c.log))
	}

	go c.acceptLoop(c.ln)
	go c.run()
}

func (c *Cluster) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			c.log.Error("cluster accept loop stopped", "error", err)
			return
		}
		go c.serveConn(conn)
	}
}

func (c *Cluster) serveConn(conn net.Conn) {
	defer conn.Close()
	for {
		msg, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn("cluster connection read failed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}
		c.rx <- inboundCall{msg: msg}
	}
}

func (c *Cluster) run() {
	for call := range c.rx {
		c.dispatch(call)
	}
}

func (c *Cluster) dispatch(call call) {
	switch v := call.(type) {
	case inboundCall:
		c.applyInbound(v.msg)
	case replicateCall:
		c.broadcast(wireMessage{Kind: kindMerge, Path: v.path.Segments(), Node: v.diff})
	case localSyncCall:
		c.localSync()
		close(v.done)
	case syncAllCall:
		c.broadcast(wireMessage{Kind: kindSyncRequest})
		c.localSync()
		close(v.done)
	}
}

// applyInbound merges a peer's message into the local zone it targets,
// creating the zone if this replica has never seen it before.
// replicate is false: re-broadcasting a peer's own update back out
// would turn every write into an unbounded gossip loop. A
// kindSyncRequest carries no path/node and instead asks this replica
// to push its own zones back out, per spec.md §4.7's "SyncAll
// broadcasts a Sync request, then does a local Sync".
func (c *Cluster) applyInbound(msg wireMessage) {
	if msg.Kind == kindSyncRequest {
		c.localSync()
		return
	}
	zh := c.registry.Load(path.New(msg.Path))
	zh.MergeAsync(msg.Node, false)
}

func (c *Cluster) broadcast(msg wireMessage) {
	for _, p := range c.peers {
		p.send(msg)
	}
}

// localSync sends every locally known zone's full current snapshot to
// every peer: "Local sync" in spec.md §4.7, and the periodic
// reconciliation pass that catches whatever the best-effort per-write
// gossip dropped.
func (c *Cluster) localSync() {
	for _, p := range c.registry.ListZones() {
		zh := c.registry.Load(p)
		tree := zh.Snapshot()
		c.broadcast(wireMessage{Kind: kindSync, Path: p.Segments(), Node: tree.Node})
	}
}

// Replicate implements zone.Replicator: a zone hands over a diff to
// gossip to every peer.
func (h *Handle) Replicate(p path.Path, diff *node.Node) {
	h.tx <- replicateCall{path: p, diff: diff}
}

// LocalSync pushes every locally known zone's current snapshot to
// every peer and blocks until it has been queued to each of them.
func (h *Handle) LocalSync() {
	done := make(chan struct{})
	h.tx <- localSyncCall{done: done}
	<-done
}

// SyncAll asks every peer to also push their own local zones, then
// performs a LocalSync itself, per spec.md §4.7.
func (h *Handle) SyncAll() {
	done := make(chan struct{})
	h.tx <- syncAllCall{done: done}
	<-done
}

var _ zone.Replicator = (*Handle)(nil)

// Package store implements Zone persistence: a bounded pool of
// goroutines that read and write each zone's NodeTree to a backend,
// plus the write-slot handshake a Zone uses to avoid piling up
// concurrent saves. Grounded on original_source/src/store.rs and
// src/store/{mod,fs,null}.rs, whose read_pool/write_pool/write_queue
// design (originally a threadpool crate plus a hand-rolled VecDeque)
// is reimplemented here with the same shape.
package store

import (
	"log/slog"

	"github.com/creachadair/taskgroup"

	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// Config bounds how many concurrent reads and writes a Store runs.
type Config struct {
	ReadWorkers  int
	WriteWorkers int
}

// DefaultConfig matches the default worker count for both pools.
func DefaultConfig() Config {
	return Config{ReadWorkers: 50, WriteWorkers: 50}
}

// Backend is the actual persistence mechanism a Store drives. FS and
// NullBackend are the two provided implementations.
type Backend interface {
	Read(p path.Path) (*node.NodeTree, error)
	Write(p path.Path, tree *node.NodeTree) error
	// List enumerates every zone path currently persisted, for the
	// operator shell's store.dump.
	List() ([]path.Path, error)
}

// Store owns the read/write worker pools and the write-admission
// queue. It runs as its own actor so the queue and slot count are
// never touched from more than one goroutine.
type Store struct {
	backend Backend
	log     *slog.Logger

	writeSlots int
	writeQueue []*zone.Handle

	// readLimit bounds how many reads run concurrently; reads and
	// writes are tracked through their own taskgroups so a future
	// shutdown path can wait for in-flight IO to drain.
	readLimit chan struct{}
	reads     *taskgroup.Group
	writes    *taskgroup.Group

	rx chan call
}

// Handle is the send-only endpoint Zones and the operator shell use to
// talk to a Store.
type Handle struct {
	tx chan call
}

// Spawn starts a Store's actor goroutine backed by backend.
func Spawn(backend Backend, cfg Config, log *slog.Logger) *Handle {
	s := &Store{
		backend:    backend,
		log:        log,
		writeSlots: cfg.WriteWorkers,
		readLimit:  make(chan struct{}, cfg.ReadWorkers),
		rx:         make(chan call, 256),
	}
	s.reads = taskgroup.New(s.onTaskError)
	s.writes = taskgroup.New(s.onTaskError)

	h := &Handle{tx: s.rx}
	go s.run()
	return h
}

func (s *Store) onTaskError(err error) error {
	if err != nil {
		s.log.Error("store task failed", "error", err)
	}
	return nil
}

func (s *Store) run() {
	for c := range s.rx {
		s.dispatch(c)
	}
}

func (s *Store) dispatch(c call) {
	switch v := c.(type) {
	case loadCall:
		s.handleLoad(v.handle, v.path)
	case requestWriteCall:
		s.handleRequestWrite(v.handle)
	case writeCall:
		s.handleWrite(v.handle, v.path, v.tree)
	case writeDoneCall:
		s.handleWriteDone()
	case listCall:
		paths, err := s.backend.List()
		if err != nil {
			s.log.Error("store list failed", "error", err)
		}
		v.reply <- paths
	}
}

// handleLoad reads a zone's snapshot on the bounded read pool and
// reports back via the zone's own Loaded call. readLimit is a permit
// semaphore sized to cfg.ReadWorkers; the permit wait happens inside
// the spawned goroutine, not here, so a saturated read pool backs up
// behind the semaphore instead of stalling the store's own mailbox
// loop.
func (s *Store) handleLoad(h *zone.Handle, p path.Path) {
	s.reads.Go(func() error {
		s.readLimit <- struct{}{}
		defer func() { <-s.readLimit }()

		tree, err := s.backend.Read(p)
		if err != nil {
			s.log.Error("load failed", "path", p.String(), "error", err)
		}
		h.Loaded(tree, err)
		return err
	})
}

// handleRequestWrite implements original_source/src/store/fs.rs's
// admission check: a free slot lets the zone save immediately;
// otherwise it waits in FIFO order for one to free up.
func (s *Store) handleRequestWrite(h *zone.Handle) {
	if s.writeSlots > 0 {
		s.writeSlots--
		h.Save()
	} else {
		s.writeQueue = append(s.writeQueue, h)
	}
}

// handleWrite actually persists the snapshot a zone handed over after
// being told to Save. The slot it's holding is only released once this
// IO completes, matching the original's "wake next writer after the
// write finishes" ordering.
func (s *Store) handleWrite(h *zone.Handle, p path.Path, tree *node.NodeTree) {
	s.writes.Go(func() error {
		err := s.backend.Write(p, tree)
		if err != nil {
			s.log.Error("write failed", "path", p.String(), "error", err)
		}
		h.Saved(err)
		s.rx <- writeDoneCall{}
		return err
	})
}

func (s *Store) handleWriteDone() {
	if len(s.writeQueue) > 0 {
		next := s.writeQueue[0]
		s.writeQueue = s.writeQueue[1:]
		next.Save()
	} else {
		s.writeSlots++
	}
}

// Load implements zone.Storage.
func (h *Handle) Load(zh *zone.Handle) {
	h.tx <- loadCall{handle: zh, path: zh.Path}
}

// RequestWrite implements zone.Storage.
func (h *Handle) RequestWrite(zh *zone.Handle) {
	h.tx <- requestWriteCall{handle: zh}
}

// Write implements zone.Storage.
func (h *Handle) Write(zh *zone.Handle, tree *node.NodeTree) {
	h.tx <- writeCall{handle: zh, path: zh.Path, tree: tree}
}

// List returns every zone path currently persisted by the backend, for
// the operator shell's store.dump.
func (h *Handle) List() []path.Path {
	reply := make(chan []path.Path, 1)
	h.tx <- listCall{reply: reply}
	return <-reply
}

var _ zone.Storage = (*Handle)(nil)

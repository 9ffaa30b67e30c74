package store

import (
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// call is the store mailbox's closed message set.
type call interface {
	isStoreCall()
}

type loadCall struct {
	handle *zone.Handle
	path   path.Path
}

type requestWriteCall struct {
	handle *zone.Handle
}

type writeCall struct {
	handle *zone.Handle
	path   path.Path
	tree   *node.NodeTree
}

// writeDoneCall is how the write pool reports a finished write back to
// the store's own mailbox, so the slot count and queue stay
// single-threaded.
type writeDoneCall struct{}

type listCall struct {
	reply chan []path.Path
}

func (loadCall) isStoreCall()         {}
func (requestWriteCall) isStoreCall() {}
func (writeCall) isStoreCall()        {}
func (writeDoneCall) isStoreCall()    {}
func (listCall) isStoreCall()         {}

package cluster

import (
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
)

// call is the cluster mailbox's closed message set.
type call interface {
	isClusterCall()
}

type inboundCall struct {
	msg wireMessage
}

type replicateCall struct {
	path path.Path
	diff *node.Node
}

type localSyncCall struct {
	done chan struct{}
}

type syncAllCall struct {
	done chan struct{}
}

func (inboundCall) isClusterCall()   {}
func (replicateCall) isClusterCall() {}
func (localSyncCall) isClusterCall() {}
func (syncAllCall) isClusterCall()   {}

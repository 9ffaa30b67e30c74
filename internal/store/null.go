package store

import (
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
)

// NullBackend always loads an empty tree and discards every write.
// Grounded on original_source/src/store/null.rs, used for the same
// "for test use only" purpose there: a cluster member that runs
// entirely in memory.
type NullBackend struct{}

func (NullBackend) Read(p path.Path) (*node.NodeTree, error) {
	return node.NewNodeTree(p), nil
}

func (NullBackend) Write(path.Path, *node.NodeTree) error {
	return nil
}

func (NullBackend) List() ([]path.Path, error) {
	return nil, nil
}

var _ Backend = NullBackend{}

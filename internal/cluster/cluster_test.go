package cluster

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/store"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
	"github.com/qumulus-db/qumulus/internal/zone"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// replica bundles a Manager and Cluster wired to each other, the same
// two-phase construction cmd/qumulus performs in production.
type replica struct {
	manager *manager.Handle
	cluster *Handle
	addr    string
}

func spawnReplica(t *testing.T, peers []string) *replica {
	t.Helper()

	c, clusterHandle, err := PreSpawn(Config{ListenAddr: "127.0.0.1:0", Peers: peers}, discardLog())
	require.NoError(t, err)

	storeHandle := store.Spawn(store.NullBackend{}, store.DefaultConfig(), discardLog())
	m := manager.Spawn(storeHandle, clusterHandle, delegatepolicy.Default(), manager.DefaultConfig(), discardLog())
	c.Start(m)

	return &replica{manager: m, cluster: clusterHandle, addr: c.Addr().String()}
}

// TestTwoReplicasConverge covers spec.md §8 scenario 6: a write
// applied on one replica eventually shows up on the other via
// gossiped replication, with no further action needed.
func TestTwoReplicasConverge(t *testing.T) {
	// b has no outbound peers; it only accepts a's inbound connection.
	b := spawnReplica(t, nil)
	a := spawnReplica(t, []string{b.addr})

	_, err := a.manager.Dispatch(zone.Command{
		Kind:      zone.CommandWrite,
		Path:      path.Of("tenants", "acme", "name"),
		Value:     "Acme Inc",
		Timestamp: 1,
	}, 0, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		zh, ok := b.manager.Find(path.Empty())
		if !ok {
			return false
		}
		child := zh.Dump().At(path.Of("tenants", "acme", "name"))
		return child != nil && child.New != nil && child.New.S == "Acme Inc"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestApplyInboundCreatesUnknownZone(t *testing.T) {
	storeHandle := store.Spawn(store.NullBackend{}, store.DefaultConfig(), discardLog())
	m := manager.Spawn(storeHandle, noopReplicator{}, delegatepolicy.Default(), manager.DefaultConfig(), discardLog())

	c := &Cluster{registry: m, log: discardLog()}
	c.applyInbound(wireMessage{
		Kind: kindMerge,
		Path: []string{"fresh", "zone"},
		Node: &node.Node{Vis: vis.Vis{Updated: 1}, Value: value.String("hello")},
	})

	require.Eventually(t, func() bool {
		_, ok := m.Find(path.Of("fresh", "zone"))
		return ok
	}, time.Second, time.Millisecond)

	zh, _ := m.Find(path.Of("fresh", "zone"))
	upd := zh.Dump()
	require.NotNil(t, upd.New)
	assert.Equal(t, "hello", upd.New.S)
}

type noopReplicator struct{}

func (noopReplicator) Replicate(path.Path, *node.Node) {}

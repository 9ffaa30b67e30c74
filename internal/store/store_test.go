package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRouter struct{}

func (fakeRouter) RouteExternal(path.Path, node.External, []*listener.Listener) {}
func (fakeRouter) RequestLoad(h *zone.Handle)                                    { h.Load() }
func (fakeRouter) ZoneHibernated(*zone.Handle)                                   {}

type fakeReplicator struct{}

func (fakeReplicator) Replicate(path.Path, *node.Node) {}

func spawnStored(t *testing.T, h *Handle, p path.Path) *zone.Handle {
	t.Helper()
	zh := zone.Spawn(p, fakeRouter{}, h, fakeReplicator{}, delegatepolicy.Default(), discardLog())
	// A fresh zone stays Idle until a data-accessing call triggers its load.
	_, err := zh.Dispatch(zone.Command{Kind: zone.CommandRead, Path: path.Empty()}, 0, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return zh.State() == zone.Active
	}, time.Second, time.Millisecond)
	return zh
}

func TestFSRoundTripsThroughWriteAndLoad(t *testing.T) {
	backend, err := NewFS(t.TempDir())
	require.NoError(t, err)
	h := Spawn(backend, DefaultConfig(), discardLog())

	zh := spawnStored(t, h, path.Of("tenants", "acme"))

	_, err = zh.Dispatch(zone.Command{Kind: zone.CommandWrite, Path: path.Of("name"), Value: "Acme Inc", Timestamp: 1}, 0, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return zh.State() == zone.Active
	}, time.Second, time.Millisecond)

	tree, err := backend.Read(path.Of("tenants", "acme"))
	require.NoError(t, err)
	require.NotNil(t, tree.Node.Children)
	assert.Equal(t, "Acme Inc", tree.Node.Children["name"].Value.S)
}

func TestFSListRecoversPersistedPaths(t *testing.T) {
	backend, err := NewFS(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, backend.Write(path.Of("a", "b"), node.NewNodeTree(path.Of("a", "b"))))
	require.NoError(t, backend.Write(path.Of("c"), node.NewNodeTree(path.Of("c"))))

	paths, err := backend.List()
	require.NoError(t, err)
	require.Len(t, paths, 2)

	var found []string
	for _, p := range paths {
		found = append(found, p.String())
	}
	assert.ElementsMatch(t, []string{path.Of("a", "b").String(), path.Of("c").String()}, found)
}

func TestFSReadMissingZoneReturnsEmptyTree(t *testing.T) {
	backend, err := NewFS(t.TempDir())
	require.NoError(t, err)

	tree, err := backend.Read(path.Of("never", "written"))
	require.NoError(t, err)
	assert.False(t, tree.Node.Vis.Visible())
}

func TestNullBackendDiscardsWrites(t *testing.T) {
	backend := NullBackend{}

	require.NoError(t, backend.Write(path.Of("x"), node.NewNodeTree(path.Of("x"))))

	tree, err := backend.Read(path.Of("x"))
	require.NoError(t, err)
	assert.False(t, tree.Node.Vis.Visible())
}

// TestWriteAdmissionQueuesBeyondCapacity exercises the write-slot
// handshake from original_source/src/store/fs.rs: with a single write
// slot, a second zone's write waits for the first to finish before its
// own Save is triggered.
func TestWriteAdmissionQueuesBeyondCapacity(t *testing.T) {
	backend, err := NewFS(t.TempDir())
	require.NoError(t, err)
	h := Spawn(backend, Config{ReadWorkers: 10, WriteWorkers: 1}, discardLog())

	a := spawnStored(t, h, path.Of("a"))
	b := spawnStored(t, h, path.Of("b"))

	_, err = a.Dispatch(zone.Command{Kind: zone.CommandWrite, Path: path.Of("k"), Value: "v1", Timestamp: 1}, 0, nil)
	require.NoError(t, err)
	_, err = b.Dispatch(zone.Command{Kind: zone.CommandWrite, Path: path.Of("k"), Value: "v2", Timestamp: 1}, 0, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return a.State() == zone.Active && b.State() == zone.Active
	}, time.Second, time.Millisecond)

	ta, err := backend.Read(path.Of("a"))
	require.NoError(t, err)
	tb, err := backend.Read(path.Of("b"))
	require.NoError(t, err)
	assert.Equal(t, "v1", ta.Node.Children["k"].Value.S)
	assert.Equal(t, "v2", tb.Node.Children["k"].Value.S)
}

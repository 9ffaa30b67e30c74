package shell

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/cluster"
	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/stats"
	"github.com/qumulus-db/qumulus/internal/store"
	"github.com/qumulus-db/qumulus/internal/zone"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestShell(t *testing.T, out *bytes.Buffer) *Shell {
	t.Helper()
	storeHandle := store.Spawn(store.NullBackend{}, store.DefaultConfig(), discardLog())
	c, clusterHandle, err := cluster.PreSpawn(cluster.Config{ListenAddr: "127.0.0.1:0"}, discardLog())
	require.NoError(t, err)
	m := manager.Spawn(storeHandle, clusterHandle, delegatepolicy.Default(), manager.DefaultConfig(), discardLog())
	c.Start(m)

	_, err = m.Dispatch(zone.Command{Kind: zone.CommandWrite, Path: path.Of("a", "b"), Value: "v", Timestamp: 1}, 0, nil)
	require.NoError(t, err)

	return New(strings.NewReader(""), out, Config{
		Manager: m,
		Store:   storeHandle,
		Cluster: clusterHandle,
		Stats:   stats.New(),
	})
}

func TestShellActiveListsZones(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestShell(t, out)

	s.dispatch("active")
	assert.Contains(t, out.String(), "Active Zones:")
	assert.Contains(t, out.String(), "Total:")
}

func TestShellUnknownCommand(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestShell(t, out)

	s.dispatch("moo")
	assert.Contains(t, out.String(), "Bad command")
}

func TestShellZoneDumpMissingArg(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestShell(t, out)

	s.dispatch("zone.dump")
	assert.Contains(t, out.String(), "usage:")
}

func TestShellShutdownInvokesOnExit(t *testing.T) {
	out := &bytes.Buffer{}
	called := false
	s := newTestShell(t, out)
	s.onExit = func() { called = true }

	s.dispatch("shutdown")
	assert.True(t, called)
	assert.Contains(t, out.String(), "Shutting down")
}

func TestShellClusterSyncDoesNotPanicWithNoPeers(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestShell(t, out)

	s.dispatch("cluster.sync")
	s.dispatch("cluster.sync_all")
	assert.Contains(t, out.String(), "Sync complete")
	assert.Contains(t, out.String(), "Sync-all complete")
}

package clientproto

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/delegatepolicy"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/store"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type noopReplicator struct{}

func (noopReplicator) Replicate(path.Path, *node.Node) {}

type recordingSink struct {
	msgs [][]byte
}

func (s *recordingSink) Send(msg []byte) error {
	s.msgs = append(s.msgs, msg)
	return nil
}

func spawnManager(t *testing.T) *manager.Handle {
	t.Helper()
	storeHandle := store.Spawn(store.NullBackend{}, store.DefaultConfig(), discardLog())
	return manager.Spawn(storeHandle, noopReplicator{}, delegatepolicy.Default(), manager.DefaultConfig(), discardLog())
}

func TestDispatchCommandWriteThenRead(t *testing.T) {
	m := spawnManager(t)

	writeReq := Request{ID: 1, Call: "write", Path: []string{"a", "b"}, Params: float64(42)}
	sink := &recordingSink{}
	frames, err := dispatchCommand(m, writeReq, sink)
	require.NoError(t, err)
	require.Len(t, frames, 1)

	readReq := Request{ID: 2, Call: "read", Path: []string{"a", "b"}}
	frames, err = dispatchCommand(m, readReq, sink)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].update.New)
	assert.EqualValues(t, 42, frames[0].update.New.Any())
}

func TestDispatchCommandBindReceivesPush(t *testing.T) {
	m := spawnManager(t)
	sink := &recordingSink{}

	bindReq := Request{ID: 7, Call: "bind", Path: []string{"a", "b"}}
	_, err := dispatchCommand(m, bindReq, sink)
	require.NoError(t, err)

	writeReq := Request{ID: 8, Call: "write", Path: []string{"a", "b"}, Params: "hello"}
	_, err = dispatchCommand(m, writeReq, &recordingSink{})
	require.NoError(t, err)

	require.Len(t, sink.msgs, 1)
	assert.Contains(t, string(sink.msgs[0]), "7")
}

func TestEncodeRepliesCountsDown(t *testing.T) {
	frames := []frame{
		{path: path.Of("a")},
		{path: path.Of("b")},
	}
	replies, err := encodeReplies(1, frames)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Contains(t, string(replies[0]), `1,1,`)
	assert.Contains(t, string(replies[1]), `1,0,`)
}

func TestDispatchCommandKillMarksInvisible(t *testing.T) {
	m := spawnManager(t)
	sink := &recordingSink{}

	_, err := dispatchCommand(m, Request{ID: 1, Call: "write", Path: []string{"a"}, Params: "v"}, sink)
	require.NoError(t, err)

	_, err = dispatchCommand(m, Request{ID: 2, Call: "kill", Path: []string{"a"}}, sink)
	require.NoError(t, err)

	frames, err := dispatchCommand(m, Request{ID: 3, Call: "read", Path: []string{"a"}}, sink)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].update.Visible)
	assert.False(t, *frames[0].update.Visible)
	assert.True(t, frames[0].update.New.IsNull())
}

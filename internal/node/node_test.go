package node

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
)

func rootTree() *NodeTree {
	return &NodeTree{Node: &Node{}, Vis: vis.Permanent()}
}

func TestWriteThenRead(t *testing.T) {
	tree := rootTree()

	diff, err := ExpandFrom([]string{"a", "b"}, float64(42), 10)
	require.NoError(t, err)

	update, externals := tree.Merge(diff)
	require.Empty(t, externals)
	require.NotNil(t, update)

	leaf := update.Children["a"].Children["b"]
	require.NotNil(t, leaf)
	assert.True(t, *leaf.Visible)
	assert.Equal(t, value.Float64(42), *leaf.New)

	result, matches := tree.Read(path.Of("a", "b"))
	assert.Empty(t, matches)
	require.NotNil(t, result.Visible)
	assert.True(t, *result.Visible)
	assert.Equal(t, value.Float64(42), *result.New)
}

func TestDeleteTombstonesAndHidesValue(t *testing.T) {
	tree := rootTree()

	write, err := ExpandFrom([]string{"a"}, "hello", 5)
	require.NoError(t, err)
	_, _ = tree.Merge(write)

	del := &Node{Children: map[string]*Node{"a": Delete(10)}}
	update, _ := tree.Merge(del)

	child := update.Children["a"]
	require.NotNil(t, child)
	require.NotNil(t, child.Visible)
	assert.False(t, *child.Visible)

	result, _ := tree.Read(path.Of("a"))
	assert.False(t, *result.Visible)
	assert.True(t, result.New.IsNull())
}

func TestOlderWriteIsDiscarded(t *testing.T) {
	tree := rootTree()

	newer, _ := ExpandFrom([]string{"a"}, "second", 20)
	_, _ = tree.Merge(newer)

	older, _ := ExpandFrom([]string{"a"}, "first", 10)
	update, _ := tree.Merge(older)

	// An older write produces no visible change.
	assert.True(t, update.Children["a"].IsNoop())

	result, _ := tree.Read(path.Of("a"))
	assert.Equal(t, value.String("second"), *result.New)
}

func TestReviveAfterDeleteWithLaterWrite(t *testing.T) {
	tree := rootTree()

	write, _ := ExpandFrom([]string{"a"}, "v1", 5)
	_, _ = tree.Merge(write)

	del := &Node{Children: map[string]*Node{"a": Delete(10)}}
	_, _ = tree.Merge(del)

	revive, _ := ExpandFrom([]string{"a"}, "v2", 15)
	update, _ := tree.Merge(revive)

	child := update.Children["a"]
	require.NotNil(t, child.Visible)
	assert.True(t, *child.Visible)
	assert.Equal(t, value.String("v2"), *child.New)
}

func TestDelegationDetachesSubtreeAndMarksUpdate(t *testing.T) {
	tree := rootTree()

	write, _ := ExpandFrom([]string{"a", "b"}, "v1", 5)
	_, _ = tree.Merge(write)

	mark := PrependPath(DelegateMark(100), []string{"a"})
	update, externals := tree.Merge(mark)

	require.Len(t, externals, 1)
	ext := externals[0]
	assert.True(t, ext.Path.Equal(path.Of("a")))
	assert.True(t, ext.Initial)
	assert.Equal(t, value.String("v1"), ext.Node.Children["b"].Value)

	aUpdate := update.Children["a"]
	require.NotNil(t, aUpdate)
	assert.True(t, aUpdate.Delegated)

	// The local tree no longer carries the delegated subtree's data.
	result, matches := tree.Read(path.Of("a", "b"))
	require.Len(t, matches, 1)
	assert.True(t, matches[0].Path.Equal(path.Of("a")))
	assert.True(t, matches[0].Remaining.Equal(path.Of("b")))
	assert.True(t, result.Delegated)
}

func TestDelegationIsIdempotentAfterHandoff(t *testing.T) {
	tree := rootTree()
	mark := PrependPath(DelegateMark(100), []string{"a"})
	_, externals := tree.Merge(mark)
	require.Len(t, externals, 1)
	assert.True(t, externals[0].Initial)

	// Data addressed under the already-delegated path keeps routing
	// out as an External, but is no longer the "initial" handoff.
	write, _ := ExpandFrom([]string{"a", "c"}, "v", 200)
	_, externals2 := tree.Merge(write)
	require.Len(t, externals2, 1)
	assert.False(t, externals2[0].Initial)
}

func TestWildcardReadFansOutOverChildren(t *testing.T) {
	tree := rootTree()
	for _, k := range []string{"x", "y", "z"} {
		w, _ := ExpandFrom([]string{"items", k}, float64(1), 1)
		_, _ = tree.Merge(w)
	}

	result, matches := tree.Read(path.Of("items", path.One))
	assert.Empty(t, matches)
	assert.Len(t, result.Children, 3)
	for _, k := range []string{"x", "y", "z"} {
		require.Contains(t, result.Children, k)
		assert.True(t, *result.Children[k].Visible)
	}
}

func TestDoubleWildcardMatchesEveryDepth(t *testing.T) {
	tree := rootTree()
	w1, _ := ExpandFrom([]string{"a"}, float64(1), 1)
	_, _ = tree.Merge(w1)
	w2, _ := ExpandFrom([]string{"a", "b"}, float64(2), 2)
	_, _ = tree.Merge(w2)

	result, _ := tree.Read(path.Of(path.Any))
	require.NotNil(t, result.Visible)
	assert.True(t, *result.Visible)
	require.Contains(t, result.Children, "a")
	assert.True(t, *result.Children["a"].Visible)
	require.Contains(t, result.Children["a"].Children, "b")
}

// TestMergeIsIdempotent checks the CRDT law: merging the same diff
// twice produces the same tree as merging it once.
func TestMergeIsIdempotent(t *testing.T) {
	f := fuzz.New().NilChance(0).NumElements(1, 5)

	for i := 0; i < 50; i++ {
		var ts uint64
		var key string
		var val float64
		f.Fuzz(&ts)
		f.Fuzz(&key)
		f.Fuzz(&val)
		if key == "" {
			continue
		}

		diff1, err := ExpandFrom([]string{key}, val, ts)
		require.NoError(t, err)
		diff2, err := ExpandFrom([]string{key}, val, ts)
		require.NoError(t, err)

		once := rootTree()
		_, _ = once.Merge(diff1)

		twice := rootTree()
		twiceDiffA, _ := ExpandFrom([]string{key}, val, ts)
		_, _ = twice.Merge(twiceDiffA)
		_, _ = twice.Merge(diff2)

		if diff := cmp.Diff(once.Node, twice.Node, cmp.AllowUnexported(Node{})); diff != "" {
			t.Fatalf("merge not idempotent for key=%q ts=%d: %s", key, ts, diff)
		}
	}
}

// TestMergeIsCommutative checks that applying two independent diffs in
// either order converges to the same tree.
func TestMergeIsCommutative(t *testing.T) {
	a, _ := ExpandFrom([]string{"a"}, "va", 10)
	b, _ := ExpandFrom([]string{"b"}, "vb", 20)

	ab := rootTree()
	a1, _ := ExpandFrom([]string{"a"}, "va", 10)
	b1, _ := ExpandFrom([]string{"b"}, "vb", 20)
	_, _ = ab.Merge(a1)
	_, _ = ab.Merge(b1)

	ba := rootTree()
	_, _ = ba.Merge(b)
	_, _ = ba.Merge(a)

	if diff := cmp.Diff(ab.Node, ba.Node, cmp.AllowUnexported(Node{})); diff != "" {
		t.Fatalf("merge not commutative: %s", diff)
	}
}

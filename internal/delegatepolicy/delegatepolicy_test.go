package delegatepolicy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
)

func leaf(s string) *node.Node {
	return &node.Node{Vis: vis.Vis{Updated: 1}, Value: value.String(s)}
}

func TestBelowThresholdDoesNotDelegate(t *testing.T) {
	p := Policy{Threshold: 1 << 20, TargetFraction: 0.5}
	root := &node.Node{Children: map[string]*node.Node{
		"a": leaf("small"),
	}}

	_, ok := p.Delegate(root)
	assert.False(t, ok)
}

func TestDelegatesHeaviestSubtreeNearHalf(t *testing.T) {
	p := Policy{Threshold: 100, TargetFraction: 0.5}

	heavy := &node.Node{Children: map[string]*node.Node{
		"x": leaf(strings.Repeat("a", 500)),
	}}
	root := &node.Node{Children: map[string]*node.Node{
		"heavy": heavy,
		"light": leaf("tiny"),
	}}

	target, ok := p.Delegate(root)
	require.True(t, ok)
	assert.Equal(t, "heavy", target.At(0))
}

func TestDefaultThresholdMatchesSpec(t *testing.T) {
	p := Default()
	assert.Equal(t, 64*1024, p.Threshold)
	assert.Equal(t, 0.5, p.TargetFraction)

	small := &node.Node{Value: value.String("ok")}
	_, ok := p.Delegate(small)
	assert.False(t, ok)
}

func TestDelegateTargetIsRelativePath(t *testing.T) {
	p := Policy{Threshold: 10, TargetFraction: 0.5}
	deep := &node.Node{Children: map[string]*node.Node{
		"a": {Children: map[string]*node.Node{
			"b": leaf(strings.Repeat("z", 200)),
		}},
	}}

	target, ok := p.Delegate(deep)
	require.True(t, ok)
	assert.True(t, target.Len() >= 1)
	assert.Equal(t, "a", target.At(0))
	_ = path.Empty()
}

// Package node implements the Node CRDT: a per-node last-writer-wins
// tree with update/delete timestamps, visibility propagation, and the
// delegation mark that splits the global tree into Zones. This is the
// hard core described in spec.md §4.1-§4.3.
package node

import (
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// Node is one vertex of the hierarchical data model.
type Node struct {
	Vis       vis.Vis
	Value     value.Value
	Children  map[string]*Node // nil when the node has no children
	Delegated uint64           // bit 0: delegated; remaining bits: decision timestamp
}

// NodeTree is a Node plus the effective visibility the owning zone
// inherits from its ancestors. The root zone's inherited visibility is
// permanent; every other zone's is captured at delegation time.
type NodeTree struct {
	Node *Node
	Vis  vis.Vis
}

// NewNodeTree builds a tree for a freshly created zone at path p.
func NewNodeTree(p path.Path) *NodeTree {
	inherited := vis.Vis{}
	if p.Len() == 0 {
		inherited = vis.Permanent()
	}
	return &NodeTree{Node: &Node{}, Vis: inherited}
}

// DelegatedMark packs a delegation decision timestamp and the
// delegation bit into a single monotonic uint64, per spec.md §3.
func DelegatedMark(timestamp uint64) uint64 {
	return (timestamp << 1) | 1
}

// IsDelegated reports whether a packed Delegated value's bit 0 is set.
func IsDelegated(delegated uint64) bool {
	return delegated&1 == 1
}

// DelegationTimestamp unpacks the decision timestamp from a packed
// Delegated value.
func DelegationTimestamp(delegated uint64) uint64 {
	return delegated >> 1
}

// IsNoop reports whether n carries no information at all: no
// visibility, no value, no children, and no delegation mark. Such
// nodes are pruned from the tree rather than kept around as dead
// weight.
func (n *Node) IsNoop() bool {
	if n == nil {
		return true
	}
	return n.Vis.IsZero() && n.Value.IsNull() && len(n.Children) == 0 && n.Delegated == 0
}

// Clone deep-copies n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Vis: n.Vis, Value: n.Value, Delegated: n.Delegated}
	if n.Children != nil {
		out.Children = make(map[string]*Node, len(n.Children))
		for k, c := range n.Children {
			out.Children[k] = c.Clone()
		}
	}
	return out
}

// Delete returns a tombstone diff node carrying only a delete
// timestamp, suitable for merging to kill a subtree.
func Delete(timestamp uint64) *Node {
	return &Node{Vis: vis.Vis{Deleted: timestamp}}
}

// DelegateMark returns a diff node carrying only a delegation mark at
// the given timestamp, suitable for merging to hand a subtree off to a
// new zone.
func DelegateMark(timestamp uint64) *Node {
	return &Node{Delegated: DelegatedMark(timestamp)}
}

// PrependPath wraps n in a chain of single-child nodes so it can be
// merged as a diff addressed at segments, e.g. prepending ["a","b"] to
// a leaf turns it into {a: {b: leaf}}.
func PrependPath(n *Node, segments []string) *Node {
	if len(segments) == 0 {
		return n
	}
	return &Node{
		Children: map[string]*Node{
			segments[0]: PrependPath(n, segments[1:]),
		},
	}
}

// Expand builds a Node tree from a decoded JSON value (maps/slices
// become children, scalars become leaf values), stamping every node
// touched with timestamp.
func Expand(data any, timestamp uint64) (*Node, error) {
	switch t := data.(type) {
	case map[string]any:
		children := make(map[string]*Node, len(t))
		for k, v := range t {
			child, err := Expand(v, timestamp)
			if err != nil {
				return nil, err
			}
			children[k] = child
		}
		return &Node{Vis: vis.Vis{Updated: timestamp}, Children: children}, nil
	case []any:
		children := make(map[string]*Node, len(t))
		for i, v := range t {
			child, err := Expand(v, timestamp)
			if err != nil {
				return nil, err
			}
			children[indexKey(i)] = child
		}
		return &Node{Vis: vis.Vis{Updated: timestamp}, Children: children}, nil
	default:
		leaf, err := value.FromAny(t)
		if err != nil {
			return nil, err
		}
		return &Node{Vis: vis.Vis{Updated: timestamp}, Value: leaf}, nil
	}
}

// ExpandFrom expands data into a Node and addresses it at the given
// path, the diff form used by Write. Every node along the path is
// stamped with timestamp, so the write makes its ancestors visible too.
func ExpandFrom(segments []string, data any, timestamp uint64) (*Node, error) {
	if len(segments) == 0 {
		return Expand(data, timestamp)
	}
	child, err := ExpandFrom(segments[1:], data, timestamp)
	if err != nil {
		return nil, err
	}
	return &Node{Vis: vis.Vis{Updated: timestamp}, Children: map[string]*Node{segments[0]: child}}, nil
}

func indexKey(i int) string {
	const digits = "0123456789"
	if i < 10 {
		return string(digits[i])
	}
	// Rare: arrays longer than 10 elements. Simple base-10 formatting
	// without pulling in strconv at this call depth.
	var buf []byte
	for i > 0 {
		buf = append([]byte{digits[i%10]}, buf...)
		i /= 10
	}
	return string(buf)
}

// ByteSize estimates the in-memory footprint of the subtree rooted at
// n, used by the delegation policy to find a split point.
func (n *Node) ByteSize() int {
	if n == nil {
		return 0
	}
	size := 24 + n.Value.ByteSize() // Vis + Delegated overhead, approximate
	for k, c := range n.Children {
		size += len(k) + c.ByteSize()
	}
	return size
}

// MaxBytesPath walks down the single heaviest child at each level,
// returning the total tree size and the (segment, cumulative size)
// pairs along that path, outermost first. This is the basis for
// spec.md §4.3's "closest to half the top-level size" delegation
// target search.
func (n *Node) MaxBytesPath() (total int, chain []SizedSegment) {
	total = n.ByteSize()
	cur := n
	for {
		var bestKey string
		var bestChild *Node
		bestSize := -1
		for k, c := range cur.Children {
			sz := c.ByteSize()
			if sz > bestSize || (sz == bestSize && k < bestKey) {
				bestSize = sz
				bestKey = k
				bestChild = c
			}
		}
		if bestChild == nil {
			return total, chain
		}
		chain = append(chain, SizedSegment{Segment: bestKey, Size: bestSize})
		cur = bestChild
	}
}

// SizedSegment pairs a path segment with the cumulative byte size of
// the subtree rooted there, as produced by MaxBytesPath.
type SizedSegment struct {
	Segment string
	Size    int
}

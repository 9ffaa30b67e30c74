package node

import (
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// External is a subtree detached from its owning zone's local tree
// because a delegation decision landed on it: the zone that issued the
// merge hands it to the manager, which either routes it on to an
// already-spawned child zone or triggers one to be spawned.
type External struct {
	// Path is relative to the zone that produced this External.
	Path path.Path
	// ParentVis is the effective visibility the detaching zone had
	// computed for this subtree just before detachment; the new owning
	// zone uses it as its own inherited Vis.
	ParentVis vis.Vis
	// Node is the detached subtree itself (value, children, local vis).
	Node *Node
	// Initial is true the first time a subtree crosses the delegation
	// boundary (the decision just landed); false when data is merely
	// passing through an already-delegated path on its way to the
	// owning zone.
	Initial bool
}

// Merge merges diff into t in place, returning the client-facing
// update (a no-op Update, never nil, if nothing changed) and any subtrees that must be
// routed elsewhere because they just crossed, or already sit across,
// a delegation boundary.
//
// This implements the eight-step algorithm of spec.md §4.1.
func (t *NodeTree) Merge(diff *Node) (*Update, []External) {
	var externals []External
	update := merge(path.Empty(), t.Node, diff, t.Vis, t.Vis, &externals, 0)
	return update, externals
}

// merge recursively joins diff into node. visOld/visNew are the
// effective visibility node's ancestors had immediately before and
// after this merge (identical unless a propagated visibility change is
// in flight, see the propagate handling below). depth is the number of
// path segments already descended from the zone's own root; the
// delegation handoff in step 8 never applies at depth 0; the zone's
// own root is never delegated out from under itself.
func merge(stack path.Path, node *Node, diff *Node, visOld, visNew vis.Vis, externals *[]External, depth int) *Update {
	// Step 1: descend the ancestor vis into this node's local vis to
	// get the effective visibility just before this merge.
	visOld = visOld.Descend(node.Vis)

	// Step 2: merge the delegation mark. Remember whether this node was
	// already delegated before this merge, for External.Initial below.
	wasDelegated := node.Delegated
	if diff.Delegated > node.Delegated {
		node.Delegated = diff.Delegated
	} else {
		diff.Delegated = 0
	}

	update := &Update{}

	var propagate *Node
	valueChanged := false

	// Step 3: merge the leaf value.
	switch {
	case diff.Vis.Updated > node.Vis.Updated:
		node.Value = diff.Value
		node.Vis.Updated = diff.Vis.Updated
		propagate = &Node{}
		valueChanged = true
	case diff.Vis.Updated < node.Vis.Updated:
		diff.Vis.Updated = 0
		diff.Value = value.Null
	default:
		// Same timestamp: a genuine value conflict is silently resolved
		// in favor of the value already present; nothing to propagate.
	}

	// Step 4: merge the delete tombstone.
	if diff.Vis.Deleted > node.Vis.Deleted {
		node.Vis.Deleted = diff.Vis.Deleted
		if node.Vis.Updated < node.Vis.Deleted {
			node.Value = value.Null
		}
		if propagate != nil {
			propagate.Vis.Deleted = diff.Vis.Deleted
		} else {
			propagate = Delete(diff.Vis.Deleted)
		}
	} else {
		diff.Vis.Deleted = 0
	}

	// Step 5: recompute the effective post-merge visibility and emit
	// the visibility transition, if any.
	visNew = visNew.Descend(node.Vis)
	if visOld.Visible() != visNew.Visible() {
		visible := visNew.Visible()
		update.Visible = &visible
		v := node.Value
		update.New = &v
	} else if visOld.Visible() && visNew.Visible() && valueChanged {
		v := node.Value
		update.New = &v
	}

	// Step 6: if a value/delete change needs to reach children that
	// weren't named in diff (to catch visibility flips that followed
	// purely from this node's own vis changing), re-merge every
	// existing child against the propagated, content-free diff.
	if propagate != nil {
		for k, child := range node.Children {
			childUpdate := merge(stack.With(k), child, propagate.Clone(), visOld, visNew, externals, depth+1)
			update.AddChild(k, childUpdate)
		}
	}

	// Step 7: merge diff's named children, creating new ones as needed.
	for k, childDiff := range diff.Children {
		child, existed := node.Children[k]
		if !existed {
			child = &Node{}
		}
		childUpdate := merge(stack.With(k), child, childDiff, visOld, visNew, externals, depth+1)
		if !existed {
			if child.IsNoop() {
				continue
			}
			if node.Children == nil {
				node.Children = make(map[string]*Node)
			}
			node.Children[k] = child
		}
		update.AddChild(k, childUpdate)
	}

	// Step 8: if this node just became (or already was) a delegation
	// root below the zone's own root, detach its content into an
	// External and replace the locally visible update with a
	// delegation marker.
	if depth > 0 && IsDelegated(node.Delegated) {
		ext := External{
			Path:      stack.Clone(),
			ParentVis: visOld,
			Node: &Node{
				Vis:      node.Vis,
				Value:    node.Value,
				Children: node.Children,
			},
			Initial: !IsDelegated(wasDelegated),
		}
		// A content-free step-6 pass over an already-delegated child
		// has nothing to hand over.
		if ext.Initial || !ext.Node.IsNoop() {
			*externals = append(*externals, ext)
		}

		node.Value = value.Null
		node.Children = nil
		node.Vis = vis.Vis{}

		update = &Update{Delegated: true}
	}

	return update
}

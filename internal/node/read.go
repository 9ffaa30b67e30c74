package node

import (
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
	"github.com/qumulus-db/qumulus/internal/vis"
)

// DelegatedMatch records that a read query crossed into a delegated
// subtree: Path is where (relative to the zone that produced it) the
// delegation boundary sits, and Remaining is the portion of the query
// that must be re-issued to whichever zone now owns that subtree.
type DelegatedMatch struct {
	Path      path.Path
	Remaining path.Path
}

// Read evaluates query against t, returning the currently visible
// state under that path plus any points where the query crossed into
// a subtree owned by another zone. This implements spec.md §4.2.
func (t *NodeTree) Read(query path.Path) (*Update, []DelegatedMatch) {
	var matches []DelegatedMatch
	update := read(path.Empty(), t.Node, t.Vis, query, 0, &matches, 0)
	return update, matches
}

// read walks node looking for everything query (from position pos
// onward) addresses. "*" consumes one segment and fans out over every
// child; "**" fans out over every child without consuming a segment,
// and additionally matches having consumed zero levels at the current
// node.
func read(stack path.Path, node *Node, parentVis vis.Vis, query path.Path, pos int, matches *[]DelegatedMatch, depth int) *Update {
	effectiveVis := parentVis.Descend(node.Vis)

	if depth > 0 && IsDelegated(node.Delegated) {
		*matches = append(*matches, DelegatedMatch{Path: stack.Clone(), Remaining: query.Slice(pos)})
		return &Update{Delegated: true}
	}

	if pos >= query.Len() {
		return readSubtree(stack, node, effectiveVis, matches, depth)
	}

	switch segment := query.At(pos); segment {
	case path.One:
		update := &Update{}
		for k, child := range node.Children {
			childUpdate := read(stack.With(k), child, effectiveVis, query, pos+1, matches, depth+1)
			update.AddChild(k, childUpdate)
		}
		return update

	case path.Any:
		var update *Update
		if pos == query.Len()-1 {
			update = readSubtree(stack, node, effectiveVis, matches, depth)
		} else {
			update = read(stack, node, parentVis, query, pos+1, matches, depth)
		}
		for k, child := range node.Children {
			childUpdate := read(stack.With(k), child, effectiveVis, query, pos, matches, depth+1)
			update.AddChild(k, childUpdate)
		}
		return update

	default:
		child, ok := node.Children[segment]
		if !ok {
			return &Update{}
		}
		return read(stack.With(segment), child, effectiveVis, query, pos+1, matches, depth+1)
	}
}

// readSubtree returns the full current state of node and everything
// beneath it, the terminal case once a query's path has been fully
// consumed.
func readSubtree(stack path.Path, node *Node, effectiveVis vis.Vis, matches *[]DelegatedMatch, depth int) *Update {
	if depth > 0 && IsDelegated(node.Delegated) {
		*matches = append(*matches, DelegatedMatch{Path: stack.Clone(), Remaining: path.Empty()})
		return &Update{Delegated: true}
	}

	visible := effectiveVis.Visible()
	update := &Update{Visible: &visible}
	if visible {
		v := node.Value
		update.New = &v
	} else {
		v := value.Null
		update.New = &v
	}

	for k, child := range node.Children {
		childUpdate := readSubtree(stack.With(k), child, effectiveVis.Descend(child.Vis), matches, depth+1)
		update.AddChild(k, childUpdate)
	}

	return update
}

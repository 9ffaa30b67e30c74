// Package delegatepolicy decides when a zone's subtree has grown large
// enough that a piece of it should be handed off to a new child zone,
// and which piece. See spec.md §4.3.
package delegatepolicy

import (
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
)

// Policy holds the tunable knobs around delegation. Both are plain
// struct fields rather than package constants: spec.md §4.3
// leaves the exact threshold and balance target open, and tests need
// to exercise the split logic at sizes much smaller than a production
// default.
type Policy struct {
	// Threshold is the total subtree byte size, in excess of which a
	// delegation decision is made at all.
	Threshold int
	// TargetFraction selects where along the heaviest-child chain the
	// split point sits, as a fraction of the total size (0.5 balances
	// the split in half, matching the original implementation).
	TargetFraction float64
}

// Default returns the policy spec.md §4.3 describes: a 64 KiB
// threshold, splitting as close to half the tree's size as possible.
func Default() Policy {
	return Policy{Threshold: 64 * 1024, TargetFraction: 0.5}
}

// Delegate inspects n and, if it has grown past the threshold, returns
// the path (relative to n) of the subtree that should be split off
// into its own zone. ok is false when n is under the threshold and no
// delegation is warranted.
func (p Policy) Delegate(n *node.Node) (target path.Path, ok bool) {
	total, chain := n.MaxBytesPath()
	if total <= p.Threshold || len(chain) == 0 {
		return path.Empty(), false
	}

	targetSize := int(float64(total) * p.TargetFraction)

	best := 0
	bestDiff := abs(chain[0].Size - targetSize)
	for i := 1; i < len(chain); i++ {
		if d := abs(chain[i].Size - targetSize); d < bestDiff {
			bestDiff = d
			best = i
		}
	}

	segments := make([]string, best+1)
	for i := 0; i <= best; i++ {
		segments[i] = chain[i].Segment
	}
	return path.New(segments), true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Package path implements Qumulus's addressing scheme: an ordered
// sequence of string segments with wildcard and delegation-matching
// semantics, used both as the key type for the manager's zone registry
// and as the shape of every client command and node path.
package path

import "strings"

// Wildcard segment values.
const (
	One = "*"  // matches exactly one segment
	Any = "**" // matches zero or more segments
)

// resolvedPrefix is the convention marking a segment as canonical
// (non-wildcard); see Resolved.
const resolvedPrefix = "#"

// Path is an ordered sequence of path segments. The zero value is the
// empty (root) path. Path holds a slice and so cannot be compared
// with ==; use Equal instead.
type Path struct {
	segments []string
}

// New builds a Path from a segment slice. The slice is not copied;
// callers that mutate it afterwards must not share it.
func New(segments []string) Path {
	return Path{segments: segments}
}

// Of is a variadic convenience constructor.
func Of(segments ...string) Path {
	return Path{segments: segments}
}

// Empty returns the root path.
func Empty() Path {
	return Path{}
}

// Segments returns the underlying segment slice. Callers must treat it
// as read-only.
func (p Path) Segments() []string {
	return p.segments
}

// Len returns the number of segments.
func (p Path) Len() int {
	return len(p.segments)
}

// At returns the segment at index i.
func (p Path) At(i int) string {
	return p.segments[i]
}

// Clone returns a Path backed by a fresh copy of the segment slice.
func (p Path) Clone() Path {
	if len(p.segments) == 0 {
		return Path{}
	}
	cp := make([]string, len(p.segments))
	copy(cp, p.segments)
	return Path{segments: cp}
}

// Push appends a segment in place, growing the backing slice.
func (p *Path) Push(segment string) {
	p.segments = append(p.segments, segment)
}

// Pop removes and returns the last segment. ok is false on an empty path.
func (p *Path) Pop() (segment string, ok bool) {
	n := len(p.segments)
	if n == 0 {
		return "", false
	}
	segment = p.segments[n-1]
	p.segments = p.segments[:n-1]
	return segment, true
}

// Append concatenates other onto the end of p in place.
func (p *Path) Append(other Path) {
	p.segments = append(p.segments, other.segments...)
}

// With returns a new Path with the segment appended, leaving p
// untouched. Used where callers must not see their buffer aliased.
func (p Path) With(segment string) Path {
	out := make([]string, len(p.segments)+1)
	copy(out, p.segments)
	out[len(p.segments)] = segment
	return Path{segments: out}
}

// Truncate shrinks p in place to length n.
func (p *Path) Truncate(n int) {
	p.segments = p.segments[:n]
}

// Slice returns the subpath starting at segment n.
func (p Path) Slice(n int) Path {
	out := make([]string, len(p.segments)-n)
	copy(out, p.segments[n:])
	return Path{segments: out}
}

// Prefix returns the subpath consisting of the first n segments,
// backed by a fresh copy.
func (p Path) Prefix(n int) Path {
	out := make([]string, n)
	copy(out, p.segments[:n])
	return Path{segments: out}
}

// Resolved returns the longest prefix of p consisting entirely of
// segments beginning with "#", the canonical/non-wildcard convention.
func (p Path) Resolved() Path {
	n := 0
	for n < len(p.segments) && strings.HasPrefix(p.segments[n], resolvedPrefix) {
		n++
	}
	return p.Prefix(n)
}

// Equal reports whether p and q have identical segments.
func (p Path) Equal(q Path) bool {
	if len(p.segments) != len(q.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != q.segments[i] {
			return false
		}
	}
	return true
}

// Compare gives Path a total order suitable for use as a sorted map
// key, comparing segment-by-segment and breaking ties by length.
func (p Path) Compare(q Path) int {
	n := len(p.segments)
	if len(q.segments) < n {
		n = len(q.segments)
	}
	for i := 0; i < n; i++ {
		if c := strings.Compare(p.segments[i], q.segments[i]); c != 0 {
			return c
		}
	}
	return len(p.segments) - len(q.segments)
}

// String renders the path as a slash-joined string for logs and errors.
func (p Path) String() string {
	if len(p.segments) == 0 {
		return "/"
	}
	return "/" + strings.Join(p.segments, "/")
}

// HasPrefix reports whether prefix is a leading subsequence of p,
// without wildcard expansion.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if p.segments[i] != s {
			return false
		}
	}
	return true
}

// Delegate classifies a listener path p against a subtree being
// delegated at d. It returns:
//
//   - retain: whether the listener should remain registered at the
//     zone issuing the delegation (it still has something to see
//     locally, e.g. because it only wildcard-overlaps the delegated
//     range, or sits above/beside it).
//   - forward: if non-nil, the relative path the listener should be
//     re-registered under at the newly delegated child zone.
//
// At least one of "retained locally" or "forwarded" always holds, and
// both hold simultaneously when a wildcard overlaps the split point
// from above (spec.md §4.4's "wildcard-overlaps" case).
func (p Path) Delegate(d Path) (retain bool, forward *Path) {
	i := 0
	for _, ds := range d.segments {
		if i >= len(p.segments) {
			// Listener path shorter than the delegated path: nothing
			// downstream of the split to forward.
			return true, nil
		}

		ps := p.segments[i]

		switch {
		case ps == ds:
			i++
			continue
		case ps == One:
			retain = true
			i++
			continue
		case ps == Any:
			rest := Of(Any)
			return true, &rest
		default:
			// Mismatch: this listener is entirely outside the
			// delegated range.
			return true, nil
		}
	}

	rest := p.Slice(i)
	return retain, &rest
}

// MatchSegment reports whether a literal node-tree segment key matches
// a path segment that may be a wildcard.
func MatchSegment(pathSegment, key string) bool {
	return pathSegment == One || pathSegment == key
}

package node

import (
	"github.com/bytedance/sonic"

	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/value"
)

// Update is the diff a merge or read produces for client listeners: a
// recursive description of what changed (or, for reads, what is
// currently visible) at and below one path.
type Update struct {
	Visible   *bool
	New       *value.Value
	Delegated bool
	Children  map[string]*Update
}

// IsNoop reports whether u carries nothing worth delivering to a
// listener.
func (u *Update) IsNoop() bool {
	if u == nil {
		return true
	}
	return u.Visible == nil && u.New == nil && !u.Delegated && len(u.Children) == 0
}

// AddChild records child's update under key, dropping no-op updates so
// the tree stays as small as the information it carries.
func (u *Update) AddChild(key string, child *Update) {
	if child.IsNoop() {
		return
	}
	if u.Children == nil {
		u.Children = make(map[string]*Update)
	}
	u.Children[key] = child
}

// At projects u down to the sub-update addressed by p, matching
// wildcard segments against u's children the same way read walks a
// Node tree. Used to hand a listener only the slice of a merge's
// Update that falls under its own subscribed path. Returns nil if a
// literal segment of p names a child u does not have; a wildcard
// segment that matches nothing yields an empty Update instead.
func (u *Update) At(p path.Path) *Update {
	if u == nil {
		return nil
	}
	if p.Len() == 0 {
		return u
	}

	switch segment := p.At(0); segment {
	case path.One:
		merged := &Update{}
		for k, c := range u.Children {
			merged.AddChild(k, c.At(p.Slice(1)))
		}
		return merged

	case path.Any:
		merged := u.At(p.Slice(1))
		if merged == nil {
			merged = &Update{}
		}
		for k, c := range u.Children {
			merged.AddChild(k, c.At(p))
		}
		return merged

	default:
		c, ok := u.Children[segment]
		if !ok {
			return nil
		}
		return c.At(p.Slice(1))
	}
}

// wireUpdate is the JSON-array shape described in spec.md §6:
// [keys_object|null, visible|null, value], where visible is a bool,
// or the string "delegated" for a subtree handed to another zone.
func (u *Update) wireUpdate() []any {
	if u == nil {
		return []any{nil, nil, nil}
	}

	var keys any
	if len(u.Children) > 0 {
		m := make(map[string]any, len(u.Children))
		for k, c := range u.Children {
			m[k] = c.wireUpdate()
		}
		keys = m
	}

	var visible any
	if u.Delegated {
		visible = "delegated"
	} else if u.Visible != nil {
		visible = *u.Visible
	}

	var val any
	if u.New != nil {
		val = u.New.Any()
	}

	return []any{keys, visible, val}
}

// MarshalJSON implements json.Marshaler, rendering the wire shape
// documented in spec.md §6.
func (u *Update) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(u.wireUpdate())
}

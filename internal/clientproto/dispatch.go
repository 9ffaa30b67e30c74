package clientproto

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/qumulus-db/qumulus/internal/listener"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/node"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/zone"
)

// frame is one matched-zone reply still waiting to be sent, in the
// order dispatchCommand discovered it.
type frame struct {
	path   path.Path
	update *node.Update
}

// dispatchCommand runs req against m, following every delegated match
// a bind or read turns up into the zone that now owns that subtree, so
// a query crossing a delegation boundary still comes back as one
// logical reply set. kill and write only ever touch the zone they
// land in: a node merge, not a read, is what carries a write's effect
// across a delegation boundary (see internal/node's External).
func dispatchCommand(m *manager.Handle, req Request, sink listener.Sink) ([]frame, error) {
	absPath := path.New(req.Path)
	ts := uint64(time.Now().UnixNano())
	pending := []path.Path{absPath}
	var frames []frame

	for len(pending) > 0 {
		cur := pending[0]
		pending = pending[1:]

		matched, zh := m.FindNearest(cur)
		cmd := zone.Command{
			Kind:      req.Kind(),
			Path:      cur.Slice(matched.Len()),
			Value:     req.Params,
			Timestamp: ts,
		}

		result, err := zh.Dispatch(cmd, req.ID, sink)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame{path: cur, update: result.Update})

		if req.Kind() == zone.CommandBind || req.Kind() == zone.CommandRead {
			for _, dm := range result.Delegated {
				next := matched.Clone()
				next.Append(dm.Path)
				next.Append(dm.Remaining)
				pending = append(pending, next)
			}
		}
	}

	return frames, nil
}

// encodeReplies renders frames as the wire shape spec.md §6 describes:
// one `[id, remaining, path, update|null]` array per frame, remaining
// counting down to 0 on the last one.
func encodeReplies(id uint64, frames []frame) ([][]byte, error) {
	out := make([][]byte, 0, len(frames))
	for i, f := range frames {
		remaining := len(frames) - 1 - i
		b, err := sonic.Marshal([]any{id, remaining, f.path.Segments(), f.update})
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

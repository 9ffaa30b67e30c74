package cluster

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ugorji/go/codec"

	"github.com/qumulus-db/qumulus/internal/node"
)

// maxFrameSize bounds a single wire message, per spec.md §6.
const maxFrameSize = 10 << 20

type messageKind byte

const (
	kindMerge messageKind = iota
	kindSync
	// kindSyncRequest asks the receiver to push its own local zones
	// back out as kindSync messages, the "Sync" message spec.md §4.7
	// names; kindSync itself already carries the actual data.
	kindSyncRequest
)

// wireMessage is a peer-to-peer replication frame: a diff (kindMerge)
// or a full zone snapshot (kindSync) addressed at a zone path relative
// to the cluster root.
type wireMessage struct {
	Kind messageKind
	Path []string
	Node *node.Node
}

var wireHandle codec.MsgpackHandle

// writeFrame encodes msg as msgpack and writes it as a 4-byte
// big-endian length prefix followed by the payload.
func writeFrame(w io.Writer, msg wireMessage) error {
	var body []byte
	if err := codec.NewEncoderBytes(&body, &wireHandle).Encode(msg); err != nil {
		return fmt.Errorf("cluster: encode message: %w", err)
	}
	if len(body) > maxFrameSize {
		return fmt.Errorf("cluster: message too large (%d bytes)", len(body))
	}

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("cluster: write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("cluster: write frame body: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and decodes it.
func readFrame(r io.Reader) (wireMessage, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return wireMessage{}, err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > maxFrameSize {
		return wireMessage{}, fmt.Errorf("cluster: frame too large (%d bytes)", n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return wireMessage{}, fmt.Errorf("cluster: read frame body: %w", err)
	}

	var msg wireMessage
	if err := codec.NewDecoderBytes(body, &wireHandle).Decode(&msg); err != nil {
		return wireMessage{}, fmt.Errorf("cluster: decode message: %w", err)
	}
	return msg, nil
}

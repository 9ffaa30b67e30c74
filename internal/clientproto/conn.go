package clientproto

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/stats"
)

const (
	pingInterval = 60 * time.Second
	maxLineSize  = 10 << 20
)

// conn owns one client's socket. It mirrors
// original_source/src/client.rs's split between a read loop and an
// async writer fed over a channel, so a slow or stuck client write
// never blocks the goroutine decoding its requests.
type conn struct {
	nc     net.Conn
	log    *slog.Logger
	stats  *stats.Stats
	closed atomic.Bool

	out  chan []byte
	done chan struct{}
	wg   sync.WaitGroup
}

func serve(nc net.Conn, m *manager.Handle, st *stats.Stats, log *slog.Logger) {
	c := &conn{
		nc:    nc,
		log:   log.With("peer", nc.RemoteAddr().String()),
		stats: st,
		out:   make(chan []byte, 256),
		done:  make(chan struct{}),
	}
	st.Clients.Connects.Increment()

	c.wg.Add(2)
	go c.writeLoop()
	go c.pingLoop()

	c.send(helloFrame)
	c.readLoop(m)

	c.close()
	c.wg.Wait()
	st.Clients.Disconnects.Increment()
}

// Send implements listener.Sink: a zone hands a push payload straight
// to the connection's write queue. Returning an error tells the zone
// to drop this listener.
func (c *conn) Send(msg []byte) error {
	if c.closed.Load() {
		return net.ErrClosed
	}
	select {
	case c.out <- msg:
		return nil
	default:
		c.log.Warn("client write queue full, dropping connection")
		c.close()
		return net.ErrClosed
	}
}

func (c *conn) send(msg []byte) {
	if c.closed.Load() {
		return
	}
	select {
	case c.out <- msg:
	default:
		c.log.Warn("client write queue full, dropping connection")
		c.close()
	}
}

func (c *conn) close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.out)
		close(c.done)
		c.nc.Close()
	}
}

func (c *conn) readLoop(m *manager.Handle) {
	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		req, err := parseRequest(line)
		if err != nil {
			c.send(errorFrame(err.Error()))
			continue
		}

		c.stats.Clients.Commands.Increment(req.Call)

		frames, err := dispatchCommand(m, req, c)
		if err != nil {
			c.send(errorFrame(err.Error()))
			continue
		}

		replies, err := encodeReplies(req.ID, frames)
		if err != nil {
			c.log.Error("encode reply failed", "call", req.Call, "error", err)
			continue
		}
		for _, r := range replies {
			c.stats.Clients.Replies.Increment()
			c.send(r)
		}
	}
}

func (c *conn) writeLoop() {
	defer c.wg.Done()
	w := bufio.NewWriter(c.nc)
	for msg := range c.out {
		w.Write(msg)
		w.WriteByte('\n')
		if err := w.Flush(); err != nil {
			c.close()
			return
		}
	}
}

func (c *conn) pingLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.send(pingFrame)
		case <-c.done:
			return
		}
	}
}

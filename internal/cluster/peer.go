package cluster

import (
	"log/slog"
	"net"
	"time"
)

const (
	dialTimeout    = 5 * time.Second
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Peer is one outbound replication connection. It redials with
// exponential backoff on any failure and queues outgoing messages
// while disconnected; once the queue is full, new messages are dropped
// rather than blocking the cluster actor — replication is best-effort gossip, not
// a guaranteed delivery channel, per spec.md §4.7.
type Peer struct {
	addr string
	log  *slog.Logger
	tx   chan wireMessage
	done chan struct{}
}

func newPeer(addr string, log *slog.Logger) *Peer {
	p := &Peer{
		addr: addr,
		log:  log,
		tx:   make(chan wireMessage, 64),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *Peer) send(msg wireMessage) {
	select {
	case p.tx <- msg:
	default:
		p.log.Warn("peer send queue full, dropping message", "peer", p.addr)
	}
}

func (p *Peer) close() {
	close(p.done)
}

func (p *Peer) run() {
	backoff := initialBackoff
	for {
		conn, err := net.DialTimeout("tcp", p.addr, dialTimeout)
		if err != nil {
			p.log.Warn("peer dial failed", "peer", p.addr, "error", err)
			select {
			case <-time.After(backoff):
			case <-p.done:
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		p.log.Info("peer connected", "peer", p.addr)
		p.drain(conn)
		conn.Close()
	}
}

// drain forwards queued messages to conn until a write fails or the
// peer is closed, at which point run redials.
func (p *Peer) drain(conn net.Conn) {
	for {
		select {
		case msg := <-p.tx:
			if err := writeFrame(conn, msg); err != nil {
				p.log.Warn("peer write failed", "peer", p.addr, "error", err)
				return
			}
		case <-p.done:
			return
		}
	}
}

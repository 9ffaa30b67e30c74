package clientproto

import (
	"log/slog"
	"net"

	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/stats"
)

// Server accepts client connections and spins off one conn per
// socket, mirroring original_source/src/client.rs's "spins off
// threads per client" model with goroutines instead.
type Server struct {
	ln      net.Listener
	manager *manager.Handle
	stats   *stats.Stats
	log     *slog.Logger
}

// Listen opens the client-facing listening socket on addr.
func Listen(addr string, m *manager.Handle, st *stats.Stats, log *slog.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{ln: ln, manager: m, stats: st, log: log}, nil
}

// Addr returns the address actually bound, useful when addr named
// port 0.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			return err
		}
		go serve(nc, s.manager, s.stats, s.log)
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error {
	return s.ln.Close()
}

// Package monitor serves a single read-only JSON status endpoint.
// Grounded on original_source/src/monitor.rs, whose hand-rolled
// HTTP/1.1 response writer is replaced here with net/http: a single
// GET / handler doesn't need the teacher's own trie router, only the
// CORS header and pretty-printed JSON the original writes by hand.
package monitor

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/qumulus-db/qumulus/internal/stats"
)

// Server serves process statistics over HTTP.
type Server struct {
	stats *stats.Stats
	log   *slog.Logger
	http  *http.Server
}

// New builds a monitor bound to addr, not yet listening.
func New(addr string, st *stats.Stats, log *slog.Logger) *Server {
	s := &Server{stats: st, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStats)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving requests until the server is closed.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Close stops the server.
func (s *Server) Close() error {
	return s.http.Close()
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.stats); err != nil {
		s.log.Error("monitor encode failed", "error", err)
	}
}

// Package shell implements the line-oriented operator console read
// from stdin. Grounded on original_source/src/shell.rs's
// command_loop/active/shutdown; the remaining commands
// (cluster.sync[_all], store.dump, stats, zone.dump, zone.sync) are
// additions this implementation's Manager/Store/Cluster handles make
// possible but the original never wired up.
package shell

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/qumulus-db/qumulus/internal/cluster"
	"github.com/qumulus-db/qumulus/internal/manager"
	"github.com/qumulus-db/qumulus/internal/path"
	"github.com/qumulus-db/qumulus/internal/stats"
	"github.com/qumulus-db/qumulus/internal/store"
)

// Shell owns the console's dependencies: everything an operator
// command might need to inspect or act on.
type Shell struct {
	manager *manager.Handle
	store   *store.Handle
	cluster *cluster.Handle
	stats   *stats.Stats

	reader  *bufio.Reader
	writer  io.Writer
	color   bool
	onExit  func()
}

// Config bundles the handles a Shell dispatches commands against.
type Config struct {
	Manager *manager.Handle
	Store   *store.Handle
	Cluster *cluster.Handle
	Stats   *stats.Stats
	// OnExit runs when the operator types exit/quit/shutdown, in place
	// of the original's process::exit(0), so callers can run their own
	// graceful shutdown path.
	OnExit func()
}

// New builds a Shell reading r and writing prompts/output to w. Color
// is enabled only when w is an actual terminal, per isatty's check.
func New(r io.Reader, w io.Writer, cfg Config) *Shell {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Shell{
		manager: cfg.Manager,
		store:   cfg.Store,
		cluster: cfg.Cluster,
		stats:   cfg.Stats,
		reader:  bufio.NewReader(r),
		writer:  w,
		color:   color,
		onExit:  cfg.OnExit,
	}
}

// Run reads commands until EOF or a shutdown command.
func (s *Shell) Run() {
	s.prompt()
	for {
		line, err := s.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			s.dispatch(line)
		}
		if err != nil {
			return
		}
		s.prompt()
	}
}

func (s *Shell) prompt() {
	if s.color {
		fmt.Fprint(s.writer, "\033[1m> \033[0m")
	} else {
		fmt.Fprint(s.writer, "> ")
	}
}

func (s *Shell) dispatch(line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "active":
		s.active()
	case "stats":
		s.printStats()
	case "cluster.sync":
		s.cluster.LocalSync()
		fmt.Fprintln(s.writer, "Sync complete")
	case "cluster.sync_all":
		s.cluster.SyncAll()
		fmt.Fprintln(s.writer, "Sync-all complete")
	case "store.dump":
		s.storeDump(args)
	case "zone.dump":
		s.zoneDump(args)
	case "zone.sync":
		s.zoneSync(args)
	case "exit", "quit", "shutdown":
		s.shutdown()
	default:
		fmt.Fprintln(s.writer, "Bad command")
	}
}

func (s *Shell) active() {
	zones := s.manager.ListZones()
	fmt.Fprintln(s.writer, "Active Zones:")
	for _, p := range zones {
		zh, ok := s.manager.Find(p)
		if !ok {
			continue
		}
		fmt.Fprintf(s.writer, "%8d %v %q\n", zh.Size(), zh.State(), p.String())
	}
	fmt.Fprintf(s.writer, "Total: %d active zones\n", len(zones))
}

func (s *Shell) printStats() {
	fmt.Fprintf(s.writer, "%+v\n", s.stats)
}

// storeDump lists every persisted zone path under the given prefix.
// The store itself only exposes a synchronous List, not a synchronous
// Read (reads are always handled asynchronously against a live
// zone.Handle); inspecting one zone's actual data is zone.dump's job.
func (s *Shell) storeDump(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.writer, "usage: store.dump <path>")
		return
	}
	prefix := parsePath(args[0])
	for _, p := range s.store.List() {
		if p.HasPrefix(prefix) {
			fmt.Fprintln(s.writer, p.String())
		}
	}
}

func (s *Shell) zoneDump(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.writer, "usage: zone.dump <path>")
		return
	}
	p := parsePath(args[0])
	zh, ok := s.manager.Find(p)
	if !ok {
		fmt.Fprintln(s.writer, "no such zone")
		return
	}
	b, err := json.Marshal(zh.Dump())
	if err != nil {
		fmt.Fprintln(s.writer, "dump failed:", err)
		return
	}
	fmt.Fprintln(s.writer, string(b))
}

func (s *Shell) zoneSync(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.writer, "usage: zone.sync <path>")
		return
	}
	p := parsePath(args[0])
	zh, ok := s.manager.Find(p)
	if !ok {
		fmt.Fprintln(s.writer, "no such zone")
		return
	}
	tree := zh.Snapshot()
	s.cluster.Replicate(p, tree.Node)
	fmt.Fprintln(s.writer, "Zone synced")
}

func (s *Shell) shutdown() {
	fmt.Fprintln(s.writer, "Shutting down...")
	if s.onExit != nil {
		s.onExit()
	}
}

// parsePath splits a dotted operator-typed path like the original's
// `.join(".")` display format, in reverse.
func parsePath(s string) path.Path {
	if s == "" {
		return path.Empty()
	}
	return path.Of(strings.Split(s, ".")...)
}

// Package stats holds the process-wide counters every other actor
// bumps as it works: client connects/commands, cluster broadcasts,
// store reads/writes, and the zones currently loaded. Grounded on
// original_source/src/app.rs's Stats/ClientStats/ClusterStats/
// StoreStats/ZoneStats family, whose AtomicUsize + relaxed-ordering
// counters map directly onto sync/atomic.Int64 fields.
package stats

import (
	"strconv"
	"sync/atomic"
)

// Stat is a single relaxed-increment counter, safe for concurrent use
// by every actor without any locking.
type Stat struct {
	value atomic.Int64
}

func (s *Stat) Increment() { s.value.Add(1) }
func (s *Stat) Decrement() { s.value.Add(-1) }
func (s *Stat) Set(v int64) { s.value.Store(v) }
func (s *Stat) Value() int64 { return s.value.Load() }

// MarshalJSON renders a Stat as its bare numeric value, matching the
// original's custom Serialize impl rather than exposing the wrapper.
func (s *Stat) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(s.Value(), 10)), nil
}

// CommandStats counts client commands by call kind.
type CommandStats struct {
	Bind  Stat `json:"bind"`
	Kill  Stat `json:"kill"`
	Read  Stat `json:"read"`
	Write Stat `json:"write"`
}

// Increment bumps the counter matching call, a no-op for any other
// string (the protocol layer validates call names before this is
// reached, so this only guards against future call kinds).
func (c *CommandStats) Increment(call string) {
	switch call {
	case "bind":
		c.Bind.Increment()
	case "kill":
		c.Kill.Increment()
	case "read":
		c.Read.Increment()
	case "write":
		c.Write.Increment()
	}
}

// ClientStats counts client connection lifecycle and command traffic.
type ClientStats struct {
	Connects    Stat         `json:"connects"`
	Disconnects Stat         `json:"disconnects"`
	Commands    CommandStats `json:"commands"`
	Replies     Stat         `json:"replies"`
}

// ClusterStats counts replication traffic.
type ClusterStats struct {
	Broadcast      Stat `json:"broadcast"`
	HandleMessage  Stat `json:"handle_cluster_message"`
	Replicas       Stat `json:"replicas"`
	Replicate      Stat `json:"replicate"`
}

// StoreStats counts persistence traffic, including the in-flight
// (pending) counts the original tracks so the monitor endpoint can
// show backpressure building up against the worker pools.
type StoreStats struct {
	Reads        Stat `json:"reads"`
	ReadsPending Stat `json:"reads_pending"`
	ReadsErrors  Stat `json:"reads_errors"`

	Writes        Stat `json:"writes"`
	WritesPending Stat `json:"writes_pending"`
	WritesErrors  Stat `json:"writes_errors"`
}

// ZoneStats counts currently resident zones.
type ZoneStats struct {
	LocalActive Stat `json:"local_active"`
	LocalLoaded Stat `json:"local_loaded"`
}

// Stats is the full process-wide counter set, shared by every actor
// via a single pointer handed out at wiring time.
type Stats struct {
	Clients ClientStats  `json:"clients"`
	Cluster ClusterStats `json:"cluster"`
	Store   StoreStats   `json:"store"`
	Zones   ZoneStats    `json:"zones"`
}

// New returns a zeroed counter set ready to be shared across actors.
func New() *Stats {
	return &Stats{}
}

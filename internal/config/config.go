// Package config resolves a replica's runtime configuration: the
// positional <ID> and CLUSTER env var the CLI layer names, plus an
// optional YAML file for the tunables spec.md §4.3/§4.5/§4.6 leave as
// "design defaults" rather than hard constants. Grounded on
// original_source/src/{main,server,replica}.rs, none of which parse a
// config file at all (the original hardcodes port 8888 and never
// reads CLUSTER); this package is a pure ambient addition, since a
// deployable replica binary needs this regardless of what spec.md's
// Non-goals exclude.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Offsets from the API port named by <ID>, per spec.md §6's "peer on
// IP:port+100, monitor on IP:port+?". The original never pins a
// monitor offset; +200 is this implementation's choice, clear of the
// peer range and any adjacent replica's own API/peer ports on the
// same host.
const (
	PeerPortOffset    = 100
	MonitorPortOffset = 200
)

// Tunables are the hard core's configurable thresholds, all of which
// spec.md names as "design defaults" rather than fixed constants.
type Tunables struct {
	Soft                int     `yaml:"soft"`
	Hard                int     `yaml:"hard"`
	DelegateThreshold   int     `yaml:"delegate_threshold_bytes"`
	DelegateTargetShare float64 `yaml:"delegate_target_fraction"`
	ReadWorkers         int     `yaml:"read_workers"`
	WriteWorkers        int     `yaml:"write_workers"`
}

// DefaultTunables matches the design defaults spec.md §4.3/§4.5/§4.6
// name.
func DefaultTunables() Tunables {
	return Tunables{
		Soft:                600,
		Hard:                800,
		DelegateThreshold:   64 << 10,
		DelegateTargetShare: 0.5,
		ReadWorkers:         50,
		WriteWorkers:        50,
	}
}

// file is the on-disk shape of the optional YAML config; every field
// is optional and overlays onto DefaultTunables/DataDir.
type file struct {
	DataDir  string   `yaml:"data_dir"`
	Tunables Tunables `yaml:"tunables"`
}

// Config is a replica's fully resolved runtime configuration.
type Config struct {
	ID string // this replica's own "IP:port", the CLI's positional <ID>

	APIAddr     string
	PeerAddr    string
	MonitorAddr string

	Peers []string // peer "IP:port" addresses to dial, from CLUSTER

	DataDir  string
	Tunables Tunables
}

// Load resolves a Config from the CLI's positional id, the CLUSTER
// environment variable, and an optional YAML file at configPath (a
// missing path is not an error; it just means defaults apply).
func Load(id string, clusterEnv string, configPath string) (Config, error) {
	host, portStr, err := net.SplitHostPort(id)
	if err != nil {
		return Config{}, fmt.Errorf("config: bad id %q: %w", id, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("config: bad port in %q: %w", id, err)
	}

	cfg := Config{
		ID:          id,
		APIAddr:     id,
		PeerAddr:    net.JoinHostPort(host, strconv.Itoa(port+PeerPortOffset)),
		MonitorAddr: net.JoinHostPort(host, strconv.Itoa(port+MonitorPortOffset)),
		Peers:       parsePeers(clusterEnv),
		DataDir:     fmt.Sprintf("data_%s", sanitizeID(id)),
		Tunables:    DefaultTunables(),
	}

	if configPath == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %q: %w", configPath, err)
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Config{}, fmt.Errorf("config: parse %q: %w", configPath, err)
	}

	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	overlayTunables(&cfg.Tunables, f.Tunables)
	return cfg, nil
}

// overlayTunables replaces any non-zero field in override onto base,
// so a YAML file only needs to name the tunables it wants to change.
func overlayTunables(base *Tunables, override Tunables) {
	if override.Soft != 0 {
		base.Soft = override.Soft
	}
	if override.Hard != 0 {
		base.Hard = override.Hard
	}
	if override.DelegateThreshold != 0 {
		base.DelegateThreshold = override.DelegateThreshold
	}
	if override.DelegateTargetShare != 0 {
		base.DelegateTargetShare = override.DelegateTargetShare
	}
	if override.ReadWorkers != 0 {
		base.ReadWorkers = override.ReadWorkers
	}
	if override.WriteWorkers != 0 {
		base.WriteWorkers = override.WriteWorkers
	}
}

// parsePeers splits CLUSTER's whitespace-separated peer id list, per
// spec.md §6's CLI section. Each peer id is an API address; the actual
// dial target is that peer's own peer port, PeerPortOffset above it.
func parsePeers(clusterEnv string) []string {
	fields := strings.Fields(clusterEnv)
	if len(fields) == 0 {
		return nil
	}
	peers := make([]string, 0, len(fields))
	for _, f := range fields {
		host, portStr, err := net.SplitHostPort(f)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			continue
		}
		peers = append(peers, net.JoinHostPort(host, strconv.Itoa(port+PeerPortOffset)))
	}
	return peers
}

func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, id)
}

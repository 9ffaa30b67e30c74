package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResolvesPortOffsets(t *testing.T) {
	cfg, err := Load("127.0.0.1:9000", "", "")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.APIAddr)
	assert.Equal(t, "127.0.0.1:9100", cfg.PeerAddr)
	assert.Equal(t, "127.0.0.1:9200", cfg.MonitorAddr)
	assert.Equal(t, DefaultTunables(), cfg.Tunables)
}

func TestLoadParsesClusterPeers(t *testing.T) {
	cfg, err := Load("127.0.0.1:9000", "127.0.0.1:9001 127.0.0.1:9002", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:9101", "127.0.0.1:9102"}, cfg.Peers)
}

func TestLoadRejectsBadID(t *testing.T) {
	_, err := Load("not-an-address", "", "")
	assert.Error(t, err)
}

func TestLoadOverlaysYAMLTunables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "qumulus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: /tmp/custom\ntunables:\n  hard: 1200\n"), 0o644))

	cfg, err := Load("127.0.0.1:9000", "", path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom", cfg.DataDir)
	assert.Equal(t, 1200, cfg.Tunables.Hard)
	assert.Equal(t, DefaultTunables().Soft, cfg.Tunables.Soft)
}

func TestLoadMissingConfigFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("127.0.0.1:9000", "", "/nonexistent/path.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultTunables(), cfg.Tunables)
}
